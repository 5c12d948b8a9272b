package authhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/didauth/agentauth/manifest"
	"github.com/didauth/agentauth/pkg/version"
)

// ManifestFetcher retrieves the optional well-known remote manifest for
// a did:web agent (§6 "Remote manifest"). Injecting nil disables the
// step-2 remote-preference lookup entirely.
type ManifestFetcher interface {
	Fetch(ctx context.Context, did string) (*manifest.Manifest, error)
}

// HTTPManifestFetcher fetches https://<host>/.well-known/agent-manifest.json
// for a did:web identifier, under a fetch budget like did:web
// resolution's: a timeout, a byte cap, and redirects that must stay on
// https and are capped at three hops.
type HTTPManifestFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPManifestFetcher builds a fetcher with the given timeout and byte cap.
func NewHTTPManifestFetcher(timeout time.Duration, maxBytes int64) *HTTPManifestFetcher {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	if maxBytes == 0 {
		maxBytes = 100 * 1024
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 3 {
				return fmt.Errorf("too many redirects")
			}
			if req.URL.Scheme != "https" {
				return fmt.Errorf("redirect left https")
			}
			return nil
		},
	}
	return &HTTPManifestFetcher{client: client, maxBytes: maxBytes}
}

// Fetch implements ManifestFetcher. did must be a did:web DID; any other
// method, or any network/parse failure, is reported as an error — the
// caller (verify's step 2) treats any error here as "fall back silently".
func (f *HTTPManifestFetcher) Fetch(ctx context.Context, did string) (*manifest.Manifest, error) {
	const prefix = "did:web:"
	if !strings.HasPrefix(did, prefix) {
		return nil, fmt.Errorf("authhandler: remote manifest only supported for did:web")
	}
	identifier := strings.TrimPrefix(did, prefix)
	host, err := url.PathUnescape(strings.SplitN(identifier, ":", 2)[0])
	if err != nil {
		return nil, err
	}
	docURL := "https://" + host + "/.well-known/agent-manifest.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authhandler: unexpected status %d fetching remote manifest", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("authhandler: remote manifest exceeds byte budget")
	}

	var m manifest.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
