package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/didauth/agentauth/crypto/edkey"
	"github.com/didauth/agentauth/didresolve"
	"github.com/didauth/agentauth/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Sign or verify an agent manifest",
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

var (
	manifestSignIn        string
	manifestSignOut       string
	manifestSignKeyFile   string
	manifestSignVerMethod string
)

var manifestSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign an unsigned manifest JSON file, producing its proof",
	Long: `Read an unsigned manifest (no "proof" field) from --in, compute its
Ed25519Signature2020 proof using the private key in --key, and write the
signed manifest to --out (default: stdout).`,
	Example: `  agentauthctl manifest sign --in manifest.json --key ./keys/agent-1.priv \
    --verification-method "did:key:z6Mk...#z6Mk..." --out signed.json`,
	RunE: runManifestSign,
}

var (
	manifestVerifyIn string
)

var manifestVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a signed manifest's structure, signature, and temporal bounds",
	RunE:  runManifestVerify,
}

func init() {
	manifestCmd.AddCommand(manifestSignCmd)
	manifestSignCmd.Flags().StringVar(&manifestSignIn, "in", "", "path to the unsigned manifest JSON (required)")
	manifestSignCmd.Flags().StringVar(&manifestSignOut, "out", "", "path to write the signed manifest (default: stdout)")
	manifestSignCmd.Flags().StringVar(&manifestSignKeyFile, "key", "", "path to the hex-encoded Ed25519 private key seed (required)")
	manifestSignCmd.Flags().StringVar(&manifestSignVerMethod, "verification-method", "", "verification_method DID URL (required)")
	_ = manifestSignCmd.MarkFlagRequired("in")
	_ = manifestSignCmd.MarkFlagRequired("key")
	_ = manifestSignCmd.MarkFlagRequired("verification-method")

	manifestCmd.AddCommand(manifestVerifyCmd)
	manifestVerifyCmd.Flags().StringVar(&manifestVerifyIn, "in", "", "path to the signed manifest JSON (required)")
	_ = manifestVerifyCmd.MarkFlagRequired("in")
}

func runManifestSign(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(manifestSignIn)
	if err != nil {
		return fmt.Errorf("manifest sign: read %s: %w", manifestSignIn, err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("manifest sign: parse manifest: %w", err)
	}

	seedHex, err := os.ReadFile(manifestSignKeyFile)
	if err != nil {
		return fmt.Errorf("manifest sign: read key: %w", err)
	}
	kp, err := keyPairFromSeedHex(string(seedHex))
	if err != nil {
		return fmt.Errorf("manifest sign: %w", err)
	}

	if err := manifest.Sign(&m, kp, manifestSignVerMethod, time.Now()); err != nil {
		return fmt.Errorf("manifest sign: %w", err)
	}

	out, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest sign: encode: %w", err)
	}
	if manifestSignOut == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(manifestSignOut, out, 0o644)
}

func runManifestVerify(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(manifestVerifyIn)
	if err != nil {
		return fmt.Errorf("manifest verify: read %s: %w", manifestVerifyIn, err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("manifest verify: parse manifest: %w", err)
	}

	resolver := didresolve.New(didresolve.DefaultBudget())
	verifier := manifest.NewVerifier(resolver, 60*time.Second)

	if err := verifier.Verify(context.Background(), &m, time.Now()); err != nil {
		return fmt.Errorf("manifest invalid: %w", err)
	}

	fmt.Printf("manifest valid: id=%s sequence=%d valid_until=%s\n", m.ID, m.Sequence, m.ValidUntil.Format(time.RFC3339))
	return nil
}

// keyPairFromSeedHex rebuilds an edkey.KeyPair from a hex-encoded
// 32-byte Ed25519 seed, the format written by the keygen subcommand.
func keyPairFromSeedHex(s string) (*edkey.KeyPair, error) {
	seed, err := hex.DecodeString(trimNewline(s))
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &edkey.KeyPair{Private: priv, Public: pub}, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
