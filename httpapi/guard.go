package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/didauth/agentauth/authhandler"
	"github.com/didauth/agentauth/token"
)

type contextKey string

const claimsContextKey contextKey = "agentauth-claims"

var authErrUnauthorized = authhandler.Error{
	Code:    authhandler.CodeInvalidToken,
	Message: "missing or invalid bearer token",
}

// ClaimsFromContext returns the bearer token's decoded claims, if the
// request passed through RequireBearer.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	return claims, ok
}

// RequireBearer wraps next with a guard that validates the
// Authorization: Bearer <token> header via signer, exposing the decoded
// payload to next through the request context.
func RequireBearer(signer *token.Signer, now func() time.Time, next http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, &authErrUnauthorized)
			return
		}
		raw := strings.TrimPrefix(header, prefix)

		claims, err := signer.Validate(raw, now())
		if err != nil {
			writeError(w, &authErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
