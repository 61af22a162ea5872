package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/admitgate/pkg/cryptox"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

// Authenticator resolves a bearer token to claims. Implementations may do
// more than verify the signature (e.g. check the account is still active).
type Authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (jwtx.Claims, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (jwtx.Claims, error)

func (f AuthenticatorFunc) AuthenticateToken(ctx context.Context, token string) (jwtx.Claims, error) {
	return f(ctx, token)
}

// VerifierAuthenticator authenticates by signature and expiry alone.
func VerifierAuthenticator(v jwtx.Verifier) Authenticator {
	return AuthenticatorFunc(func(_ context.Context, token string) (jwtx.Claims, error) {
		return v.Verify(token)
	})
}

// ErrorWriter renders a failure for the request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware requires a bearer token accepted by a and stores its claims
// in the request context. Failures go to fail, or a plain invalid_token
// response when fail is nil.
func AuthnMiddleware(a Authenticator, fail ErrorWriter) Middleware {
	if fail == nil {
		fail = func(w http.ResponseWriter, _ *http.Request, _ error) {
			WriteBearerError(w, "token verification failed")
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}

			claims, err := a.AuthenticateToken(ctx, raw)
			if err != nil {
				log.Warn("session authentication failed",
					slog.String("token_fp", cryptox.FingerprintToken(raw)),
					slog.Any("error", err),
				)
				fail(w, r, err)
				return
			}

			ctx = ContextWithClaims(ctx, claims)
			ctx = slogx.With(ctx, slog.String("account_id", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteBearerError writes an RFC 6750 invalid_token response.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
