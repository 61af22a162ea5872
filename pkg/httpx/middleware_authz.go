package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
)

// RequireClaims rejects requests whose claims do not satisfy allow. It must
// run after AuthnMiddleware.
func RequireClaims(allow func(jwtx.Claims) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}
			if !allow(claims) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
