package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/pkg/httpx"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"

	_ "github.com/aussiebroadwan/admitgate/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits groups the per-route limiter profiles. A zero profile disables
// limiting for its routes.
type RateLimits struct {
	Strict     httpx.RateLimitConfig // code issuing, verification and login
	Moderate   httpx.RateLimitConfig // authenticated operations
	Public     httpx.RateLimitConfig // probes
	TrustProxy bool
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Credentials *service.CredentialService
	RateLimits  RateLimits
}

func NewRouter(
	creds *service.CredentialService,
	st store.Store,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Credentials:  creds,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerIdentity(domain.KindPhone)
	r.registerIdentity(domain.KindEmail)
	r.registerSession()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Admitgate Identity Service API
//	@version					0.1.0
//	@description				Phone and email verification with one-time codes, password accounts and HS256 session tokens.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/admitgate
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) byIP(cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitMiddleware(cfg, httpx.IPKeyExtractor(r.RateLimits.TrustProxy))
}

func (r *Router) byAccount(cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitMiddleware(cfg, httpx.CompositeKeyExtractor(":",
		httpx.AccountKeyExtractor,
		httpx.IPKeyExtractor(r.RateLimits.TrustProxy),
	))
}

func (r *Router) authn() httpx.Middleware {
	auth := httpx.AuthenticatorFunc(func(ctx context.Context, token string) (jwtx.Claims, error) {
		_, claims, err := r.Credentials.Authenticate(ctx, token)
		return claims, err
	})
	return httpx.AuthnMiddleware(auth, writeAuthError)
}

func (r *Router) registerIdentity(kind domain.IdentityKind) {
	h := &IdentityHandler{Kind: kind, Credentials: r.Credentials}
	prefix := "POST /v1/" + string(kind)

	// Each route gets its own bucket set
	strict := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, r.byIP(r.RateLimits.Strict))
	}

	r.Mux.Handle(prefix+"/check", strict(h.HandleCheck))
	r.Mux.Handle(prefix+"/verify", strict(h.HandleVerify))
	r.Mux.Handle(prefix+"/resend", strict(h.HandleResend))
	r.Mux.Handle(prefix+"/register", strict(h.HandleRegister))
	r.Mux.Handle(prefix+"/login", strict(h.HandleLogin))
	r.Mux.Handle(prefix+"/password/forgot", strict(h.HandleForgot))
	r.Mux.Handle(prefix+"/password/reset", strict(h.HandleReset))
}

func (r *Router) registerSession() {
	h := &SessionHandler{Credentials: r.Credentials}

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			r.authn(),
			r.byAccount(r.RateLimits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/account/password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			r.authn(),
			r.byAccount(r.RateLimits.Strict),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Credentials: r.Credentials}

	isAdmin := func(c jwtx.Claims) bool { return service.HasRole(c, domain.RoleAdmin) }

	r.Mux.Handle("POST /v1/admin/accounts/{id}/active",
		httpx.Chain(http.HandlerFunc(h.HandleSetActive),
			r.authn(),
			httpx.RequireClaims(isAdmin),
			r.byAccount(r.RateLimits.Moderate),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			r.byIP(r.RateLimits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			r.byIP(r.RateLimits.Public),
		),
	)
}
