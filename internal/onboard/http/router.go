package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/internal/onboard/ratelimit"
	"github.com/aussiebroadwan/onboard/internal/onboard/service"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"

	_ "github.com/aussiebroadwan/onboard/api/onboard" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

const adminRealm = "onboard-admin"

// maxJSONBody caps admin and acceptance request bodies.
const maxJSONBody = 64 << 10

// Limiters holds one limiter per rate limit profile. Nil entries fall back
// to a process local limiter with the default profile.
type Limiters struct {
	Strict   httpx.Limiter
	Moderate httpx.Limiter
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Orchestrator *service.Orchestrator
	Audit        *service.AuditService
	Webhooks     http.Handler

	AdminUsername string
	AdminPassword string

	Limiters    Limiters
	ReadyChecks []ReadyCheck

	// TrustedProxies lists the peers whose forwarding headers are believed.
	// Nil keys everything on the TCP peer.
	TrustedProxies *httpx.TrustedProxies
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.RequestMetaMiddleware(r.clientIP),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerInvitations()
	r.registerAudit()
	r.registerWebhooks()
	r.registerSystem()

	r.Mux.Handle("GET /metrics", metrics.Handler())
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Onboard Invitation Service API
//	@version					0.1.0
//	@description				Invites users, keeps them in sync with the CRM and activates their accounts.
//	@description
//	@description				Admin endpoints use HTTP Basic authentication. CRM webhooks are verified by signature.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/onboard
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.basic	BasicAuth
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern, instrumented with the pattern as its
// route label.
func (r *Router) handle(pattern string, h http.Handler, mw ...httpx.Middleware) {
	r.Mux.Handle(pattern, metrics.Instrument(pattern, httpx.Chain(h, mw...)))
}

func (r *Router) admin() httpx.Middleware {
	return httpx.BasicAuth(adminRealm, r.AdminUsername, r.AdminPassword)
}

func (r *Router) clientIP(req *http.Request) string {
	return r.TrustedProxies.ClientIP(req)
}

// limit rate limits by client IP against the shared limiter, keyed per route
// so routes do not share a budget.
func (r *Router) limit(route string, l httpx.Limiter, fallback httpx.RateLimitConfig) httpx.Middleware {
	if l == nil {
		l = httpx.NewLocalLimiter(fallback)
	}
	return httpx.RateLimit(ratelimit.Counted(route, l), httpx.StaticKeyExtractor(route, r.clientIP))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Orchestrator: r.Orchestrator}

	// POST /users - strict rate limit by IP before auth, so guessing the
	// admin password is throttled too
	r.handle("POST /users", http.HandlerFunc(h.HandleCreate),
		r.limit("users.create", r.Limiters.Strict, httpx.StrictLimit),
		r.admin(),
		httpx.MaxBodyBytes(maxJSONBody),
	)

	r.handle("DELETE /users/{id}", http.HandlerFunc(h.HandleDelete),
		r.limit("users.delete", r.Limiters.Moderate, httpx.ModerateLimit),
		r.admin(),
	)
}

func (r *Router) registerInvitations() {
	h := &InvitationsHandler{Orchestrator: r.Orchestrator}

	// POST /invitations/accept - public, moderate limit against token guessing
	r.handle("POST /invitations/accept", http.HandlerFunc(h.HandleAccept),
		r.limit("invitations.accept", r.Limiters.Moderate, httpx.ModerateLimit),
		httpx.MaxBodyBytes(maxJSONBody),
	)

	r.handle("POST /invitations/{id}/resend", http.HandlerFunc(h.HandleResend),
		r.limit("invitations.resend", r.Limiters.Moderate, httpx.ModerateLimit),
		r.admin(),
	)
	r.handle("POST /invitations/{id}/cancel", http.HandlerFunc(h.HandleCancel),
		r.limit("invitations.cancel", r.Limiters.Moderate, httpx.ModerateLimit),
		r.admin(),
	)
}

func (r *Router) registerAudit() {
	r.handle("GET /audit", &AuditHandler{Audit: r.Audit},
		r.limit("audit", r.Limiters.Moderate, httpx.ModerateLimit),
		r.admin(),
	)
}

func (r *Router) registerWebhooks() {
	if r.Webhooks == nil {
		return
	}
	// Not rate limited: the CRM treats anything but 200, 400, 401 and 503 as
	// a failed delivery. The handler caps and verifies the body itself.
	r.handle("POST /webhooks/{provider}", r.Webhooks)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.ReadyChecks...))
}
