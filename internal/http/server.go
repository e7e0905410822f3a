package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Services groups the domain services the API delegates to.
type Services struct {
	Identity     *services.IdentityService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Activity     *services.ActivityService
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the server. Zero values fall back to the defaults below.
type Options struct {
	Addr                   string
	PageSize               int
	MaxPageSize            int
	RateLimitPerMinute     int
	RateLimitBurst         int
	AuthRateLimitPerMinute int
	AuthRateLimitBurst     int
	TrustedProxies         []string
	Logger                 *applog.Logger
}

type Server struct {
	http.Server

	svc         Services
	db          Pinger
	logger      *applog.Logger
	pageSize    int
	maxPageSize int

	detector    *security.Detector
	tracer      *trace.Middleware
	limiter     *ratelimit.Limiter
	authLimiter *ratelimit.Limiter
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// apiFunc is a handler whose error is rendered by writeError.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

// authedFunc additionally receives the authenticated caller.
type authedFunc func(w http.ResponseWriter, r *http.Request, user core.User) error

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services, db Pinger) (*Server, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	s := &Server{
		svc:         svc,
		db:          db,
		logger:      logger,
		pageSize:    opts.PageSize,
		maxPageSize: opts.MaxPageSize,
		detector:    detector,
		tracer:      trace.NewMiddleware(detector.ExtractClientIP, logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Burst:             opts.RateLimitBurst,
		}),
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.AuthRateLimitPerMinute,
			Burst:             opts.AuthRateLimitBurst,
		}),
		caches: cache.NewManager(),
	}
	s.caches.Register(s.limiter.Cleaner())
	s.caches.Register(s.authLimiter.Cleaner())
	s.caches.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleThrottled)(handler)
	handler = s.withDetection(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	s.route(mux, "GET", "/api/", s.handle(s.handleIndex))
	s.route(mux, "GET", "/api/activity/", s.authed(s.handleActivity))

	auth := func(h http.Handler) http.Handler {
		return s.authLimiter.Middleware(s.detector.ExtractClientIP, s.handleThrottled)(h)
	}
	s.route(mux, "POST", "/api/auth/register/", auth(s.handle(s.handleRegister)))
	s.route(mux, "POST", "/api/auth/login/", auth(s.handle(s.handleLogin)))
	s.route(mux, "POST", "/api/auth/logout/", s.authed(s.handleLogout))
	s.route(mux, "GET", "/api/auth/profile/", s.authed(s.handleProfile))
	s.route(mux, "PUT", "/api/auth/profile/", s.authed(s.handleUpdateProfile))
	s.route(mux, "PATCH", "/api/auth/profile/", s.authed(s.handleUpdateProfile))
	s.route(mux, "POST", "/api/auth/change-password/", s.authed(s.handleChangePassword))
	s.route(mux, "GET", "/api/auth/me/", s.authed(s.handleMe))

	s.route(mux, "GET", "/api/categories/", s.authed(s.handleListCategories))
	s.route(mux, "POST", "/api/categories/", s.authed(s.handleCreateCategory))
	s.route(mux, "GET", "/api/categories/{id}/", s.authed(s.handleGetCategory))
	s.route(mux, "PUT", "/api/categories/{id}/", s.authed(s.updateCategory(true)))
	s.route(mux, "PATCH", "/api/categories/{id}/", s.authed(s.updateCategory(false)))
	s.route(mux, "DELETE", "/api/categories/{id}/", s.authed(s.handleDeleteCategory))

	s.route(mux, "GET", "/api/transactions/", s.authed(s.handleListTransactions))
	s.route(mux, "POST", "/api/transactions/", s.authed(s.handleCreateTransaction))
	s.route(mux, "GET", "/api/transactions/{id}/", s.authed(s.handleGetTransaction))
	s.route(mux, "PUT", "/api/transactions/{id}/", s.authed(s.updateTransaction(true)))
	s.route(mux, "PATCH", "/api/transactions/{id}/", s.authed(s.updateTransaction(false)))
	s.route(mux, "DELETE", "/api/transactions/{id}/", s.authed(s.handleDeleteTransaction))

	s.route(mux, "GET", "/api/budgets/", s.authed(s.handleListBudgets))
	s.route(mux, "POST", "/api/budgets/", s.authed(s.handleCreateBudget))
	s.route(mux, "GET", "/api/budgets/{id}/", s.authed(s.handleGetBudget))
	s.route(mux, "PUT", "/api/budgets/{id}/", s.authed(s.updateBudget(true)))
	s.route(mux, "PATCH", "/api/budgets/{id}/", s.authed(s.updateBudget(false)))
	s.route(mux, "DELETE", "/api/budgets/{id}/", s.authed(s.handleDeleteBudget))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /readyz", s.handle(s.handleReady))
}

// route registers path, which ends in "/", both with and without the
// trailing slash.
func (s *Server) route(mux *http.ServeMux, method, path string, h http.Handler) {
	mux.Handle(method+" "+path+"{$}", h)
	mux.Handle(method+" "+strings.TrimSuffix(path, "/"), h)
}

func (s *Server) handle(fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	})
}

// authed resolves the bearer token before calling fn. Missing or unknown
// tokens get a 401.
func (s *Server) authed(fn authedFunc) http.Handler {
	return s.handle(func(w http.ResponseWriter, r *http.Request) error {
		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			return err
		}
		user, err := s.svc.Identity.Authenticate(r.Context(), token)
		if err != nil {
			return err
		}
		trace.SetUserID(r.Context(), user.ID)
		return fn(w, r, user)
	})
}

// withDetection logs requests that look like probing. They are still served.
func (s *Server) withDetection(next http.Handler) http.Handler {
	logger := s.logger.WithComponent(applog.ComponentSecurity)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleThrottled(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, Envelope{
		Status:  statusError,
		Message: fmt.Sprintf("Request was throttled. Expected available in %s seconds.", w.Header().Get("Retry-After")),
	})
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Status: statusError, Message: "Database unavailable."})
		return nil
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  statusSuccess,
		"message": "Welcome to the fintrack API",
		"endpoints": map[string]any{
			"auth": map[string]string{
				"register":        absoluteURL(r, "/api/auth/register/"),
				"login":           absoluteURL(r, "/api/auth/login/"),
				"logout":          absoluteURL(r, "/api/auth/logout/"),
				"profile":         absoluteURL(r, "/api/auth/profile/"),
				"change_password": absoluteURL(r, "/api/auth/change-password/"),
				"user_info":       absoluteURL(r, "/api/auth/me/"),
			},
			"categories":   absoluteURL(r, "/api/categories/"),
			"transactions": absoluteURL(r, "/api/transactions/"),
			"budgets":      absoluteURL(r, "/api/budgets/"),
			"activity":     absoluteURL(r, "/api/activity/"),
		},
	})
	return nil
}
