package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"reportgate/internal/auth"
	"reportgate/internal/config"
	"reportgate/internal/email"
	"reportgate/internal/reports"
	"reportgate/internal/views"
)

// Deps are the long-lived handles built by the caller. Hasher is optional.
type Deps struct {
	Users  auth.UserStore
	Redis  *redis.Client
	Mailer email.Sender
	Logger *slog.Logger
	Hasher auth.PasswordHasher
}

type Server struct {
	Config      config.Config
	Logger      *slog.Logger
	Users       auth.UserStore
	Sessions    *auth.SessionStore
	Identity    *auth.IdentityResolver
	Verifier    *auth.CredentialVerifier
	Accounts    *auth.Accounts
	RateLimiter *auth.RateLimiter
	Audit       *auth.AuditLogger
	Mailer      email.Sender
	Views       *views.Renderer
	Catalog     *reports.Catalog
	Resolver    *reports.Resolver

	sessionSigner  *auth.CookieSigner
	cookieSigner   *auth.CookieSigner
	csrf           *auth.CSRFCipher
	csrfMethods    map[string]struct{}
	trustedProxies []net.IPNet
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	cipher, err := auth.NewCSRFCipher(cfg.CSRFSecret)
	if err != nil {
		return nil, fmt.Errorf("csrf cipher: %w", err)
	}
	renderer, err := views.NewRenderer()
	if err != nil {
		return nil, err
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(auth.DefaultBcryptCost)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions := auth.NewSessionStore(deps.Redis, cfg.SessionTTL)
	methods := make(map[string]struct{}, len(cfg.CSRF.Methods))
	for _, m := range cfg.CSRF.Methods {
		methods[m] = struct{}{}
	}

	return &Server{
		Config:   cfg,
		Logger:   logger,
		Users:    deps.Users,
		Sessions: sessions,
		Identity: &auth.IdentityResolver{Users: deps.Users},
		Verifier: auth.NewCredentialVerifier(deps.Users, hasher, auth.LockoutPolicy{
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Window:      cfg.Lockout.Window,
		}),
		Accounts: &auth.Accounts{
			Users:    deps.Users,
			Hasher:   hasher,
			Sessions: sessions,
			TokenTTL: cfg.Passwords.TokenTTL,
		},
		RateLimiter:    auth.NewRateLimiter(deps.Redis),
		Audit:          &auth.AuditLogger{Redis: deps.Redis, MaxLen: cfg.AuditMaxLen},
		Mailer:         deps.Mailer,
		Views:          renderer,
		Catalog:        &reports.Catalog{Dir: cfg.ReportsDir},
		Resolver:       &reports.Resolver{Root: cfg.ReportsDir},
		sessionSigner:  auth.NewCookieSigner(cfg.SessionSecret),
		cookieSigner:   auth.NewCookieSigner(cfg.CookieSecret),
		csrf:           cipher,
		csrfMethods:    methods,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.Logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(s.recoverer)
	r.Use(middleware.GetHead)
	r.Use(secureHeaders)

	r.NotFound(s.loadSession(s.csrfGuard(http.HandlerFunc(s.handleNotFound))).ServeHTTP)

	r.Get("/api/ping", s.handlePing)
	r.Method(http.MethodGet, "/static/*", http.StripPrefix("/static/", views.Static()))

	r.Group(func(sr chi.Router) {
		sr.Use(s.loadSession, s.csrfGuard)

		sr.With(s.requireAnonymous).Get("/login", s.handleLoginView)
		sr.With(s.requireAnonymous).Post("/login", s.handleLogin)
		sr.With(s.requireAuthenticated).Post("/logout", s.handleLogout)

		sr.Get("/set-password", s.handleSetPasswordView)
		sr.Post("/set-password", s.handleSetPassword)
		sr.Get("/forgot-password", s.handleForgotPasswordView)
		sr.Post("/forgot-password", s.handleForgotPassword)

		sr.Group(func(ar chi.Router) {
			ar.Use(s.requireAuthenticated, s.requireRole(auth.RoleAdmin))
			ar.Get("/register", s.handleRegisterView)
			ar.Post("/register", s.handleRegister)
		})

		sr.Group(func(ur chi.Router) {
			ur.Use(s.requireAuthenticated, s.requireRole(auth.RoleUser))
			ur.Get("/", s.handleIndex)
			ur.Get("/reports", s.handleIndex)
			ur.Get("/reports/", s.handleIndex)
			ur.With(reportHeaders).Get("/reports/{name}", s.handleReport)
			ur.With(reportHeaders).Get("/reports/{name}/*", s.handleReport)
		})
	})

	return r
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}
