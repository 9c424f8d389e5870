package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
	"fintrack/internal/importer"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// AccountOpener resolves the account of an authenticated user. Every Open is
// paired with a Release once the request is served.
type AccountOpener interface {
	Open(ctx context.Context, email string) (*services.Account, error)
	Release(a *services.Account)
}

// Authenticator is the identity collaborator. *auth.Service satisfies it.
type Authenticator interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (string, error)
	ParseToken(token string) (string, error)
}

// Advisor answers budgeting questions. *insights.Advisor satisfies it.
type Advisor interface {
	Answer(ctx context.Context, query string, snap core.Snapshot) string
}

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps groups the collaborators of the server.
type Deps struct {
	Accounts AccountOpener
	Auth     Authenticator
	Importer *importer.Classifier
	Advisor  Advisor

	CurrencySymbol string
	RateLimit      ratelimit.Config
	ReadyChecks    []ReadyCheck
	Logger         *applog.Logger
}

type Server struct {
	http.Server
	accounts AccountOpener
	auth     Authenticator
	importer *importer.Classifier
	advisor  Advisor
	symbol   string
	ready    []ReadyCheck

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	events   *applog.StructuredLogger
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: slog.Default().Handler()})
	}
	symbol := deps.CurrencySymbol
	if symbol == "" {
		symbol = core.DefaultCurrencySymbol
	}
	classifier := deps.Importer
	if classifier == nil {
		classifier = importer.NewClassifier()
	}

	detector := security.NewDetector()
	s := &Server{
		accounts: deps.Accounts,
		auth:     deps.Auth,
		importer: classifier,
		advisor:  deps.Advisor,
		symbol:   symbol,
		ready:    deps.ReadyChecks,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		events:   applog.NewStructuredLogger(logger),
		started:  time.Now(),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireAccount)
	authed.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	for _, ops := range []ledgerOps{expenseOps(), incomeOps()} {
		s.mountLedger(authed, ops)
	}
	authed.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	authed.HandleFunc("/report/monthly", s.handleMonthlyReport).Methods(http.MethodGet)
	authed.HandleFunc("/insights", s.handleInsights).Methods(http.MethodPost)
	authed.HandleFunc("/import/preview", s.handleImportPreview).Methods(http.MethodPost)
	authed.HandleFunc("/import/commit", s.handleImportCommit).Methods(http.MethodPost)

	// Outermost first: probes are dropped before they are traced or counted.
	var h http.Handler = r
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.ComponentMiddleware(applog.ComponentHTTP)(h)
	h = applog.Middleware(logger)(h)
	h = s.limiter.Middleware(detector.ExtractClientIP)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = detector.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) mountLedger(r *mux.Router, ops ledgerOps) {
	base := "/" + ops.path
	r.HandleFunc(base, s.handleList(ops)).Methods(http.MethodGet)
	r.HandleFunc(base, s.handleCreate(ops)).Methods(http.MethodPost)
	r.HandleFunc(base+"/{id:[0-9]+}", s.handleGet(ops)).Methods(http.MethodGet)
	r.HandleFunc(base+"/{id:[0-9]+}", s.handleUpdate(ops)).Methods(http.MethodPut)
	r.HandleFunc(base+"/{id:[0-9]+}", s.handleDelete(ops)).Methods(http.MethodDelete)
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters for diagnostics.
func (s *Server) Metrics() map[string]any {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()
	return map[string]any{
		"requests_total":       tm.TotalRequests,
		"server_errors":        tm.ServerErrors,
		"avg_response_time_us": tm.AverageResponseTime,
		"rate_limited":         rm.TotalHits,
		"rate_limit_clients":   rm.ClientCount,
		"blocked_requests":     dm.BlockedRequests,
	}
}
