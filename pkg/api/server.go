package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gr-thach/cli-repo-sub003/pkg/httputil"
	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
)

// Server is the gateway's HTTP surface: thin handlers that assemble a policy
// per request and expose the evaluator's results.
type Server struct {
	authorizer *Authorizer
	router     *mux.Router
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// ServerOptions carries the optional collaborators.
type ServerOptions struct {
	Metrics            *observability.Metrics
	CORSAllowedOrigins []string
}

// NewServer creates the gateway API server
func NewServer(authorizer *Authorizer, logger *observability.Logger, opts ServerOptions) *Server {
	s := &Server{
		authorizer: authorizer,
		router:     mux.NewRouter(),
		logger:     logger,
		metrics:    opts.Metrics,
	}

	middlewares := []mux.MiddlewareFunc{
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if len(opts.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(opts.CORSAllowedOrigins))
	}
	if s.metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(middlewares...)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/v2/accounts/{accountId}/permissions", s.getPermissionSummary).Methods("GET")
	s.router.HandleFunc("/v2/accounts/{accountId}/enforce", s.enforce).Methods("GET")
	s.router.HandleFunc("/v2/accounts/{accountId}/repositories", s.filterRepositories).Methods("GET")
	s.router.HandleFunc("/v2/accounts/{accountId}/teams", s.filterTeams).Methods("GET")
	s.router.HandleFunc("/v2/acl/sync", s.syncACL).Methods("POST")
}

// Handler returns the server's handler wrapped with tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "permission-gateway")
}

// ServeHTTP implements http.Handler, bypassing the tracing wrapper. Tests
// and embedding servers use it directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
