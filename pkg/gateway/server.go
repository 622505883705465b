package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opencatalog/restrictedd/pkg/notification"
	"github.com/opencatalog/restrictedd/pkg/redaction"
)

// Config holds gateway server configuration
type Config struct {
	ListenAddr string
	Port       int
}

// Server exposes the redacted catalog operations over HTTP, mirroring the
// upstream action-API shape so existing clients can point at the gateway
// unchanged. The requesting user is taken from the X-Catalog-User header set
// by the fronting platform; an empty value means anonymous.
type Server struct {
	config     *Config
	walker     *redaction.Walker
	dispatcher *notification.Dispatcher
	httpServer *http.Server

	startTime time.Time
	requests  atomic.Int64
	denials   atomic.Int64
}

// New creates a gateway Server.
func New(config *Config, walker *redaction.Walker, dispatcher *notification.Dispatcher) *Server {
	s := &Server{
		config:     config,
		walker:     walker,
		dispatcher: dispatcher,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/3/action/resource_view_list", s.instrument(s.handleResourceViewList))
	mux.HandleFunc("/api/3/action/package_show", s.instrument(s.handlePackageShow))
	mux.HandleFunc("/api/3/action/resource_search", s.instrument(s.handleResourceSearch))
	mux.HandleFunc("/api/3/action/package_search", s.instrument(s.handlePackageSearch))
	mux.HandleFunc("/api/3/action/restricted_check_access", s.instrument(s.handleCheckAccess))
	mux.HandleFunc("/hooks/resource_updated", s.instrument(s.handleResourceUpdated))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.ListenAddr, config.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe() error {
	s.startTime = time.Now()
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// RequestsServed returns the number of requests handled since start.
func (s *Server) RequestsServed() int64 {
	return s.requests.Load()
}

// DecisionsDenied returns the number of denied access checks.
func (s *Server) DecisionsDenied() int64 {
	return s.denials.Load()
}

// StartTime returns when the server started serving.
func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) instrument(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		h(w, r)
	}
}
