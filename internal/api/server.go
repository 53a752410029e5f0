package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ashara-studio/ashara-core/internal/audit"
	"github.com/ashara-studio/ashara-core/internal/auth"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/config"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds each dependency probe behind /health.
const healthCheckTimeout = 2 * time.Second

// HealthChecker is a dependency that can report its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Sessions *auth.Service

	// AuditRepo is optional. Without it session events are not recorded
	// and GET /audit answers 500.
	AuditRepo audit.Repository

	// HealthCheckers are probed by GET /health, keyed by component name.
	HealthCheckers map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for Ashara Core.
//
// It is created with New(), started with Start() and stopped with Close().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	sessions  *auth.Service
	auditRepo audit.Repository
	auditCh   chan *audit.Entry
	health    map[string]HealthChecker
	version   string

	server    *http.Server
	cancel    context.CancelFunc // stops the audit writer
	auditDone sync.WaitGroup
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger.With("component", "api"),
		sessions:  deps.Sessions,
		auditRepo: deps.AuditRepo,
		health:    deps.HealthCheckers,
		version:   deps.Version,
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	return s, nil
}

// Start builds the router and begins listening in a background goroutine.
//
// The audit writer runs until Close() is called; cancelling ctx also stops it.
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.auditCh != nil {
		s.auditDone.Add(1)
		go func() {
			defer s.auditDone.Done()
			s.drainAuditLog(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// In-flight requests get up to 10 seconds to finish. Audit entries they
// queued are written before Close returns.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	shutdownErr := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	s.auditDone.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("shutting down API server: %w", shutdownErr)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
