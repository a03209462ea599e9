package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/technodrive/vehictl/internal/control"
	"github.com/technodrive/vehictl/internal/infrastructure/config"
	"github.com/technodrive/vehictl/internal/infrastructure/logging"
	"github.com/technodrive/vehictl/internal/registration"
	"github.com/technodrive/vehictl/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ErrListen is returned by Start when the configured address cannot be bound.
var ErrListen = errors.New("api: cannot bind listen address")

// Controller applies /control query parameters to the relays.
type Controller interface {
	Apply(params url.Values) (control.States, error)
}

// Registrar is the registration state machine behind registryd.
type Registrar interface {
	Register(vin, deviceID string) (registration.Outcome, error)
	Verify(deviceID string) (*registration.Record, error)
	Status() (registration.Summary, error)
	Reset() (bool, error)
}

// HealthChecker is an optional dependency whose state GET / reports.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
//
// Exactly one of Controller (relayd) or Registration (registryd) must be set;
// it decides which routes the server exposes.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Version string

	// Relay surface.
	Controller Controller
	Pins       relay.PinMap

	// Registration surface.
	Registration Registrar

	// MQTT is the state publisher's broker link; nil when MQTT is disabled.
	MQTT HealthChecker
}

// Server is the HTTP server for one vehictl service.
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	version      string
	controller   Controller
	pins         relay.PinMap
	registration Registrar
	mqtt         HealthChecker

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if (deps.Controller == nil) == (deps.Registration == nil) {
		return nil, fmt.Errorf("exactly one of controller or registration is required")
	}

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		version:      deps.Version,
		controller:   deps.Controller,
		pins:         deps.Pins,
		registration: deps.Registration,
		mqtt:         deps.MQTT,
	}, nil
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in a background goroutine.
//
// The bind happens before Start returns, so an unavailable port is reported
// here as an error wrapping ErrListen rather than after startup.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			s.logger.Error("binding a privileged port requires root privileges; run with sudo or choose a port above 1023",
				"address", addr)
		}
		return fmt.Errorf("%w %s: %w", ErrListen, addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}
	s.done = make(chan struct{})

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}(s.server, s.done)

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, done := s.server, s.done
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	<-done
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// Broker link states reported by GET /.
const (
	mqttConnected    = "connected"
	mqttDisconnected = "disconnected"
)

// mqttState is empty when MQTT is not configured.
func (s *Server) mqttState(ctx context.Context) string {
	if s.mqtt == nil {
		return ""
	}
	if err := s.mqtt.HealthCheck(ctx); err != nil {
		return mqttDisconnected
	}
	return mqttConnected
}
