package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// MonitorServer serves the status pages. It can be stopped and started
// again, for instance when details_port changes.
type MonitorServer struct {
	mux *http.ServeMux

	mu       sync.Mutex // protects srv, listener and done
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

func NewMonitorServer() *MonitorServer {
	return &MonitorServer{mux: http.NewServeMux()}
}

func (s *MonitorServer) AddHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(path, handler)
}

func (s *MonitorServer) AddRawHandler(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}

func (s *MonitorServer) Handler() http.Handler {
	return s.mux
}

// Start listens on details_port and serves in the background. Listen
// errors are returned immediately.
func (s *MonitorServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("already running")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", Config.GetInt("details_port")))
	if err != nil {
		return fmt.Errorf("monitor server listen: %w", err)
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	done := make(chan struct{})
	s.srv, s.listener, s.done = srv, ln, done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			Logger.Warn().Msgf("Problem running monitor server: %v", err)
		}
		Logger.Debug().Msg("monitor server shutdown")
	}()
	Logger.Info().Msgf("monitor server listening on %s", ln.Addr())
	return nil
}

// Addr is the bound address, empty while stopped.
func (s *MonitorServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *MonitorServer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Shutdown stops the server and waits for the serve loop to exit. Stopping
// a stopped server is a no-op.
func (s *MonitorServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *MonitorServer) Restart() {
	Logger.Debug().Msg("restarting monitor server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		Logger.Error().Msgf("Error shutting down monitor server: %v", err)
	}
	if Config.GetInt("details_port") <= 0 {
		Logger.Debug().Msg("monitor server disabled")
		return
	}
	if err := s.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
}
