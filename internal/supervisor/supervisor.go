// Package supervisor runs long-lived server components under a restart policy.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Config tunes the restart policy.
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// New builds the root supervisor with slog event reporting.
func New(name string, logger *slog.Logger, cfg Config) *suture.Supervisor {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	return suture.New(name, suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService serves until the supervisor stops it, then shuts down gracefully.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return errors.New("http server closed unexpectedly")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	<-errCh
	return ctx.Err()
}

func (h *HTTPService) String() string { return "http-server" }

// Lifecycle is anything with a start and a graceful stop, like the job scheduler.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// LifecycleService starts the component, waits for cancellation and stops it.
type LifecycleService struct {
	name        string
	component   Lifecycle
	stopTimeout time.Duration
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component Lifecycle, stopTimeout time.Duration) *LifecycleService {
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	return &LifecycleService{name: name, component: component, stopTimeout: stopTimeout}
}

// Serve implements suture.Service.
func (l *LifecycleService) Serve(ctx context.Context) error {
	if err := l.component.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", l.name, err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), l.stopTimeout)
	defer cancel()
	if err := l.component.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop %s: %w", l.name, err)
	}
	return ctx.Err()
}

func (l *LifecycleService) String() string { return l.name }
