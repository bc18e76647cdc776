// Package cleanup provides data retention for conversational state.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/conciergelabs/concierge/pkg/services"
)

// Config controls the retention loop.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// CartGrace keeps expired carts around after their TTL so the
	// abandoned-cart recovery pipeline can still reach them.
	CartGrace time.Duration
}

// DefaultConfig returns the retention defaults.
func DefaultConfig() Config {
	return Config{
		Interval:  time.Hour,
		CartGrace: 7 * 24 * time.Hour,
	}
}

// Service periodically enforces retention policies:
//   - Drops sessions past their expiry
//   - Drops carts whose expiry predates the grace window
//
// All operations are idempotent.
type Service struct {
	config   Config
	sessions *services.SessionService
	carts    *services.CartService
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, sessions *services.SessionService, carts *services.CartService) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.CartGrace <= 0 {
		cfg.CartGrace = DefaultConfig().CartGrace
	}
	return &Service{
		config:   cfg,
		sessions: sessions,
		carts:    carts,
		logger:   slog.With("component", "cleanup"),
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"interval", s.config.Interval,
		"cart_grace", s.config.CartGrace)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single retention sweep.
func (s *Service) RunOnce(ctx context.Context) {
	if n := s.sessions.CleanupExpired(ctx); n > 0 {
		s.logger.Info("Retention: dropped expired sessions", "count", n)
	}
	if n := s.carts.CleanupExpired(ctx, s.config.CartGrace); n > 0 {
		s.logger.Info("Retention: dropped expired carts", "count", n)
	}
}
