package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const minScanInterval = 5 * time.Second

// Scheduler drives the recovery loop on a fixed tick. Passes run
// serially on one goroutine, so a slow pass delays the next tick rather
// than overlapping it.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(service *Service, interval time.Duration) *Scheduler {
	if interval < minScanInterval {
		interval = minScanInterval
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   slog.With("component", "voice_scheduler"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop halts the loop and waits for any in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("voice scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("voice scheduler stopped", "reason", ctx.Err())
			return
		case <-s.stop:
			s.logger.Info("voice scheduler stopped")
			return
		case <-ticker.C:
			report := s.service.ProcessDueWork(ctx)
			if report.Enqueued > 0 || report.Processed.Total > 0 || report.AlertsGenerated > 0 {
				s.logger.Info("voice recovery pass",
					"enqueued", report.Enqueued,
					"processed", report.Processed.Total,
					"completed", report.Processed.Completed,
					"dead_letter", report.Processed.DeadLetter,
					"polled", report.Polled,
					"alerts", report.AlertsGenerated)
			}
		}
	}
}
