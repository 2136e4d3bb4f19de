package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultSweepInterval = time.Minute

// Sweeper periodically exports pending movements as a backstop for lost
// events.
type Sweeper struct {
	exporter *Exporter
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(exporter *Exporter, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{exporter: exporter, interval: interval}
}

// Start begins the loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("export sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	slog.InfoContext(ctx, "Export sweeper started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export sweeper stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Catch up on startup.
	s.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.exporter.ProcessPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Export sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Export sweep completed", "exported", n)
	}
}
