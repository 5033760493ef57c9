package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/relay/pkg/config"
)

// Pruner deletes messages older than the retention window on a cron
// schedule.
type Pruner struct {
	store    *Store
	days     int
	schedule string

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewPruner creates a pruner for cfg. It does nothing until Start.
func NewPruner(s *Store, cfg config.StoreRetentionConfig) *Pruner {
	return &Pruner{
		store:    s,
		days:     cfg.Days,
		schedule: cfg.Schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "store.pruner"),
	}
}

// Prune deletes messages older than the retention window once. With no
// window configured it deletes nothing.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.days <= 0 {
		return 0, nil
	}
	cutoff := p.store.now().AddDate(0, 0, -p.days)
	return p.store.DeleteMessagesBefore(ctx, cutoff)
}

// Start schedules Prune. It is a no-op when retention is disabled or no
// schedule is set. The job stops when ctx is cancelled.
//
// Common expressions:
//   - "0 3 * * *"   - daily at 3 AM
//   - "0 */6 * * *" - every 6 hours
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.days <= 0 || p.schedule == "" {
		p.logger.Debug("message retention disabled")
		return nil
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", p.schedule, err)
	}
	if _, err := p.cron.AddFunc(p.schedule, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("message pruning scheduled",
		"schedule", p.schedule,
		"retention_days", p.days,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("message pruning failed", "error", err)
		return
	}
	p.logger.Info("message pruning completed", "deleted", deleted)
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("message pruning stopped")
}

// IsRunning reports whether the schedule is active.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled prune, or the zero time when not
// running.
func (p *Pruner) NextRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if !p.running || len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
