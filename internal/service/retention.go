package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Strob0t/Studio/internal/port/database"
)

// RetentionService periodically purges old webhook receipts. The payment
// ledger is never purged.
type RetentionService struct {
	store    database.WebhookStore
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	now      func() time.Time
}

// NewRetentionService creates a RetentionService running on a cron schedule
// such as "@daily" or "0 3 * * *".
func NewRetentionService(store database.WebhookStore, schedule string, maxAge time.Duration) *RetentionService {
	return &RetentionService{store: store, schedule: schedule, maxAge: maxAge, now: time.Now}
}

// Start registers the purge job and starts the scheduler.
func (s *RetentionService) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Run(context.Background()); err != nil {
			slog.Error("retention run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("retention schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	slog.Info("retention scheduler started", "schedule", s.schedule, "max_age", s.maxAge)
	return nil
}

// Stop stops the scheduler and waits for a running job.
func (s *RetentionService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Run purges receipts older than the retention window once.
func (s *RetentionService) Run(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)
	n, err := s.store.PurgeWebhookEvents(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	slog.Info("webhook receipts purged", "deleted", n, "cutoff", cutoff.UTC())
	return n, nil
}
