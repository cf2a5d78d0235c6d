package scheduler

import (
	"context"
	"time"

	"telco-billing/internal/billing"
	"telco-billing/internal/notification"
	"telco-billing/internal/redisclient"
	"telco-billing/internal/util"

	"go.uber.org/zap"
)

// Scheduler runs the periodic overdue sweep and notification retry on
// independent timers. Each run is guarded by a redis lock so only one
// instance sweeps at a time.
type Scheduler struct {
	billing       *billing.Service
	dispatcher    *notification.Dispatcher
	redis         *redisclient.Client
	sweepInterval time.Duration
	retryInterval time.Duration
	maxRetries    int
	logger        *zap.Logger
}

// New creates a scheduler
func New(billingService *billing.Service, dispatcher *notification.Dispatcher, redis *redisclient.Client, sweepInterval, retryInterval time.Duration, maxRetries int) *Scheduler {
	return &Scheduler{
		billing:       billingService,
		dispatcher:    dispatcher,
		redis:         redis,
		sweepInterval: sweepInterval,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
		logger:        util.GetLogger(),
	}
}

// Start launches both timer loops and blocks until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, "overdue-sweep", s.sweepInterval, s.runSweep)
	s.loop(ctx, "notification-retry", s.retryInterval, s.runRetry)
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler loop stopped", zap.String("task", name))
			return
		case <-ticker.C:
			if !s.acquire(ctx, name, interval) {
				continue
			}
			run(ctx)
			s.release(name)
		}
	}
}

func (s *Scheduler) acquire(ctx context.Context, name string, ttl time.Duration) bool {
	ok, err := s.redis.AcquireLock(ctx, name, ttl)
	if err != nil {
		s.logger.Warn("Failed to acquire scheduler lock, skipping run",
			zap.String("task", name),
			zap.Error(err))
		return false
	}
	return ok
}

func (s *Scheduler) release(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redis.ReleaseLock(ctx, name); err != nil {
		s.logger.Warn("Failed to release scheduler lock",
			zap.String("task", name),
			zap.Error(err))
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	flipped, err := s.billing.SweepOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Error("Overdue sweep failed", zap.Error(err))
		return
	}
	if flipped > 0 {
		s.logger.Info("Overdue sweep completed", zap.Int("flipped", flipped))
	}
}

func (s *Scheduler) runRetry(ctx context.Context) {
	retried, err := s.dispatcher.RetryFailed(ctx, s.maxRetries)
	if err != nil {
		s.logger.Error("Notification retry sweep failed", zap.Error(err))
		return
	}
	if retried > 0 {
		s.logger.Info("Notification retry sweep completed", zap.Int("retried", retried))
	}
}
