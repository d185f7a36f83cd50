package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bulkops/internal/repository/inbox_repo"
)

// Sweeper periodically removes completed inbox entries older than the
// retention window.
type Sweeper struct {
	inboxRepo inbox_repo.InboxRepository
	retention time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	logger    *zap.Logger
	now       func() time.Time
}

func NewSweeper(inboxRepo inbox_repo.InboxRepository, schedule string, retention time.Duration, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		inboxRepo: inboxRepo,
		retention: retention,
		timeout:   time.Minute,
		logger:    logger,
		now:       time.Now,
	}
	cronLogger := cron.VerbosePrintfLogger(zap.NewStdLog(logger))
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid inbox sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting inbox sweeper", zap.Duration("retention", s.retention))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Inbox sweeper stopped")
	return nil
}

func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	deleted, err := s.inboxRepo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to sweep inbox", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("Swept processed inbox messages", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
