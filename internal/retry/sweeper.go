package retry

import (
	"context"
	"time"

	"safehaven-service/internal/domain/webhook"
	"safehaven-service/internal/repository"
	"safehaven-service/pkg/logger"
)

// Submitter resubmits an event log row for processing. Implemented by the
// processing service.
type Submitter interface {
	Submit(eventLog webhook.EventLog) error
}

// Sweeper is the out-of-band retry job over the webhook event log. It is a
// batch sweep, not a hot-path primitive: on every tick it rediscovers FAILED
// rows that are under the attempt cap and past the backoff window, rewinds
// them to PENDING, and resubmits them. Stale PROCESSING rows left behind by
// a crash are rewound the same way.
type Sweeper struct {
	repo      repository.WebhookEventRepository
	submitter Submitter
	clock     func() time.Time

	maxAttempts    int
	retryAfter     time.Duration
	interval       time.Duration
	batchSize      int
	staleThreshold time.Duration

	log *logger.Logger
}

func NewSweeper(repo repository.WebhookEventRepository, submitter Submitter, maxAttempts int, retryAfter, interval time.Duration, batchSize int, staleThreshold time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewNop()
	}
	return &Sweeper{
		repo:           repo,
		submitter:      submitter,
		clock:          time.Now,
		maxAttempts:    maxAttempts,
		retryAfter:     retryAfter,
		interval:       interval,
		batchSize:      batchSize,
		staleThreshold: staleThreshold,
		log:            log,
	}
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Start launches the sweep loop in the background.
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

// SweepOnce processes a single batch of failed and stale rows.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.clock()

	failed, err := s.repo.FindFailedReadyForRetry(ctx, s.maxAttempts, now.Add(-s.retryAfter), s.batchSize)
	if err != nil {
		s.log.Errorf("retry sweep query failed: %v", err)
	} else {
		s.resubmit(ctx, failed, "failed")
	}

	stale, err := s.repo.FindStaleProcessing(ctx, now.Add(-s.staleThreshold), s.batchSize)
	if err != nil {
		s.log.Errorf("stale sweep query failed: %v", err)
		return
	}
	s.resubmit(ctx, stale, "stale")
}

func (s *Sweeper) resubmit(ctx context.Context, events []webhook.EventLog, kind string) {
	for _, e := range events {
		e.ResetForRetry()
		if err := s.repo.Update(ctx, &e); err != nil {
			s.log.Errorf("failed to rewind %s event %s for retry: %v", kind, e.EventID, err)
			continue
		}
		if err := s.submitter.Submit(e); err != nil {
			s.log.Errorf("failed to resubmit %s event %s: %v", kind, e.EventID, err)
			continue
		}
		s.log.Infof("resubmitted %s event %s (attempt %d of %d)", kind, e.EventID, e.AttemptCount+1, s.maxAttempts)
	}
}
