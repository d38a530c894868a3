package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"giveaway-bot-backend/internal/common/logger"
	"giveaway-bot-backend/internal/features/giveaway/models"
	"giveaway-bot-backend/internal/features/giveaway/repository"
)

// Notifier receives drawing outcomes for announcement. Calls are
// fire-and-forget; a failed announcement never blocks the transition.
type Notifier interface {
	GiveawayEnded(ctx context.Context, res *models.EndResult)
}

// Scheduler drives time-based transitions: scheduled giveaways activate
// at their start time and active giveaways end at their deadline. The
// first tick runs immediately on Start, so overdue giveaways left behind
// by a restart are processed before the first interval elapses.
type Scheduler struct {
	repo     repository.GiveawayRepository
	svc      GiveawayService
	notifier Notifier
	interval time.Duration
	clock    func() time.Time
	log      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(repo repository.GiveawayRepository, svc GiveawayService, notifier Notifier, interval time.Duration) *Scheduler {
	return &Scheduler{
		repo:     repo,
		svc:      svc,
		notifier: notifier,
		interval: interval,
		clock:    time.Now,
		log:      logger.For("scheduler"),
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)
	s.log.Info().Dur("interval", s.interval).Msg("Scheduler started")
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// Recovery pass before the first tick.
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes every due transition once. Errors on individual
// giveaways are logged and skipped so one bad record cannot stall the
// rest.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock()

	due, err := s.repo.DueScheduled(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list due scheduled giveaways")
	} else {
		for _, g := range due {
			if _, err := s.svc.Activate(ctx, g.ID); err != nil {
				s.log.Error().Err(err).Str("giveaway_id", g.ID).Msg("Failed to activate giveaway")
			}
		}
	}

	overdue, err := s.repo.DueActive(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list overdue giveaways")
		return
	}
	for _, g := range overdue {
		res, err := s.svc.End(ctx, g.ID, false)
		if err != nil {
			// Another worker may have ended it between the listing and
			// now; that is not a failure.
			if models.IsInvalidState(err) {
				continue
			}
			s.log.Error().Err(err).Str("giveaway_id", g.ID).Msg("Failed to end giveaway")
			continue
		}
		if s.notifier != nil {
			s.notifier.GiveawayEnded(ctx, res)
		}
	}
}
