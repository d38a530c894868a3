// Package service implements the giveaway lifecycle: creation,
// activation, entry registration, ending, cancellation and rerolls.
package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"giveaway-bot-backend/internal/common/logger"
	"giveaway-bot-backend/internal/common/validation"
	"giveaway-bot-backend/internal/features/giveaway/models"
	"giveaway-bot-backend/internal/features/giveaway/repository"
	"giveaway-bot-backend/internal/features/giveaway/selector"
	"giveaway-bot-backend/internal/utils/duration"
)

// GiveawayService is the application surface for giveaways.
type GiveawayService interface {
	Create(ctx context.Context, req *models.GiveawayCreate) (*models.Giveaway, error)
	Get(ctx context.Context, id string) (*models.Giveaway, error)
	GetByMessageRef(ctx context.Context, ref string) (*models.Giveaway, error)
	SetMessageRef(ctx context.Context, id, ref string) error
	Delete(ctx context.Context, id string, requesterID int64) error

	Enter(ctx context.Context, id string, userID int64, roleIDs []int64) (*models.EntryResult, error)
	HasEntered(ctx context.Context, id string, userID int64) (bool, error)

	Activate(ctx context.Context, id string) (bool, error)
	End(ctx context.Context, id string, manual bool) (*models.EndResult, error)
	Cancel(ctx context.Context, id string) (*models.CancelResult, error)
	Reroll(ctx context.Context, id string, excludePrevious bool) (*models.EndResult, error)

	List(ctx context.Context, communityID int64, activeOnly bool) ([]*models.Giveaway, error)
	ListEntered(ctx context.Context, communityID, userID int64) ([]*models.Giveaway, error)
}

type giveawayService struct {
	repo  repository.GiveawayRepository
	clock func() time.Time
	log   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures the service. Tests use these to pin time and
// randomness.
type Option func(*giveawayService)

func WithClock(clock func() time.Time) Option {
	return func(s *giveawayService) { s.clock = clock }
}

func WithRand(rng *rand.Rand) Option {
	return func(s *giveawayService) { s.rng = rng }
}

func NewGiveawayService(repo repository.GiveawayRepository, opts ...Option) GiveawayService {
	s := &giveawayService{
		repo:  repo,
		clock: time.Now,
		rng:   selector.NewSource(),
		log:   logger.For("giveaway-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *giveawayService) Create(ctx context.Context, req *models.GiveawayCreate) (*models.Giveaway, error) {
	if req.WinnerCount == 0 {
		req.WinnerCount = 1
	}
	if err := validation.ValidateWinnerCount(req.WinnerCount); err != nil {
		return nil, models.NewValidationError("winner_count", err.Error())
	}
	if err := validation.ValidatePrize(req.Prize); err != nil {
		return nil, models.NewValidationError("prize", err.Error())
	}

	dur, err := duration.Parse(req.Duration)
	if err != nil {
		return nil, models.NewValidationError("duration", err.Error())
	}
	if err := validation.ValidateDuration(dur); err != nil {
		return nil, models.NewValidationError("duration", err.Error())
	}

	now := s.clock()
	g := &models.Giveaway{
		ID:           uuid.NewString(),
		CommunityID:  req.CommunityID,
		ChannelID:    req.ChannelID,
		CreatorID:    req.CreatorID,
		Prize:        req.Prize,
		CreatedAt:    now,
		WinnerCount:  req.WinnerCount,
		RequiredRole: req.RequiredRole,
		State:        models.StateActive,
	}

	// The countdown starts at the scheduled start, not at creation.
	if req.StartsAt != nil && req.StartsAt.After(now) {
		startsAt := *req.StartsAt
		g.StartsAt = &startsAt
		g.State = models.StateScheduled
		g.EndsAt = startsAt.Add(dur)
	} else {
		g.EndsAt = now.Add(dur)
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("giveaway_id", g.ID).
		Int64("community_id", g.CommunityID).
		Str("prize", g.Prize).
		Str("state", string(g.State)).
		Time("ends_at", g.EndsAt).
		Msg("Giveaway created")
	return g, nil
}

func (s *giveawayService) Get(ctx context.Context, id string) (*models.Giveaway, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *giveawayService) GetByMessageRef(ctx context.Context, ref string) (*models.Giveaway, error) {
	return s.repo.GetByMessageRef(ctx, ref)
}

func (s *giveawayService) SetMessageRef(ctx context.Context, id, ref string) error {
	return s.repo.SetMessageRef(ctx, id, ref)
}

// Delete removes a giveaway and everything attached to it. Only the
// creator may delete.
func (s *giveawayService) Delete(ctx context.Context, id string, requesterID int64) error {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.CreatorID != requesterID {
		return models.NewValidationError("requester", "only the creator can delete a giveaway")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("giveaway_id", id).Msg("Giveaway deleted")
	return nil
}

func (s *giveawayService) Enter(ctx context.Context, id string, userID int64, roleIDs []int64) (*models.EntryResult, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Friendly state errors up front; the store re-checks atomically.
	switch g.State {
	case models.StateScheduled:
		return nil, models.ErrNotStarted
	case models.StateEnded, models.StateCancelled:
		return nil, &models.InvalidStateError{Op: "enter", State: g.State}
	}

	if !validation.HasRole(g.RequiredRole, roleIDs) {
		return nil, models.ErrIneligible
	}

	added, count, err := s.repo.AddEntry(ctx, id, userID, s.clock())
	if err == repository.ErrStateConflict || err == repository.ErrAlreadyLocked {
		// Lost the race with the deadline.
		return nil, &models.InvalidStateError{Op: "enter", State: models.StateEnded}
	}
	if err != nil {
		return nil, err
	}

	return &models.EntryResult{
		GiveawayID:     id,
		ParticipantID:  userID,
		AlreadyEntered: !added,
		EntryCount:     count,
	}, nil
}

func (s *giveawayService) HasEntered(ctx context.Context, id string, userID int64) (bool, error) {
	return s.repo.HasEntered(ctx, id, userID)
}

func (s *giveawayService) Activate(ctx context.Context, id string) (bool, error) {
	activated, err := s.repo.Activate(ctx, id)
	if err != nil {
		return false, err
	}
	if activated {
		s.log.Info().Str("giveaway_id", id).Msg("Giveaway activated")
	}
	return activated, nil
}

// pick draws winners under the rng lock so concurrent endings don't
// share rand state unsafely.
func (s *giveawayService) pick(count int) repository.PickFunc {
	return func(entrants, exclude []int64) []int64 {
		s.rngMu.Lock()
		defer s.rngMu.Unlock()
		return selector.Pick(entrants, count, exclude, s.rng)
	}
}

func (s *giveawayService) End(ctx context.Context, id string, manual bool) (*models.EndResult, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.State != models.StateActive {
		return nil, &models.InvalidStateError{Op: "end", State: g.State}
	}

	res, err := s.repo.Complete(ctx, id, s.pick(g.WinnerCount))
	if err == repository.ErrStateConflict || err == repository.ErrAlreadyLocked {
		return nil, &models.InvalidStateError{Op: "end", State: models.StateEnded}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("giveaway_id", id).
		Bool("manual", manual).
		Int("winners", len(res.Winners)).
		Bool("no_entrants", res.NoEntrants).
		Msg("Giveaway ended")
	return res, nil
}

func (s *giveawayService) Cancel(ctx context.Context, id string) (*models.CancelResult, error) {
	prior, err := s.repo.Cancel(ctx, id)
	if err == repository.ErrStateConflict || err == repository.ErrAlreadyLocked {
		g, gerr := s.repo.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &models.InvalidStateError{Op: "cancel", State: g.State}
	}
	if err != nil {
		return nil, err
	}

	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("giveaway_id", id).
		Str("prior_state", string(prior)).
		Msg("Giveaway cancelled")
	return &models.CancelResult{Giveaway: g, PriorState: prior}, nil
}

func (s *giveawayService) Reroll(ctx context.Context, id string, excludePrevious bool) (*models.EndResult, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.State != models.StateEnded {
		return nil, &models.InvalidStateError{Op: "reroll", State: g.State}
	}

	count := g.WinnerCount
	res, err := s.repo.Reroll(ctx, id, func(entrants, previous []int64) []int64 {
		if !excludePrevious {
			previous = nil
		}
		s.rngMu.Lock()
		defer s.rngMu.Unlock()
		return selector.Pick(entrants, count, previous, s.rng)
	})
	if err == repository.ErrStateConflict || err == repository.ErrAlreadyLocked {
		g, gerr := s.repo.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &models.InvalidStateError{Op: "reroll", State: g.State}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("giveaway_id", id).
		Bool("exclude_previous", excludePrevious).
		Int("winners", len(res.Winners)).
		Msg("Giveaway rerolled")
	return res, nil
}

func (s *giveawayService) List(ctx context.Context, communityID int64, activeOnly bool) ([]*models.Giveaway, error) {
	if activeOnly {
		return s.repo.ListByCommunity(ctx, communityID, models.StateActive, models.StateScheduled)
	}
	return s.repo.ListByCommunity(ctx, communityID)
}

func (s *giveawayService) ListEntered(ctx context.Context, communityID, userID int64) ([]*models.Giveaway, error) {
	return s.repo.ListEnteredBy(ctx, communityID, userID)
}
