package repository

import (
	"context"
	"errors"
	"time"

	"giveaway-bot-backend/internal/features/giveaway/models"
)

var (
	ErrGiveawayNotFound = errors.New("giveaway not found")
	// ErrStateConflict is returned when a state transition loses a race or
	// targets a giveaway whose state does not permit it.
	ErrStateConflict = errors.New("giveaway state conflict")
	// ErrAlreadyLocked is returned by backends that guard transitions with
	// an explicit lock when another worker holds it.
	ErrAlreadyLocked = errors.New("giveaway is locked by another operation")
)

// PickFunc selects winners from the entrant snapshot taken inside the
// store's atomic section. exclude lists participants that must not be
// picked again (previous winners on a reroll); it is nil for a first draw.
type PickFunc func(entrants []int64, exclude []int64) []int64

// GiveawayRepository is the persistence gateway for giveaways, their
// entries and their winners. Implementations guarantee that state
// transitions are atomic with respect to concurrent entry registration:
// once Complete claims a giveaway, no further entry can land in it.
type GiveawayRepository interface {
	Create(ctx context.Context, g *models.Giveaway) error
	GetByID(ctx context.Context, id string) (*models.Giveaway, error)
	GetByMessageRef(ctx context.Context, ref string) (*models.Giveaway, error)
	SetMessageRef(ctx context.Context, id, ref string) error
	// Delete removes the giveaway and cascades to its entries and winners.
	Delete(ctx context.Context, id string) error

	ListByCommunity(ctx context.Context, communityID int64, states ...models.State) ([]*models.Giveaway, error)
	ListEnteredBy(ctx context.Context, communityID, userID int64) ([]*models.Giveaway, error)

	// DueScheduled returns scheduled giveaways whose start time has passed.
	DueScheduled(ctx context.Context, now time.Time) ([]*models.Giveaway, error)
	// DueActive returns active giveaways whose deadline has passed.
	DueActive(ctx context.Context, now time.Time) ([]*models.Giveaway, error)

	// Activate moves a scheduled giveaway to active. It reports false
	// without error when another worker already activated it.
	Activate(ctx context.Context, id string) (bool, error)
	// Cancel moves a scheduled or active giveaway to cancelled and
	// returns its prior state. Terminal states yield ErrStateConflict.
	Cancel(ctx context.Context, id string) (models.State, error)
	// Complete atomically moves an active giveaway to ended, snapshots
	// its entrants, draws winners via pick and stores them. Exactly one
	// of two racing calls succeeds; the loser gets ErrStateConflict.
	Complete(ctx context.Context, id string, pick PickFunc) (*models.EndResult, error)
	// Reroll redraws winners for an ended giveaway, overwriting the
	// stored winner list. The giveaway stays ended.
	Reroll(ctx context.Context, id string, pick PickFunc) (*models.EndResult, error)

	// AddEntry registers a participant if the giveaway is active. It
	// reports whether a new entry was added and the resulting count;
	// a duplicate is not an error. A non-active giveaway yields
	// ErrStateConflict and no entry.
	AddEntry(ctx context.Context, id string, userID int64, now time.Time) (added bool, count int64, err error)
	HasEntered(ctx context.Context, id string, userID int64) (bool, error)
	// Entries returns participant ids in registration order.
	Entries(ctx context.Context, id string) ([]int64, error)
	EntryCount(ctx context.Context, id string) (int64, error)
	// Winners returns the stored winner list in draw order.
	Winners(ctx context.Context, id string) ([]int64, error)
}
