package models

import "time"

// State represents the lifecycle state of a giveaway.
type State string

const (
	StateScheduled State = "scheduled" // waiting for its start time
	StateActive    State = "active"    // accepting entries
	StateEnded     State = "ended"     // deadline reached or ended early, winners drawn
	StateCancelled State = "cancelled" // cancelled before ending, no winners
)

// Terminal reports whether no further transition is allowed from s.
// Reroll on an ended giveaway redraws winners but never changes state.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateCancelled
}

// Giveaway represents a time-bounded prize drawing.
type Giveaway struct {
	ID           string     `json:"id"`
	CommunityID  int64      `json:"community_id"`
	ChannelID    int64      `json:"channel_id"`
	CreatorID    int64      `json:"creator_id"`
	Prize        string     `json:"prize"`
	CreatedAt    time.Time  `json:"created_at"`
	StartsAt     *time.Time `json:"starts_at,omitempty"` // nil = started at creation
	EndsAt       time.Time  `json:"ends_at"`
	WinnerCount  int        `json:"winner_count"`
	RequiredRole int64      `json:"required_role,omitempty"` // 0 = no role restriction
	State        State      `json:"state"`
	Winners      []int64    `json:"winners,omitempty"` // ordered, empty until ended
	MessageRef   string     `json:"message_ref,omitempty"`

	// EntryCount is populated on reads; it is not part of the stored record.
	EntryCount int64 `json:"entry_count"`
}

// ShouldStart reports whether a scheduled giveaway is due to activate.
func (g *Giveaway) ShouldStart(now time.Time) bool {
	return g.State == StateScheduled && g.StartsAt != nil && !now.Before(*g.StartsAt)
}

// ShouldEnd reports whether an active giveaway is past its deadline.
func (g *Giveaway) ShouldEnd(now time.Time) bool {
	return g.State == StateActive && !now.Before(g.EndsAt)
}

// TimeRemaining returns the time until the deadline, floored at zero.
func (g *Giveaway) TimeRemaining(now time.Time) time.Duration {
	if g.State.Terminal() {
		return 0
	}
	if rem := g.EndsAt.Sub(now); rem > 0 {
		return rem
	}
	return 0
}

// GiveawayCreate carries the fields needed to create a giveaway.
type GiveawayCreate struct {
	CommunityID  int64      `json:"community_id" binding:"required"`
	ChannelID    int64      `json:"channel_id" binding:"required"`
	CreatorID    int64      `json:"creator_id" binding:"required"`
	Prize        string     `json:"prize" binding:"required"`
	Duration     string     `json:"duration" binding:"required"`
	WinnerCount  int        `json:"winner_count"`
	RequiredRole int64      `json:"required_role"`
	StartsAt     *time.Time `json:"starts_at"`
}

// EntryResult reports the outcome of a registration attempt.
type EntryResult struct {
	GiveawayID     string `json:"giveaway_id"`
	ParticipantID  int64  `json:"participant_id"`
	AlreadyEntered bool   `json:"already_entered"`
	EntryCount     int64  `json:"entry_count"`
}

// EndResult reports the outcome of ending or rerolling a giveaway.
type EndResult struct {
	Giveaway   *Giveaway `json:"giveaway"`
	Winners    []int64   `json:"winners"`
	NoEntrants bool      `json:"no_entrants"`
	Rerolled   bool      `json:"rerolled,omitempty"`
}

// CancelResult reports the outcome of cancelling a giveaway.
type CancelResult struct {
	Giveaway *Giveaway `json:"giveaway"`
	// PriorState is the state the giveaway was cancelled from.
	PriorState State `json:"prior_state"`
}
