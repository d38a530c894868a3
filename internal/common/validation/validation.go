package validation

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinWinnerCount = 1
	MaxWinnerCount = 20

	MinPrizeLength = 1
	MaxPrizeLength = 256

	MinDuration = 10 * time.Second
	MaxDuration = 30 * 24 * time.Hour
)

// ValidateWinnerCount checks the winner count bounds.
func ValidateWinnerCount(count int) error {
	if count < MinWinnerCount {
		return fmt.Errorf("winner count must be at least %d", MinWinnerCount)
	}
	if count > MaxWinnerCount {
		return fmt.Errorf("winner count cannot exceed %d", MaxWinnerCount)
	}
	return nil
}

// ValidatePrize checks the prize description.
func ValidatePrize(prize string) error {
	if len(strings.TrimSpace(prize)) < MinPrizeLength {
		return fmt.Errorf("prize description cannot be empty")
	}
	if len(prize) > MaxPrizeLength {
		return fmt.Errorf("prize description cannot exceed %d characters", MaxPrizeLength)
	}
	return nil
}

// ValidateDuration checks the giveaway duration bounds.
func ValidateDuration(d time.Duration) error {
	if d < MinDuration {
		return fmt.Errorf("duration must be at least %d seconds", int(MinDuration.Seconds()))
	}
	if d > MaxDuration {
		return fmt.Errorf("duration cannot exceed %d days", int(MaxDuration.Hours()/24))
	}
	return nil
}

// HasRole reports whether any of the participant's roles matches the
// required role. A zero required role means no restriction.
func HasRole(required int64, roleIDs []int64) bool {
	if required == 0 {
		return true
	}
	for _, id := range roleIDs {
		if id == required {
			return true
		}
	}
	return false
}
