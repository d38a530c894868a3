// Package notifications renders and dispatches giveaway announcements.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"giveaway-bot-backend/internal/common/logger"
	"giveaway-bot-backend/internal/features/giveaway/models"
)

// Sender delivers a rendered announcement to a channel. Implementations
// wrap whatever chat platform fronts the service.
type Sender interface {
	Send(ctx context.Context, channelID int64, text string) error
}

// LogSender writes announcements to the log. It is the default sender
// when no chat platform is wired in.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logger.For("announcements")}
}

func (s *LogSender) Send(_ context.Context, channelID int64, text string) error {
	s.log.Info().Int64("channel_id", channelID).Str("text", text).Msg("announcement")
	return nil
}

type Service struct {
	sender Sender
	log    zerolog.Logger
}

func NewService(sender Sender) *Service {
	return &Service{sender: sender, log: logger.For("notifications")}
}

// GiveawayEnded announces the drawing outcome in the giveaway's channel.
func (s *Service) GiveawayEnded(ctx context.Context, res *models.EndResult) {
	g := res.Giveaway
	text := FormatEnded(g.Prize, res.Winners, res.NoEntrants, res.Rerolled)

	if err := s.sender.Send(ctx, g.ChannelID, text); err != nil {
		s.log.Error().Err(err).
			Str("giveaway_id", g.ID).
			Int64("channel_id", g.ChannelID).
			Msg("Failed to send announcement")
	}
}

// FormatEnded renders the end-of-giveaway announcement.
func FormatEnded(prize string, winners []int64, noEntrants, rerolled bool) string {
	if noEntrants {
		return fmt.Sprintf("The giveaway for **%s** has ended, but no one entered.", prize)
	}
	if len(winners) == 0 {
		return fmt.Sprintf("The giveaway for **%s** has ended, but no eligible winner could be drawn.", prize)
	}

	mentions := FormatMentions(winners)
	if rerolled {
		if len(winners) == 1 {
			return fmt.Sprintf("Rerolled! The new winner of **%s** is %s. Congratulations!", prize, mentions)
		}
		return fmt.Sprintf("Rerolled! The new winners of **%s** are %s. Congratulations!", prize, mentions)
	}
	if len(winners) == 1 {
		return fmt.Sprintf("The giveaway for **%s** has ended! Winner: %s. Congratulations!", prize, mentions)
	}
	return fmt.Sprintf("The giveaway for **%s** has ended! Winners: %s. Congratulations!", prize, mentions)
}

// FormatMentions renders winner ids as mention tags.
func FormatMentions(winners []int64) string {
	parts := make([]string, len(winners))
	for i, id := range winners {
		parts[i] = fmt.Sprintf("<@%d>", id)
	}
	return strings.Join(parts, ", ")
}
