package mirror

import (
	"context"
	"fmt"

	"github.com/lalith-99/guildmirror/internal/gateway"
	"github.com/lalith-99/guildmirror/internal/models"
	"github.com/lalith-99/guildmirror/internal/repository"
	"go.uber.org/zap"
)

// MessageRecorder filters inbound messages and records the survivors.
//
// Every message waits for the channel-topology gate first: ignore-set and
// staff decisions read channel/category rows, and those are only trustworthy
// once the current topology has landed.
type MessageRecorder struct {
	users    repository.UserRepository
	channels repository.ChannelRepository
	messages repository.MessageRepository
	filters  Filters
	gate     *Gate
	logger   *zap.Logger
}

func NewMessageRecorder(
	users repository.UserRepository,
	channels repository.ChannelRepository,
	messages repository.MessageRepository,
	filters Filters,
	gate *Gate,
	logger *zap.Logger,
) *MessageRecorder {
	return &MessageRecorder{
		users:    users,
		channels: channels,
		messages: messages,
		filters:  filters,
		gate:     gate,
		logger:   logger,
	}
}

// Record applies the filter chain and inserts the message if it survives.
// Discards are normal outcomes, not errors. A duplicate message id, on the
// other hand, propagates: the platform guarantees unique message ids, so
// swallowing one would hide a real bug.
func (r *MessageRecorder) Record(ctx context.Context, evt gateway.MessageCreate) error {
	// Direct messages carry no guild id.
	if evt.GuildID == 0 || evt.GuildID != r.filters.GuildID {
		return nil
	}

	if err := r.gate.Wait(ctx); err != nil {
		return err
	}

	author, err := r.users.GetByID(ctx, evt.AuthorID)
	if err != nil {
		return fmt.Errorf("record message %d: %w", evt.ID, err)
	}
	if author == nil || author.OptOut {
		return nil
	}

	channel, err := r.channels.GetByID(ctx, evt.ChannelID)
	if err != nil {
		return fmt.Errorf("record message %d: %w", evt.ID, err)
	}
	// An absent channel was filtered out of topology sync (ignored category,
	// voice); its messages are not recorded either.
	if channel == nil || r.filters.ignored(channel.CategoryID) {
		return nil
	}

	err = r.messages.Create(ctx, models.Message{
		ID:        evt.ID,
		ChannelID: evt.ChannelID,
		AuthorID:  evt.AuthorID,
		CreatedAt: evt.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("record message %d: %w", evt.ID, err)
	}

	r.logger.Debug("message recorded",
		zap.Int64("message_id", evt.ID),
		zap.Int64("channel_id", evt.ChannelID),
	)
	return nil
}
