package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/guildmirror/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create inserts a message row. A duplicate id is deliberately NOT tolerated
// here: message ids are unique at the platform level, so a collision is a
// bug, not a race to paper over.
func (s *MessageStore) Create(ctx context.Context, m models.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, author_id, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, m.ID, m.ChannelID, m.AuthorID, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate message id %d: %w", m.ID, err)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
