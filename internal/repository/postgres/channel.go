package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/guildmirror/internal/models"
)

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

func (s *ChannelStore) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	query := `
		SELECT id, name, category_id, is_staff
		FROM channels
		WHERE id = $1`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&ch.ID,
		&ch.Name,
		&ch.CategoryID,
		&ch.IsStaff,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) Create(ctx context.Context, ch models.Channel) error {
	query := `
		INSERT INTO channels (id, name, category_id, is_staff)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, query, ch.ID, ch.Name, ch.CategoryID, ch.IsStaff); err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (s *ChannelStore) Update(ctx context.Context, ch models.Channel) error {
	query := `
		UPDATE channels
		SET name = $2, category_id = $3, is_staff = $4
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, ch.ID, ch.Name, ch.CategoryID, ch.IsStaff); err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}
