package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/guildmirror/internal/models"
)

type CategoryStore struct {
	pool *pgxpool.Pool
}

func NewCategoryStore(pool *pgxpool.Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

func (s *CategoryStore) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	query := `
		SELECT id, name
		FROM categories
		WHERE id = $1`

	var cat models.Category
	err := s.pool.QueryRow(ctx, query, id).Scan(&cat.ID, &cat.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &cat, nil
}

func (s *CategoryStore) Create(ctx context.Context, cat models.Category) error {
	query := `
		INSERT INTO categories (id, name)
		VALUES ($1, $2)`

	if _, err := s.pool.Exec(ctx, query, cat.ID, cat.Name); err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *CategoryStore) Update(ctx context.Context, cat models.Category) error {
	query := `
		UPDATE categories
		SET name = $2
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, cat.ID, cat.Name); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}
