package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/guildmirror/internal/models"
	"github.com/lalith-99/guildmirror/internal/repository"
	"go.uber.org/zap"
)

type UserStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewUserStore(pool *pgxpool.Pool, logger *zap.Logger) *UserStore {
	return &UserStore{pool: pool, logger: logger}
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, name, avatar_hash, joined_at, created_at, is_staff, bot, opt_out
		FROM users
		WHERE id = $1`

	var u models.User
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.AvatarHash,
		&u.JoinedAt,
		&u.CreatedAt,
		&u.IsStaff,
		&u.Bot,
		&u.OptOut,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Create inserts a user row. bot and opt_out keep their column defaults:
// incremental creation never learns bot status, and opt_out is not ours to
// write. A unique violation resolves to AlreadyExists instead of an error.
func (s *UserStore) Create(ctx context.Context, u models.User) (repository.CreateResult, error) {
	query := `
		INSERT INTO users (id, name, avatar_hash, joined_at, created_at, is_staff)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		u.ID, u.Name, u.AvatarHash, u.JoinedAt, u.CreatedAt, u.IsStaff)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.AlreadyExists, nil
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return repository.Created, nil
}

func (s *UserStore) Update(ctx context.Context, u models.User) error {
	query := `
		UPDATE users
		SET name = $2, avatar_hash = $3, joined_at = $4, created_at = $5, is_staff = $6
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		u.ID, u.Name, u.AvatarHash, u.JoinedAt, u.CreatedAt, u.IsStaff)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// BulkUpsert writes the roster in chunks of at most chunkSize rows. Each
// chunk is one transaction carrying a batch of upserts, so a chunk either
// lands whole or not at all. The first failing chunk stops the run and its
// index is reported; committed chunks stay committed.
//
// The conflict clause replaces everything except opt_out, which only humans
// write.
func (s *UserStore) BulkUpsert(ctx context.Context, users []models.User, chunkSize int) (int, error) {
	query := `
		INSERT INTO users (id, name, avatar_hash, joined_at, created_at, is_staff, bot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			avatar_hash = EXCLUDED.avatar_hash,
			joined_at = EXCLUDED.joined_at,
			created_at = EXCLUDED.created_at,
			is_staff = EXCLUDED.is_staff,
			bot = EXCLUDED.bot`

	count := 0
	for i, chunk := range chunkRows(users, chunkSize) {
		s.logger.Info("upserting user chunk",
			zap.Int("chunk", i),
			zap.Int("rows", len(chunk)),
		)

		if err := s.upsertChunk(ctx, query, chunk); err != nil {
			return count, fmt.Errorf("upsert chunk %d: %w", i, err)
		}
		count += len(chunk)
	}
	return count, nil
}

func (s *UserStore) upsertChunk(ctx context.Context, query string, chunk []models.User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range chunk {
		batch.Queue(query,
			u.ID, u.Name, u.AvatarHash, u.JoinedAt, u.CreatedAt, u.IsStaff, u.Bot)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunk {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("exec upsert: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// chunkRows splits users into consecutive slices of at most size rows.
func chunkRows(users []models.User, size int) [][]models.User {
	if size < 1 {
		size = 1
	}
	var chunks [][]models.User
	for start := 0; start < len(users); start += size {
		end := start + size
		if end > len(users) {
			end = len(users)
		}
		chunks = append(chunks, users[start:end])
	}
	return chunks
}
