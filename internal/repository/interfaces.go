package repository

import (
	"context"

	"github.com/lalith-99/guildmirror/internal/models"
)

// CreateResult reports how a create call resolved. AlreadyExists means a
// concurrent writer got there first and the row is already present in an
// acceptable state — callers branch on the value instead of unwrapping a
// store error. Whether that outcome is benign is the caller's call: the
// membership reconciler treats it as success, the message recorder never
// sees it because duplicate message ids are surfaced as errors.
type CreateResult int

const (
	Created CreateResult = iota
	AlreadyExists
)

// Lookup methods return nil, nil when no row exists; callers branch on the
// pointer rather than a sentinel error.

// CategoryRepository stores guild categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	Create(ctx context.Context, cat models.Category) error
	Update(ctx context.Context, cat models.Category) error
}

// ChannelRepository stores guild text channels.
type ChannelRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
	Create(ctx context.Context, ch models.Channel) error
	Update(ctx context.Context, ch models.Channel) error
}

// UserRepository stores guild members.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// Create inserts a user row. A duplicate id resolves to AlreadyExists
	// with a nil error; the stored row is left untouched.
	Create(ctx context.Context, u models.User) (CreateResult, error)

	// Update rewrites the mutable profile fields (name, avatar hash,
	// joined/created timestamps, staff flag). It never touches bot or opt_out.
	Update(ctx context.Context, u models.User) error

	// BulkUpsert insert-or-replaces users keyed by id, in chunks of at most
	// chunkSize rows. Each chunk is atomic. The first failing chunk aborts
	// the rest; the returned count covers the chunks that committed.
	BulkUpsert(ctx context.Context, users []models.User, chunkSize int) (int, error)
}

// MessageRepository stores recorded messages.
type MessageRepository interface {
	// Create inserts a message row. Unlike user creation, a duplicate id is
	// returned as an error: the platform guarantees unique message ids, so a
	// collision means something upstream is broken.
	Create(ctx context.Context, m models.Message) error
}
