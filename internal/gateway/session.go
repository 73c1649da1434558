package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const sessionKey = "gateway:session"

// Session is the resume state for one gateway connection: the session id
// issued at identify time and the last dispatch sequence we processed.
type Session struct {
	ID  string
	Seq int64
}

// SessionStore persists resume state in Redis so a restart can resume the
// gateway session instead of replaying a full identify. Losing it is cheap:
// the client just identifies fresh and gets a new GUILD_AVAILABLE, which the
// mirror absorbs idempotently.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(redisURL string) (*SessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &SessionStore{rdb: redis.NewClient(opts)}, nil
}

// Load returns the stored session, or nil if none is stored.
func (s *SessionStore) Load(ctx context.Context) (*Session, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if fields["id"] == "" {
		return nil, nil
	}

	seq, err := strconv.ParseInt(fields["seq"], 10, 64)
	if err != nil {
		seq = 0
	}
	return &Session{ID: fields["id"], Seq: seq}, nil
}

func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	err := s.rdb.HSet(ctx, sessionKey,
		"id", sess.ID,
		"seq", strconv.FormatInt(sess.Seq, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SessionStore) Close() error {
	return s.rdb.Close()
}
