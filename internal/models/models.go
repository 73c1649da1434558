package models

import (
	"time"
)

// All ids are the chat platform's snowflakes, kept as-is for primary keys.
// No surrogate keys: the platform id is the identity of the row.

// Category is a grouping of channels on the guild. Rows are only ever
// created or renamed by topology sync; stale categories are left in place.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Channel is a text channel on the guild.
//
// IsStaff is derived on every write from the configured staff-category set,
// never patched incrementally.
type Channel struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID *int64 `json:"category_id"`
	IsStaff    bool   `json:"is_staff"`
}

// User mirrors one guild member.
//
// Bot is written only by the roster bootstrap. OptOut is managed outside the
// mirror entirely; the message recorder reads it and no code path writes it.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	AvatarHash string    `json:"avatar_hash"`
	JoinedAt   time.Time `json:"joined_at"`
	CreatedAt  time.Time `json:"created_at"`
	IsStaff    bool      `json:"is_staff"`
	Bot        bool      `json:"bot"`
	OptOut     bool      `json:"opt_out"`
}

// Message is recorded once per inbound message that passes filtering and is
// never updated or deleted afterwards.
type Message struct {
	ID        int64     `json:"id"`
	ChannelID int64     `json:"channel_id"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}
