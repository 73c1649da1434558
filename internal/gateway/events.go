package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Gateway opcodes.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opResume       = 6
	opHello        = 10
	opHeartbeatACK = 11
)

// Dispatch event names on the wire.
const (
	EventGuildAvailable = "GUILD_AVAILABLE"
	EventChannelCreate  = "CHANNEL_CREATE"
	EventChannelUpdate  = "CHANNEL_UPDATE"
	EventMemberJoin     = "MEMBER_JOIN"
	EventMemberUpdate   = "MEMBER_UPDATE"
	EventMessageCreate  = "MESSAGE_CREATE"
)

// envelope is the outer frame of every gateway payload.
type envelope struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Channel kinds reported by the platform.
const (
	ChannelTypeCategory = "category"
	ChannelTypeText     = "text"
	ChannelTypeVoice    = "voice"
)

// GuildChannel is one channel-like entity as reported by the gateway:
// categories, text channels, and voice channels all arrive in this shape.
type GuildChannel struct {
	ID       int64  `json:"id"`
	GuildID  int64  `json:"guild_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id"`
}

// GuildMember is one member as reported by the gateway. JoinedAt is nil for
// members the platform has not finished admitting yet.
type GuildMember struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	AvatarHash string     `json:"avatar_hash"`
	RoleIDs    []int64    `json:"role_ids"`
	JoinedAt   *time.Time `json:"joined_at"`
	CreatedAt  time.Time  `json:"created_at"`
	Bot        bool       `json:"bot"`
}

// HasRole reports whether the member currently holds the given role.
func (m GuildMember) HasRole(roleID int64) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Event is one typed gateway event. Implementations are the six dispatch
// payloads the mirror consumes.
type Event interface {
	EventType() string
}

// GuildAvailable announces a guild coming into view, carrying the full
// channel topology and member roster.
type GuildAvailable struct {
	GuildID  int64          `json:"guild_id"`
	Channels []GuildChannel `json:"channels"`
	Members  []GuildMember  `json:"members"`
}

// ChannelCreate announces a new channel or category. Topology is the full
// current channel set for the guild after the change, maintained by the
// client from its cache; consumers re-synchronize from it rather than
// applying the single change.
type ChannelCreate struct {
	GuildID  int64          `json:"guild_id"`
	Channel  GuildChannel   `json:"channel"`
	Topology []GuildChannel `json:"-"`
}

// ChannelUpdate announces a renamed or re-parented channel. See
// ChannelCreate for the Topology field.
type ChannelUpdate struct {
	GuildID  int64          `json:"guild_id"`
	Channel  GuildChannel   `json:"channel"`
	Topology []GuildChannel `json:"-"`
}

// MemberJoin announces a member joining the guild.
type MemberJoin struct {
	GuildID int64       `json:"guild_id"`
	Member  GuildMember `json:"member"`
}

// MemberUpdate announces a member profile or role change.
type MemberUpdate struct {
	GuildID int64       `json:"guild_id"`
	Member  GuildMember `json:"member"`
}

// MessageCreate announces a message. GuildID is zero for direct messages.
type MessageCreate struct {
	GuildID   int64     `json:"guild_id"`
	ID        int64     `json:"id"`
	ChannelID int64     `json:"channel_id"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (GuildAvailable) EventType() string { return EventGuildAvailable }
func (ChannelCreate) EventType() string  { return EventChannelCreate }
func (ChannelUpdate) EventType() string  { return EventChannelUpdate }
func (MemberJoin) EventType() string     { return EventMemberJoin }
func (MemberUpdate) EventType() string   { return EventMemberUpdate }
func (MessageCreate) EventType() string  { return EventMessageCreate }

// decodeEvent turns a dispatch payload into a typed event. Event names the
// mirror does not consume decode to nil with no error.
func decodeEvent(name string, data json.RawMessage) (Event, error) {
	var (
		evt Event
		err error
	)

	switch name {
	case EventGuildAvailable:
		var e GuildAvailable
		err = json.Unmarshal(data, &e)
		evt = e
	case EventChannelCreate:
		var e ChannelCreate
		err = json.Unmarshal(data, &e)
		evt = e
	case EventChannelUpdate:
		var e ChannelUpdate
		err = json.Unmarshal(data, &e)
		evt = e
	case EventMemberJoin:
		var e MemberJoin
		err = json.Unmarshal(data, &e)
		evt = e
	case EventMemberUpdate:
		var e MemberUpdate
		err = json.Unmarshal(data, &e)
		evt = e
	case EventMessageCreate:
		var e MessageCreate
		err = json.Unmarshal(data, &e)
		evt = e
	default:
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return evt, nil
}

// Handler consumes the typed event feed. The client calls it inline from the
// read loop; implementations must not block.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event)
}
