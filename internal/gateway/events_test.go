package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageCreate(t *testing.T) {
	payload := json.RawMessage(`{
		"guild_id": 1,
		"id": 5000,
		"channel_id": 100,
		"author_id": 10,
		"created_at": "2024-03-01T12:00:00Z"
	}`)

	evt, err := decodeEvent(EventMessageCreate, payload)
	require.NoError(t, err)

	msg, ok := evt.(MessageCreate)
	require.True(t, ok)
	assert.Equal(t, int64(5000), msg.ID)
	assert.Equal(t, int64(100), msg.ChannelID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), msg.CreatedAt)
}

func TestDecodeGuildAvailable(t *testing.T) {
	payload := json.RawMessage(`{
		"guild_id": 1,
		"channels": [
			{"id": 200, "guild_id": 1, "name": "general", "type": "category"},
			{"id": 100, "guild_id": 1, "name": "chat", "type": "text", "parent_id": 200}
		],
		"members": [
			{"id": 10, "username": "alice", "avatar_hash": "abc",
			 "role_ids": [1, 99], "joined_at": "2024-03-01T12:00:00Z",
			 "created_at": "2020-01-01T00:00:00Z"}
		]
	}`)

	evt, err := decodeEvent(EventGuildAvailable, payload)
	require.NoError(t, err)

	guild, ok := evt.(GuildAvailable)
	require.True(t, ok)
	require.Len(t, guild.Channels, 2)
	require.Len(t, guild.Members, 1)

	require.NotNil(t, guild.Channels[1].ParentID)
	assert.Equal(t, int64(200), *guild.Channels[1].ParentID)
	assert.Nil(t, guild.Channels[0].ParentID)

	member := guild.Members[0]
	assert.True(t, member.HasRole(99))
	assert.False(t, member.HasRole(98))
	require.NotNil(t, member.JoinedAt)
}

func TestDecodeMemberJoinWithoutJoinTimestamp(t *testing.T) {
	payload := json.RawMessage(`{
		"guild_id": 1,
		"member": {"id": 10, "username": "alice", "role_ids": [],
		           "created_at": "2020-01-01T00:00:00Z"}
	}`)

	evt, err := decodeEvent(EventMemberJoin, payload)
	require.NoError(t, err)

	join, ok := evt.(MemberJoin)
	require.True(t, ok)
	assert.Nil(t, join.Member.JoinedAt)
}

func TestDecodeUnknownEventIsIgnored(t *testing.T) {
	evt, err := decodeEvent("TYPING_START", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Nil(t, evt)
}

func TestDecodeMalformedPayloadErrors(t *testing.T) {
	_, err := decodeEvent(EventMessageCreate, json.RawMessage(`{"id": "not-a-number"}`))
	require.Error(t, err)
}
