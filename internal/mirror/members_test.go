package mirror

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/guildmirror/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMemberFixture(chunkSize int) (*MemberSync, *fakeUserRepo) {
	users := newFakeUserRepo()
	ms := NewMemberSync(users, testFilters(), NewGate(), chunkSize, zap.NewNop())
	return ms, users
}

func testMember(id int64) gateway.GuildMember {
	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return gateway.GuildMember{
		ID:         id,
		Username:   fmt.Sprintf("member-%d", id),
		AvatarHash: "abc123",
		RoleIDs:    []int64{1, 2},
		JoinedAt:   &joined,
		CreatedAt:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBootstrapRosterChunksAndSetsGate(t *testing.T) {
	ms, users := newMemberFixture(2500)

	members := make([]gateway.GuildMember, 3000)
	for i := range members {
		members[i] = testMember(int64(i + 1))
	}

	require.NoError(t, ms.BootstrapRoster(context.Background(), members))

	assert.Equal(t, []int{2500, 500}, users.chunkSizes)
	assert.Len(t, users.rows, 3000)
	assert.True(t, ms.Gate().IsSet())
}

func TestBootstrapRosterFailureLeavesGateUnset(t *testing.T) {
	ms, users := newMemberFixture(2500)
	users.failChunk = 1

	members := make([]gateway.GuildMember, 3000)
	for i := range members {
		members[i] = testMember(int64(i + 1))
	}

	err := ms.BootstrapRoster(context.Background(), members)
	require.ErrorContains(t, err, "chunk 1")
	assert.False(t, ms.Gate().IsSet(), "gate must not open on a partial roster")
}

func TestBootstrapRosterRecordsBotFlag(t *testing.T) {
	ms, users := newMemberFixture(10)

	bot := testMember(7)
	bot.Bot = true
	require.NoError(t, ms.BootstrapRoster(context.Background(), []gateway.GuildMember{bot, testMember(8)}))

	assert.True(t, users.rows[7].Bot)
	assert.False(t, users.rows[8].Bot)
}

func TestMemberJoinedWaitsForRosterGate(t *testing.T) {
	ms, users := newMemberFixture(10)

	done := make(chan error, 1)
	go func() {
		done <- ms.MemberJoined(context.Background(), testMember(42))
	}()

	select {
	case <-done:
		t.Fatal("join processed before the roster snapshot landed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, ms.BootstrapRoster(context.Background(), nil))
	require.NoError(t, <-done)
	assert.Contains(t, users.rows, int64(42))
}

func TestMemberJoinedUpdatesExistingUser(t *testing.T) {
	ms, users := newMemberFixture(10)
	require.NoError(t, ms.BootstrapRoster(context.Background(), []gateway.GuildMember{testMember(42)}))

	member := testMember(42)
	member.Username = "renamed"
	require.NoError(t, ms.MemberJoined(context.Background(), member))

	assert.Equal(t, "renamed", users.rows[42].Name)
	assert.Equal(t, 1, users.updateCalls)
	assert.Equal(t, 0, users.createCalls)
}

func TestConcurrentJoinsProduceOneRecordAndNoError(t *testing.T) {
	ms, users := newMemberFixture(10)
	require.NoError(t, ms.BootstrapRoster(context.Background(), nil))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ms.MemberJoined(context.Background(), testMember(42))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, users.rows, 1)
}

func TestMemberUpdatedIgnoresMissingJoinTimestamp(t *testing.T) {
	ms, users := newMemberFixture(10)
	require.NoError(t, ms.BootstrapRoster(context.Background(), nil))

	member := testMember(42)
	member.JoinedAt = nil
	require.NoError(t, ms.MemberUpdated(context.Background(), member))

	assert.Empty(t, users.rows)
	assert.Equal(t, 0, users.createCalls)
}

func TestMemberUpdatedSkipsWriteWhenNothingTrackedChanged(t *testing.T) {
	ms, users := newMemberFixture(10)
	require.NoError(t, ms.BootstrapRoster(context.Background(), []gateway.GuildMember{testMember(42)}))

	require.NoError(t, ms.MemberUpdated(context.Background(), testMember(42)))
	assert.Equal(t, 0, users.updateCalls)
}

func TestMemberUpdatedWritesOnStaffRoleChange(t *testing.T) {
	ms, users := newMemberFixture(10)

	staff := testMember(42)
	staff.RoleIDs = []int64{99}
	require.NoError(t, ms.BootstrapRoster(context.Background(), []gateway.GuildMember{staff}))
	require.True(t, users.rows[42].IsStaff)

	demoted := testMember(42)
	demoted.RoleIDs = []int64{1}
	require.NoError(t, ms.MemberUpdated(context.Background(), demoted))

	assert.False(t, users.rows[42].IsStaff)
	assert.Equal(t, 1, users.updateCalls)
}

func TestMemberUpdatedCreatesUnknownUser(t *testing.T) {
	ms, users := newMemberFixture(10)
	require.NoError(t, ms.BootstrapRoster(context.Background(), nil))

	require.NoError(t, ms.MemberUpdated(context.Background(), testMember(42)))
	assert.Contains(t, users.rows, int64(42))
}

func TestIncrementalUpdatePreservesBotAndOptOut(t *testing.T) {
	ms, users := newMemberFixture(10)

	bot := testMember(42)
	bot.Bot = true
	require.NoError(t, ms.BootstrapRoster(context.Background(), []gateway.GuildMember{bot}))

	// opt_out is set by hand outside the mirror.
	row := users.rows[42]
	row.OptOut = true
	users.rows[42] = row

	renamed := testMember(42)
	renamed.Username = "renamed"
	require.NoError(t, ms.MemberUpdated(context.Background(), renamed))

	assert.True(t, users.rows[42].Bot)
	assert.True(t, users.rows[42].OptOut)
	assert.Equal(t, "renamed", users.rows[42].Name)
}
