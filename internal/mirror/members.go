package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/lalith-99/guildmirror/internal/gateway"
	"github.com/lalith-99/guildmirror/internal/models"
	"github.com/lalith-99/guildmirror/internal/repository"
	"go.uber.org/zap"
)

// MemberSync keeps the users table converged with guild membership.
//
// The bulk path runs once per process: the full roster is upserted in chunks
// and only then is the roster gate set. Incremental join/update handlers
// wait on that gate — applying them earlier would race the bulk upsert on
// the same ids and could be silently superseded by it.
type MemberSync struct {
	users     repository.UserRepository
	filters   Filters
	gate      *Gate
	chunkSize int
	logger    *zap.Logger
}

func NewMemberSync(
	users repository.UserRepository,
	filters Filters,
	gate *Gate,
	chunkSize int,
	logger *zap.Logger,
) *MemberSync {
	return &MemberSync{
		users:     users,
		filters:   filters,
		gate:      gate,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Gate exposes the membership-snapshot readiness signal. It is set exactly
// once, after the first successful roster bootstrap.
func (m *MemberSync) Gate() *Gate {
	return m.gate
}

// BootstrapRoster upserts the complete member roster and then sets the
// roster gate. If any chunk fails the gate stays unset, so incremental
// handlers keep waiting instead of running against a partial roster.
func (m *MemberSync) BootstrapRoster(ctx context.Context, members []gateway.GuildMember) error {
	m.logger.Info("beginning user synchronisation", zap.Int("members", len(members)))

	users := make([]models.User, 0, len(members))
	for _, member := range members {
		u := m.userFromMember(member)
		u.Bot = member.Bot
		users = append(users, u)
	}

	m.logger.Info("performing bulk upsert", zap.Int("rows", len(users)))

	count, err := m.users.BulkUpsert(ctx, users, m.chunkSize)
	if err != nil {
		return fmt.Errorf("bulk upsert roster: %w", err)
	}

	m.logger.Info("user upsert complete", zap.Int("rows", count))
	m.gate.Set()
	return nil
}

// MemberJoined records a newly joined member once the roster snapshot has
// landed. A concurrent create for the same id (bulk path, duplicate
// delivery) is benign: the row already exists in an acceptable state.
func (m *MemberSync) MemberJoined(ctx context.Context, member gateway.GuildMember) error {
	if err := m.gate.Wait(ctx); err != nil {
		return err
	}

	existing, err := m.users.GetByID(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("member join %d: %w", member.ID, err)
	}

	if existing != nil {
		if err := m.users.Update(ctx, m.userFromMember(member)); err != nil {
			return fmt.Errorf("member join %d: %w", member.ID, err)
		}
		return nil
	}

	return m.createTolerant(ctx, member)
}

// MemberUpdated applies a profile change. Updates with no join timestamp are
// dropped — the platform sends those before the member is fully admitted.
// A write is issued only when a tracked field actually changed; profile
// churn the mirror does not track stays write-free.
func (m *MemberSync) MemberUpdated(ctx context.Context, member gateway.GuildMember) error {
	if err := m.gate.Wait(ctx); err != nil {
		return err
	}

	if member.JoinedAt == nil {
		return nil
	}

	existing, err := m.users.GetByID(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("member update %d: %w", member.ID, err)
	}

	if existing == nil {
		return m.createTolerant(ctx, member)
	}

	isStaff := member.HasRole(m.filters.StaffRoleID)
	if existing.Name == member.Username &&
		existing.AvatarHash == member.AvatarHash &&
		existing.IsStaff == isStaff {
		return nil
	}

	if err := m.users.Update(ctx, m.userFromMember(member)); err != nil {
		return fmt.Errorf("member update %d: %w", member.ID, err)
	}
	return nil
}

func (m *MemberSync) createTolerant(ctx context.Context, member gateway.GuildMember) error {
	result, err := m.users.Create(ctx, m.userFromMember(member))
	if err != nil {
		return fmt.Errorf("create user %d: %w", member.ID, err)
	}
	if result == repository.AlreadyExists {
		m.logger.Debug("user already created by another path", zap.Int64("user_id", member.ID))
	}
	return nil
}

func (m *MemberSync) userFromMember(member gateway.GuildMember) models.User {
	var joinedAt time.Time
	if member.JoinedAt != nil {
		joinedAt = *member.JoinedAt
	}
	return models.User{
		ID:         member.ID,
		Name:       member.Username,
		AvatarHash: member.AvatarHash,
		JoinedAt:   joinedAt,
		CreatedAt:  member.CreatedAt,
		IsStaff:    member.HasRole(m.filters.StaffRoleID),
	}
}
