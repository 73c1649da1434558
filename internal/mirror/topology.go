package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/lalith-99/guildmirror/internal/gateway"
	"github.com/lalith-99/guildmirror/internal/models"
	"github.com/lalith-99/guildmirror/internal/repository"
	"go.uber.org/zap"
)

// Filters is the guild-scoped configuration the mirror filters against.
type Filters struct {
	GuildID          int64
	StaffRoleID      int64
	IgnoreCategories map[int64]struct{}
	StaffCategories  map[int64]struct{}
}

func (f Filters) ignored(categoryID *int64) bool {
	if categoryID == nil {
		return false
	}
	_, ok := f.IgnoreCategories[*categoryID]
	return ok
}

func (f Filters) staffCategory(categoryID *int64) bool {
	if categoryID == nil {
		return false
	}
	_, ok := f.StaffCategories[*categoryID]
	return ok
}

// TopologySync rebuilds the stored categories and channels to match the
// complete channel set reported by the gateway. It is idempotent: re-running
// it against the same topology issues no writes, so it is safe to call on
// every channel create or update notification.
type TopologySync struct {
	categories repository.CategoryRepository
	channels   repository.ChannelRepository
	filters    Filters
	gate       *Gate
	logger     *zap.Logger

	// One sync at a time. Concurrent topology events queue here, each
	// re-running against the then-current snapshot.
	mu sync.Mutex
}

func NewTopologySync(
	categories repository.CategoryRepository,
	channels repository.ChannelRepository,
	filters Filters,
	gate *Gate,
	logger *zap.Logger,
) *TopologySync {
	return &TopologySync{
		categories: categories,
		channels:   channels,
		filters:    filters,
		gate:       gate,
		logger:     logger,
	}
}

// Gate exposes the channel-topology readiness signal. It is cleared while a
// sync runs and set when one completes.
func (s *TopologySync) Gate() *Gate {
	return s.gate
}

// Sync runs the two-pass synchronization: categories first, then channels.
// The ordering is load-bearing — channel staff flags and ignore filtering
// both read category membership, so every category must land before any
// channel that references it.
//
// On error the gate stays cleared; message recording resumes only after a
// sync completes against the current topology.
func (s *TopologySync) Sync(ctx context.Context, topology []gateway.GuildChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gate.Clear()
	s.logger.Info("beginning category synchronisation", zap.Int("entities", len(topology)))

	for _, ch := range topology {
		if ch.Type != gateway.ChannelTypeCategory {
			continue
		}
		if err := s.syncCategory(ctx, ch); err != nil {
			return err
		}
	}

	s.logger.Info("category synchronisation complete, synchronising channels")

	for _, ch := range topology {
		if ch.Type == gateway.ChannelTypeCategory || ch.Type == gateway.ChannelTypeVoice {
			continue
		}
		if s.filters.ignored(ch.ParentID) {
			continue
		}
		if err := s.syncChannel(ctx, ch); err != nil {
			return err
		}
	}

	s.gate.Set()
	s.logger.Info("channel synchronisation complete")
	return nil
}

func (s *TopologySync) syncCategory(ctx context.Context, ch gateway.GuildChannel) error {
	existing, err := s.categories.GetByID(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("sync category %d: %w", ch.ID, err)
	}

	cat := models.Category{ID: ch.ID, Name: ch.Name}
	switch {
	case existing == nil:
		err = s.categories.Create(ctx, cat)
	case existing.Name != ch.Name:
		err = s.categories.Update(ctx, cat)
	}
	if err != nil {
		return fmt.Errorf("sync category %d: %w", ch.ID, err)
	}
	return nil
}

func (s *TopologySync) syncChannel(ctx context.Context, ch gateway.GuildChannel) error {
	existing, err := s.channels.GetByID(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("sync channel %d: %w", ch.ID, err)
	}

	want := models.Channel{
		ID:         ch.ID,
		Name:       ch.Name,
		CategoryID: ch.ParentID,
		IsStaff:    s.filters.staffCategory(ch.ParentID),
	}

	switch {
	case existing == nil:
		err = s.channels.Create(ctx, want)
	case channelDiffers(*existing, want):
		err = s.channels.Update(ctx, want)
	}
	if err != nil {
		return fmt.Errorf("sync channel %d: %w", ch.ID, err)
	}
	return nil
}

func channelDiffers(have, want models.Channel) bool {
	if have.Name != want.Name || have.IsStaff != want.IsStaff {
		return true
	}
	switch {
	case have.CategoryID == nil && want.CategoryID == nil:
		return false
	case have.CategoryID == nil || want.CategoryID == nil:
		return true
	default:
		return *have.CategoryID != *want.CategoryID
	}
}
