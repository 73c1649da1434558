package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lalith-99/guildmirror/internal/gateway"
	"go.uber.org/zap"
)

// If an event is still blocked after this long, something upstream has
// stalled (a bootstrap that never finished); log it so operators can see
// why the mirror has gone quiet.
const stalledEventWarning = time.Minute

// Coordinator routes typed gateway events to the sync components. Each event
// is handled on its own goroutine so one blocked handler (waiting on a gate,
// or on the store) never holds up the feed. Events for other guilds are
// dropped at the door.
//
// A failing event is logged and dropped; it never takes the process down or
// disturbs gate state.
type Coordinator struct {
	topology *TopologySync
	members  *MemberSync
	messages *MessageRecorder
	guildID  int64
	logger   *zap.Logger

	eventsHandled atomic.Int64
	eventErrors   atomic.Int64

	// Last full topology snapshot seen, kept for operator-triggered resyncs.
	snapMu   sync.Mutex
	snapshot []gateway.GuildChannel
}

func NewCoordinator(
	topology *TopologySync,
	members *MemberSync,
	messages *MessageRecorder,
	guildID int64,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		topology: topology,
		members:  members,
		messages: messages,
		guildID:  guildID,
		logger:   logger,
	}
}

// HandleEvent implements gateway.Handler.
func (c *Coordinator) HandleEvent(ctx context.Context, evt gateway.Event) {
	go c.dispatch(ctx, evt)
}

func (c *Coordinator) dispatch(ctx context.Context, evt gateway.Event) {
	c.eventsHandled.Add(1)

	stallTimer := time.AfterFunc(stalledEventWarning, func() {
		c.logger.Warn("event handler blocked for over a minute; is a sync stalled?",
			zap.String("type", evt.EventType()),
		)
	})
	defer stallTimer.Stop()

	if err := c.handle(ctx, evt); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.eventErrors.Add(1)
		c.logger.Error("event handling failed",
			zap.String("type", evt.EventType()),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) handle(ctx context.Context, evt gateway.Event) error {
	switch e := evt.(type) {
	case gateway.GuildAvailable:
		if e.GuildID != c.guildID {
			c.logger.Info("guild available for a different guild, discarding",
				zap.Int64("guild_id", e.GuildID))
			return nil
		}
		return c.guildAvailable(ctx, e)

	case gateway.ChannelCreate:
		if e.GuildID != c.guildID {
			return nil
		}
		return c.resyncTopology(ctx, e.Topology)

	case gateway.ChannelUpdate:
		if e.GuildID != c.guildID {
			return nil
		}
		return c.resyncTopology(ctx, e.Topology)

	case gateway.MemberJoin:
		if e.GuildID != c.guildID {
			return nil
		}
		return c.members.MemberJoined(ctx, e.Member)

	case gateway.MemberUpdate:
		if e.GuildID != c.guildID {
			return nil
		}
		return c.members.MemberUpdated(ctx, e.Member)

	case gateway.MessageCreate:
		// The recorder does its own guild check; direct messages have no
		// guild id at all.
		return c.messages.Record(ctx, e)

	default:
		return nil
	}
}

// guildAvailable is the bootstrap path: topology first, then the roster.
// Message recording unblocks as soon as topology lands; member events only
// after the full roster is in.
func (c *Coordinator) guildAvailable(ctx context.Context, e gateway.GuildAvailable) error {
	c.logger.Info("guild available", zap.Int64("guild_id", e.GuildID))

	if err := c.resyncTopology(ctx, e.Channels); err != nil {
		return err
	}
	return c.members.BootstrapRoster(ctx, e.Members)
}

func (c *Coordinator) resyncTopology(ctx context.Context, topology []gateway.GuildChannel) error {
	c.snapMu.Lock()
	c.snapshot = topology
	c.snapMu.Unlock()

	return c.topology.Sync(ctx, topology)
}

// Resync re-runs topology sync against the last snapshot the gateway
// delivered. Used by the ops surface.
func (c *Coordinator) Resync(ctx context.Context) error {
	c.snapMu.Lock()
	snapshot := c.snapshot
	c.snapMu.Unlock()

	if snapshot == nil {
		return fmt.Errorf("no topology snapshot received yet")
	}
	return c.topology.Sync(ctx, snapshot)
}

// Status is a point-in-time view for the ops surface.
type Status struct {
	TopologyReady bool  `json:"topology_ready"`
	RosterReady   bool  `json:"roster_ready"`
	EventsHandled int64 `json:"events_handled"`
	EventErrors   int64 `json:"event_errors"`
}

func (c *Coordinator) Status() Status {
	return Status{
		TopologyReady: c.topology.Gate().IsSet(),
		RosterReady:   c.members.Gate().IsSet(),
		EventsHandled: c.eventsHandled.Load(),
		EventErrors:   c.eventErrors.Load(),
	}
}
