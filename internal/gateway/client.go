package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const reconnectDelay = 5 * time.Second

// Client maintains one gateway connection and feeds decoded events to a
// Handler. It keeps a per-guild channel cache so topology events can carry
// the complete current channel set, which is what the synchronizer consumes.
//
// Connection management here is deliberately thin: identify or resume, read,
// heartbeat, reconnect on error. The mirror's correctness never depends on
// it — a dropped session just means a fresh identify and another
// GUILD_AVAILABLE, which the downstream sync absorbs.
type Client struct {
	url      string
	token    string
	handler  Handler
	sessions *SessionStore
	logger   *zap.Logger

	// writeMu serializes heartbeat writes with identify/resume.
	writeMu sync.Mutex

	// seq is shared between the read loop and the heartbeat goroutine.
	seq atomic.Int64

	// topology is touched only by the read loop.
	topology map[int64]map[int64]GuildChannel
}

func NewClient(url, token string, handler Handler, sessions *SessionStore, logger *zap.Logger) *Client {
	return &Client{
		url:      url,
		token:    token,
		handler:  handler,
		sessions: sessions,
		logger:   logger,
		topology: make(map[int64]map[int64]GuildChannel),
	}
}

// Run connects and processes events until ctx is cancelled, reconnecting
// after transient failures.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("gateway connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", reconnectDelay),
		)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	heartbeatInterval, err := c.readHello(conn)
	if err != nil {
		return err
	}

	sess, err := c.loadOrCreateSession(ctx)
	if err != nil {
		return err
	}
	c.seq.Store(sess.Seq)

	if err := c.identify(conn, sess); err != nil {
		return err
	}

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	go c.heartbeat(hbCtx, conn, heartbeatInterval)

	return c.readLoop(ctx, conn, sess)
}

func (c *Client) readHello(conn *websocket.Conn) (time.Duration, error) {
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if env.Op != opHello {
		return 0, fmt.Errorf("expected hello, got op %d", env.Op)
	}

	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(env.D, &hello); err != nil {
		return 0, fmt.Errorf("decode hello: %w", err)
	}
	if hello.HeartbeatInterval < 1000 {
		hello.HeartbeatInterval = 41250
	}
	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

func (c *Client) loadOrCreateSession(ctx context.Context) (*Session, error) {
	if c.sessions != nil {
		sess, err := c.sessions.Load(ctx)
		if err != nil {
			// Redis being down degrades to a fresh identify.
			c.logger.Warn("could not load gateway session", zap.Error(err))
		} else if sess != nil {
			return sess, nil
		}
	}
	return &Session{ID: uuid.NewString()}, nil
}

func (c *Client) identify(conn *websocket.Conn, sess *Session) error {
	op := opIdentify
	if sess.Seq > 0 {
		op = opResume
	}

	payload := map[string]any{
		"token":      c.token,
		"session_id": sess.ID,
		"seq":        sess.Seq,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal identify: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(envelope{Op: op, D: data}); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, _ := json.Marshal(c.seq.Load())
			c.writeMu.Lock()
			err := conn.WriteJSON(envelope{Op: opHeartbeat, D: data})
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session) error {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch env.Op {
		case opDispatch:
			if env.S > c.seq.Load() {
				c.seq.Store(env.S)
			}
			c.saveSession(ctx, Session{ID: sess.ID, Seq: c.seq.Load()})
			c.dispatch(ctx, env)
		case opHeartbeatACK:
			// nothing to do
		default:
			c.logger.Debug("ignoring gateway frame", zap.Int("op", env.Op))
		}
	}
}

func (c *Client) saveSession(ctx context.Context, sess Session) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		c.logger.Warn("could not save gateway session", zap.Error(err))
	}
}

func (c *Client) dispatch(ctx context.Context, env envelope) {
	evt, err := decodeEvent(env.T, env.D)
	if err != nil {
		c.logger.Error("dropping undecodable event",
			zap.String("type", env.T),
			zap.Error(err),
		)
		return
	}
	if evt == nil {
		return
	}

	// Topology events are rewritten to carry the full current channel set.
	switch e := evt.(type) {
	case GuildAvailable:
		c.resetTopology(e.GuildID, e.Channels)
	case ChannelCreate:
		c.upsertChannel(e.GuildID, e.Channel)
		e.Topology = c.snapshotTopology(e.GuildID)
		evt = e
	case ChannelUpdate:
		c.upsertChannel(e.GuildID, e.Channel)
		e.Topology = c.snapshotTopology(e.GuildID)
		evt = e
	}

	c.handler.HandleEvent(ctx, evt)
}

func (c *Client) resetTopology(guildID int64, channels []GuildChannel) {
	byID := make(map[int64]GuildChannel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}
	c.topology[guildID] = byID
}

func (c *Client) upsertChannel(guildID int64, ch GuildChannel) {
	byID := c.topology[guildID]
	if byID == nil {
		byID = make(map[int64]GuildChannel)
		c.topology[guildID] = byID
	}
	byID[ch.ID] = ch
}

func (c *Client) snapshotTopology(guildID int64) []GuildChannel {
	byID := c.topology[guildID]
	channels := make([]GuildChannel, 0, len(byID))
	for _, ch := range byID {
		channels = append(channels, ch)
	}
	return channels
}
