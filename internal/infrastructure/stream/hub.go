package stream

import (
	"sync"
	"time"

	"camcast/internal/core/domain"
	"camcast/internal/core/ports"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubConfig carries the connection-side tunables.
type HubConfig struct {
	Bounds       domain.TierBounds
	SendTimeout  time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// client is one live viewer connection. Its frame mailbox holds at most one
// frame; a new frame replaces an unconsumed one, so a slow consumer loses
// frames instead of stalling the dispatcher.
type client struct {
	id   domain.ConnectionID
	tier domain.Tier
	conn *websocket.Conn

	frames chan *domain.EncodedFrame
	done   chan struct{}

	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub is the connection registry and fan-out dispatcher. Registration and
// removal mutate the demand registry exactly once per connection; dispatch
// never blocks on any individual connection.
type Hub struct {
	demand  ports.DemandRegistry
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
	cfg     HubConfig

	// onTierIdle runs after the last subscriber of a tier is gone, outside
	// the hub lock. Wired to the frame cache drop in cmd/server.
	onTierIdle func(domain.Tier)

	// latestFrame, when set, looks up the tier's most recent cached frame
	// to seed a fresh registration, so a new viewer does not wait out the
	// next capture tick. Wired to the frame cache in cmd/server.
	latestFrame func(domain.Tier) (*domain.EncodedFrame, bool)

	mu     sync.RWMutex
	conns  map[domain.ConnectionID]*client
	byTier map[domain.Tier]map[domain.ConnectionID]*client
}

func NewHub(demand ports.DemandRegistry, metrics ports.MetricsRecorder, cfg HubConfig, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		demand:  demand,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		conns:   make(map[domain.ConnectionID]*client),
		byTier:  make(map[domain.Tier]map[domain.ConnectionID]*client),
	}
}

// SetTierIdleFunc registers a callback invoked when a tier loses its last
// subscriber. Must be called before the hub accepts connections.
func (h *Hub) SetTierIdleFunc(fn func(domain.Tier)) {
	h.onTierIdle = fn
}

// SetLatestFrameFunc registers the lookup used to seed new connections with
// the tier's latest frame. Must be called before the hub accepts connections.
func (h *Hub) SetLatestFrameFunc(fn func(domain.Tier) (*domain.EncodedFrame, bool)) {
	h.latestFrame = fn
}

// Register validates the tier, inserts the connection and increments demand
// for its tier. On success the hub owns all writes to conn until Unregister.
func (h *Hub) Register(conn *websocket.Conn, tier domain.Tier) (domain.ConnectionID, error) {
	if !h.cfg.Bounds.Contains(tier) {
		return "", domain.ErrTierOutOfRange
	}

	c := &client{
		id:     domain.ConnectionID(uuid.NewString()),
		tier:   tier,
		conn:   conn,
		frames: make(chan *domain.EncodedFrame, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	tierConns, ok := h.byTier[tier]
	if !ok {
		tierConns = make(map[domain.ConnectionID]*client)
		h.byTier[tier] = tierConns
	}
	tierConns[c.id] = c
	h.mu.Unlock()

	h.demand.Increment(tier)
	h.metrics.RecordConnectionOpened(tier)
	h.logger.Infow("viewer connected", "connection_id", c.id, "tier", tier)

	// The mailbox is empty here, so the seed never displaces a live frame.
	if h.latestFrame != nil {
		if frame, ok := h.latestFrame(tier); ok {
			c.frames <- frame
		}
	}

	go h.writePump(c)

	return c.id, nil
}

// Unregister removes the connection and decrements demand for its tier.
// Idempotent: the explicit close path and the failed-send path may both
// call it; only the first changes state.
func (h *Hub) Unregister(id domain.ConnectionID) {
	h.mu.Lock()
	c, ok := h.conns[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, id)
	if tierConns, ok := h.byTier[c.tier]; ok {
		delete(tierConns, id)
		if len(tierConns) == 0 {
			delete(h.byTier, c.tier)
		}
	}
	h.mu.Unlock()

	c.close()
	h.demand.Decrement(c.tier)
	h.metrics.RecordConnectionClosed(c.tier)
	h.logger.Infow("viewer disconnected", "connection_id", id, "tier", c.tier)

	if h.onTierIdle != nil && h.demand.Count(c.tier) == 0 {
		h.onTierIdle(c.tier)
	}
}

// Dispatch delivers frame to every connection subscribed to its tier. Each
// delivery is an independent mailbox write; no connection can delay another
// or the capture cadence.
func (h *Hub) Dispatch(frame *domain.EncodedFrame) {
	h.mu.RLock()
	tierConns := h.byTier[frame.Tier]
	targets := make([]*client, 0, len(tierConns))
	for _, c := range tierConns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.frames <- frame:
		default:
			// Mailbox full: replace the stale frame with the new one.
			select {
			case <-c.frames:
				h.metrics.RecordFrameDropped(frame.Tier)
			default:
			}
			select {
			case c.frames <- frame:
			default:
			}
		}
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll tears down every live connection, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	ids := make([]domain.ConnectionID, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Unregister(id)
	}
}

// writePump owns all writes to one connection: frames from the mailbox and
// keepalive pings, each under a bounded write deadline. A failed or timed
// out send is an implicit disconnect.
func (h *Hub) writePump(c *client) {
	pingTicker := time.NewTicker(h.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-c.done:
			return

		case frame := <-c.frames:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.SendTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
				h.metrics.RecordSendFailure(c.tier)
				h.logger.Infow("frame send failed, dropping viewer",
					"connection_id", c.id, "tier", c.tier, "error", err)
				h.Unregister(c.id)
				return
			}
			h.metrics.RecordFrameSent(c.tier)

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.SendTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.metrics.RecordSendFailure(c.tier)
				h.logger.Infow("ping failed, dropping viewer",
					"connection_id", c.id, "tier", c.tier, "error", err)
				h.Unregister(c.id)
				return
			}
		}
	}
}
