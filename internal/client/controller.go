package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"camcast/internal/core/domain"
	"camcast/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the controller's position in its lifecycle.
type State string

const (
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateMigrating  State = "migrating"
	StateClosed     State = "closed"
)

// Config carries the adaptive controller tunables. Thresholds form a
// hysteresis band: no migration happens while fps stays inside
// [LowFPS, HighFPS].
type Config struct {
	// ServerURL is the websocket base, e.g. "ws://localhost:6732".
	ServerURL   string
	InitialTier domain.Tier
	Bounds      domain.TierBounds

	LowFPS        float64
	HighFPS       float64
	Step          int
	Window        time.Duration
	CheckInterval time.Duration

	HandshakeTimeout time.Duration
	Dial             retry.Config

	// OnFrame receives each delivered frame. Called from the controller's
	// run loop; never after a migration away from the frame's connection.
	OnFrame func(data []byte, tier domain.Tier)
}

// Controller is the client-side adaptive-bitrate loop: it measures its own
// delivered frame rate over a sliding window and migrates to a lower or
// higher tier by closing the connection and opening a fresh one. Quality is
// never changed in-band.
type Controller struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu    sync.Mutex
	state State
	tier  domain.Tier
}

func NewController(cfg Config, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		cfg:    cfg,
		logger: logger,
		state:  StateConnecting,
		tier:   cfg.Bounds.Clamp(cfg.InitialTier),
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tier returns the currently subscribed tier.
func (c *Controller) Tier() domain.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) setTier(t domain.Tier) {
	c.mu.Lock()
	c.tier = t
	c.mu.Unlock()
}

// Run drives the connect/stream/migrate cycle until the context is
// cancelled (clean teardown, returns nil) or a connection cannot be
// established within the dial budget.
func (c *Controller) Run(ctx context.Context) error {
	defer c.setState(StateClosed)

	for {
		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connect at tier %d: %w", c.Tier(), err)
		}

		again := c.stream(ctx, conn)
		if !again {
			return nil
		}
	}
}

func (c *Controller) dial(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/websocket/%d", strings.TrimRight(c.cfg.ServerURL, "/"), c.Tier())
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	return retry.RetryWithResult(ctx, c.cfg.Dial, func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		return conn, err
	})
}

// stream consumes one connection until teardown, transport failure or a
// tier migration. Returns true when Run should open a new connection. The
// FPS window lives and dies with this session: it is never carried across
// a reconnect, and frames still buffered from the old connection are
// dropped with it.
func (c *Controller) stream(ctx context.Context, conn *websocket.Conn) bool {
	defer conn.Close()

	c.setState(StateStreaming)
	tier := c.Tier()
	c.logger.Infow("streaming", "tier", tier)

	window := NewFPSWindow(c.cfg.Window)
	start := time.Now()

	// sessionDone releases the reader on every exit path. A reader blocked
	// handing over a frame never observes the closed connection, so it must
	// not wait on anything that outlives this session.
	sessionDone := make(chan struct{})
	defer close(sessionDone)

	frames := make(chan []byte, 1)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-sessionDone:
				return
			}
		}
	}()

	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeConn(conn, "client shutdown")
			return false

		case data := <-frames:
			window.Record(time.Now())
			if c.cfg.OnFrame != nil {
				c.cfg.OnFrame(data, tier)
			}

		case err := <-readErr:
			c.logger.Warnw("connection lost, reconnecting", "tier", tier, "error", err)
			return true

		case <-ticker.C:
			// A partially filled window reads as a low rate; evaluating it
			// would down-migrate every fresh connection. Hold off until one
			// full window has elapsed in this session.
			if time.Since(start) < c.cfg.Window {
				continue
			}
			fps := window.FPS(time.Now())
			target := c.decide(tier, fps)
			if target == tier {
				continue
			}

			c.setState(StateMigrating)
			c.logger.Infow("migrating tier", "from", tier, "to", target, "fps", fps)
			c.closeConn(conn, "tier migration")
			c.setTier(target)
			return true
		}
	}
}

// decide applies the hysteresis policy: below the band step down, above it
// step up, inside it stay. The result is always clamped to the tier bounds.
func (c *Controller) decide(current domain.Tier, fps float64) domain.Tier {
	switch {
	case fps < c.cfg.LowFPS:
		return c.cfg.Bounds.Clamp(current - domain.Tier(c.cfg.Step))
	case fps > c.cfg.HighFPS:
		return c.cfg.Bounds.Clamp(current + domain.Tier(c.cfg.Step))
	default:
		return current
	}
}

func (c *Controller) closeConn(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	conn.Close()
}
