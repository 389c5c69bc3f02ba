package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"camcast/internal/core/domain"
	"camcast/internal/core/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hubMetrics counts the delivery events the hub reports.
type hubMetrics struct {
	dropped      atomic.Int64
	sendFailures atomic.Int64
	sent         atomic.Int64
}

func (m *hubMetrics) RecordCaptureTick()                                 {}
func (m *hubMetrics) RecordCaptureReadFailure()                          {}
func (m *hubMetrics) RecordFrameEncoded(domain.Tier, time.Duration, int) {}
func (m *hubMetrics) RecordConnectionOpened(domain.Tier)                 {}
func (m *hubMetrics) RecordConnectionClosed(domain.Tier)                 {}
func (m *hubMetrics) RecordSubscriptionRejected()                        {}
func (m *hubMetrics) RecordFrameSent(domain.Tier)                        { m.sent.Add(1) }
func (m *hubMetrics) RecordFrameDropped(domain.Tier)                     { m.dropped.Add(1) }
func (m *hubMetrics) RecordSendFailure(domain.Tier)                      { m.sendFailures.Add(1) }

func testHubConfig() HubConfig {
	return HubConfig{
		Bounds:       domain.TierBounds{Min: 30, Max: 95},
		SendTimeout:  200 * time.Millisecond,
		PingInterval: time.Hour, // keepalive not under test
		PongTimeout:  time.Hour,
	}
}

func newTestHub(t *testing.T) (*Hub, *services.DemandRegistry, *hubMetrics) {
	t.Helper()
	demand := services.NewDemandRegistry()
	metrics := &hubMetrics{}
	hub := NewHub(demand, metrics, testHubConfig(), zap.NewNop().Sugar())
	return hub, demand, metrics
}

// newConnPair opens a real websocket pair through an httptest server.
func newConnPair(t *testing.T) (serverConn, clientConn *websocket.Conn) {
	t.Helper()

	upgr := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgr.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn = <-serverCh
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}

func encodedFrame(tier domain.Tier, seq uint64, size int) *domain.EncodedFrame {
	return &domain.EncodedFrame{
		Tier:       tier,
		Sequence:   seq,
		Data:       make([]byte, size),
		CapturedAt: time.Now(),
	}
}

func TestHub_RegisterRejectsOutOfRangeTier(t *testing.T) {
	hub, demand, _ := newTestHub(t)
	serverConn, _ := newConnPair(t)

	for _, tier := range []domain.Tier{29, 96, 0, -5} {
		_, err := hub.Register(serverConn, tier)
		assert.ErrorIs(t, err, domain.ErrTierOutOfRange)
	}

	assert.Zero(t, hub.ConnectionCount())
	assert.Empty(t, demand.ActiveTiers(), "rejected registration must not mutate demand")
}

func TestHub_RegisterUnregisterTracksDemand(t *testing.T) {
	hub, demand, _ := newTestHub(t)

	serverA, _ := newConnPair(t)
	serverB, _ := newConnPair(t)

	idA, err := hub.Register(serverA, 50)
	require.NoError(t, err)
	idB, err := hub.Register(serverB, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, demand.Count(50))
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.Unregister(idA)
	assert.Equal(t, 1, demand.Count(50))

	hub.Unregister(idB)
	assert.Equal(t, 0, demand.Count(50))
	assert.Zero(t, hub.ConnectionCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub, demand, _ := newTestHub(t)
	serverConn, _ := newConnPair(t)

	id, err := hub.Register(serverConn, 60)
	require.NoError(t, err)

	hub.Unregister(id)
	hub.Unregister(id)
	hub.Unregister(id)

	assert.Equal(t, 0, demand.Count(60))
	assert.Zero(t, hub.ConnectionCount())
}

func TestHub_TierIdleCallback(t *testing.T) {
	hub, _, _ := newTestHub(t)

	var idleTiers []domain.Tier
	hub.SetTierIdleFunc(func(tier domain.Tier) {
		idleTiers = append(idleTiers, tier)
	})

	serverA, _ := newConnPair(t)
	serverB, _ := newConnPair(t)

	idA, err := hub.Register(serverA, 40)
	require.NoError(t, err)
	idB, err := hub.Register(serverB, 40)
	require.NoError(t, err)

	hub.Unregister(idA)
	assert.Empty(t, idleTiers, "tier still has a subscriber")

	hub.Unregister(idB)
	assert.Equal(t, []domain.Tier{40}, idleTiers)
}

func TestHub_RegisterSeedsLatestFrame(t *testing.T) {
	hub, _, _ := newTestHub(t)

	cached := encodedFrame(50, 7, 64)
	hub.SetLatestFrameFunc(func(tier domain.Tier) (*domain.EncodedFrame, bool) {
		if tier == 50 {
			return cached, true
		}
		return nil, false
	})

	serverConn, clientConn := newConnPair(t)
	_, err := hub.Register(serverConn, 50)
	require.NoError(t, err)

	// The cached frame arrives without any Dispatch happening.
	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	msgType, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Len(t, data, 64)

	// A tier with no cached frame gets nothing until the next dispatch.
	serverCold, clientCold := newConnPair(t)
	_, err = hub.Register(serverCold, 80)
	require.NoError(t, err)

	clientCold.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = clientCold.ReadMessage()
	assert.Error(t, err)
}

func TestHub_DispatchDeliversOnlyToSubscribedTier(t *testing.T) {
	hub, _, _ := newTestHub(t)

	server50, client50 := newConnPair(t)
	server80, client80 := newConnPair(t)

	_, err := hub.Register(server50, 50)
	require.NoError(t, err)
	_, err = hub.Register(server80, 80)
	require.NoError(t, err)

	hub.Dispatch(encodedFrame(50, 1, 128))

	client50.SetReadDeadline(time.Now().Add(time.Second))
	msgType, data, err := client50.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Len(t, data, 128)

	client80.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = client80.ReadMessage()
	assert.Error(t, err, "tier 80 viewer must not receive tier 50 frames")
}

func TestHub_SlowConsumerDoesNotDelaySiblings(t *testing.T) {
	hub, demand, metrics := newTestHub(t)

	serverFast, clientFast := newConnPair(t)
	serverSlow, _ := newConnPair(t)
	// The slow client never reads; large frames fill its transport buffer
	// until sends start timing out.

	_, err := hub.Register(serverFast, 50)
	require.NoError(t, err)
	_, err = hub.Register(serverSlow, 50)
	require.NoError(t, err)

	received := 0
	deadline := time.Now().Add(5 * time.Second)
	for received < 10 && time.Now().Before(deadline) {
		hub.Dispatch(encodedFrame(50, uint64(received), 256*1024))

		clientFast.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := clientFast.ReadMessage(); err == nil {
			received++
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, 10, received, "fast viewer must keep receiving while a sibling hangs")

	// The hanging viewer is eventually dropped by the bounded send timeout,
	// which decrements demand exactly once.
	assert.Eventually(t, func() bool {
		return demand.Count(50) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, metrics.sendFailures.Load()+metrics.dropped.Load(), int64(1))
}

func TestHub_FailedSendUnregistersOnce(t *testing.T) {
	hub, demand, _ := newTestHub(t)

	serverConn, clientConn := newConnPair(t)
	_, err := hub.Register(serverConn, 70)
	require.NoError(t, err)

	// Abrupt client death: the next sends fail and the hub treats the
	// connection as disconnected.
	clientConn.Close()

	assert.Eventually(t, func() bool {
		hub.Dispatch(encodedFrame(70, 1, 64*1024))
		return demand.Count(70) == 0 && hub.ConnectionCount() == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHub_CloseAll(t *testing.T) {
	hub, demand, _ := newTestHub(t)

	for i := 0; i < 3; i++ {
		serverConn, _ := newConnPair(t)
		_, err := hub.Register(serverConn, 50)
		require.NoError(t, err)
	}

	hub.CloseAll()
	assert.Zero(t, hub.ConnectionCount())
	assert.Equal(t, 0, demand.Count(50))
}
