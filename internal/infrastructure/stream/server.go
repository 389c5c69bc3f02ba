package stream

import (
	"net/http"
	"strconv"
	"time"

	"camcast/internal/core/domain"
	"camcast/internal/core/ports"
	"camcast/internal/core/services"
	apperrors "camcast/pkg/errors"
	"camcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are filtered upstream when needed
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Server exposes the subscription endpoint plus health and stats. One
// websocket connection equals one subscription at one tier; changing tier
// is always a fresh connection.
type Server struct {
	hub     *Hub
	demand  *services.DemandRegistry
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	startTime time.Time
}

func NewServer(hub *Hub, demand *services.DemandRegistry, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Server {
	return &Server{
		hub:       hub,
		demand:    demand,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HandleSubscribe serves GET /websocket/:quality. A non-numeric quality is
// rejected before the upgrade; a numeric but out-of-range tier is rejected
// after the upgrade with close code 1003, so websocket clients always get a
// protocol-level answer. No partial registration happens on either path.
func (s *Server) HandleSubscribe(c *gin.Context) {
	quality, err := strconv.Atoi(c.Param("quality"))
	if err != nil {
		s.metrics.RecordSubscriptionRejected()
		appErr := apperrors.NewInvalidInputError("quality must be an integer")
		c.JSON(appErr.HTTPStatus, gin.H{"code": appErr.Code, "error": appErr.Message})
		return
	}
	tier := domain.Tier(quality)

	ctx, span := tracing.SubscribeSpan(c.Request.Context(), quality)
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		tracing.RecordError(ctx, err)
		return
	}

	id, err := s.hub.Register(conn, tier)
	if err != nil {
		s.metrics.RecordSubscriptionRejected()
		s.logger.Infow("subscription rejected", "tier", tier, "error", err)
		tracing.RecordError(ctx, err)

		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid quality parameter"),
			deadline)
		conn.Close()
		return
	}

	// Inbound traffic is only consumed to detect disconnects and answer
	// pings; there are no in-band control messages.
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.hub.cfg.PongTimeout))
	}

	s.hub.Unregister(id)
}

// HealthCheck reports liveness and the current connection count.
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"uptime":      time.Since(s.startTime).String(),
		"connections": s.hub.ConnectionCount(),
	})
}

// Stats exposes the per-tier demand snapshot.
func (s *Server) Stats(c *gin.Context) {
	snapshot := s.demand.Snapshot()

	demand := make(map[string]int, len(snapshot))
	for tier, count := range snapshot {
		demand[strconv.Itoa(int(tier))] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"connections": s.hub.ConnectionCount(),
		"demand":      demand,
	})
}
