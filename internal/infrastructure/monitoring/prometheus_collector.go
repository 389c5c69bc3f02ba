package monitoring

import (
	"strconv"
	"time"

	"camcast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder on top of a
// prometheus registerer. Tests pass a private registry.
type PrometheusCollector struct {
	captureTicksTotal        prometheus.Counter
	captureReadFailuresTotal prometheus.Counter

	framesEncodedTotal *prometheus.CounterVec
	encodeDuration     prometheus.Histogram
	encodedFrameBytes  prometheus.Histogram

	connectionsActive     *prometheus.GaugeVec
	subscriptionsRejected prometheus.Counter

	framesSentTotal    *prometheus.CounterVec
	framesDroppedTotal *prometheus.CounterVec
	sendFailuresTotal  *prometheus.CounterVec
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		captureTicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcast_capture_ticks_total",
			Help: "Total number of capture loop iterations",
		}),

		captureReadFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcast_capture_read_failures_total",
			Help: "Total number of transient capture read failures",
		}),

		framesEncodedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcast_frames_encoded_total",
			Help: "Total number of frames encoded per tier",
		}, []string{"tier"}),

		encodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camcast_encode_duration_seconds",
			Help:    "Duration of per-tier JPEG encodes",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),

		encodedFrameBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camcast_encoded_frame_bytes",
			Help:    "Size of encoded frames",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		}),

		connectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camcast_connections_active",
			Help: "Number of live viewer connections per tier",
		}, []string{"tier"}),

		subscriptionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcast_subscriptions_rejected_total",
			Help: "Total number of rejected subscription requests",
		}),

		framesSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcast_frames_sent_total",
			Help: "Total number of frames delivered per tier",
		}, []string{"tier"}),

		framesDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcast_frames_dropped_total",
			Help: "Total number of frames dropped on slow viewer mailboxes per tier",
		}, []string{"tier"}),

		sendFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcast_send_failures_total",
			Help: "Total number of failed frame sends per tier",
		}, []string{"tier"}),
	}
}

func tierLabel(tier domain.Tier) string {
	return strconv.Itoa(int(tier))
}

func (p *PrometheusCollector) RecordCaptureTick() {
	p.captureTicksTotal.Inc()
}

func (p *PrometheusCollector) RecordCaptureReadFailure() {
	p.captureReadFailuresTotal.Inc()
}

func (p *PrometheusCollector) RecordFrameEncoded(tier domain.Tier, duration time.Duration, size int) {
	p.framesEncodedTotal.WithLabelValues(tierLabel(tier)).Inc()
	p.encodeDuration.Observe(duration.Seconds())
	p.encodedFrameBytes.Observe(float64(size))
}

func (p *PrometheusCollector) RecordConnectionOpened(tier domain.Tier) {
	p.connectionsActive.WithLabelValues(tierLabel(tier)).Inc()
}

func (p *PrometheusCollector) RecordConnectionClosed(tier domain.Tier) {
	p.connectionsActive.WithLabelValues(tierLabel(tier)).Dec()
}

func (p *PrometheusCollector) RecordSubscriptionRejected() {
	p.subscriptionsRejected.Inc()
}

func (p *PrometheusCollector) RecordFrameSent(tier domain.Tier) {
	p.framesSentTotal.WithLabelValues(tierLabel(tier)).Inc()
}

func (p *PrometheusCollector) RecordFrameDropped(tier domain.Tier) {
	p.framesDroppedTotal.WithLabelValues(tierLabel(tier)).Inc()
}

func (p *PrometheusCollector) RecordSendFailure(tier domain.Tier) {
	p.sendFailuresTotal.WithLabelValues(tierLabel(tier)).Inc()
}
