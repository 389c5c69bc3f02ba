package ports

import (
	"time"

	"camcast/internal/core/domain"
)

// MetricsRecorder receives operational events from the capture loop and the
// connection hub. Implementations must be safe for concurrent use and must
// never block the caller.
type MetricsRecorder interface {
	RecordCaptureTick()
	RecordCaptureReadFailure()
	RecordFrameEncoded(tier domain.Tier, duration time.Duration, size int)

	RecordConnectionOpened(tier domain.Tier)
	RecordConnectionClosed(tier domain.Tier)
	RecordSubscriptionRejected()

	RecordFrameSent(tier domain.Tier)
	RecordFrameDropped(tier domain.Tier)
	RecordSendFailure(tier domain.Tier)
}
