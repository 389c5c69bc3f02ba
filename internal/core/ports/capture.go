package ports

import (
	"context"

	"camcast/internal/core/domain"
)

// CaptureSource produces raw frames from a device at best effort.
//
// Read blocks until a frame is available or the context is cancelled. A
// transient bad read returns a plain error and the caller may try again on
// the next tick; a gone device returns an error wrapping
// domain.ErrCaptureUnavailable and the source will never recover.
//
// Release frees the underlying device. Callers must invoke it exactly once.
type CaptureSource interface {
	Read(ctx context.Context) (*domain.RawFrame, error)
	Release() error
}
