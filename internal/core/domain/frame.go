package domain

import (
	"image"
	"time"
)

// RawFrame is one uncompressed image as read from a capture source.
type RawFrame struct {
	Image      image.Image
	Sequence   uint64
	CapturedAt time.Time
}

// EncodedFrame is the most recent compressed frame for one tier. Exactly one
// live EncodedFrame exists per active tier; newer frames overwrite older
// ones, they are never queued.
type EncodedFrame struct {
	Tier       Tier
	Sequence   uint64
	Data       []byte
	CapturedAt time.Time
}

// ConnectionID identifies one live viewer connection.
type ConnectionID string
