package ports

import "camcast/internal/core/domain"

// DemandRegistry tracks, per tier, how many live connections need it.
// Increment and Decrement pair exactly once per connection lifecycle.
type DemandRegistry interface {
	Increment(tier domain.Tier)
	Decrement(tier domain.Tier)
	// ActiveTiers returns a snapshot of tiers with demand > 0. The snapshot
	// is taken under a lock scoped to the copy itself, never across an
	// encode or a send.
	ActiveTiers() []domain.Tier
	Count(tier domain.Tier) int
}

// FrameCache compresses raw frames per tier and retains the single most
// recent encoded frame for each.
type FrameCache interface {
	Encode(raw *domain.RawFrame, tier domain.Tier) (*domain.EncodedFrame, error)
	Latest(tier domain.Tier) (*domain.EncodedFrame, bool)
}

// Dispatcher delivers an encoded frame to every connection subscribed to
// its tier. Delivery must not block the caller; a slow or failed connection
// is that connection's problem alone.
type Dispatcher interface {
	Dispatch(frame *domain.EncodedFrame)
}
