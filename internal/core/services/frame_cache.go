package services

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"sync"
	"sync/atomic"

	"camcast/internal/core/domain"
)

// FrameCache compresses raw frames into per-tier JPEG payloads and keeps
// exactly one most-recent encoded frame per tier. Encoding itself holds no
// lock; the slot swap is the only guarded operation, so readers never wait
// out an encode.
type FrameCache struct {
	mu     sync.RWMutex
	latest map[domain.Tier]*domain.EncodedFrame

	seq atomic.Uint64
}

func NewFrameCache() *FrameCache {
	return &FrameCache{
		latest: make(map[domain.Tier]*domain.EncodedFrame),
	}
}

// Encode compresses raw at the tier's quality factor, publishes the result
// as the tier's latest frame and returns it. Compression is deterministic
// in the tier alone.
func (c *FrameCache) Encode(raw *domain.RawFrame, tier domain.Tier) (*domain.EncodedFrame, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raw.Image, &jpeg.Options{Quality: int(tier)}); err != nil {
		return nil, fmt.Errorf("jpeg encode at quality %d: %w", tier, err)
	}

	frame := &domain.EncodedFrame{
		Tier:       tier,
		Sequence:   c.seq.Add(1),
		Data:       buf.Bytes(),
		CapturedAt: raw.CapturedAt,
	}

	c.mu.Lock()
	c.latest[tier] = frame
	c.mu.Unlock()

	return frame, nil
}

// Latest returns the most recent encoded frame for tier, if any. Frames are
// immutable once published, so the returned pointer is safe to share.
func (c *FrameCache) Latest(tier domain.Tier) (*domain.EncodedFrame, bool) {
	c.mu.RLock()
	frame, ok := c.latest[tier]
	c.mu.RUnlock()
	return frame, ok
}

// Drop discards the cached frame for a tier. Called when a tier loses its
// last subscriber so stale payloads do not outlive demand.
func (c *FrameCache) Drop(tier domain.Tier) {
	c.mu.Lock()
	delete(c.latest, tier)
	c.mu.Unlock()
}
