package services

import (
	"image"
	"image/color"
	"testing"
	"time"

	"camcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRawFrame(seq uint64) *domain.RawFrame {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: uint8(seq), A: 255})
		}
	}
	return &domain.RawFrame{Image: img, Sequence: seq, CapturedAt: time.Now()}
}

func TestFrameCache_EncodePublishesLatest(t *testing.T) {
	c := NewFrameCache()

	_, ok := c.Latest(50)
	assert.False(t, ok)

	frame, err := c.Encode(testRawFrame(1), 50)
	require.NoError(t, err)
	assert.Equal(t, domain.Tier(50), frame.Tier)
	assert.NotEmpty(t, frame.Data)

	latest, ok := c.Latest(50)
	require.True(t, ok)
	assert.Equal(t, frame, latest)
}

func TestFrameCache_OverwritesNeverQueues(t *testing.T) {
	c := NewFrameCache()

	first, err := c.Encode(testRawFrame(1), 50)
	require.NoError(t, err)
	second, err := c.Encode(testRawFrame(2), 50)
	require.NoError(t, err)

	assert.Greater(t, second.Sequence, first.Sequence)

	latest, ok := c.Latest(50)
	require.True(t, ok)
	assert.Equal(t, second.Sequence, latest.Sequence)
}

func TestFrameCache_TiersAreIndependent(t *testing.T) {
	c := NewFrameCache()

	raw := testRawFrame(1)
	low, err := c.Encode(raw, 30)
	require.NoError(t, err)
	high, err := c.Encode(raw, 95)
	require.NoError(t, err)

	// Higher quality factor must not compress the same frame smaller.
	assert.GreaterOrEqual(t, len(high.Data), len(low.Data))

	lowLatest, ok := c.Latest(30)
	require.True(t, ok)
	assert.Equal(t, low, lowLatest)

	highLatest, ok := c.Latest(95)
	require.True(t, ok)
	assert.Equal(t, high, highLatest)
}

func TestFrameCache_Drop(t *testing.T) {
	c := NewFrameCache()

	_, err := c.Encode(testRawFrame(1), 50)
	require.NoError(t, err)

	c.Drop(50)
	_, ok := c.Latest(50)
	assert.False(t, ok)
}
