package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFPSWindow_EmptyWindowIsZero(t *testing.T) {
	w := NewFPSWindow(5 * time.Second)
	assert.Zero(t, w.FPS(time.Now()))
	assert.Zero(t, w.Len())
}

func TestFPSWindow_CountsArrivalsOverWindow(t *testing.T) {
	w := NewFPSWindow(5 * time.Second)
	now := time.Now()

	// 170 frames over the last 5 seconds: 34 fps.
	for i := 0; i < 170; i++ {
		w.Record(now.Add(-time.Duration(i) * 29 * time.Millisecond))
	}

	assert.InDelta(t, 34.0, w.FPS(now), 0.01)
}

func TestFPSWindow_PrunesOldArrivals(t *testing.T) {
	w := NewFPSWindow(5 * time.Second)
	now := time.Now()

	w.Record(now.Add(-10 * time.Second))
	w.Record(now.Add(-6 * time.Second))
	w.Record(now.Add(-2 * time.Second))
	w.Record(now.Add(-1 * time.Second))

	assert.InDelta(t, 2.0/5.0, w.FPS(now), 0.001)
	assert.Equal(t, 2, w.Len())
}

func TestFPSWindow_ArrivalExactlyAtCutoffIsPruned(t *testing.T) {
	w := NewFPSWindow(5 * time.Second)
	now := time.Now()

	w.Record(now.Add(-5 * time.Second))
	w.Record(now)

	assert.Equal(t, 1.0/5.0, w.FPS(now))
}

func TestFPSWindow_RateDecaysWhenFramesStop(t *testing.T) {
	w := NewFPSWindow(5 * time.Second)
	start := time.Now()

	for i := 0; i < 50; i++ {
		w.Record(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	// The i=0 arrival sits exactly on the cutoff and is pruned.
	assert.InDelta(t, 9.8, w.FPS(start.Add(5*time.Second)), 0.001)
	assert.Zero(t, w.FPS(start.Add(time.Hour)))
}
