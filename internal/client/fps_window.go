package client

import "time"

// FPSWindow is the sliding set of frame-arrival timestamps used to estimate
// delivered throughput. It belongs to exactly one controller session and is
// discarded on migration; not safe for concurrent use.
type FPSWindow struct {
	window   time.Duration
	arrivals []time.Time
}

func NewFPSWindow(window time.Duration) *FPSWindow {
	return &FPSWindow{window: window}
}

// Record appends one frame-arrival timestamp.
func (w *FPSWindow) Record(t time.Time) {
	w.arrivals = append(w.arrivals, t)
}

// FPS prunes timestamps older than the window and returns the delivered
// frame rate: arrivals in the window divided by the window length.
func (w *FPSWindow) FPS(now time.Time) float64 {
	w.prune(now)
	return float64(len(w.arrivals)) / w.window.Seconds()
}

// Len returns the number of arrivals currently retained.
func (w *FPSWindow) Len() int {
	return len(w.arrivals)
}

func (w *FPSWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.arrivals) && !w.arrivals[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.arrivals = append(w.arrivals[:0], w.arrivals[i:]...)
	}
}
