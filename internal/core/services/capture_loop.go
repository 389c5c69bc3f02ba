package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"camcast/internal/core/domain"
	"camcast/internal/core/ports"

	"go.uber.org/zap"
)

// CaptureLoop is the timing authority of the pipeline. It pulls one frame
// per tick from the capture source, encodes it for every tier with demand
// and hands the results to the dispatcher. The loop itself never touches
// network I/O; dispatch is a non-blocking handoff.
type CaptureLoop struct {
	source     ports.CaptureSource
	demand     ports.DemandRegistry
	cache      ports.FrameCache
	dispatcher ports.Dispatcher
	metrics    ports.MetricsRecorder
	logger     *zap.SugaredLogger

	interval time.Duration

	releaseOnce sync.Once
	releaseErr  error
}

func NewCaptureLoop(
	source ports.CaptureSource,
	demand ports.DemandRegistry,
	cache ports.FrameCache,
	dispatcher ports.Dispatcher,
	metrics ports.MetricsRecorder,
	targetRate int,
	logger *zap.SugaredLogger,
) *CaptureLoop {
	return &CaptureLoop{
		source:     source,
		demand:     demand,
		cache:      cache,
		dispatcher: dispatcher,
		metrics:    metrics,
		interval:   time.Second / time.Duration(targetRate),
		logger:     logger,
	}
}

// Run drives the loop until the context is cancelled or the capture source
// reports permanent unavailability. The capture source is released exactly
// once no matter how the loop exits. Returns nil on cancellation.
func (l *CaptureLoop) Run(ctx context.Context) error {
	defer l.release()

	l.logger.Infow("capture loop started", "interval", l.interval)

	next := time.Now()
	for {
		raw, err := l.source.Read(ctx)
		switch {
		case err == nil:
			l.encodeTick(raw)

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			l.logger.Info("capture loop stopped")
			return nil

		case errors.Is(err, domain.ErrCaptureUnavailable):
			l.logger.Errorw("capture source permanently unavailable", "error", err)
			return err

		default:
			// Transient bad read: skip this tick, resume on the next one.
			l.metrics.RecordCaptureReadFailure()
			l.logger.Debugw("transient capture read failure", "error", err)
		}

		l.metrics.RecordCaptureTick()

		// Suspend until the absolute next-tick deadline. An overrun tick
		// proceeds immediately and the schedule restarts from now, so a
		// slow tick never causes a catch-up burst.
		next = next.Add(l.interval)
		now := time.Now()
		if wait := next.Sub(now); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				l.logger.Info("capture loop stopped")
				return nil
			case <-timer.C:
			}
		} else {
			next = now
			select {
			case <-ctx.Done():
				l.logger.Info("capture loop stopped")
				return nil
			default:
			}
		}
	}
}

// encodeTick compresses raw for every tier active right now and dispatches
// each result. Demand is re-checked on every tick: a tier with zero demand
// costs no CPU. Per-tier encodes run concurrently, bounded by the number of
// distinct tiers.
func (l *CaptureLoop) encodeTick(raw *domain.RawFrame) {
	tiers := l.demand.ActiveTiers()
	if len(tiers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, tier := range tiers {
		wg.Add(1)
		go func(tier domain.Tier) {
			defer wg.Done()

			start := time.Now()
			frame, err := l.cache.Encode(raw, tier)
			if err != nil {
				l.logger.Warnw("frame encode failed", "tier", tier, "error", err)
				return
			}
			l.metrics.RecordFrameEncoded(tier, time.Since(start), len(frame.Data))

			l.dispatcher.Dispatch(frame)
		}(tier)
	}
	wg.Wait()
}

func (l *CaptureLoop) release() {
	l.releaseOnce.Do(func() {
		l.releaseErr = l.source.Release()
		if l.releaseErr != nil {
			l.logger.Errorw("capture source release failed", "error", l.releaseErr)
		} else {
			l.logger.Info("capture source released")
		}
	})
}
