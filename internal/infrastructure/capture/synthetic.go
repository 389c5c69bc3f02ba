package capture

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"camcast/internal/core/domain"
)

// SyntheticSource generates a moving test pattern so the server can run
// without a physical device. Real camera drivers plug into the same
// CaptureSource port.
type SyntheticSource struct {
	width  int
	height int

	seq    atomic.Uint64
	closed atomic.Bool
}

func NewSyntheticSource(width, height int) *SyntheticSource {
	return &SyntheticSource{width: width, height: height}
}

func (s *SyntheticSource) Read(ctx context.Context) (*domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, domain.ErrCaptureUnavailable
	}

	seq := s.seq.Add(1)
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	shift := uint8(seq % 256)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x) + shift,
				G: uint8(y) + shift,
				B: uint8(x+y) - shift,
				A: 255,
			})
		}
	}

	return &domain.RawFrame{
		Image:      img,
		Sequence:   seq,
		CapturedAt: time.Now(),
	}, nil
}

func (s *SyntheticSource) Release() error {
	s.closed.Store(true)
	return nil
}
