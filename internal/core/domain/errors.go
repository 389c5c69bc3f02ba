package domain

import "errors"

var (
	ErrTierOutOfRange     = errors.New("tier out of range")
	ErrCaptureUnavailable = errors.New("capture source unavailable")
)
