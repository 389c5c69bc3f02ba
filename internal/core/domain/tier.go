package domain

import "fmt"

// Tier is a discrete quality level identified by its JPEG compression factor.
// Higher means larger payloads and better fidelity. Tiers are opaque keys:
// they are compared and stepped, never interpolated.
type Tier int

// TierBounds is the inclusive range of tiers a server accepts.
type TierBounds struct {
	Min Tier
	Max Tier
}

// DefaultTierBounds matches the reference range of JPEG quality factors.
var DefaultTierBounds = TierBounds{Min: 30, Max: 95}

// Contains reports whether t is within the bounds.
func (b TierBounds) Contains(t Tier) bool {
	return t >= b.Min && t <= b.Max
}

// Clamp returns t forced into the bounds.
func (b TierBounds) Clamp(t Tier) Tier {
	if t < b.Min {
		return b.Min
	}
	if t > b.Max {
		return b.Max
	}
	return t
}

func (b TierBounds) Validate() error {
	if b.Min <= 0 {
		return fmt.Errorf("tier bounds: min must be > 0, got %d", b.Min)
	}
	if b.Min > b.Max {
		return fmt.Errorf("tier bounds: min %d must be <= max %d", b.Min, b.Max)
	}
	return nil
}
