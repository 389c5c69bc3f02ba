package services

import (
	"sync"

	"camcast/internal/core/domain"
)

// DemandRegistry counts live subscriptions per tier. It is mutated by many
// connection handlers and read every tick by the capture loop; the mutex is
// held only for the counter mutation or the snapshot copy.
type DemandRegistry struct {
	mu     sync.RWMutex
	counts map[domain.Tier]int
}

func NewDemandRegistry() *DemandRegistry {
	return &DemandRegistry{
		counts: make(map[domain.Tier]int),
	}
}

func (r *DemandRegistry) Increment(tier domain.Tier) {
	r.mu.Lock()
	r.counts[tier]++
	r.mu.Unlock()
}

// Decrement lowers the count for tier, deleting the entry at zero so that
// ActiveTiers stays proportional to tiers actually in use. A decrement on a
// tier with no demand is a no-op.
func (r *DemandRegistry) Decrement(tier domain.Tier) {
	r.mu.Lock()
	if n := r.counts[tier]; n > 1 {
		r.counts[tier] = n - 1
	} else {
		delete(r.counts, tier)
	}
	r.mu.Unlock()
}

// ActiveTiers returns a snapshot of every tier with demand > 0.
func (r *DemandRegistry) ActiveTiers() []domain.Tier {
	r.mu.RLock()
	tiers := make([]domain.Tier, 0, len(r.counts))
	for tier := range r.counts {
		tiers = append(tiers, tier)
	}
	r.mu.RUnlock()
	return tiers
}

func (r *DemandRegistry) Count(tier domain.Tier) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[tier]
}

// Snapshot returns a copy of all per-tier counts, for the stats endpoint.
func (r *DemandRegistry) Snapshot() map[domain.Tier]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.Tier]int, len(r.counts))
	for tier, n := range r.counts {
		counts[tier] = n
	}
	return counts
}
