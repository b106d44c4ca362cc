package conductor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/engagic/engagic/domain/cities"
)

// Per-vendor minimum spacing between requests. APIs tolerate more than
// scraped sites; anything unrecognized gets the slowest lane.
var vendorMinDelay = map[cities.Vendor]time.Duration{
	cities.VendorPrimeGov:    3 * time.Second,
	cities.VendorCivicClerk:  3 * time.Second,
	cities.VendorLegistar:    3 * time.Second,
	cities.VendorGranicus:    4 * time.Second,
	cities.VendorCivicPlus:   4 * time.Second,
	cities.VendorNovusAgenda: 4 * time.Second,
}

const unknownVendorDelay = 5 * time.Second

// MinDelay returns the configured spacing for a vendor
func MinDelay(vendor cities.Vendor) time.Duration {
	if d, ok := vendorMinDelay[vendor]; ok {
		return d
	}
	return unknownVendorDelay
}

// vendorLimiter enforces per-vendor request spacing plus up to jitterMax of
// random extra wait. One limiter per vendor; vendor groups are processed
// sequentially, so no cross-group coordination is needed.
type vendorLimiter struct {
	delayFor  func(cities.Vendor) time.Duration
	jitterMax time.Duration

	mu       sync.Mutex
	limiters map[cities.Vendor]*rate.Limiter
}

func newVendorLimiter(delayFor func(cities.Vendor) time.Duration, jitterMax time.Duration) *vendorLimiter {
	return &vendorLimiter{
		delayFor:  delayFor,
		jitterMax: jitterMax,
		limiters:  make(map[cities.Vendor]*rate.Limiter),
	}
}

// Wait blocks until the vendor's next request slot
func (l *vendorLimiter) Wait(ctx context.Context, vendor cities.Vendor) error {
	l.mu.Lock()
	limiter, ok := l.limiters[vendor]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.delayFor(vendor)), 1)
		l.limiters[vendor] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	if l.jitterMax > 0 {
		jitter := time.Duration(rand.Int63n(int64(l.jitterMax)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter):
		}
	}
	return nil
}
