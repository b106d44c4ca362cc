package conductor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagic/engagic/domain/cities"
)

func TestSyncThreshold(t *testing.T) {
	assert.Equal(t, 12*time.Hour, syncThreshold(8))
	assert.Equal(t, 12*time.Hour, syncThreshold(20))
	assert.Equal(t, 24*time.Hour, syncThreshold(4))
	assert.Equal(t, 24*time.Hour, syncThreshold(7))
	assert.Equal(t, 7*24*time.Hour, syncThreshold(3))
	assert.Equal(t, 7*24*time.Hour, syncThreshold(0))
}

func TestPriorityScoreNeverSynced(t *testing.T) {
	c := &Conductor{}
	city := &cities.City{Banana: "paloaltoCA", Vendor: cities.VendorPrimeGov}
	assert.Equal(t, float64(neverSyncedScore), c.priorityScore(context.Background(), city))
}

func TestMinDelay(t *testing.T) {
	assert.Equal(t, 3*time.Second, MinDelay(cities.VendorPrimeGov))
	assert.Equal(t, 3*time.Second, MinDelay(cities.VendorCivicClerk))
	assert.Equal(t, 3*time.Second, MinDelay(cities.VendorLegistar))
	assert.Equal(t, 4*time.Second, MinDelay(cities.VendorGranicus))
	assert.Equal(t, 4*time.Second, MinDelay(cities.VendorCivicPlus))
	assert.Equal(t, 4*time.Second, MinDelay(cities.VendorNovusAgenda))
	assert.Equal(t, 5*time.Second, MinDelay(cities.Vendor("somethingelse")))
}

func TestVendorLimiterSpacing(t *testing.T) {
	const delay = 50 * time.Millisecond
	limiter := newVendorLimiter(func(cities.Vendor) time.Duration { return delay }, 0)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, cities.VendorLegistar))
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, cities.VendorLegistar))
	assert.GreaterOrEqual(t, time.Since(start), delay-5*time.Millisecond)
}

func TestVendorLimiterIndependentLanes(t *testing.T) {
	limiter := newVendorLimiter(func(cities.Vendor) time.Duration { return time.Hour }, 0)
	ctx := context.Background()

	// First request on each lane is immediate.
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, cities.VendorLegistar))
	require.NoError(t, limiter.Wait(ctx, cities.VendorGranicus))
	assert.Less(t, time.Since(start), time.Second)
}

func TestVendorLimiterHonorsContext(t *testing.T) {
	limiter := newVendorLimiter(func(cities.Vendor) time.Duration { return time.Hour }, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Wait(ctx, cities.VendorLegistar))
	err := limiter.Wait(ctx, cities.VendorLegistar)
	assert.Error(t, err)
}
