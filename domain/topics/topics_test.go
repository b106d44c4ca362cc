package topics

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(slog.Default())
	require.NoError(t, err)
	return n
}

func TestNormalizeExactMatch(t *testing.T) {
	n := newTestNormalizer(t)

	assert.Equal(t, []string{"housing"}, n.Normalize([]string{"housing"}))
	assert.Equal(t, []string{"housing"}, n.Normalize([]string{"Affordable Housing"}))
	assert.Equal(t, []string{"transportation"}, n.Normalize([]string{"  Transit  "}))
	assert.Equal(t, []string{"public_safety"}, n.Normalize([]string{"Police"}))
}

func TestNormalizeSubstringFallback(t *testing.T) {
	n := newTestNormalizer(t)

	// synonym contained in the input
	assert.Equal(t, []string{"housing"}, n.Normalize([]string{"affordable housing bond program"}))
	// input contained in a synonym
	assert.Equal(t, []string{"zoning"}, n.Normalize([]string{"rezoning of 500 block"}))
}

func TestNormalizeUnknownKeptLowercased(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.Normalize([]string{"Quantum Devices"})
	assert.Equal(t, []string{"quantum devices"}, got)
}

func TestNormalizeDedupesAndSorts(t *testing.T) {
	n := newTestNormalizer(t)

	got := n.Normalize([]string{"zoning", "housing", "Affordable Housing", "land use"})
	assert.Equal(t, []string{"housing", "zoning"}, got)
}

func TestNormalizeSkipsEmpty(t *testing.T) {
	n := newTestNormalizer(t)

	assert.Empty(t, n.Normalize([]string{"", "   "}))
	assert.Empty(t, n.Normalize(nil))
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer(t)

	inputs := []string{"Affordable Housing", "transit", "bizarre new topic", "POLICE", "rent control"}
	once := n.Normalize(inputs)
	twice := n.Normalize(once)
	assert.Equal(t, once, twice)
}

func TestDisplayName(t *testing.T) {
	n := newTestNormalizer(t)

	assert.Equal(t, "Housing", n.DisplayName("housing"))
	assert.Equal(t, "Zoning & Land Use", n.DisplayName("zoning"))
	assert.Equal(t, "off-taxonomy", n.DisplayName("off-taxonomy"))
}
