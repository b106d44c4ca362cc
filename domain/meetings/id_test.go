package meetings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIDDeterministic(t *testing.T) {
	date := time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)
	a := GenerateID("cityofpaloalto", date, "City Council", "primegov")
	b := GenerateID("cityofpaloalto", date, "City Council", "primegov")
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestGenerateIDVariesByInput(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	base := GenerateID("cityofpaloalto", date, "City Council", "primegov")
	assert.NotEqual(t, base, GenerateID("cityofpaloalto", date, "Planning Commission", "primegov"))
	assert.NotEqual(t, base, GenerateID("cityofpaloalto", date.AddDate(0, 0, 1), "City Council", "primegov"))
	assert.NotEqual(t, base, GenerateID("othercity", date, "City Council", "primegov"))
}

func TestGenerateIDIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	assert.Equal(t,
		GenerateID("slug", morning, "City Council", "legistar"),
		GenerateID("slug", evening, "City Council", "legistar"))
}

func TestItemID(t *testing.T) {
	assert.Equal(t, "paloaltoCA_123_45", ItemID("paloaltoCA_123", "45", 7))
	assert.Equal(t, "paloaltoCA_123_item_7", ItemID("paloaltoCA_123", "", 7))
}
