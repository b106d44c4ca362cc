package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagic/engagic/domain/meetings"
)

func TestAggregateTopics(t *testing.T) {
	lists := [][]string{
		{"housing", "zoning"},
		{"housing", "transportation"},
		{"budget", "public_safety"},
		{"housing"},
	}

	got := AggregateTopics(lists)
	assert.Equal(t, []string{"housing", "zoning", "transportation", "budget", "public_safety"}, got)
}

func TestAggregateTopicsEmpty(t *testing.T) {
	assert.Empty(t, AggregateTopics(nil))
	assert.Empty(t, AggregateTopics([][]string{{}, {""}}))
}

func TestAggregateTopicsFrequencyBeatsOrder(t *testing.T) {
	lists := [][]string{
		{"zoning"},
		{"housing"},
		{"housing"},
	}
	got := AggregateTopics(lists)
	assert.Equal(t, []string{"housing", "zoning"}, got)
}

func strPtr(s string) *string { return &s }

func TestPartitionItems(t *testing.T) {
	items := []*meetings.AgendaItem{
		{ID: "m_1", Title: "Ordinance amending the zoning code"},
		{ID: "m_2", Title: "Contract award", Summary: strPtr("already done")},
		{ID: "m_3", Title: "Proclamation honoring Arbor Day"},
		{ID: "m_4", Title: "October minutes", MatterType: strPtr("Minutes")},
		{ID: "m_5", Title: "Budget amendment", Summary: strPtr("")},
	}

	pending := partitionItems(items)
	require.Len(t, pending, 2)
	assert.Equal(t, "m_1", pending[0].ID)
	assert.Equal(t, "m_5", pending[1].ID)
}

func TestProcessingError(t *testing.T) {
	err := &ProcessingError{Reason: "extracted text failed quality heuristics"}
	assert.Contains(t, err.Error(), "requires premium tier")
	assert.True(t, IsProcessingError(err))
	assert.False(t, IsProcessingError(assert.AnError))
}
