package processor

import (
	"sort"

	"github.com/engagic/engagic/domain/filters"
)

// AggregateTopics ranks item topics into the meeting-level list: count by
// frequency, sort descending, ties broken by first appearance across the
// item lists.
func AggregateTopics(topicLists [][]string) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0

	for _, list := range topicLists {
		for _, topic := range list {
			if topic == "" {
				continue
			}
			if _, ok := counts[topic]; !ok {
				firstSeen[topic] = order
				order++
			}
			counts[topic]++
		}
	}

	out := make([]string, 0, len(counts))
	for topic := range counts {
		out = append(out, topic)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return firstSeen[out[i]] < firstSeen[out[j]]
	})
	return out
}

func shouldSkipProcessing(title, matterType string) bool {
	return filters.ShouldSkipProcessing(title, matterType) || filters.ShouldSkipMatterType(matterType)
}
