package queue

import (
	"encoding/json"
	"sort"
)

// CanonicalPacketURL collapses a packet URL (possibly a list of URLs) into
// the stable queue/cache key. Lists are sorted then JSON-serialized so two
// orderings of the same URLs hit the same row.
func CanonicalPacketURL(urls []string) string {
	switch len(urls) {
	case 0:
		return ""
	case 1:
		return urls[0]
	}
	sorted := make([]string, len(urls))
	copy(sorted, urls)
	sort.Strings(sorted)
	data, _ := json.Marshal(sorted)
	return string(data)
}

// ExpandPacketURL reverses CanonicalPacketURL: a JSON array form returns
// its member URLs, anything else is a single URL.
func ExpandPacketURL(canonical string) []string {
	if canonical == "" {
		return nil
	}
	if canonical[0] == '[' {
		var urls []string
		if err := json.Unmarshal([]byte(canonical), &urls); err == nil {
			return urls
		}
	}
	return []string{canonical}
}

// Priority computes queue priority from meeting age: max(0, 100 - days_old).
// Higher is served first; meetings older than 100 days compete at zero.
func Priority(daysOld int) int {
	p := 100 - daysOld
	if p < 0 {
		return 0
	}
	return p
}
