package meetings

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GenerateID builds the deterministic fallback meeting id for vendors that
// do not supply one: an 8-char hash over (slug, date, title, type). The same
// inputs must hash identically across re-syncs.
func GenerateID(slug string, date time.Time, title, meetingType string) string {
	var day string
	if !date.IsZero() {
		day = date.Format("2006-01-02")
	}
	key := strings.Join([]string{slug, day, strings.TrimSpace(title), meetingType}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}

// ItemID builds the stored agenda-item id. Vendor-supplied item ids take
// precedence; parser-derived items fall back to the sequence form.
func ItemID(meetingID, vendorItemID string, sequence int) string {
	if vendorItemID != "" {
		return fmt.Sprintf("%s_%s", meetingID, vendorItemID)
	}
	return fmt.Sprintf("%s_item_%d", meetingID, sequence)
}
