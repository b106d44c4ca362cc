package cities

import (
	"strings"
	"unicode"
)

// Banana derives the deterministic city identity key:
// lowercase alphanumerics of the name followed by the uppercased state.
// "Palo Alto", "CA" → "paloaltoCA".
func Banana(name, state string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	b.WriteString(strings.ToUpper(strings.TrimSpace(state)))
	return b.String()
}
