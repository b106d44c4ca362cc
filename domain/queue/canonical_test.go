package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPacketURLSingle(t *testing.T) {
	assert.Equal(t, "", CanonicalPacketURL(nil))
	assert.Equal(t, "https://example.gov/packet.pdf",
		CanonicalPacketURL([]string{"https://example.gov/packet.pdf"}))
}

func TestCanonicalPacketURLOrderIndependent(t *testing.T) {
	a := CanonicalPacketURL([]string{"https://x.gov/b.pdf", "https://x.gov/a.pdf"})
	b := CanonicalPacketURL([]string{"https://x.gov/a.pdf", "https://x.gov/b.pdf"})
	assert.Equal(t, a, b)
	assert.Equal(t, `["https://x.gov/a.pdf","https://x.gov/b.pdf"]`, a)
}

func TestExpandPacketURL(t *testing.T) {
	assert.Nil(t, ExpandPacketURL(""))
	assert.Equal(t, []string{"https://x.gov/a.pdf"}, ExpandPacketURL("https://x.gov/a.pdf"))
	assert.Equal(t, []string{"https://x.gov/a.pdf", "https://x.gov/b.pdf"},
		ExpandPacketURL(`["https://x.gov/a.pdf","https://x.gov/b.pdf"]`))
}

func TestExpandRoundTrips(t *testing.T) {
	urls := []string{"https://x.gov/c.pdf", "https://x.gov/a.pdf", "https://x.gov/b.pdf"}
	got := ExpandPacketURL(CanonicalPacketURL(urls))
	assert.Equal(t, []string{"https://x.gov/a.pdf", "https://x.gov/b.pdf", "https://x.gov/c.pdf"}, got)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 100, Priority(0))
	assert.Equal(t, 93, Priority(7))
	assert.Equal(t, 0, Priority(100))
	assert.Equal(t, 0, Priority(250))
}
