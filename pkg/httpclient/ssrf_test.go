package httpclient

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	require.NotNil(t, ip)
	return ip
}

func TestValidateURLRejectsBadSchemes(t *testing.T) {
	assert.Error(t, ValidateURL("ftp://example.gov/agenda.pdf"))
	assert.Error(t, ValidateURL("file:///etc/passwd"))
	assert.Error(t, ValidateURL("javascript:alert(1)"))
}

func TestValidateURLRejectsOverlongURLs(t *testing.T) {
	long := "https://example.gov/" + strings.Repeat("a", maxURLLength)
	assert.Error(t, ValidateURL(long))
}

func TestValidateURLRejectsMissingHost(t *testing.T) {
	assert.Error(t, ValidateURL("https:///agenda.pdf"))
}

func TestValidateURLRejectsLoopback(t *testing.T) {
	assert.Error(t, ValidateURL("http://127.0.0.1/admin"))
	assert.Error(t, ValidateURL("http://localhost:8080/"))
}

func TestValidateURLRejectsPrivateRanges(t *testing.T) {
	assert.Error(t, ValidateURL("http://10.0.0.5/agenda.pdf"))
	assert.Error(t, ValidateURL("http://192.168.1.1/"))
	assert.Error(t, ValidateURL("http://169.254.169.254/latest/meta-data/"))
}

func TestCheckIPAllowsPublicAddresses(t *testing.T) {
	assert.NoError(t, checkIP(parseIP(t, "93.184.216.34")))
	assert.NoError(t, checkIP(parseIP(t, "2606:2800:220:1:248:1893:25c8:1946")))
}
