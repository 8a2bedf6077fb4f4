package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPExtractorURL_MatchesEmbeddedIPv4(t *testing.T) {
	m := IPExtractorURL.FindString("power status for bmc at 10.0.0.20 ok")
	assert.Equal(t, "10.0.0.20", m)
}

func TestIPExtractorURL_RejectsOutOfRangeOctet(t *testing.T) {
	assert.False(t, IPExtractorURL.MatchString("999.999.999.999"))
}

func TestIPExtractorIdentity_MatchesWholeInput(t *testing.T) {
	m := IPExtractorIdentity.FindStringSubmatch("10.0.0.20")
	if assert.Len(t, m, 2) {
		assert.Equal(t, "10.0.0.20", m[1])
	}
}

func TestNewIPExtractor_SetsFieldAndPattern(t *testing.T) {
	e := NewIPExtractor("power_address", IPExtractorURL)
	assert.Equal(t, "power_address", e.Field)
	assert.Same(t, IPExtractorURL, e.Pattern)
}
