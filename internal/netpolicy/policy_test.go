package netpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_BlocksAnalyticsBeacon(t *testing.T) {
	p := New()

	assert.Equal(t, Block, p.Decide(AnalyticsBeacon+"=123&x=1"))
	assert.Equal(t, Continue, p.Decide("https://staticw2.yotpo.com/batch/app_key/abc"))
	assert.Equal(t, Continue, p.Decide("https://p.yotpo.com/i?e=se&se_ca=reviews&se_ac=clicked"))

	blocked, allowed := p.Stats()
	assert.Equal(t, int64(1), blocked)
	assert.Equal(t, int64(2), allowed)
}

func TestDecide_ExtraPatterns(t *testing.T) {
	p := New("https://www.google-analytics.com/", "  ")

	assert.Len(t, p.Patterns(), 2)
	assert.Equal(t, Block, p.Decide("https://www.google-analytics.com/collect?v=1"))
	assert.Equal(t, "block", Block.String())
	assert.Equal(t, "continue", Continue.String())
}
