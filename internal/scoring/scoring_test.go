package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

func TestMapStatus(t *testing.T) {
	th := domain.DefaultScoringThresholds() // 60 qualified, 80 hot, max 2 criticals, +10 eshop

	tests := []struct {
		name      string
		score     int
		criticals int
		isEshop   bool
		want      domain.LeadStatus
	}{
		{"hot on high score", 85, 0, false, domain.LeadQualifiedHot},
		{"qualified mid score", 65, 1, false, domain.LeadQualified},
		{"nurture low score", 40, 0, false, domain.LeadNurture},
		{"eshop bonus lifts to hot", 72, 0, true, domain.LeadQualifiedHot},
		{"eshop bonus lifts to qualified", 52, 0, true, domain.LeadQualified},
		{"too many criticals caps at nurture", 90, 3, false, domain.LeadNurture},
		{"criticals plus low score disqualifies", 30, 5, false, domain.LeadDisqualified},
		{"boundary: exactly qualified", 60, 2, false, domain.LeadQualified},
		{"boundary: exactly hot", 80, 0, false, domain.LeadQualifiedHot},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MapStatus(tc.score, tc.criticals, tc.isEshop, th)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMapStatusIsDeterministic(t *testing.T) {
	th := domain.DefaultScoringThresholds()
	first := MapStatus(61, 1, true, th)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, MapStatus(61, 1, true, th))
	}
}

func TestShouldApply(t *testing.T) {
	assert.True(t, ShouldApply(domain.LeadNew))
	assert.True(t, ShouldApply(domain.LeadAnalyzing))
	assert.True(t, ShouldApply(domain.LeadQualified))
	assert.True(t, ShouldApply(domain.LeadNurture))
	assert.True(t, ShouldApply(domain.LeadDisqualified))

	assert.False(t, ShouldApply(domain.LeadContacted))
	assert.False(t, ShouldApply(domain.LeadResponded))
	assert.False(t, ShouldApply(domain.LeadConverted))
}
