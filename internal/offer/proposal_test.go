package offer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

func seedCompletedAnalysis(repo *mockRepo, leadID string) *domain.Analysis {
	now := time.Now()
	a := &domain.Analysis{
		ID:             repo.id(),
		LeadID:         leadID,
		SequenceNumber: 1,
		Status:         domain.AnalysisCompleted,
		TotalScore:     61,
		Industry:       "restaurant",
		StartedAt:      now.Add(-time.Minute),
		CompletedAt:    &now,
	}
	repo.analyses[a.ID] = a
	repo.results[a.ID] = []domain.AnalysisResult{
		{
			AnalysisID: a.ID,
			Category:   "seo",
			Status:     domain.AnalysisCompleted,
			Score:      55,
			Issues: []domain.Issue{
				{Code: "MISSING_META_DESCRIPTION", Severity: domain.SeverityHigh},
				{Code: "MISSING_TITLE", Severity: domain.SeverityCritical},
			},
		},
		{
			AnalysisID: a.ID,
			Category:   "performance",
			Status:     domain.AnalysisCompleted,
			Score:      70,
			Issues:     []domain.Issue{{Code: "SLOW_RESPONSE", Severity: domain.SeverityMedium}},
		},
		{
			AnalysisID: a.ID,
			Category:   "security",
			Status:     domain.AnalysisFailed,
			Issues:     []domain.Issue{{Code: "SHOULD_BE_IGNORED", Severity: domain.SeverityCritical}},
		},
	}
	return a
}

func TestGenerateProposalFromLatestAnalysis(t *testing.T) {
	repo := newMockRepo()
	repo.leads["L1"] = &domain.Lead{ID: "L1", TenantID: "T1", Domain: "firma.cz"}
	analysis := seedCompletedAnalysis(repo, "L1")
	svc := testService(repo)

	p, err := svc.GenerateProposal(context.Background(), "L1", "T1", "web_audit", "")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, domain.ProposalReady, p.Status)
	assert.Equal(t, analysis.ID, p.AnalysisID)
	assert.Equal(t, "restaurant", p.Industry)
	assert.True(t, p.AIGenerated)
	assert.True(t, p.Recyclable)
	assert.False(t, p.Customized)
	require.NotNil(t, p.ExpiresAt)
	assert.True(t, p.ExpiresAt.After(time.Now().Add(29*24*time.Hour)))

	assert.Equal(t, 61, p.Content["score"])
	assert.Equal(t, 3, p.Content["issue_count"])
	scores, ok := p.Content["category_scores"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 55, scores["seo"])
	assert.Equal(t, 70, scores["performance"])
	assert.NotContains(t, scores, "security")

	top, ok := p.Content["top_issues"].([]interface{})
	require.True(t, ok)
	require.Len(t, top, 3)
	first := top[0].(map[string]interface{})
	assert.Equal(t, "MISSING_TITLE", first["code"])
}

func TestGenerateProposalIsIdempotent(t *testing.T) {
	repo := newMockRepo()
	repo.leads["L1"] = &domain.Lead{ID: "L1", TenantID: "T1", Domain: "firma.cz"}
	seedCompletedAnalysis(repo, "L1")
	svc := testService(repo)

	first, err := svc.GenerateProposal(context.Background(), "L1", "T1", "web_audit", "")
	require.NoError(t, err)
	second, err := svc.GenerateProposal(context.Background(), "L1", "T1", "web_audit", "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.proposals, 1)
}

func TestGenerateProposalRequiresCompletedAnalysis(t *testing.T) {
	repo := newMockRepo()
	repo.leads["L1"] = &domain.Lead{ID: "L1", TenantID: "T1", Domain: "firma.cz"}
	svc := testService(repo)

	_, err := svc.GenerateProposal(context.Background(), "L1", "T1", "web_audit", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestGenerateProposalRejectsStaleAnalysisID(t *testing.T) {
	repo := newMockRepo()
	repo.leads["L1"] = &domain.Lead{ID: "L1", TenantID: "T1", Domain: "firma.cz"}
	seedCompletedAnalysis(repo, "L1")
	svc := testService(repo)

	_, err := svc.GenerateProposal(context.Background(), "L1", "T1", "web_audit", "A-old")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestGenerateProposalChecksTenantOwnership(t *testing.T) {
	repo := newMockRepo()
	repo.leads["L1"] = &domain.Lead{ID: "L1", TenantID: "T1", Domain: "firma.cz"}
	seedCompletedAnalysis(repo, "L1")
	svc := testService(repo)

	_, err := svc.GenerateProposal(context.Background(), "L1", "T2", "web_audit", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}
