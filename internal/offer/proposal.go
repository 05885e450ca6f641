package offer

import (
	"context"
	"sort"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

// proposalTTL is how long a generated proposal stays actionable before the
// expire_proposals job retires it.
const proposalTTL = 30 * 24 * time.Hour

// GenerateProposal builds a proposal document from a lead's latest completed
// analysis. Idempotent on (leadID, type): an existing live proposal of the
// same type is returned instead of creating a duplicate.
func (s *Service) GenerateProposal(ctx context.Context, leadID, tenantID, proposalType, analysisID string) (*domain.Proposal, error) {
	if proposalType == "" {
		return nil, domain.E(domain.KindInvalidInput, "proposal type is required")
	}
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if tenantID != "" && tenantID != lead.TenantID {
		return nil, domain.Ef(domain.KindInvalidInput,
			"lead %s does not belong to tenant %s", leadID, tenantID)
	}

	if existing, err := s.repo.FindProposalByLeadAndType(ctx, leadID, proposalType); err != nil {
		return nil, err
	} else if existing != nil {
		s.log.Debug("proposal already exists", "lead_id", leadID, "type", proposalType)
		return existing, nil
	}

	analysis, err := s.repo.LatestAnalysis(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if analysis == nil || analysis.Status != domain.AnalysisCompleted {
		return nil, domain.Ef(domain.KindInvalidInput,
			"lead %s has no completed analysis to propose from", leadID)
	}
	if analysisID != "" && analysisID != analysis.ID {
		return nil, domain.Ef(domain.KindInvalidInput,
			"analysis %s is not the latest for lead %s", analysisID, leadID)
	}
	results, err := s.repo.ResultsForAnalysis(ctx, analysis.ID)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(proposalTTL)
	p := &domain.Proposal{
		TenantID:    lead.TenantID,
		LeadID:      lead.ID,
		AnalysisID:  analysis.ID,
		Type:        proposalType,
		Industry:    analysis.Industry,
		Status:      domain.ProposalReady,
		Content:     proposalContent(analysis, results),
		AIGenerated: true,
		Customized:  false,
		Recyclable:  true,
		ExpiresAt:   &expiresAt,
	}
	if err := s.repo.CreateProposal(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("proposal generated",
		"proposal_id", p.ID, "lead_id", leadID, "type", proposalType, "score", analysis.TotalScore)
	return p, nil
}

// proposalContent flattens the analysis into the template bindings the
// composer consumes later.
func proposalContent(analysis *domain.Analysis, results []domain.AnalysisResult) map[string]interface{} {
	var issues []domain.Issue
	categoryScores := map[string]interface{}{}
	for _, r := range results {
		if r.Status != domain.AnalysisCompleted {
			continue
		}
		categoryScores[r.Category] = r.Score
		issues = append(issues, r.Issues...)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return severityWeight(issues[i].Severity) > severityWeight(issues[j].Severity)
	})
	top := issues
	if len(top) > 5 {
		top = top[:5]
	}
	topCodes := make([]interface{}, 0, len(top))
	for _, is := range top {
		topCodes = append(topCodes, map[string]interface{}{
			"code":     is.Code,
			"severity": string(is.Severity),
		})
	}
	return map[string]interface{}{
		"score":           analysis.TotalScore,
		"issue_count":     len(issues),
		"category_scores": categoryScores,
		"top_issues":      topCodes,
		"is_eshop":        analysis.IsEshop,
	}
}

func severityWeight(s domain.IssueSeverity) int {
	switch s {
	case domain.SeverityCritical:
		return 5
	case domain.SeverityHigh:
		return 4
	case domain.SeverityMedium:
		return 3
	case domain.SeverityLow:
		return 2
	default:
		return 1
	}
}
