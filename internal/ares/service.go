package ares

import (
	"context"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// Repository is the lead-side persistence the sync needs.
type Repository interface {
	// UpdateCompanyByICO writes register fields onto every lead carrying the
	// ICO. Returns the number of leads touched.
	UpdateCompanyByICO(ctx context.Context, ico string, c *Company) (int, error)
}

// Service syncs company data from the register onto leads.
type Service struct {
	client Client
	repo   Repository
	log    *logger.Logger
}

// NewService creates the register sync service.
func NewService(client Client, repo Repository) *Service {
	return &Service{client: client, repo: repo, log: logger.With("ares")}
}

// SyncReport summarizes one sync_company_by_ico run.
type SyncReport struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// SyncByICO looks up each ICO and updates matching leads. Invalid and
// unknown ICOs are skipped; a register outage aborts the run so the job
// retries the whole batch. Re-running a synced ICO is a harmless overwrite.
func (s *Service) SyncByICO(ctx context.Context, icos []string) (*SyncReport, error) {
	report := &SyncReport{}
	for _, ico := range icos {
		if !ValidICO(ico) {
			s.log.Warn("skipping invalid ico", "ico", ico)
			report.Skipped++
			continue
		}
		company, err := s.client.Lookup(ctx, ico)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				s.log.Warn("ico not in register", "ico", ico)
				report.Skipped++
				continue
			}
			return report, err
		}
		n, err := s.repo.UpdateCompanyByICO(ctx, ico, company)
		if err != nil {
			return report, err
		}
		if n == 0 {
			report.Skipped++
			continue
		}
		report.Synced += n
		s.log.Info("company synced", "ico", ico, "company", company.Name, "leads", n)
	}
	return report, nil
}
