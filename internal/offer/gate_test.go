package offer

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/mailer"
	"github.com/mesour/brick-offers-sub004/internal/service/ratelimit"
	"github.com/mesour/brick-offers-sub004/internal/service/suppression"
)

type memSuppressionRepo struct {
	blocked map[string]bool
}

func (m *memSuppressionRepo) IsBlocked(_ context.Context, email, tenantID string) (bool, error) {
	return m.blocked[email] || m.blocked[email+"/"+tenantID], nil
}

func (m *memSuppressionRepo) Upsert(_ context.Context, e *domain.SuppressionEntry) error {
	key := e.Email
	if e.TenantID != "" {
		key = e.Email + "/" + e.TenantID
	}
	m.blocked[key] = true
	return nil
}

func (m *memSuppressionRepo) Remove(_ context.Context, email, tenantID string) (bool, error) {
	key := email
	if tenantID != "" {
		key = email + "/" + tenantID
	}
	delete(m.blocked, key)
	return true, nil
}

func (m *memSuppressionRepo) List(_ context.Context, tenantID string, reason domain.SuppressionReason, limit int) ([]domain.SuppressionEntry, error) {
	return nil, nil
}

func gateFixture(t *testing.T, blocked map[string]bool, usage [3]int) (*Gate, *mockRepo, *mailer.NullMailer) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery(`SELECT`).WillReturnRows(
		sqlmock.NewRows([]string{"daily", "hourly", "domain_daily"}).
			AddRow(usage[0], usage[1], usage[2]),
	)

	if blocked == nil {
		blocked = map[string]bool{}
	}
	repo := newMockRepo()
	repo.tenants["T1"] = &domain.Tenant{
		ID: "T1", UserCode: "acme",
		RateLimits: domain.RateLimits{DailyMax: 100, HourlyMax: 10},
	}
	mail := mailer.NewNullMailer()
	gate := NewGate(repo,
		suppression.NewService(&memSuppressionRepo{blocked: blocked}),
		ratelimit.NewService(db, nil),
		mail)
	return gate, repo, mail
}

func approvedOffer(repo *mockRepo) *domain.Offer {
	o := draftOffer(repo)
	o.Status = domain.OfferApproved
	repo.offers[o.ID] = o
	return o
}

func TestGateSendsApprovedOffer(t *testing.T) {
	gate, repo, mail := gateFixture(t, nil, [3]int{0, 0, 0})
	o := approvedOffer(repo)

	require.NoError(t, gate.Send(context.Background(), o.ID))

	stored := repo.offers[o.ID]
	assert.Equal(t, domain.OfferSent, stored.Status)
	require.NotNil(t, stored.SentAt)
	assert.NotEmpty(t, stored.MessageID)
	require.Len(t, repo.emailLogs, 1)
	assert.Equal(t, stored.MessageID, repo.emailLogs[0].MessageID)
	assert.Equal(t, "info@firma.cz", repo.emailLogs[0].Recipient)
	require.Len(t, mail.Sent(), 1)
}

func TestGateSkipsUnsendableStatus(t *testing.T) {
	gate, repo, mail := gateFixture(t, nil, [3]int{0, 0, 0})
	o := draftOffer(repo)

	require.NoError(t, gate.Send(context.Background(), o.ID), "skip is not an error")
	assert.Equal(t, domain.OfferDraft, repo.offers[o.ID].Status)
	assert.Empty(t, mail.Sent())
}

func TestGateRejectsSuppressedRecipient(t *testing.T) {
	gate, repo, mail := gateFixture(t, map[string]bool{"info@firma.cz": true}, [3]int{0, 0, 0})
	o := approvedOffer(repo)

	require.NoError(t, gate.Send(context.Background(), o.ID), "suppression is a no-op for the caller")

	stored := repo.offers[o.ID]
	assert.Equal(t, domain.OfferRejected, stored.Status)
	assert.Equal(t, "suppressed", stored.RejectReason)
	require.NotNil(t, stored.RejectedAt)
	assert.Empty(t, mail.Sent(), "suppressed recipients are never transmitted to")
}

func TestGateRateLimitDenialIsRetryable(t *testing.T) {
	gate, repo, mail := gateFixture(t, nil, [3]int{100, 0, 0})
	o := approvedOffer(repo)

	err := gate.Send(context.Background(), o.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, domain.OfferApproved, repo.offers[o.ID].Status, "denied send leaves the offer untouched")
	assert.Empty(t, mail.Sent())
}
