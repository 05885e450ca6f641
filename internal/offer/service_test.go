package offer

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

type mockRepo struct {
	offers    map[string]*domain.Offer
	leads     map[string]*domain.Lead
	tenants   map[string]*domain.Tenant
	proposals map[string]*domain.Proposal
	analyses  map[string]*domain.Analysis
	results   map[string][]domain.AnalysisResult
	emailLogs []*domain.EmailLog
	nextID    int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		offers:    map[string]*domain.Offer{},
		leads:     map[string]*domain.Lead{},
		tenants:   map[string]*domain.Tenant{},
		proposals: map[string]*domain.Proposal{},
		analyses:  map[string]*domain.Analysis{},
		results:   map[string][]domain.AnalysisResult{},
	}
}

func (m *mockRepo) id() string {
	m.nextID++
	return "id-" + strconv.Itoa(m.nextID)
}

func (m *mockRepo) GetOffer(_ context.Context, id string) (*domain.Offer, error) {
	o, ok := m.offers[id]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "offer %s not found", id)
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) GetOfferByToken(_ context.Context, token string) (*domain.Offer, error) {
	for _, o := range m.offers {
		if o.TrackingToken == token {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "offer not found")
}

func (m *mockRepo) GetOfferByMessageID(_ context.Context, messageID string) (*domain.Offer, error) {
	for _, o := range m.offers {
		if o.MessageID == messageID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "offer not found")
}

func (m *mockRepo) CreateOffer(_ context.Context, o *domain.Offer) error {
	if o.ID == "" {
		o.ID = m.id()
	}
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateOffer(_ context.Context, o *domain.Offer) error {
	if _, ok := m.offers[o.ID]; !ok {
		return domain.E(domain.KindNotFound, "offer not found")
	}
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *mockRepo) MarkSent(_ context.Context, o *domain.Offer, log *domain.EmailLog) error {
	cp := *o
	m.offers[o.ID] = &cp
	lg := *log
	m.emailLogs = append(m.emailLogs, &lg)
	return nil
}

func (m *mockRepo) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "lead %s not found", id)
	}
	return l, nil
}

func (m *mockRepo) GetTenant(_ context.Context, id string) (*domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "tenant %s not found", id)
	}
	return t, nil
}

func (m *mockRepo) GetTenantByUserCode(_ context.Context, userCode string) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.UserCode == userCode {
			return t, nil
		}
	}
	return nil, domain.Ef(domain.KindNotFound, "tenant %s not found", userCode)
}

func (m *mockRepo) GetProposal(_ context.Context, id string) (*domain.Proposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, domain.Ef(domain.KindNotFound, "proposal %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) CreateProposal(_ context.Context, p *domain.Proposal) error {
	if p.ID == "" {
		p.ID = m.id()
	}
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *mockRepo) FindProposalByLeadAndType(_ context.Context, leadID, proposalType string) (*domain.Proposal, error) {
	for _, p := range m.proposals {
		if p.LeadID == leadID && p.Type == proposalType && p.Status != domain.ProposalExpired {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) LatestAnalysis(_ context.Context, leadID string) (*domain.Analysis, error) {
	var latest *domain.Analysis
	for _, a := range m.analyses {
		if a.LeadID == leadID && (latest == nil || a.SequenceNumber > latest.SequenceNumber) {
			latest = a
		}
	}
	return latest, nil
}

func (m *mockRepo) ResultsForAnalysis(_ context.Context, analysisID string) ([]domain.AnalysisResult, error) {
	return m.results[analysisID], nil
}

func (m *mockRepo) FindRecyclableProposal(_ context.Context, industry, proposalType string) (*domain.Proposal, error) {
	var ids []string
	for id := range m.proposals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := m.proposals[id]
		if p.CanRecycle() && p.Industry == industry && p.Type == proposalType {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) MoveProposal(_ context.Context, p *domain.Proposal) error {
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *mockRepo) ExpireProposals(_ context.Context) (int, error) {
	n := 0
	now := time.Now()
	for _, p := range m.proposals {
		if p.Status == domain.ProposalReady && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			p.Status = domain.ProposalExpired
			n++
		}
	}
	return n, nil
}

func testService(repo *mockRepo) *Service {
	return NewService(repo, NewComposer("https://offers.example.com", "Offers Team"), nil)
}

type mockEnqueuer struct {
	kinds    []domain.JobKind
	payloads []interface{}
}

func (m *mockEnqueuer) EnqueueDefault(_ context.Context, kind domain.JobKind, payload interface{}) (int64, error) {
	m.kinds = append(m.kinds, kind)
	m.payloads = append(m.payloads, payload)
	return int64(len(m.kinds)), nil
}

func draftOffer(repo *mockRepo) *domain.Offer {
	o := &domain.Offer{
		ID:            repo.id(),
		TenantID:      "T1",
		LeadID:        "L1",
		Recipient:     "info@firma.cz",
		Subject:       "subject",
		Body:          "<p>body</p>",
		PlainTextBody: "body",
		TrackingToken: domain.NewTrackingToken(),
		Status:        domain.OfferDraft,
	}
	repo.offers[o.ID] = o
	return o
}

func TestOfferApprovalFlow(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	o := draftOffer(repo)
	ctx := context.Background()

	got, err := svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferPendingApproval, got.Status)
	require.NotNil(t, got.SubmittedAt)

	got, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferApproved, got.Status)
	require.NotNil(t, got.ApprovedAt)
}

func TestApproveEnqueuesSendJob(t *testing.T) {
	repo := newMockRepo()
	jobs := &mockEnqueuer{}
	svc := NewService(repo, NewComposer("https://offers.example.com", "Offers Team"), jobs)
	o := draftOffer(repo)
	ctx := context.Background()

	_, err := svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs.kinds, "submit must not send")

	_, err = svc.Approve(ctx, o.ID)
	require.NoError(t, err)

	require.Equal(t, []domain.JobKind{domain.JobSendEmail}, jobs.kinds)
	assert.Equal(t, map[string]string{"offer_id": o.ID}, jobs.payloads[0])
}

func TestRejectDoesNotEnqueueSendJob(t *testing.T) {
	repo := newMockRepo()
	jobs := &mockEnqueuer{}
	svc := NewService(repo, NewComposer("https://offers.example.com", "Offers Team"), jobs)
	o := draftOffer(repo)
	ctx := context.Background()

	_, err := svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, o.ID, "not a fit")
	require.NoError(t, err)

	assert.Empty(t, jobs.kinds)
}

func TestOfferInvalidTransitions(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	o := draftOffer(repo)
	ctx := context.Background()

	_, err := svc.Approve(ctx, o.ID)
	require.Error(t, err, "draft cannot be approved directly")
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))

	_, err = svc.MarkConverted(ctx, o.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
}

func TestOfferRejectKeepsReason(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	o := draftOffer(repo)
	ctx := context.Background()

	_, err := svc.Submit(ctx, o.ID)
	require.NoError(t, err)

	got, err := svc.Reject(ctx, o.ID, "low quality lead")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferRejected, got.Status)
	assert.Equal(t, "low quality lead", got.RejectReason)
	require.NotNil(t, got.RejectedAt)
}

func TestAdvanceEngagementNeverRegresses(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	o := draftOffer(repo)
	now := time.Now()
	o.Status = domain.OfferClicked
	clickedAt := now.Add(-time.Hour)
	o.OpenedAt = &clickedAt
	o.ClickedAt = &clickedAt
	repo.offers[o.ID] = o
	ctx := context.Background()

	loaded, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AdvanceEngagement(ctx, loaded, domain.OfferOpened, now))

	stored := repo.offers[o.ID]
	assert.Equal(t, domain.OfferClicked, stored.Status, "late open event must not regress clicked")
	assert.True(t, stored.OpenedAt.Equal(clickedAt), "first timestamp preserved")
}

func TestAdvanceEngagementSetsOpenedOnClick(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	o := draftOffer(repo)
	now := time.Now()
	o.Status = domain.OfferSent
	sentAt := now.Add(-time.Hour)
	o.SentAt = &sentAt
	repo.offers[o.ID] = o
	ctx := context.Background()

	loaded, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AdvanceEngagement(ctx, loaded, domain.OfferClicked, now))

	stored := repo.offers[o.ID]
	assert.Equal(t, domain.OfferClicked, stored.Status)
	require.NotNil(t, stored.OpenedAt, "click implies open")
	require.NotNil(t, stored.ClickedAt)
}

func TestAdvanceEngagementIgnoresPreSendOffers(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	o := draftOffer(repo)
	ctx := context.Background()

	loaded, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AdvanceEngagement(ctx, loaded, domain.OfferOpened, time.Now()))
	assert.Equal(t, domain.OfferDraft, repo.offers[o.ID].Status)
}

func TestGenerateComposesOffer(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	repo.leads["L1"] = &domain.Lead{
		ID: "L1", TenantID: "T1", Domain: "firma.cz",
		URL: "https://firma.cz", CompanyName: "Firma s.r.o.",
		ContactEmail: "Info@Firma.CZ",
	}
	ctx := context.Background()

	o, err := svc.Generate(ctx, "L1", "")
	require.NoError(t, err)
	assert.Equal(t, "info@firma.cz", o.Recipient)
	assert.Equal(t, domain.OfferDraft, o.Status)
	assert.Len(t, o.TrackingToken, 64)
	assert.Contains(t, o.Subject, "Firma s.r.o.")
	assert.Contains(t, o.Body, "/api/track/open/"+o.TrackingToken)
	assert.Contains(t, o.Body, "/unsubscribe/"+o.TrackingToken)
	assert.NotEmpty(t, o.PlainTextBody)
}

func TestGenerateRequiresContactEmail(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	repo.leads["L1"] = &domain.Lead{ID: "L1", TenantID: "T1", Domain: "firma.cz", URL: "https://firma.cz"}

	_, err := svc.Generate(context.Background(), "L1", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestRecycleMovesProposal(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	repo.tenants["T2"] = &domain.Tenant{ID: "T2", UserCode: "acme"}
	repo.proposals["P1"] = &domain.Proposal{
		ID: "P1", TenantID: "T1", LeadID: "L1", Type: "website_audit",
		Industry: "eshop", Status: domain.ProposalReady,
		AIGenerated: true, Recyclable: true,
	}
	ctx := context.Background()

	p, err := svc.Recycle(ctx, "P1", "acme", "")
	require.NoError(t, err)
	assert.Equal(t, "T2", p.TenantID)
	assert.Equal(t, domain.ProposalDraft, p.Status)
}

func TestRecycleRejectsCustomizedProposal(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	repo.tenants["T2"] = &domain.Tenant{ID: "T2", UserCode: "acme"}
	repo.proposals["P1"] = &domain.Proposal{
		ID: "P1", TenantID: "T1", LeadID: "L1", Type: "website_audit",
		Status: domain.ProposalReady, AIGenerated: true, Recyclable: true, Customized: true,
	}

	_, err := svc.Recycle(context.Background(), "P1", "acme", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidTransition, domain.KindOf(err))
}

func TestRecycleChecksLeadOwnership(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	repo.tenants["T2"] = &domain.Tenant{ID: "T2", UserCode: "acme"}
	repo.leads["L9"] = &domain.Lead{ID: "L9", TenantID: "T3"}
	repo.proposals["P1"] = &domain.Proposal{
		ID: "P1", TenantID: "T1", LeadID: "L1", Type: "website_audit",
		Status: domain.ProposalReady, AIGenerated: true, Recyclable: true,
	}

	_, err := svc.Recycle(context.Background(), "P1", "acme", "L9")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestRecyclableAvailable(t *testing.T) {
	repo := newMockRepo()
	svc := testService(repo)
	ctx := context.Background()

	ok, err := svc.RecyclableAvailable(ctx, "eshop", "website_audit")
	require.NoError(t, err)
	assert.False(t, ok)

	repo.proposals["P1"] = &domain.Proposal{
		ID: "P1", TenantID: "T1", LeadID: "L1", Type: "website_audit",
		Industry: "eshop", Status: domain.ProposalReady,
		AIGenerated: true, Recyclable: true,
	}
	ok, err = svc.RecyclableAvailable(ctx, "eshop", "website_audit")
	require.NoError(t, err)
	assert.True(t, ok)
}
