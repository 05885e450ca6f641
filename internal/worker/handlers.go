package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/ares"
	"github.com/mesour/brick-offers-sub004/internal/discovery"
	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/offer"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
	"github.com/mesour/brick-offers-sub004/internal/snapshot"
	"github.com/mesour/brick-offers-sub004/internal/tracking"
)

// BenchmarkTarget is one (tenant, industry) pair due a benchmark.
type BenchmarkTarget struct {
	TenantID string
	Industry string
}

// BenchmarkTargetStore lists the (tenant, industry) pairs due a benchmark.
type BenchmarkTargetStore interface {
	BenchmarkTargets(ctx context.Context, industry string) ([]BenchmarkTarget, error)
}

// Screenshotter captures a page screenshot for a lead and returns its
// storage path. Implementations live outside this module; the default
// NoopScreenshotter records nothing.
type Screenshotter interface {
	Capture(ctx context.Context, leadID string) (string, error)
}

// NoopScreenshotter satisfies Screenshotter without doing work.
type NoopScreenshotter struct{}

// Capture is a no-op; the job still consumes cleanly.
func (NoopScreenshotter) Capture(context.Context, string) (string, error) { return "", nil }

// ScreenshotStore persists where a lead's screenshot landed.
type ScreenshotStore interface {
	SetScreenshotPath(ctx context.Context, leadID, path string) error
}

// Handlers binds every job kind to its service call.
type Handlers struct {
	pipeline   *analysis.Pipeline
	offers     *offer.Service
	gate       *offer.Gate
	tracking   *tracking.Service
	discovery  *discovery.Service
	ares       *ares.Service
	snapshots  *snapshot.Service
	targets    BenchmarkTargetStore
	ssl        *SSLChecker
	shots      Screenshotter
	shotStore  ScreenshotStore
	cleaner    *Cleaner
	log        *logger.Logger
}

// NewHandlers wires the job handlers. shots may be nil for a no-op.
func NewHandlers(
	pipeline *analysis.Pipeline,
	offers *offer.Service,
	gate *offer.Gate,
	trackingSvc *tracking.Service,
	discoverySvc *discovery.Service,
	aresSvc *ares.Service,
	snapshots *snapshot.Service,
	targets BenchmarkTargetStore,
	ssl *SSLChecker,
	shots Screenshotter,
	shotStore ScreenshotStore,
	cleaner *Cleaner,
) *Handlers {
	if shots == nil {
		shots = NoopScreenshotter{}
	}
	return &Handlers{
		pipeline:  pipeline,
		offers:    offers,
		gate:      gate,
		tracking:  trackingSvc,
		discovery: discoverySvc,
		ares:      aresSvc,
		snapshots: snapshots,
		targets:   targets,
		ssl:       ssl,
		shots:     shots,
		shotStore: shotStore,
		cleaner:   cleaner,
		log:       logger.With("handlers"),
	}
}

// RegisterAll binds every job kind on the registry.
func (h *Handlers) RegisterAll(reg *Registry) {
	reg.Register(domain.JobSendEmail, h.SendEmail)
	reg.Register(domain.JobProcessTrackingEvent, h.ProcessTrackingEvent)
	reg.Register(domain.JobAnalyzeLead, h.AnalyzeLead)
	reg.Register(domain.JobGenerateProposal, h.GenerateProposal)
	reg.Register(domain.JobGenerateOffer, h.GenerateOffer)
	reg.Register(domain.JobSyncCompanyByICO, h.SyncCompanyByICO)
	reg.Register(domain.JobDiscoverLeads, h.DiscoverLeads)
	reg.Register(domain.JobBatchDiscovery, h.BatchDiscovery)
	reg.Register(domain.JobTakeScreenshot, h.TakeScreenshot)
	reg.Register(domain.JobCalculateBenchmarks, h.CalculateBenchmarks)
	reg.Register(domain.JobExpireProposals, h.ExpireProposals)
	reg.Register(domain.JobCheckSSL, h.CheckSSL)
	reg.Register(domain.JobCleanupOldData, h.CleanupOldData)
}

func decodePayload(payload json.RawMessage, dst interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return domain.Wrap(domain.KindPermanentFailure, "decode job payload", err)
	}
	return nil
}

// SendEmail pushes one approved offer through the send gate.
func (h *Handlers) SendEmail(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		OfferID string `json:"offer_id"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if p.OfferID == "" {
		return domain.E(domain.KindPermanentFailure, "send_email payload missing offer_id")
	}
	return h.gate.Send(ctx, p.OfferID)
}

// ProcessTrackingEvent applies one engagement event.
func (h *Handlers) ProcessTrackingEvent(ctx context.Context, payload json.RawMessage) error {
	var ev tracking.Event
	if err := decodePayload(payload, &ev); err != nil {
		return err
	}
	return h.tracking.Process(ctx, &ev)
}

// AnalyzeLead runs one analysis pipeline pass.
func (h *Handlers) AnalyzeLead(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		LeadID    string `json:"lead_id"`
		Industry  string `json:"industry,omitempty"`
		ProfileID string `json:"profile_id,omitempty"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if p.LeadID == "" {
		return domain.E(domain.KindPermanentFailure, "analyze_lead payload missing lead_id")
	}
	_, err := h.pipeline.Run(ctx, p.LeadID, analysis.RunOptions{
		Industry:  p.Industry,
		ProfileID: p.ProfileID,
	})
	return err
}

// GenerateProposal builds a proposal from the lead's latest analysis.
func (h *Handlers) GenerateProposal(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		LeadID     string `json:"lead_id"`
		TenantID   string `json:"tenant_id,omitempty"`
		Type       string `json:"type"`
		AnalysisID string `json:"analysis_id,omitempty"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	_, err := h.offers.GenerateProposal(ctx, p.LeadID, p.TenantID, p.Type, p.AnalysisID)
	return err
}

// GenerateOffer composes a draft offer for a lead.
func (h *Handlers) GenerateOffer(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		LeadID     string `json:"lead_id"`
		ProposalID string `json:"proposal_id,omitempty"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if p.LeadID == "" {
		return domain.E(domain.KindPermanentFailure, "generate_offer payload missing lead_id")
	}
	_, err := h.offers.Generate(ctx, p.LeadID, p.ProposalID)
	return err
}

// SyncCompanyByICO refreshes company fields from the business register.
func (h *Handlers) SyncCompanyByICO(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		ICOs []string `json:"icos"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if len(p.ICOs) == 0 {
		return nil
	}
	_, err := h.ares.SyncByICO(ctx, p.ICOs)
	return err
}

// DiscoverLeads runs one discovery batch.
func (h *Handlers) DiscoverLeads(ctx context.Context, payload json.RawMessage) error {
	var req discovery.Request
	if err := decodePayload(payload, &req); err != nil {
		return err
	}
	_, err := h.discovery.Run(ctx, req)
	return err
}

// BatchDiscovery fans out one discover_leads job per enabled profile.
func (h *Handlers) BatchDiscovery(ctx context.Context, payload json.RawMessage) error {
	_, err := h.discovery.RunBatch(ctx)
	return err
}

// TakeScreenshot captures and stores a lead's page screenshot.
func (h *Handlers) TakeScreenshot(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		LeadID string `json:"lead_id"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	if p.LeadID == "" {
		return domain.E(domain.KindPermanentFailure, "take_screenshot payload missing lead_id")
	}
	path, err := h.shots.Capture(ctx, p.LeadID)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return h.shotStore.SetScreenshotPath(ctx, p.LeadID, path)
}

// CalculateBenchmarks recomputes industry benchmarks for every target pair.
// The upsert key makes duplicate ticks harmless.
func (h *Handlers) CalculateBenchmarks(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		Industry string `json:"industry,omitempty"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	targets, err := h.targets.BenchmarkTargets(ctx, p.Industry)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, t := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := h.snapshots.ComputeBenchmark(ctx, t.TenantID, t.Industry, now); err != nil {
			return err
		}
	}
	h.log.Info("benchmarks computed", "targets", len(targets))
	return nil
}

// ExpireProposals retires ready proposals past their expiry.
func (h *Handlers) ExpireProposals(ctx context.Context, payload json.RawMessage) error {
	_, err := h.offers.ExpireProposals(ctx)
	return err
}

// CheckSSL sweeps lead domains for expiring TLS certificates.
func (h *Handlers) CheckSSL(ctx context.Context, payload json.RawMessage) error {
	return h.ssl.Run(ctx)
}

// CleanupOldData applies the retention policy, optionally to one target.
func (h *Handlers) CleanupOldData(ctx context.Context, payload json.RawMessage) error {
	var p struct {
		Target string `json:"target,omitempty"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	return h.cleaner.Run(ctx, p.Target)
}
