// Package httptransport is the thin HTTP layer. It delegates to the domain
// services without embedding business logic so transport concerns stay
// isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"organlink/internal/domain"
	"organlink/internal/match"
	"organlink/internal/party"
	"organlink/internal/platform/metrics"
	"organlink/internal/platform/middleware"
)

// MatchService is the matching-engine surface the transport needs.
type MatchService interface {
	RunMatchCycle(ctx context.Context) (*domain.CycleResult, error)
	CreateManualMatch(ctx context.Context, input match.ManualMatchInput) (*domain.Match, error)
	ResetConsumedFlags(ctx context.Context) error
	ClearAllDemoData(ctx context.Context) error
}

// LedgerService is the read-side ledger surface.
type LedgerService interface {
	ListEnrichedLedger(ctx context.Context) ([]*domain.EnrichedLedgerRecord, error)
	ListExternalLedger(ctx context.Context) ([]*domain.ExternalLedgerRecord, error)
	ListMatches(ctx context.Context) ([]*domain.EnrichedMatch, error)
}

// PartyService is the registration surface.
type PartyService interface {
	RegisterDonor(ctx context.Context, reg party.DonorRegistration) (*domain.Donor, error)
	RegisterRecipient(ctx context.Context, reg party.RecipientRegistration) (*domain.Recipient, error)
	ListDonors(ctx context.Context) ([]*domain.Donor, error)
	ListRecipients(ctx context.Context) ([]*domain.Recipient, error)
	Contact(ctx context.Context, donorID string) (*party.DonorContact, error)
}

// Handler holds the wired services behind the public routes.
type Handler struct {
	logger  *slog.Logger
	match   MatchService
	ledger  LedgerService
	party   PartyService
	metrics *metrics.HTTP
}

// HandlerOption configures optional transport concerns.
type HandlerOption func(*Handler)

// WithHTTPMetrics enables per-request Prometheus metrics. Left off in tests
// so repeated routers do not re-register collectors.
func WithHTTPMetrics(m *metrics.HTTP) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

func NewHandler(logger *slog.Logger, matchSvc MatchService, ledgerSvc LedgerService, partySvc PartyService, opts ...HandlerOption) *Handler {
	h := &Handler{
		logger: logger,
		match:  matchSvc,
		ledger: ledgerSvc,
		party:  partySvc,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/api/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/donors", h.handleRegisterDonor)
		r.Get("/donors", h.handleListDonors)
		r.Post("/recipients", h.handleRegisterRecipient)
		r.Get("/recipients", h.handleListRecipients)
		r.Post("/contact-donor", h.handleContactDonor)

		r.Post("/match/run", h.handleRunMatchCycle)
		r.Get("/matches", h.handleListMatches)
		r.Post("/matches", h.handleCreateManualMatch)

		r.Get("/ledger", h.handleListLedger)
		r.Get("/ledger/external", h.handleListExternalLedger)

		r.Post("/debug/reset_match_flags", h.handleResetMatchFlags)
		r.Post("/debug/clear_all", h.handleClearAll)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "backend is running"})
}
