package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"organlink/internal/domain"
)

func formatCompatibility(pct int) string {
	return strconv.Itoa(pct) + "%"
}

type matchPayload struct {
	ID            string `json:"_id"`
	DonorID       string `json:"donorId"`
	RecipientID   string `json:"recipientId"`
	DonorName     string `json:"donorName"`
	RecipientName string `json:"recipientName"`
	Organ         string `json:"organ"`
	Compatibility string `json:"compatibility"`
	Status        string `json:"status"`
	Source        string `json:"source"`
	CreatedAt     string `json:"createdAt"`
}

func (h *Handler) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.ledger.ListMatches(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]matchPayload, 0, len(matches))
	for _, m := range matches {
		payload = append(payload, matchPayload{
			ID:            m.ID,
			DonorID:       m.DonorID,
			RecipientID:   m.RecipientID,
			DonorName:     m.DonorName,
			RecipientName: m.RecipientName,
			Organ:         m.Organ,
			Compatibility: formatCompatibility(m.Compatibility),
			Status:        string(m.Status),
			Source:        string(m.Source),
			CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "matches": payload})
}

type ledgerRecordPayload struct {
	ID            string            `json:"_id"`
	BlockID       string            `json:"blockId"`
	DonorID       string            `json:"donorId"`
	RecipientID   string            `json:"recipientId"`
	DonorName     string            `json:"donorName"`
	RecipientName string            `json:"recipientName"`
	Organ         string            `json:"organ"`
	Status        string            `json:"status"`
	Meta          map[string]string `json:"meta,omitempty"`
	Timestamp     string            `json:"timestamp"`
}

func toLedgerRecordPayload(rec *domain.EnrichedLedgerRecord) ledgerRecordPayload {
	return ledgerRecordPayload{
		ID:            rec.ID,
		BlockID:       rec.BlockID,
		DonorID:       rec.DonorID,
		RecipientID:   rec.RecipientID,
		DonorName:     rec.DonorName,
		RecipientName: rec.RecipientName,
		Organ:         rec.Organ,
		Status:        string(rec.Status),
		Meta:          rec.Meta,
		Timestamp:     rec.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleListLedger(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.ListEnrichedLedger(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]ledgerRecordPayload, 0, len(records))
	for _, rec := range records {
		payload = append(payload, toLedgerRecordPayload(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ledgers": payload})
}

type externalRecordPayload struct {
	Block         int    `json:"block"`
	Donor         string `json:"donor"`
	Recipient     string `json:"recipient"`
	Organ         string `json:"organ"`
	Status        string `json:"status"`
	Compatibility string `json:"compatibility"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) handleListExternalLedger(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.ListExternalLedger(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]externalRecordPayload, 0, len(records))
	for _, rec := range records {
		payload = append(payload, externalRecordPayload{
			Block:         rec.Seq,
			Donor:         rec.Donor,
			Recipient:     rec.Recipient,
			Organ:         rec.Organ,
			Status:        rec.Status,
			Compatibility: rec.Compatibility,
			Timestamp:     rec.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "records": payload})
}
