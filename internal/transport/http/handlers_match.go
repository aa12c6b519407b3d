package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"organlink/internal/domain"
	"organlink/internal/match"
	"organlink/internal/platform/middleware"
	pkgerrors "organlink/pkg/errors"
)

type matchSummaryPayload struct {
	Donor         string `json:"donor"`
	Recipient     string `json:"recipient"`
	Organ         string `json:"organ"`
	Compatibility string `json:"compatibility"`
	Status        string `json:"status"`
	BlockID       string `json:"blockId"`
	Mirrored      bool   `json:"mirrored"`
}

func (h *Handler) handleRunMatchCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.match.RunMatchCycle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("match cycle finished",
		"request_id", middleware.GetRequestID(r.Context()),
		"outcome", string(result.Outcome),
		"matches", len(result.Matches),
		"mirror_failures", result.MirrorFailures,
	)

	switch result.Outcome {
	case domain.OutcomeNoCandidates:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": "no unmatched donors or recipients available",
			"matches": []matchSummaryPayload{},
		})
	case domain.OutcomeNoCompatiblePairs:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": "no compatible matches found",
			"matches": []matchSummaryPayload{},
		})
	default:
		payload := make([]matchSummaryPayload, 0, len(result.Matches))
		for _, m := range result.Matches {
			payload = append(payload, matchSummaryPayload{
				Donor:         m.DonorName,
				Recipient:     m.RecipientName,
				Organ:         m.Organ,
				Compatibility: formatCompatibility(m.Compatibility),
				Status:        string(m.Status),
				BlockID:       m.BlockID,
				Mirrored:      m.Mirrored,
			})
		}
		body := map[string]any{
			"ok":      true,
			"message": "matching completed",
			"matches": payload,
		}
		if result.MirrorFailures > 0 {
			body["mirrorFailures"] = result.MirrorFailures
			body["warning"] = "some matches were not mirrored to the external ledger"
		}
		writeJSON(w, http.StatusOK, body)
	}
}

type createMatchRequest struct {
	DonorID       string `json:"donorId"`
	RecipientID   string `json:"recipientId"`
	Organ         string `json:"organ"`
	Compatibility int    `json:"compatibility"`
	Status        string `json:"status"`
}

func (h *Handler) handleCreateManualMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	created, err := h.match.CreateManualMatch(r.Context(), match.ManualMatchInput{
		DonorID:       req.DonorID,
		RecipientID:   req.RecipientID,
		Organ:         req.Organ,
		Compatibility: req.Compatibility,
		Status:        domain.MatchStatus(req.Status),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": "match recorded successfully",
		"match": map[string]any{
			"_id":           created.ID,
			"donorId":       created.DonorID,
			"recipientId":   created.RecipientID,
			"organ":         created.Organ,
			"compatibility": formatCompatibility(created.Compatibility),
			"status":        string(created.Status),
			"source":        string(created.Source),
			"createdAt":     created.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}
