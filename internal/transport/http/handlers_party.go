package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"organlink/internal/domain"
	"organlink/internal/party"
	pkgerrors "organlink/pkg/errors"
)

type donorPayload struct {
	ID            string `json:"_id"`
	FullName      string `json:"fullName"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	BloodGroup    string `json:"bloodGroup"`
	OrganType     string `json:"organType"`
	City          string `json:"city"`
	State         string `json:"state"`
	ContactNumber string `json:"contactNumber"`
	Email         string `json:"email"`
	HealthHistory string `json:"healthHistory,omitempty"`
	Consent       bool   `json:"consent"`
	Consumed      bool   `json:"consumed"`
	RegisteredAt  string `json:"registeredAt"`
}

func toDonorPayload(d *domain.Donor) donorPayload {
	return donorPayload{
		ID:            d.ID,
		FullName:      d.FullName,
		Age:           d.Age,
		Gender:        d.Gender,
		BloodGroup:    string(d.BloodGroup),
		OrganType:     d.OrganType,
		City:          d.City,
		State:         d.State,
		ContactNumber: d.ContactNumber,
		Email:         d.Email,
		HealthHistory: d.HealthHistory,
		Consent:       d.Consent,
		Consumed:      d.Consumed,
		RegisteredAt:  d.RegisteredAt.UTC().Format(time.RFC3339),
	}
}

type recipientPayload struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Organ          string `json:"organ"`
	BloodGroup     string `json:"bloodGroup"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
	Consumed       bool   `json:"consumed"`
	RegisteredAt   string `json:"registeredAt"`
}

func toRecipientPayload(r *domain.Recipient) recipientPayload {
	return recipientPayload{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Organ:          r.Organ,
		BloodGroup:     string(r.BloodGroup),
		MedicalHistory: r.MedicalHistory,
		Consumed:       r.Consumed,
		RegisteredAt:   r.RegisteredAt.UTC().Format(time.RFC3339),
	}
}

type registerDonorRequest struct {
	FullName      string `json:"fullName"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	BloodGroup    string `json:"bloodGroup"`
	OrganType     string `json:"organType"`
	City          string `json:"city"`
	State         string `json:"state"`
	ContactNumber string `json:"contactNumber"`
	Email         string `json:"email"`
	HealthHistory string `json:"healthHistory"`
	Consent       bool   `json:"consent"`
}

func (h *Handler) handleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	var req registerDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	donor, err := h.party.RegisterDonor(r.Context(), party.DonorRegistration{
		FullName:      req.FullName,
		Age:           req.Age,
		Gender:        req.Gender,
		BloodGroup:    req.BloodGroup,
		OrganType:     req.OrganType,
		City:          req.City,
		State:         req.State,
		ContactNumber: req.ContactNumber,
		Email:         req.Email,
		HealthHistory: req.HealthHistory,
		Consent:       req.Consent,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": "donor registered successfully",
		"donor":   toDonorPayload(donor),
	})
}

func (h *Handler) handleListDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := h.party.ListDonors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]donorPayload, 0, len(donors))
	for _, d := range donors {
		payload = append(payload, toDonorPayload(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "donors": payload})
}

type registerRecipientRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Organ          string `json:"organ"`
	BloodGroup     string `json:"bloodGroup"`
	MedicalHistory string `json:"medicalHistory"`
}

func (h *Handler) handleRegisterRecipient(w http.ResponseWriter, r *http.Request) {
	var req registerRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	recipient, err := h.party.RegisterRecipient(r.Context(), party.RecipientRegistration{
		Name:           req.Name,
		Email:          req.Email,
		Organ:          req.Organ,
		BloodGroup:     req.BloodGroup,
		MedicalHistory: req.MedicalHistory,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":        true,
		"message":   "recipient registered successfully",
		"recipient": toRecipientPayload(recipient),
	})
}

func (h *Handler) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.party.ListRecipients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]recipientPayload, 0, len(recipients))
	for _, rec := range recipients {
		payload = append(payload, toRecipientPayload(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "recipients": payload})
}

type contactDonorRequest struct {
	DonorID string `json:"donorId"`
}

func (h *Handler) handleContactDonor(w http.ResponseWriter, r *http.Request) {
	var req contactDonorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid request body"))
		return
	}
	contact, err := h.party.Contact(r.Context(), req.DonorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"message":       "contact details fetched successfully",
		"donorName":     contact.DonorName,
		"contactNumber": contact.ContactNumber,
		"email":         contact.Email,
		"city":          contact.City,
	})
}
