package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/FikFikk/luminastore/internal/backend"
	"github.com/FikFikk/luminastore/internal/checkout"
	"github.com/FikFikk/luminastore/internal/payment"
)

type checkoutOrchestrator interface {
	Begin(ctx context.Context, token string, req checkout.BeginRequest) (*checkout.Snapshot, error)
	State(ctx context.Context, token string) (*checkout.Snapshot, error)
	SelectAddress(ctx context.Context, token, addressID string) (*checkout.Snapshot, error)
	SelectShipping(ctx context.Context, token, courierCode, serviceCode string) (*checkout.Snapshot, error)
	Methods(ctx context.Context, token string) ([]payment.Method, error)
	SelectMethod(ctx context.Context, token, code string) (*checkout.Snapshot, error)
	SetNotes(ctx context.Context, token, notes string) (*checkout.Snapshot, error)
	GoToStep(ctx context.Context, token string, target checkout.Step) (*checkout.Snapshot, error)
	RetryQuote(ctx context.Context, token string) (*checkout.Snapshot, error)
	Submit(ctx context.Context, token string) (*backend.OrderResult, error)
	Cancel(ctx context.Context, token string) error
}

type CheckoutHandler struct {
	orch checkoutOrchestrator
}

func NewCheckoutHandler(orch checkoutOrchestrator) *CheckoutHandler {
	return &CheckoutHandler{orch: orch}
}

type BeginCheckoutDTO struct {
	ItemIDs []string `json:"item_ids"`
	All     bool     `json:"all"`
}

type SelectAddressDTO struct {
	AddressID string `json:"address_id"`
}

type SelectShippingDTO struct {
	CourierCode string `json:"courier_code"`
	ServiceCode string `json:"service_code"`
}

type SelectMethodDTO struct {
	Code string `json:"code"`
}

type NotesDTO struct {
	Notes string `json:"notes"`
}

type StepDTO struct {
	Step string `json:"step"`
}

func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req BeginCheckoutDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.orch.Begin(r.Context(), tokenFrom(r.Context()), checkout.BeginRequest{
		ItemIDs: req.ItemIDs,
		All:     req.All,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.State(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var req SelectAddressDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.orch.SelectAddress(r.Context(), tokenFrom(r.Context()), req.AddressID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var req SelectShippingDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CourierCode == "" || req.ServiceCode == "" {
		respondError(w, http.StatusBadRequest, "invalid_service", "courier_code and service_code are required")
		return
	}

	snap, err := h.orch.SelectShipping(r.Context(), tokenFrom(r.Context()), req.CourierCode, req.ServiceCode)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) Methods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.orch.Methods(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}

func (h *CheckoutHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var req SelectMethodDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.orch.SelectMethod(r.Context(), tokenFrom(r.Context()), req.Code)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snap, err := h.orch.SetNotes(r.Context(), tokenFrom(r.Context()), req.Notes)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) GoToStep(w http.ResponseWriter, r *http.Request) {
	var req StepDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	step, err := checkout.ParseStep(req.Step)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_step", "unknown checkout step")
		return
	}

	snap, err := h.orch.GoToStep(r.Context(), tokenFrom(r.Context()), step)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) RetryQuote(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.RetryQuote(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	result, err := h.orch.Submit(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Cancel(r.Context(), tokenFrom(r.Context())); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
