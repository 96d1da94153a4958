package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FikFikk/luminastore/internal/backend"
)

type addressAPI interface {
	Addresses(ctx context.Context, token string) ([]backend.Address, error)
	CreateAddress(ctx context.Context, token string, address backend.Address) (*backend.Address, error)
	UpdateAddress(ctx context.Context, token string, address backend.Address) (*backend.Address, error)
	DeleteAddress(ctx context.Context, token, id string) error
}

type AddressHandler struct {
	addresses addressAPI
}

func NewAddressHandler(addresses addressAPI) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

func validateAddress(a backend.Address) (string, string) {
	switch {
	case a.Recipient == "":
		return "invalid_recipient", "recipient name is required"
	case a.Phone == "":
		return "invalid_phone", "phone number is required"
	case a.Street == "":
		return "invalid_street", "street is required"
	case a.DestinationID == "":
		return "invalid_destination", "please pick a destination from the search results"
	}
	return "", ""
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.addresses.Addresses(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, addresses)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	var address backend.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if code, msg := validateAddress(address); code != "" {
		respondError(w, http.StatusBadRequest, code, msg)
		return
	}

	created, err := h.addresses.CreateAddress(r.Context(), tokenFrom(r.Context()), address)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address id is required")
		return
	}

	var address backend.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	address.ID = id
	if code, msg := validateAddress(address); code != "" {
		respondError(w, http.StatusBadRequest, code, msg)
		return
	}

	updated, err := h.addresses.UpdateAddress(r.Context(), tokenFrom(r.Context()), address)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address id is required")
		return
	}

	if err := h.addresses.DeleteAddress(r.Context(), tokenFrom(r.Context()), id); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
