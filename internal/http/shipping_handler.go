package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/FikFikk/luminastore/internal/shipping"
)

type destinationSearcher interface {
	SearchDestinations(ctx context.Context, query string, limit, offset int) ([]shipping.Destination, error)
}

type ShippingHandler struct {
	quotes destinationSearcher
}

func NewShippingHandler(quotes destinationSearcher) *ShippingHandler {
	return &ShippingHandler{quotes: quotes}
}

// SearchDestinations powers the address form's destination autocomplete.
func (h *ShippingHandler) SearchDestinations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	search := strings.TrimSpace(query.Get("search"))
	if len(search) < 3 {
		respondError(w, http.StatusBadRequest, "invalid_search", "search term must be at least 3 characters")
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	destinations, err := h.quotes.SearchDestinations(r.Context(), search, limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, destinations)
}
