package checkout

import (
	"context"
	"log"
	"time"

	"github.com/FikFikk/luminastore/internal/apperr"
	"github.com/FikFikk/luminastore/internal/backend"
	"github.com/FikFikk/luminastore/internal/cart"
	"github.com/FikFikk/luminastore/internal/events"
)

// Submit is the Review step's terminal action. The gates validated here
// are exactly the forward validation a jump to Review performs, so a
// submit from an earlier step is equivalent to jumping to Review first;
// the session records Review once they pass. Every selected item must
// still be in stock as of a fresh cart read; the backend remains the
// final authority and may still reject. On failure the session is kept
// so nothing the shopper picked is lost.
func (o *Orchestrator) Submit(ctx context.Context, token string) (*backend.OrderResult, error) {
	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastTouched = time.Now()
	for step := StepAddress; step <= StepPayment; step++ {
		if errStep := s.stepGateLocked(step); errStep != nil {
			s.mu.Unlock()
			return nil, errStep
		}
	}
	s.step = StepReview
	itemIDs := append([]string(nil), s.itemIDs...)
	req := backend.OrderRequest{
		ItemIDs:      itemIDs,
		AddressID:    s.addressID,
		CourierCode:  s.courierCode,
		ServiceCode:  s.serviceCode,
		ShippingCost: s.shippingCost,
		MethodCode:   s.methodCode,
		PaymentFee:   s.methodFee,
		Notes:        s.notes,
	}
	total := s.totalLocked()
	s.mu.Unlock()

	// Re-read the cart so the stock check reflects the backend's latest
	// word, not the snapshot taken at Begin.
	view, err := o.carts.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]cart.Line, len(view.Lines))
	for _, line := range view.Lines {
		byID[line.ItemID] = line
	}
	for _, id := range itemIDs {
		line, ok := byID[id]
		if !ok {
			return nil, apperr.Validation("some selected items are no longer in your cart")
		}
		if !line.InStock {
			return nil, apperr.Validation("insufficient stock for " + line.Name)
		}
	}

	result, err := o.orders.CreateOrder(ctx, token, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.stopTimersLocked()
	s.mu.Unlock()

	o.mu.Lock()
	delete(o.sessions, token)
	o.mu.Unlock()

	if errClear := o.store.Clear(ctx, token); errClear != nil {
		log.Printf("selection store clear error after order %v: %v", result.OrderID, errClear)
	}

	if o.events != nil {
		o.events.OrderPlaced(ctx, events.OrderPlaced{
			OrderID:    result.OrderID,
			UserRef:    userRef(token),
			Amount:     total,
			MethodCode: req.MethodCode,
			ItemCount:  len(itemIDs),
			PlacedAt:   time.Now(),
		})
	}

	return result, nil
}
