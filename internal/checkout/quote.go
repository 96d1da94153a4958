package checkout

import (
	"context"
	"log"
	"time"

	"github.com/FikFikk/luminastore/internal/apperr"
	"github.com/FikFikk/luminastore/internal/shipping"
)

// scheduleQuoteLocked arms (or re-arms) the debounced quote fetch. The
// generation bump makes any request already in flight stale: whatever it
// resolves to will no longer match the slot and gets dropped on arrival.
// Caller holds s.mu.
func (o *Orchestrator) scheduleQuoteLocked(s *session, wait time.Duration) {
	if s.destination == "" || len(s.items) == 0 {
		return
	}

	if s.quote.timer != nil {
		s.quote.timer.Stop()
	}

	s.quote.generation++
	s.quote.status = QuotePending
	s.quote.errMsg = ""

	generation := s.quote.generation
	destination := s.destination
	weight := s.weightLocked()

	s.quote.timer = time.AfterFunc(wait, func() {
		o.fetchQuote(s, generation, destination, weight)
	})
}

func (o *Orchestrator) fetchQuote(s *session, generation uint64, destination string, weightGrams int) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.QuoteTimeout)
	defer cancel()

	couriers, err := o.quotes.Quote(ctx, destination, weightGrams)

	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.quote.generation {
		// A newer request owns the slot; this response is stale.
		return
	}

	amountBefore := s.amountLocked()

	if err != nil {
		log.Printf("shipping quote failed for destination=%s weight=%d: %v", destination, weightGrams, err)
		s.quote.status = QuoteFailed
		s.quote.errMsg = apperr.MessageOf(err)
		s.quote.couriers = nil
		return
	}

	s.quote.status = QuoteReady
	s.quote.couriers = couriers
	s.quote.errMsg = ""
	s.quote.attempts = 0
	s.resetQuotePolicyLocked(o.opts.RetryBaseWait)

	// A previously selected service may have vanished from the fresh
	// quote; drop the selection rather than submit a dead rate.
	if s.serviceCode != "" {
		if svc, ok := shipping.FindService(couriers, s.courierCode, s.serviceCode); ok {
			s.shippingCost = svc.Cost
		} else {
			s.courierCode = ""
			s.serviceCode = ""
			s.shippingCost = 0
		}
	}

	if s.amountLocked() != amountBefore {
		o.scheduleMethodWarmLocked(s)
	}
}

// RetryQuote is the manual retry for a failed quote. Each attempt waits
// twice as long as the one before; past the cap the slot goes terminal and
// no further provider calls are issued until the selection changes.
func (o *Orchestrator) RetryQuote(_ context.Context, token string) (*Snapshot, error) {
	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()

	if s.destination == "" {
		return nil, apperr.Validation("please select a delivery address first")
	}

	if s.quote.status == QuoteGivenUp {
		return s.snapshotLocked(), nil
	}

	if s.quote.attempts >= o.opts.MaxQuoteRetries {
		if s.quote.timer != nil {
			s.quote.timer.Stop()
			s.quote.timer = nil
		}
		s.quote.generation++ // orphan anything still in flight
		s.quote.status = QuoteGivenUp
		s.quote.errMsg = "we could not fetch shipping rates, please refresh the page and try again"
		return s.snapshotLocked(), nil
	}

	s.quote.attempts++
	wait := s.quote.policy.NextBackOff()
	o.scheduleQuoteLocked(s, wait)

	return s.snapshotLocked(), nil
}

// scheduleMethodWarmLocked refreshes the payment method catalog for the new
// payable amount in the background, debounced so rapid re-selection does
// not stack gateway calls. Every path that changes the payable amount must
// arm this, or a recorded fee from the old amount survives into the total.
// Caller holds s.mu; the catalog calls themselves run lock-free.
func (o *Orchestrator) scheduleMethodWarmLocked(s *session) {
	if s.methodTimer != nil {
		s.methodTimer.Stop()
	}

	amount := s.amountLocked()
	code := s.methodCode
	s.methodTimer = time.AfterFunc(o.opts.Debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.QuoteTimeout)
		defer cancel()
		if _, err := o.methods.Methods(ctx, amount); err != nil {
			log.Printf("payment method warm failed for amount=%d: %v", amount, err)
			return
		}
		if code == "" {
			return
		}

		fee, err := o.methods.Fee(ctx, amount, code)
		if err != nil {
			log.Printf("payment fee refresh failed for amount=%d method=%s: %v", amount, code, err)
			return
		}

		// Apply only if the selection and amount still match what this
		// refresh was scheduled for.
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.methodCode != code || s.amountLocked() != amount {
			return
		}
		s.methodFee = fee
	})
}
