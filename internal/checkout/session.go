package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/FikFikk/luminastore/internal/apperr"
	"github.com/FikFikk/luminastore/internal/cart"
	"github.com/FikFikk/luminastore/internal/payment"
	"github.com/FikFikk/luminastore/internal/shipping"
)

// quoteSlot is the single "latest request" slot for shipping quotes. Each
// issued request carries the generation current at issue time; a resolving
// request whose generation no longer matches is discarded, which gives
// last-writer-wins semantics under overlapping requests.
type quoteSlot struct {
	generation uint64
	status     QuoteStatus
	couriers   []shipping.Courier
	errMsg     string
	attempts   int
	policy     *backoff.ExponentialBackOff
	timer      *time.Timer
}

type session struct {
	mu          sync.Mutex
	token       string
	step        Step
	items       []cart.Line
	itemIDs     []string
	addressID   string
	destination string

	courierCode  string
	serviceCode  string
	shippingCost int64

	methodCode string
	methodFee  int64

	notes string

	quote       quoteSlot
	methodTimer *time.Timer

	lastTouched time.Time
}

func (s *session) stopTimersLocked() {
	if s.quote.timer != nil {
		s.quote.timer.Stop()
		s.quote.timer = nil
	}
	if s.methodTimer != nil {
		s.methodTimer.Stop()
		s.methodTimer = nil
	}
}

func (s *session) subtotalLocked() int64 {
	var total int64
	for _, line := range s.items {
		total += line.Subtotal
	}
	return total
}

func (s *session) weightLocked() int {
	var total int
	for _, line := range s.items {
		total += line.WeightGrams
	}
	return total
}

// Payable amount before the payment fee; this is what the fee catalog is
// keyed on.
func (s *session) amountLocked() int64 {
	return s.subtotalLocked() + s.shippingCost
}

func (s *session) totalLocked() int64 {
	return s.amountLocked() + s.methodFee
}

func (s *session) resetQuotePolicyLocked(base time.Duration) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = base
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0
	policy.Reset()
	s.quote.policy = policy
}

func (s *session) snapshotLocked() *Snapshot {
	items := make([]cart.Line, len(s.items))
	copy(items, s.items)

	couriers := make([]shipping.Courier, len(s.quote.couriers))
	copy(couriers, s.quote.couriers)

	return &Snapshot{
		Step:             s.step,
		StepName:         s.step.String(),
		Items:            items,
		Subtotal:         s.subtotalLocked(),
		TotalWeightGrams: s.weightLocked(),
		AddressID:        s.addressID,
		CourierCode:      s.courierCode,
		ServiceCode:      s.serviceCode,
		ShippingCost:     s.shippingCost,
		MethodCode:       s.methodCode,
		MethodFee:        s.methodFee,
		Notes:            s.notes,
		Quote: QuoteState{
			Status:   s.quote.status,
			Couriers: couriers,
			Error:    s.quote.errMsg,
			Attempts: s.quote.attempts,
		},
		Total: s.totalLocked(),
	}
}

func (o *Orchestrator) session(token string) (*session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[token]
	if !ok {
		return nil, apperr.Validation("checkout has not been started")
	}
	return s, nil
}

type BeginRequest struct {
	ItemIDs []string
	All     bool
}

// Begin snapshots the selected cart lines and opens (or re-opens) the
// wizard at the address step. An empty request falls back to the stored
// selection only; checking out "everything" requires the explicit All flag.
func (o *Orchestrator) Begin(ctx context.Context, token string, req BeginRequest) (*Snapshot, error) {
	view, err := o.carts.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	ids := req.ItemIDs
	if len(ids) == 0 && !req.All {
		ids, err = o.store.Load(ctx, token)
		if errors.Is(err, ErrNoSelection) {
			return nil, apperr.Validation("no items selected for checkout")
		}
		if err != nil {
			log.Printf("selection store load error: %v", err)
			return nil, apperr.Validation("no items selected for checkout")
		}
	}

	var lines []cart.Line
	if req.All {
		lines = view.Lines
		ids = make([]string, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ItemID)
		}
	} else {
		byID := make(map[string]cart.Line, len(view.Lines))
		for _, line := range view.Lines {
			byID[line.ItemID] = line
		}
		for _, id := range ids {
			line, ok := byID[id]
			if !ok {
				return nil, apperr.Validation("some selected items are no longer in your cart")
			}
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return nil, apperr.Validation("no items selected for checkout")
	}

	if errSave := o.store.Save(ctx, token, ids); errSave != nil {
		log.Printf("selection store save error: %v", errSave)
	}

	o.mu.Lock()
	s, ok := o.sessions[token]
	if !ok {
		s = &session{token: token, quote: quoteSlot{status: QuoteIdle}}
		o.sessions[token] = s
	}
	o.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	weightChanged := s.weightLocked() != totalWeight(lines)
	amountBefore := s.amountLocked()
	s.items = lines
	s.itemIDs = append([]string(nil), ids...)
	s.lastTouched = time.Now()
	if !ok {
		s.step = StepAddress
		s.resetQuotePolicyLocked(o.opts.RetryBaseWait)
	}

	// A different selection weight invalidates any quote in flight or on
	// display for the old weight.
	if ok && weightChanged && s.destination != "" {
		s.quote.attempts = 0
		s.resetQuotePolicyLocked(o.opts.RetryBaseWait)
		o.scheduleQuoteLocked(s, o.opts.Debounce)
	}

	// The payable amount follows the selection; a fee recorded for the
	// old amount must not survive into the new total.
	if ok && s.amountLocked() != amountBefore {
		o.scheduleMethodWarmLocked(s)
	}

	return s.snapshotLocked(), nil
}

func totalWeight(lines []cart.Line) int {
	var total int
	for _, line := range lines {
		total += line.WeightGrams
	}
	return total
}

// State returns the current snapshot.
func (o *Orchestrator) State(_ context.Context, token string) (*Snapshot, error) {
	s, err := o.session(token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	return s.snapshotLocked(), nil
}

// SelectAddress records the delivery address and kicks off a debounced
// shipping quote for (destination, selection weight).
func (o *Orchestrator) SelectAddress(ctx context.Context, token, addressID string) (*Snapshot, error) {
	if addressID == "" {
		return nil, apperr.Validation("please select a delivery address")
	}

	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	addresses, err := o.addresses.Addresses(ctx, token)
	if err != nil {
		return nil, err
	}
	var destination string
	found := false
	for _, addr := range addresses {
		if addr.ID == addressID {
			destination = addr.DestinationID
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.Validation("that address does not exist")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	s.addressID = addressID
	s.destination = destination

	s.quote.attempts = 0
	s.resetQuotePolicyLocked(o.opts.RetryBaseWait)
	o.scheduleQuoteLocked(s, o.opts.Debounce)

	return s.snapshotLocked(), nil
}

// SelectShipping picks a courier service from the current quote. The
// payable amount changes with it, so the payment method catalog for the new
// amount is warmed in the background.
func (o *Orchestrator) SelectShipping(_ context.Context, token, courierCode, serviceCode string) (*Snapshot, error) {
	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()

	if s.quote.status != QuoteReady {
		return nil, apperr.Validation("shipping options are not available yet")
	}

	svc, ok := shipping.FindService(s.quote.couriers, courierCode, serviceCode)
	if !ok {
		return nil, apperr.Validation("that shipping service is not available for your address")
	}

	s.courierCode = courierCode
	s.serviceCode = serviceCode
	s.shippingCost = svc.Cost

	o.scheduleMethodWarmLocked(s)

	return s.snapshotLocked(), nil
}

// Methods lists the grouped payment methods for the current payable amount.
func (o *Orchestrator) Methods(ctx context.Context, token string) ([]payment.Method, error) {
	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	amount := s.amountLocked()
	s.lastTouched = time.Now()
	s.mu.Unlock()

	return o.methods.Methods(ctx, amount)
}

// SelectMethod picks a payment method; its fee comes from the catalog for
// the current amount, so the recorded fee always matches the active
// shipping selection.
func (o *Orchestrator) SelectMethod(ctx context.Context, token, code string) (*Snapshot, error) {
	if code == "" {
		return nil, apperr.Validation("please select a payment method")
	}

	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	amount := s.amountLocked()
	s.mu.Unlock()

	fee, err := o.methods.Fee(ctx, amount, code)
	if err != nil {
		if apperr.ClassOf(err) != apperr.ClassUnknown {
			return nil, err
		}
		return nil, apperr.Validation("that payment method is not available for this amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	s.methodCode = code
	s.methodFee = fee

	return s.snapshotLocked(), nil
}

// SetNotes stores the free-text order notes, capped client-side before any
// network call.
func (o *Orchestrator) SetNotes(_ context.Context, token, notes string) (*Snapshot, error) {
	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(notes) > o.opts.NotesLimit {
		return nil, apperr.Validation(fmt.Sprintf("notes must be at most %d characters", o.opts.NotesLimit))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	s.notes = notes
	return s.snapshotLocked(), nil
}

// GoToStep moves the wizard. Backward jumps are always allowed; a forward
// jump validates every intermediate step in order and the first failure
// aborts the jump with its message, leaving the step unchanged.
func (o *Orchestrator) GoToStep(_ context.Context, token string, target Step) (*Snapshot, error) {
	if target < StepAddress || target > StepReview {
		return nil, apperr.Validation("unknown checkout step")
	}

	s, err := o.session(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()

	if target > s.step {
		for step := s.step; step < target; step++ {
			if errStep := s.stepGateLocked(step); errStep != nil {
				return nil, errStep
			}
		}
	}
	s.step = target
	return s.snapshotLocked(), nil
}

// stepGateLocked is the requirement for leaving the given step forward.
func (s *session) stepGateLocked(step Step) error {
	switch step {
	case StepAddress:
		if s.addressID == "" {
			return apperr.Validation("please select a delivery address")
		}
	case StepShipping:
		if s.serviceCode == "" {
			return apperr.Validation("please select a shipping service")
		}
	case StepPayment:
		if s.methodCode == "" {
			return apperr.Validation("please select a payment method")
		}
	}
	return nil
}

// Cancel drops the in-progress checkout and its stored selection.
func (o *Orchestrator) Cancel(ctx context.Context, token string) error {
	o.mu.Lock()
	s, ok := o.sessions[token]
	if ok {
		delete(o.sessions, token)
	}
	o.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.stopTimersLocked()
		s.mu.Unlock()
	}

	if err := o.store.Clear(ctx, token); err != nil {
		log.Printf("selection store clear error: %v", err)
	}
	return nil
}
