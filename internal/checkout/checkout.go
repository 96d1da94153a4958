// Package checkout drives the four-step purchase wizard and keeps its three
// dependent lookups (address book, shipping quote, payment methods)
// consistent with the latest selection. The backend remains the final
// authority; everything here is transient per-session state.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FikFikk/luminastore/internal/backend"
	"github.com/FikFikk/luminastore/internal/cart"
	"github.com/FikFikk/luminastore/internal/events"
	"github.com/FikFikk/luminastore/internal/payment"
	"github.com/FikFikk/luminastore/internal/shipping"
)

type Step int

const (
	StepAddress Step = iota
	StepShipping
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepAddress:
		return "address"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

func ParseStep(name string) (Step, error) {
	switch name {
	case "address":
		return StepAddress, nil
	case "shipping":
		return StepShipping, nil
	case "payment":
		return StepPayment, nil
	case "review":
		return StepReview, nil
	default:
		return 0, fmt.Errorf("unknown checkout step %q", name)
	}
}

type QuoteStatus string

const (
	QuoteIdle    QuoteStatus = "idle"
	QuotePending QuoteStatus = "pending"
	QuoteReady   QuoteStatus = "ready"
	QuoteFailed  QuoteStatus = "failed"
	QuoteGivenUp QuoteStatus = "given_up"
)

// CartFetcher, Quoter, MethodCatalog, AddressAPI and OrderAPI are the
// collaborator slices the orchestrator needs; the concrete services and the
// backend client satisfy them.
type CartFetcher interface {
	Get(ctx context.Context, token string) (*cart.View, error)
}

type Quoter interface {
	Quote(ctx context.Context, destinationID string, weightGrams int) ([]shipping.Courier, error)
}

type MethodCatalog interface {
	Methods(ctx context.Context, amount int64) ([]payment.Method, error)
	Fee(ctx context.Context, amount int64, code string) (int64, error)
}

type AddressAPI interface {
	Addresses(ctx context.Context, token string) ([]backend.Address, error)
}

type OrderAPI interface {
	CreateOrder(ctx context.Context, token string, req backend.OrderRequest) (*backend.OrderResult, error)
}

// EventSink receives the order-placed event after a successful submission.
// *events.Publisher satisfies it and is safe to pass even when nil.
type EventSink interface {
	OrderPlaced(ctx context.Context, event events.OrderPlaced)
}

type Options struct {
	Debounce        time.Duration
	RetryBaseWait   time.Duration
	MaxQuoteRetries int
	NotesLimit      int
	QuoteTimeout    time.Duration
	SessionTTL      time.Duration
}

func (o *Options) fillDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = 400 * time.Millisecond
	}
	if o.RetryBaseWait <= 0 {
		o.RetryBaseWait = time.Second
	}
	if o.MaxQuoteRetries <= 0 {
		o.MaxQuoteRetries = 3
	}
	if o.NotesLimit <= 0 {
		o.NotesLimit = 200
	}
	if o.QuoteTimeout <= 0 {
		o.QuoteTimeout = 10 * time.Second
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
}

type QuoteState struct {
	Status   QuoteStatus        `json:"status"`
	Couriers []shipping.Courier `json:"couriers,omitempty"`
	Error    string             `json:"error,omitempty"`
	Attempts int                `json:"attempts"`
}

// Snapshot is the UI-facing projection of one checkout session.
type Snapshot struct {
	Step             Step        `json:"-"`
	StepName         string      `json:"step"`
	Items            []cart.Line `json:"items"`
	Subtotal         int64       `json:"subtotal"`
	TotalWeightGrams int         `json:"total_weight_grams"`
	AddressID        string      `json:"address_id,omitempty"`
	CourierCode      string      `json:"courier_code,omitempty"`
	ServiceCode      string      `json:"service_code,omitempty"`
	ShippingCost     int64       `json:"shipping_cost"`
	MethodCode       string      `json:"payment_method,omitempty"`
	MethodFee        int64       `json:"payment_fee"`
	Notes            string      `json:"notes,omitempty"`
	Quote            QuoteState  `json:"quote"`
	Total            int64       `json:"total"`
}

type Orchestrator struct {
	carts     CartFetcher
	quotes    Quoter
	methods   MethodCatalog
	addresses AddressAPI
	orders    OrderAPI
	store     SelectionStore
	events    EventSink
	opts      Options

	mu       sync.Mutex
	sessions map[string]*session

	stopJanitor chan struct{}
	wg          sync.WaitGroup
}

func NewOrchestrator(
	carts CartFetcher,
	quotes Quoter,
	methods MethodCatalog,
	addresses AddressAPI,
	orders OrderAPI,
	store SelectionStore,
	events EventSink,
	opts Options,
) *Orchestrator {
	opts.fillDefaults()
	o := &Orchestrator{
		carts:       carts,
		quotes:      quotes,
		methods:     methods,
		addresses:   addresses,
		orders:      orders,
		store:       store,
		events:      events,
		opts:        opts,
		sessions:    make(map[string]*session),
		stopJanitor: make(chan struct{}),
	}

	o.wg.Add(1)
	go o.janitorLoop()

	return o
}

// Close stops the session janitor and all pending timers.
func (o *Orchestrator) Close() {
	close(o.stopJanitor)
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	for token, s := range o.sessions {
		s.mu.Lock()
		s.stopTimersLocked()
		s.mu.Unlock()
		delete(o.sessions, token)
	}
}

func (o *Orchestrator) janitorLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.expireSessions()
		case <-o.stopJanitor:
			return
		}
	}
}

func (o *Orchestrator) expireSessions() {
	cutoff := time.Now().Add(-o.opts.SessionTTL)

	o.mu.Lock()
	defer o.mu.Unlock()
	for token, s := range o.sessions {
		s.mu.Lock()
		idle := s.lastTouched.Before(cutoff)
		if idle {
			s.stopTimersLocked()
		}
		s.mu.Unlock()
		if idle {
			delete(o.sessions, token)
		}
	}
}
