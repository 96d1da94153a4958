package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FikFikk/luminastore/internal/apperr"
	"github.com/FikFikk/luminastore/internal/backend"
	"github.com/FikFikk/luminastore/internal/cart"
	"github.com/FikFikk/luminastore/internal/events"
	"github.com/FikFikk/luminastore/internal/payment"
	"github.com/FikFikk/luminastore/internal/shipping"
)

type mockCarts struct {
	m     sync.Mutex
	view  *cart.View
	err   error
	calls int
}

func (m *mockCarts) Get(context.Context, string) (*cart.View, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

type mockQuotes struct {
	m        sync.Mutex
	couriers []shipping.Courier
	err      error
	calls    int
}

func (m *mockQuotes) Quote(context.Context, string, int) ([]shipping.Courier, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]shipping.Courier, len(m.couriers))
	copy(out, m.couriers)
	return out, nil
}

func (m *mockQuotes) callCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.calls
}

func (m *mockQuotes) setCouriers(couriers []shipping.Courier) {
	m.m.Lock()
	defer m.m.Unlock()
	m.couriers = couriers
}

type mockMethods struct {
	m       sync.Mutex
	methods []payment.Method
	feeFn   func(amount int64) int64
	err     error

	feeEntered chan struct{}
	feeRelease chan struct{}
}

func (m *mockMethods) Methods(context.Context, int64) ([]payment.Method, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append(append([]payment.Method(nil), m.methods...), payment.CashOnDelivery()), nil
}

func (m *mockMethods) Fee(_ context.Context, amount int64, code string) (int64, error) {
	m.m.Lock()
	err := m.err
	feeFn := m.feeFn
	entered, release := m.feeEntered, m.feeRelease
	m.m.Unlock()

	if release != nil {
		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		<-release
	}

	if err != nil {
		return 0, err
	}
	if code == payment.CODCode {
		return 0, nil
	}
	if feeFn != nil {
		return feeFn(amount), nil
	}

	m.m.Lock()
	defer m.m.Unlock()
	for _, method := range m.methods {
		if method.Code == code {
			return method.Fee, nil
		}
	}
	return 0, errors.New("method not offered")
}

type mockAddresses struct {
	addresses []backend.Address
	err       error
}

func (m *mockAddresses) Addresses(context.Context, string) ([]backend.Address, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.addresses, nil
}

type mockOrders struct {
	m      sync.Mutex
	result *backend.OrderResult
	err    error
	gotReq *backend.OrderRequest
}

func (m *mockOrders) CreateOrder(_ context.Context, _ string, req backend.OrderRequest) (*backend.OrderResult, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gotReq = &req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockEvents struct {
	m      sync.Mutex
	placed []events.OrderPlaced
}

func (m *mockEvents) OrderPlaced(_ context.Context, event events.OrderPlaced) {
	m.m.Lock()
	defer m.m.Unlock()
	m.placed = append(m.placed, event)
}

type fixture struct {
	orch      *Orchestrator
	carts     *mockCarts
	quotes    *mockQuotes
	methods   *mockMethods
	addresses *mockAddresses
	orders    *mockOrders
	events    *mockEvents
	store     *RedisSelectionStore
}

func twoItemView() *cart.View {
	return &cart.View{
		Lines: []cart.Line{
			{ItemID: "ci-1", ProductID: 1, Name: "Batik Shirt", Quantity: 1, UnitPrice: 50000, Subtotal: 50000, WeightGrams: 500, InStock: true},
			{ItemID: "ci-2", ProductID: 2, Name: "Leather Wallet", Quantity: 1, UnitPrice: 78000, Subtotal: 78000, WeightGrams: 700, InStock: true},
		},
		Summary: cart.Summary{ItemCount: 2, TotalPrice: 128000, TotalWeightGrams: 1200},
	}
}

func jneOptions() []shipping.Courier {
	return []shipping.Courier{
		{Code: "jne", Name: "JNE", Services: []shipping.Service{
			{Code: "REG", Name: "Regular", Cost: 20000, ETD: "2-3"},
		}},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	f := &fixture{
		carts:  &mockCarts{view: twoItemView()},
		quotes: &mockQuotes{couriers: jneOptions()},
		methods: &mockMethods{methods: []payment.Method{
			{Code: "BVA", Name: "BCA Virtual Account", Fee: 3000, Category: payment.CategoryBankTransfer},
		}},
		addresses: &mockAddresses{addresses: []backend.Address{
			{ID: "addr-1", DestinationID: "dest-1"},
			{ID: "addr-2", DestinationID: "dest-2"},
		}},
		orders: &mockOrders{result: &backend.OrderResult{OrderID: "ord-123", PaymentURL: "https://pay.example/ord-123"}},
		events: &mockEvents{},
		store:  NewRedisSelectionStore(rc, time.Hour),
	}

	f.orch = NewOrchestrator(f.carts, f.quotes, f.methods, f.addresses, f.orders, f.store, f.events, Options{
		Debounce:        2 * time.Millisecond,
		RetryBaseWait:   time.Millisecond,
		MaxQuoteRetries: 3,
		NotesLimit:      20,
		QuoteTimeout:    time.Second,
	})
	t.Cleanup(f.orch.Close)

	return f
}

func (f *fixture) begin(t *testing.T, token string) *Snapshot {
	t.Helper()
	snap, err := f.orch.Begin(context.Background(), token, BeginRequest{ItemIDs: []string{"ci-1", "ci-2"}})
	require.NoError(t, err)
	return snap
}

func (f *fixture) waitQuoteReady(t *testing.T, token string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := f.orch.State(context.Background(), token)
		return err == nil && snap.Quote.Status == QuoteReady
	}, time.Second, time.Millisecond)
}

func TestBegin_WithoutSelectionIsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Begin(context.Background(), "tok", BeginRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
}

func TestBegin_UsesStoredSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, "tok", []string{"ci-2"}))

	snap, err := f.orch.Begin(ctx, "tok", BeginRequest{})
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "ci-2", snap.Items[0].ItemID)
}

func TestBegin_AllFlagSelectsWholeCart(t *testing.T) {
	f := newFixture(t)

	snap, err := f.orch.Begin(context.Background(), "tok", BeginRequest{All: true})
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, int64(128000), snap.Subtotal)
	assert.Equal(t, 1200, snap.TotalWeightGrams)
}

func TestBegin_UnknownItemRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Begin(context.Background(), "tok", BeginRequest{ItemIDs: []string{"ci-1", "ghost"}})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
}

func TestStepGating_AdvanceWithoutAddress(t *testing.T) {
	f := newFixture(t)
	f.begin(t, "tok")

	_, err := f.orch.GoToStep(context.Background(), "tok", StepShipping)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))

	snap, err := f.orch.State(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StepAddress, snap.Step, "step must remain unchanged after a rejected advance")
}

func TestStepGating_DirectJumpValidatesIntermediateSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	_, err := f.orch.SelectAddress(ctx, "tok", "addr-1")
	require.NoError(t, err)
	f.waitQuoteReady(t, "tok")

	// Address is selected but shipping is not: a jump to review must fail
	// on the shipping gate, the first unmet requirement.
	_, err = f.orch.GoToStep(ctx, "tok", StepReview)
	require.Error(t, err)
	assert.Contains(t, apperr.MessageOf(err), "shipping")

	snap, err := f.orch.State(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, StepAddress, snap.Step)
}

func TestStepGating_BackwardAlwaysAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	_, err := f.orch.SelectAddress(ctx, "tok", "addr-1")
	require.NoError(t, err)

	snap, err := f.orch.GoToStep(ctx, "tok", StepShipping)
	require.NoError(t, err)
	assert.Equal(t, StepShipping, snap.Step)

	snap, err = f.orch.GoToStep(ctx, "tok", StepAddress)
	require.NoError(t, err)
	assert.Equal(t, StepAddress, snap.Step)
}

func TestQuote_FetchedAfterAddressSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	snap, err := f.orch.SelectAddress(ctx, "tok", "addr-1")
	require.NoError(t, err)
	assert.Equal(t, QuotePending, snap.Quote.Status)

	f.waitQuoteReady(t, "tok")
	snap, err = f.orch.State(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, snap.Quote.Couriers, 1)
	assert.Equal(t, "jne", snap.Quote.Couriers[0].Code)
}

func TestQuote_StaleResponseSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	// First quote (request A) resolves with the JNE payload.
	_, err := f.orch.SelectAddress(ctx, "tok", "addr-1")
	require.NoError(t, err)
	f.waitQuoteReady(t, "tok")

	// Request B: new address, new payload.
	f.quotes.setCouriers([]shipping.Courier{
		{Code: "pos", Name: "POS Indonesia", Services: []shipping.Service{
			{Code: "KILAT", Cost: 18000},
		}},
	})
	_, err = f.orch.SelectAddress(ctx, "tok", "addr-2")
	require.NoError(t, err)
	f.waitQuoteReady(t, "tok")

	// Request A resolves last: replay it with its old generation tag and
	// its old payload. It must be discarded.
	f.quotes.setCouriers(jneOptions())
	s, err := f.orch.session("tok")
	require.NoError(t, err)
	f.orch.fetchQuote(s, 1, "dest-1", 1200)

	snap, err := f.orch.State(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, snap.Quote.Couriers, 1)
	assert.Equal(t, "pos", snap.Quote.Couriers[0].Code, "stale response must not clobber the newer result")
}

func TestQuote_RetryCapReachesTerminalGiveUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quotes.err = errors.New("provider down")
	f.begin(t, "tok")

	_, err := f.orch.SelectAddress(ctx, "tok", "addr-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, errState := f.orch.State(ctx, "tok")
		return errState == nil && snap.Quote.Status == QuoteFailed
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, f.quotes.callCount())

	// Three manual retries are allowed, each issuing one call.
	for attempt := 1; attempt <= 3; attempt++ {
		_, err = f.orch.RetryQuote(ctx, "tok")
		require.NoError(t, err)
		want := attempt + 1
		require.Eventually(t, func() bool {
			return f.quotes.callCount() == want
		}, time.Second, time.Millisecond)
	}

	// The fourth goes terminal without a call.
	snap, err := f.orch.RetryQuote(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, QuoteGivenUp, snap.Quote.Status)
	assert.Contains(t, snap.Quote.Error, "refresh")

	// And stays terminal: no further calls however often it is clicked.
	for i := 0; i < 3; i++ {
		snap, err = f.orch.RetryQuote(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, QuoteGivenUp, snap.Quote.Status)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, f.quotes.callCount())
}

func TestQuote_RetryDelayDoubles(t *testing.T) {
	f := newFixture(t)
	f.begin(t, "tok")

	s, err := f.orch.session("tok")
	require.NoError(t, err)

	s.mu.Lock()
	first := s.quote.policy.NextBackOff()
	second := s.quote.policy.NextBackOff()
	third := s.quote.policy.NextBackOff()
	s.mu.Unlock()

	assert.Equal(t, time.Millisecond, first)
	assert.Equal(t, 2*time.Millisecond, second)
	assert.Equal(t, 4*time.Millisecond, third)
}

func selectEverything(t *testing.T, f *fixture, token string, order []string) *Snapshot {
	t.Helper()
	ctx := context.Background()

	var snap *Snapshot
	var err error
	for _, what := range order {
		switch what {
		case "address":
			snap, err = f.orch.SelectAddress(ctx, token, "addr-1")
			require.NoError(t, err)
			f.waitQuoteReady(t, token)
		case "shipping":
			snap, err = f.orch.SelectShipping(ctx, token, "jne", "REG")
			require.NoError(t, err)
		case "payment":
			snap, err = f.orch.SelectMethod(ctx, token, "BVA")
			require.NoError(t, err)
		}
	}
	snap, err = f.orch.State(ctx, token)
	require.NoError(t, err)
	return snap
}

func TestTotal_IndependentOfSelectionOrder(t *testing.T) {
	// Shipping needs a ready quote, so address always precedes shipping;
	// payment can slot in anywhere.
	orders := [][]string{
		{"address", "shipping", "payment"},
		{"address", "payment", "shipping"},
		{"payment", "address", "shipping"},
	}

	for i, order := range orders {
		f := newFixture(t)
		token := "tok"
		f.begin(t, token)

		snap := selectEverything(t, f, token, order)
		assert.Equal(t, int64(128000+20000+3000), snap.Total, "order %d: %v", i, order)
		assert.Equal(t, int64(20000), snap.ShippingCost)
		assert.Equal(t, int64(3000), snap.MethodFee)
	}
}

func TestTotal_CODHasZeroFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	selectEverything(t, f, "tok", []string{"address", "shipping"})

	snap, err := f.orch.SelectMethod(ctx, "tok", payment.CODCode)
	require.NoError(t, err)
	assert.Zero(t, snap.MethodFee)
	assert.Equal(t, int64(148000), snap.Total)
}

func TestMethodFee_TracksAmountAcrossReBegin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Tiered fees: the recorded fee must follow the payable amount.
	f.methods.m.Lock()
	f.methods.feeFn = func(amount int64) int64 {
		if amount >= 148000 {
			return 3000
		}
		return 1000
	}
	f.methods.m.Unlock()

	f.begin(t, "tok")
	snap := selectEverything(t, f, "tok", []string{"address", "shipping", "payment"})
	require.Equal(t, int64(3000), snap.MethodFee)
	require.Equal(t, int64(151000), snap.Total)

	// Narrowing the selection to one item drops the amount a tier; the
	// fee recorded for the old amount must not survive into the total.
	_, err := f.orch.Begin(ctx, "tok", BeginRequest{ItemIDs: []string{"ci-1"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, errState := f.orch.State(ctx, "tok")
		return errState == nil && s.Quote.Status == QuoteReady && s.MethodFee == 1000
	}, time.Second, time.Millisecond)

	snap, err = f.orch.State(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), snap.Subtotal)
	assert.Equal(t, int64(20000), snap.ShippingCost)
	assert.Equal(t, int64(71000), snap.Total)
}

func TestSnapshot_NotBlockedByInFlightFeeRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")
	selectEverything(t, f, "tok", []string{"address", "shipping", "payment"})

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)
	f.methods.m.Lock()
	f.methods.feeEntered = entered
	f.methods.feeRelease = release
	f.methods.m.Unlock()

	// Re-selecting the service schedules a fee refresh for the selected
	// method; hold that refresh inside the catalog call.
	_, err := f.orch.SelectShipping(ctx, "tok", "jne", "REG")
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("fee refresh never started")
	}

	done := make(chan struct{})
	go func() {
		_, errState := f.orch.State(ctx, "tok")
		assert.NoError(t, errState)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("snapshot blocked behind the in-flight fee lookup")
	}
}

func TestSetNotes_CapEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	_, err := f.orch.SetNotes(ctx, "tok", "please ring the bell twice") // 26 chars, limit 20
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))

	snap, err := f.orch.SetNotes(ctx, "tok", "ring the bell")
	require.NoError(t, err)
	assert.Equal(t, "ring the bell", snap.Notes)
}

func TestSelectShipping_RequiresReadyQuote(t *testing.T) {
	f := newFixture(t)

	f.begin(t, "tok")
	_, err := f.orch.SelectShipping(context.Background(), "tok", "jne", "REG")
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
}

func TestSelectShipping_UnknownServiceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	_, err := f.orch.SelectAddress(ctx, "tok", "addr-1")
	require.NoError(t, err)
	f.waitQuoteReady(t, "tok")

	_, err = f.orch.SelectShipping(ctx, "tok", "jne", "OKE")
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
}

func TestSubmit_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := "tok"
	f.begin(t, token)

	snap := selectEverything(t, f, token, []string{"address", "shipping", "payment"})
	require.Equal(t, int64(151000), snap.Total)

	_, err := f.orch.SetNotes(ctx, token, "fragile")
	require.NoError(t, err)

	result, err := f.orch.Submit(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ord-123", result.OrderID)
	assert.Equal(t, "https://pay.example/ord-123", result.PaymentURL)

	// The backend saw exactly the assembled selection.
	req := f.orders.gotReq
	require.NotNil(t, req)
	assert.Equal(t, []string{"ci-1", "ci-2"}, req.ItemIDs)
	assert.Equal(t, "addr-1", req.AddressID)
	assert.Equal(t, "jne", req.CourierCode)
	assert.Equal(t, "REG", req.ServiceCode)
	assert.Equal(t, int64(20000), req.ShippingCost)
	assert.Equal(t, "BVA", req.MethodCode)
	assert.Equal(t, int64(3000), req.PaymentFee)
	assert.Equal(t, "fragile", req.Notes)

	// Transient selection is cleared and the session is gone.
	_, err = f.store.Load(ctx, token)
	assert.ErrorIs(t, err, ErrNoSelection)
	_, err = f.orch.State(ctx, token)
	assert.Error(t, err)

	// The order-placed event carries the payable total and a pseudonymous
	// user reference, never the raw token.
	require.Len(t, f.events.placed, 1)
	assert.Equal(t, "ord-123", f.events.placed[0].OrderID)
	assert.Equal(t, int64(151000), f.events.placed[0].Amount)
	assert.Equal(t, "BVA", f.events.placed[0].MethodCode)
	assert.NotEmpty(t, f.events.placed[0].UserRef)
	assert.NotContains(t, f.events.placed[0].UserRef, token)
}

func TestSubmit_WithoutMethodRejected(t *testing.T) {
	f := newFixture(t)
	f.begin(t, "tok")

	selectEverything(t, f, "tok", []string{"address", "shipping"})

	_, err := f.orch.Submit(context.Background(), "tok")
	require.Error(t, err)
	assert.Contains(t, apperr.MessageOf(err), "payment")
}

func TestSubmit_InsufficientStockRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")
	selectEverything(t, f, "tok", []string{"address", "shipping", "payment"})

	// The backend now reports the wallet out of stock.
	view := twoItemView()
	view.Lines[1].InStock = false
	f.carts.m.Lock()
	f.carts.view = view
	f.carts.m.Unlock()

	_, err := f.orch.Submit(ctx, "tok")
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
	assert.Contains(t, apperr.MessageOf(err), "Leather Wallet")

	// Selections survive the failure.
	snap, err := f.orch.State(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "addr-1", snap.AddressID)
	assert.Equal(t, "BVA", snap.MethodCode)
}

func TestSubmit_BackendFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")
	selectEverything(t, f, "tok", []string{"address", "shipping", "payment"})

	f.orders.m.Lock()
	f.orders.err = apperr.Upstream("", errors.New("boom"))
	f.orders.m.Unlock()

	_, err := f.orch.Submit(ctx, "tok")
	require.Error(t, err)
	assert.Equal(t, apperr.ClassUpstream, apperr.ClassOf(err))

	snap, err := f.orch.State(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(151000), snap.Total)
	assert.Equal(t, StepReview, snap.Step, "a submit that passed the gates leaves the wizard at review")
	assert.Empty(t, f.events.placed)
}

func TestCancel_DropsSessionAndSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.begin(t, "tok")

	require.NoError(t, f.orch.Cancel(ctx, "tok"))

	_, err := f.orch.State(ctx, "tok")
	assert.Error(t, err)
	_, err = f.store.Load(ctx, "tok")
	assert.ErrorIs(t, err, ErrNoSelection)
}
