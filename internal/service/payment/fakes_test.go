package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

type memCarts struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*domain.Cart
}

func newMemCarts(carts ...*domain.Cart) *memCarts {
	m := &memCarts{carts: make(map[uuid.UUID]*domain.Cart)}
	for _, c := range carts {
		m.carts[c.ID] = c
	}
	return m
}

func (m *memCarts) GetByID(_ context.Context, id uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCarts) PaymentAmount(_ context.Context, ref domain.CartRef) (domain.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[ref.ID]
	if !ok {
		return domain.Money{}, domain.ErrNotFound
	}
	return c.TotalPrice, nil
}

func (m *memCarts) AddPayment(_ context.Context, ref domain.CartRef, paymentID uuid.UUID) (domain.CartRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[ref.ID]
	if !ok {
		return domain.CartRef{}, domain.ErrNotFound
	}
	if c.Version != ref.Version {
		return domain.CartRef{}, domain.ErrVersionConflict
	}
	c.Version++
	c.PaymentIDs = append(c.PaymentIDs, paymentID)
	return c.Ref(), nil
}

// memPayments applies updates with the same planning rules as the
// Postgres repository.
type memPayments struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
	updates  int
}

func newMemPayments(payments ...*domain.Payment) *memPayments {
	m := &memPayments{payments: make(map[uuid.UUID]*domain.Payment)}
	for _, p := range payments {
		m.payments[p.ID] = p
	}
	return m
}

func (m *memPayments) Create(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memPayments) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *memPayments) Update(_ context.Context, u domain.PaymentUpdate) (*domain.Payment, domain.PlanAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++

	p, ok := m.payments[u.PaymentID]
	if !ok {
		return nil, domain.PlanNoop, domain.ErrNotFound
	}
	if u.InterfaceID != nil {
		p.InterfaceID = u.InterfaceID
	}
	if u.PaymentMethod != nil {
		p.PaymentMethod = u.PaymentMethod
	}

	action := domain.PlanNoop
	if u.Transaction != nil {
		plan, err := domain.PlanTransaction(p.Transactions, *u.Transaction)
		if err != nil {
			return nil, domain.PlanNoop, err
		}
		action = plan.Action
		now := time.Now().UTC()
		switch plan.Action {
		case domain.PlanInsert:
			p.Transactions = append(p.Transactions, u.Transaction.NewTransaction(p.ID, now))
		case domain.PlanFinalize:
			t := p.Transaction(plan.Target.ID)
			t.State = u.Transaction.State
			if u.Transaction.Amount.CentAmount > 0 {
				t.Amount.CentAmount = u.Transaction.Amount.CentAmount
			}
			if u.Transaction.InteractionID != "" {
				iid := u.Transaction.InteractionID
				t.InteractionID = &iid
			}
		case domain.PlanMerge:
			p.Transaction(plan.Target.ID).State = domain.TransactionStateFailure
			if existing := p.Transaction(plan.Existing.ID); existing.State == domain.TransactionStateInitial && u.Transaction.State.IsTerminal() {
				existing.State = u.Transaction.State
			}
		}
	}
	p.Version++
	return clonePayment(p), action, nil
}

// cancellablePayments fails writes made with a done context, like a
// database driver does.
type cancellablePayments struct {
	*memPayments
}

func (c cancellablePayments) Update(ctx context.Context, u domain.PaymentUpdate) (*domain.Payment, domain.PlanAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.PlanNoop, err
	}
	return c.memPayments.Update(ctx, u)
}

func (m *memPayments) get(id uuid.UUID) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePayment(m.payments[id])
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	cp.Transactions = append([]domain.Transaction(nil), p.Transactions...)
	return &cp
}

type fakePSP struct {
	mu    sync.Mutex
	calls []string

	createOrder   func(req psp.CreateOrderRequest) (*psp.Order, error)
	captureOrder  func(orderID string) (*psp.Capture, error)
	refundPartial func(captureID string, amt domain.Money) (*psp.Refund, error)
	refundFull    func(captureID string) (*psp.Refund, error)

	lastOrder psp.CreateOrderRequest
}

func (f *fakePSP) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePSP) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePSP) CreateOrder(_ context.Context, req psp.CreateOrderRequest) (*psp.Order, error) {
	f.record("create_order")
	f.lastOrder = req
	if f.createOrder != nil {
		return f.createOrder(req)
	}
	return &psp.Order{ID: "ORDER-1", Status: psp.OrderStatusPayerActionRequired}, nil
}

func (f *fakePSP) CaptureOrder(_ context.Context, orderID string) (*psp.Capture, error) {
	f.record("capture_order:" + orderID)
	if f.captureOrder != nil {
		return f.captureOrder(orderID)
	}
	return &psp.Capture{OrderID: orderID, OrderStatus: psp.OrderStatusCompleted, CaptureID: "CAP-1", CaptureStatus: psp.CaptureStatusCompleted}, nil
}

func (f *fakePSP) RefundPartial(_ context.Context, captureID string, amt domain.Money) (*psp.Refund, error) {
	f.record("refund_partial:" + captureID)
	if f.refundPartial != nil {
		return f.refundPartial(captureID, amt)
	}
	return &psp.Refund{ID: "REF-1", Status: psp.RefundStatusCompleted}, nil
}

func (f *fakePSP) RefundFull(_ context.Context, captureID string) (*psp.Refund, error) {
	f.record("refund_full:" + captureID)
	if f.refundFull != nil {
		return f.refundFull(captureID)
	}
	return &psp.Refund{ID: "REF-1", Status: psp.RefundStatusCompleted}, nil
}
