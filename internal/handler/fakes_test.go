package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/psp"
	"github.com/josh-kwaku/psp-connector/internal/service/payment"
)

type fakePaymentService struct {
	payments map[uuid.UUID]*domain.Payment

	createReq  *payment.CreatePaymentRequest
	createRes  *payment.CreatePaymentResult
	confirmReq *payment.ConfirmPaymentRequest
	modifyID   uuid.UUID
	modifyAct  payment.Action
	result     *payment.ModificationResult
	err        error
}

func newFakePaymentService(payments ...*domain.Payment) *fakePaymentService {
	f := &fakePaymentService{payments: map[uuid.UUID]*domain.Payment{}}
	for _, p := range payments {
		f.payments[p.ID] = p
	}
	return f
}

func (f *fakePaymentService) CreatePayment(_ context.Context, req payment.CreatePaymentRequest) (*payment.CreatePaymentResult, error) {
	f.createReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.createRes, nil
}

func (f *fakePaymentService) ConfirmPayment(_ context.Context, req payment.ConfirmPaymentRequest) (*payment.ModificationResult, error) {
	f.confirmReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePaymentService) ModifyPayment(_ context.Context, id uuid.UUID, a payment.Action) (*payment.ModificationResult, error) {
	f.modifyID = id
	f.modifyAct = a
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePaymentService) GetPayment(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePaymentService) Config() payment.Settings {
	return payment.Settings{ClientID: "client-1", Environment: psp.EnvironmentSandbox}
}

func (f *fakePaymentService) SupportedComponents() []payment.Component {
	return []payment.Component{{Type: domain.PaymentInterfacePayPal}}
}

func testPayment(cartID uuid.UUID) *domain.Payment {
	orderID := "ORDER-1"
	return &domain.Payment{
		ID:               uuid.New(),
		CartID:           cartID,
		AmountPlanned:    domain.Money{CentAmount: 3000, CurrencyCode: "EUR", FractionDigits: 2},
		PaymentInterface: domain.PaymentInterfacePayPal,
		InterfaceID:      &orderID,
		Version:          2,
	}
}

func decodeResponse(t *testing.T, body []byte) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func dataMap(t *testing.T, resp APIResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "response data is not an object")
	return m
}
