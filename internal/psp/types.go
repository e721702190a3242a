package psp

import (
	"encoding/json"

	"github.com/josh-kwaku/psp-connector/internal/amount"
	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const (
	IntentCapture = "CAPTURE"

	OrderStatusCreated             = "CREATED"
	OrderStatusSaved               = "SAVED"
	OrderStatusApproved            = "APPROVED"
	OrderStatusVoided              = "VOIDED"
	OrderStatusCompleted           = "COMPLETED"
	OrderStatusPayerActionRequired = "PAYER_ACTION_REQUIRED"

	CaptureStatusCompleted = "COMPLETED"
	CaptureStatusDeclined  = "DECLINED"
	CaptureStatusPending   = "PENDING"

	RefundStatusCompleted = "COMPLETED"
	RefundStatusPending   = "PENDING"
	RefundStatusFailed    = "FAILED"
	RefundStatusCancelled = "CANCELLED"

	VerificationStatusSuccess = "SUCCESS"
)

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	AppID       string `json:"app_id,omitempty"`
}

// Money is the PSP's amount representation.
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func MoneyFrom(m domain.Money) (Money, error) {
	value, err := amount.FromMoney(m)
	if err != nil {
		return Money{}, err
	}
	return Money{CurrencyCode: m.CurrencyCode, Value: value}, nil
}

// ToDomain decodes the amount with the caller's fraction digits.
func (m Money) ToDomain(fractionDigits int) (domain.Money, error) {
	minor, err := amount.ToMinorUnits(m.Value, fractionDigits)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.Money{CentAmount: minor, CurrencyCode: m.CurrencyCode, FractionDigits: fractionDigits}, nil
}

type CreateOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	PaymentSource *PaymentSource `json:"payment_source,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string                `json:"reference_id,omitempty"`
	InvoiceID   string                `json:"invoice_id,omitempty"`
	Amount      *Money                `json:"amount,omitempty"`
	Shipping    *Shipping             `json:"shipping,omitempty"`
	Payments    *PurchaseUnitPayments `json:"payments,omitempty"`
}

type Shipping struct {
	Type    string           `json:"type,omitempty"`
	Name    *ShippingName    `json:"name,omitempty"`
	Address *ShippingAddress `json:"address,omitempty"`
}

type ShippingName struct {
	FullName string `json:"full_name"`
}

type ShippingAddress struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	AdminArea2   string `json:"admin_area_2,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code"`
}

type PaymentSource struct {
	PayPal *PayPalSource `json:"paypal,omitempty"`
}

type PayPalSource struct {
	ExperienceContext ExperienceContext `json:"experience_context"`
}

type ExperienceContext struct {
	PaymentMethodPreference string `json:"payment_method_preference,omitempty"`
	UserAction              string `json:"user_action,omitempty"`
	Locale                  string `json:"locale,omitempty"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Intent        string         `json:"intent,omitempty"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units,omitempty"`
	Links         []Link         `json:"links,omitempty"`
}

// ApproveURL is the link the payer follows to approve the order.
func (o *Order) ApproveURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

type PurchaseUnitPayments struct {
	Captures []CaptureDetail `json:"captures,omitempty"`
	Refunds  []Refund        `json:"refunds,omitempty"`
}

type CaptureDetail struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Amount    *Money `json:"amount,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
}

// Capture is the reconciled outcome of capturing an order.
type Capture struct {
	OrderID       string
	OrderStatus   string
	CaptureID     string
	CaptureStatus string
	Amount        *Money
}

func (c *Capture) Completed() bool {
	return c.CaptureStatus == CaptureStatusCompleted
}

type RefundRequest struct {
	Amount      *Money `json:"amount,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	NoteToPayer string `json:"note_to_payer,omitempty"`
}

type Refund struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Amount    *Money `json:"amount,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Links     []Link `json:"links,omitempty"`
}

// Accepted reports whether the PSP took the refund. PENDING refunds settle
// later and are reconciled by notification.
func (r *Refund) Accepted() bool {
	return r.Status == RefundStatusCompleted || r.Status == RefundStatusPending
}

type VerifyWebhookSignatureRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookSignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}
