package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/amount"
	"github.com/josh-kwaku/psp-connector/internal/domain"
)

type moneyDTO struct {
	CentAmount     int64  `json:"cent_amount"`
	CurrencyCode   string `json:"currency_code"`
	FractionDigits int    `json:"fraction_digits"`
}

func toMoneyDTO(m domain.Money) moneyDTO {
	return moneyDTO{
		CentAmount:     m.CentAmount,
		CurrencyCode:   m.CurrencyCode,
		FractionDigits: m.FractionDigits,
	}
}

func (m moneyDTO) toDomain() domain.Money {
	return domain.Money{
		CentAmount:     m.CentAmount,
		CurrencyCode:   m.CurrencyCode,
		FractionDigits: m.FractionDigits,
	}
}

func (m moneyDTO) validate(field string) []FieldError {
	var errs []FieldError
	if len(m.CurrencyCode) != 3 {
		errs = append(errs, FieldError{Field: field + ".currency_code", Message: "must be a 3-letter ISO 4217 code"})
	}
	if m.FractionDigits < 0 || m.FractionDigits > amount.MaxFractionDigits {
		errs = append(errs, FieldError{Field: field + ".fraction_digits", Message: "must be between 0 and 4"})
	}
	if m.CentAmount <= 0 {
		errs = append(errs, FieldError{Field: field + ".cent_amount", Message: "must be greater than 0"})
	}
	return errs
}

type transactionDTO struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	State         string    `json:"state"`
	Amount        moneyDTO  `json:"amount"`
	InteractionID *string   `json:"interaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type paymentDTO struct {
	ID               uuid.UUID        `json:"id"`
	CartID           uuid.UUID        `json:"cart_id"`
	CustomerID       *string          `json:"customer_id,omitempty"`
	AmountPlanned    moneyDTO         `json:"amount_planned"`
	PaymentInterface string           `json:"payment_interface"`
	PaymentMethod    *string          `json:"payment_method"`
	InterfaceID      *string          `json:"interface_id"`
	Version          int64            `json:"version"`
	Transactions     []transactionDTO `json:"transactions"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	dto := paymentDTO{
		ID:               p.ID,
		CartID:           p.CartID,
		CustomerID:       p.CustomerID,
		AmountPlanned:    toMoneyDTO(p.AmountPlanned),
		PaymentInterface: p.PaymentInterface,
		PaymentMethod:    p.PaymentMethod,
		InterfaceID:      p.InterfaceID,
		Version:          p.Version,
		Transactions:     make([]transactionDTO, 0, len(p.Transactions)),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, t := range p.Transactions {
		dto.Transactions = append(dto.Transactions, transactionDTO{
			ID:            t.ID,
			Type:          string(t.Type),
			State:         string(t.State),
			Amount:        toMoneyDTO(t.Amount),
			InteractionID: t.InteractionID,
			CreatedAt:     t.CreatedAt,
		})
	}
	return dto
}

type modificationDTO struct {
	Outcome          string    `json:"outcome"`
	PaymentReference uuid.UUID `json:"payment_reference"`
	PSPReference     string    `json:"psp_reference,omitempty"`
}
