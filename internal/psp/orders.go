package psp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var order Order
	if err := c.call(ctx, "create_order", http.MethodPost, pathOrders, req, true, &order); err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("CreateOrder: order without id: %w", domain.ErrMalformedPSPResponse)
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("GetOrder: empty order id: %w", domain.ErrInvalidRequest)
	}

	var order Order
	if err := c.call(ctx, "get_order", http.MethodGet, pathOrders+"/"+url.PathEscape(orderID), nil, false, &order); err != nil {
		return nil, fmt.Errorf("GetOrder: %w", err)
	}
	return &order, nil
}

// CaptureOrder captures an approved order. The capture is read from
// purchase_units[0].payments.captures[0]; a response without it cannot be
// reconciled and yields ErrMalformedPSPResponse.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	if orderID == "" {
		return nil, fmt.Errorf("CaptureOrder: empty order id: %w", domain.ErrInvalidRequest)
	}

	var order Order
	path := pathOrders + "/" + url.PathEscape(orderID) + "/capture"
	if err := c.call(ctx, "capture_order", http.MethodPost, path, nil, true, &order); err != nil {
		return nil, fmt.Errorf("CaptureOrder: %w", err)
	}

	detail, err := firstCapture(&order)
	if err != nil {
		return nil, fmt.Errorf("CaptureOrder: %w", err)
	}

	return &Capture{
		OrderID:       order.ID,
		OrderStatus:   order.Status,
		CaptureID:     detail.ID,
		CaptureStatus: detail.Status,
		Amount:        detail.Amount,
	}, nil
}

func firstCapture(o *Order) (*CaptureDetail, error) {
	if len(o.PurchaseUnits) == 0 {
		return nil, fmt.Errorf("no purchase units: %w", domain.ErrMalformedPSPResponse)
	}
	pays := o.PurchaseUnits[0].Payments
	if pays == nil || len(pays.Captures) == 0 {
		return nil, fmt.Errorf("no captures: %w", domain.ErrMalformedPSPResponse)
	}
	if pays.Captures[0].ID == "" {
		return nil, fmt.Errorf("capture without id: %w", domain.ErrMalformedPSPResponse)
	}
	return &pays.Captures[0], nil
}
