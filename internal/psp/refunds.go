package psp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

// RefundPartial refunds part of a capture and returns the refund as read
// back from the PSP.
func (c *Client) RefundPartial(ctx context.Context, captureID string, amt domain.Money) (*Refund, error) {
	if amt.CentAmount <= 0 {
		return nil, fmt.Errorf("RefundPartial: %w", domain.ErrInvalidAmount)
	}
	m, err := MoneyFrom(amt)
	if err != nil {
		return nil, fmt.Errorf("RefundPartial: %w", err)
	}
	refund, err := c.refund(ctx, captureID, RefundRequest{Amount: &m})
	if err != nil {
		return nil, fmt.Errorf("RefundPartial: %w", err)
	}
	return refund, nil
}

// RefundFull refunds whatever remains on a capture.
func (c *Client) RefundFull(ctx context.Context, captureID string) (*Refund, error) {
	refund, err := c.refund(ctx, captureID, RefundRequest{})
	if err != nil {
		return nil, fmt.Errorf("RefundFull: %w", err)
	}
	return refund, nil
}

func (c *Client) GetRefund(ctx context.Context, refundID string) (*Refund, error) {
	if refundID == "" {
		return nil, fmt.Errorf("GetRefund: empty refund id: %w", domain.ErrInvalidRequest)
	}

	var refund Refund
	if err := c.call(ctx, "get_refund", http.MethodGet, pathRefunds+"/"+url.PathEscape(refundID), nil, false, &refund); err != nil {
		return nil, fmt.Errorf("GetRefund: %w", err)
	}
	return &refund, nil
}

// The creation response is not authoritative for completion, so the
// refund is read back before returning.
func (c *Client) refund(ctx context.Context, captureID string, body RefundRequest) (*Refund, error) {
	if captureID == "" {
		return nil, fmt.Errorf("empty capture id: %w", domain.ErrInvalidRequest)
	}

	var created Refund
	path := pathCaptures + "/" + url.PathEscape(captureID) + "/refund"
	if err := c.call(ctx, "refund_capture", http.MethodPost, path, body, true, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("refund without id: %w", domain.ErrMalformedPSPResponse)
	}

	return c.GetRefund(ctx, created.ID)
}
