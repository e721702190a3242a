package psp

import (
	"context"
	"fmt"
	"net/http"
)

// VerifyWebhookSignature asks the PSP whether a delivered notification was
// signed by it for the configured webhook id.
func (c *Client) VerifyWebhookSignature(ctx context.Context, req VerifyWebhookSignatureRequest) (bool, error) {
	var resp verifyWebhookSignatureResponse
	if err := c.call(ctx, "verify_webhook_signature", http.MethodPost, pathVerifySig, req, false, &resp); err != nil {
		return false, fmt.Errorf("VerifyWebhookSignature: %w", err)
	}
	return resp.VerificationStatus == VerificationStatusSuccess, nil
}
