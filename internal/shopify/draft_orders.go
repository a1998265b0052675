package shopify

import (
	"context"
	"encoding/json"
	"fmt"
)

// CheckoutItem is one cart line forwarded into draft order creation.
type CheckoutItem struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// DraftOrder is the created draft with its hosted invoice URL. The customer
// completes payment on the platform's hosted checkout page.
type DraftOrder struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoiceUrl"`
}

const draftOrderCreateMutation = `
mutation DraftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      invoiceUrl
    }
    userErrors {
      field
      message
    }
  }
}
`

// CreateDraftOrder creates a draft order for the given cart lines. The
// synthesized account email tags the order so it can later be resolved back
// to the account even though checkout collects no real email. Platform
// userErrors (bad variant, zero quantity) come back as a UserErrorList.
func (c *Client) CreateDraftOrder(ctx context.Context, email string, items []CheckoutItem, note string) (*DraftOrder, error) {
	lineItems := make([]map[string]any, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, map[string]any{
			"variantId": item.VariantID,
			"quantity":  item.Quantity,
		})
	}
	input := map[string]any{
		"lineItems": lineItems,
	}
	if email != "" {
		input["email"] = email
	}
	if note != "" {
		input["note"] = note
	}

	data, err := c.Execute(ctx, "draft_order_create", draftOrderCreateMutation, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("draft order create failed: %w", err)
	}

	var payload struct {
		DraftOrderCreate struct {
			DraftOrder *DraftOrder   `json:"draftOrder"`
			UserErrors UserErrorList `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode draft order payload: %w", err)
	}
	if len(payload.DraftOrderCreate.UserErrors) > 0 {
		return nil, payload.DraftOrderCreate.UserErrors
	}
	if payload.DraftOrderCreate.DraftOrder == nil {
		return nil, fmt.Errorf("draft order create failed: empty response")
	}
	return payload.DraftOrderCreate.DraftOrder, nil
}
