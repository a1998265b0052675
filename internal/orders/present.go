package orders

import (
	"strings"
	"time"

	"nutrikart/internal/shopify"
)

// PresentedAddress is the postal block shape the storefront UI renders.
type PresentedAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

// PresentedLineItem is one purchased item as rendered.
type PresentedLineItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// PresentedTracking is one carrier tracking entry as rendered.
type PresentedTracking struct {
	Carrier string `json:"carrier"`
	Number  string `json:"number"`
	URL     string `json:"url,omitempty"`
}

// PresentedOrder is the response shape consumed by the account and support
// order views.
type PresentedOrder struct {
	ID                string              `json:"id"`
	OrderNumber       string              `json:"orderNumber"`
	CreatedAt         time.Time           `json:"createdAt"`
	DisplayStatus     string              `json:"displayStatus"`
	FinancialStatus   string              `json:"financialStatus"`
	FulfillmentStatus string              `json:"fulfillmentStatus"`
	Total             float64             `json:"total"`
	Subtotal          float64             `json:"subtotal"`
	Shipping          float64             `json:"shipping"`
	CurrencyCode      string              `json:"currencyCode"`
	LineItems         []PresentedLineItem `json:"lineItems"`
	ShippingAddress   *PresentedAddress   `json:"shippingAddress"`
	BillingAddress    *PresentedAddress   `json:"billingAddress"`
	Tracking          []PresentedTracking `json:"tracking"`
	DeliveryStatus    string              `json:"deliveryStatus,omitempty"`
}

// Present maps a raw upstream order into the UI response shape. Pure
// mapping, no I/O.
func Present(order shopify.Order) PresentedOrder {
	presented := PresentedOrder{
		ID:                order.ID,
		OrderNumber:       order.Name,
		CreatedAt:         order.CreatedAt,
		DisplayStatus:     displayStatus(order.FinancialStatus, order.FulfillmentStatus),
		FinancialStatus:   order.FinancialStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		Total:             order.TotalAmount,
		CurrencyCode:      order.CurrencyCode,
		ShippingAddress:   presentAddress(order.ShippingAddress),
		BillingAddress:    presentAddress(order.BillingAddress),
	}

	for _, item := range order.LineItems {
		presented.LineItems = append(presented.LineItems, PresentedLineItem{
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			ImageURL:  item.ImageURL,
		})
	}

	presented.Subtotal = subtotal(order)
	if shipping := order.TotalAmount - presented.Subtotal; shipping > 0 {
		presented.Shipping = shipping
	}

	presented.Tracking, presented.DeliveryStatus = extractTracking(order.Fulfillments)
	return presented
}

// PresentAll maps a slice of orders.
func PresentAll(orders []shopify.Order) []PresentedOrder {
	out := make([]PresentedOrder, 0, len(orders))
	for _, order := range orders {
		out = append(out, Present(order))
	}
	return out
}

func displayStatus(financial, fulfillment string) string {
	if strings.EqualFold(financial, "refunded") {
		return "Refunded"
	}
	if strings.EqualFold(fulfillment, "fulfilled") {
		return "Completed"
	}
	if fulfillment != "" {
		return fulfillment
	}
	return "Pending"
}

// subtotal sums quantity × unit price over line items, falling back to the
// order total when the snapshot carries no line items.
func subtotal(order shopify.Order) float64 {
	if len(order.LineItems) == 0 {
		return order.TotalAmount
	}
	var sum float64
	for _, item := range order.LineItems {
		sum += float64(item.Quantity) * item.UnitPrice
	}
	return sum
}

// extractTracking flattens every fulfillment's tracking entries, keeping
// only entries with a carrier name or tracking number, and derives a coarse
// delivery status from the first fulfillment.
func extractTracking(fulfillments []shopify.Fulfillment) ([]PresentedTracking, string) {
	var tracking []PresentedTracking
	for _, f := range fulfillments {
		for _, t := range f.Tracking {
			if t.Company == "" && t.Number == "" {
				continue
			}
			tracking = append(tracking, PresentedTracking{
				Carrier: t.Company,
				Number:  t.Number,
				URL:     t.URL,
			})
		}
	}

	status := ""
	if len(fulfillments) > 0 {
		status = fulfillments[0].Status
	}
	if status == "" && len(tracking) > 0 {
		status = "Tracking added"
	}
	return tracking, status
}

func presentAddress(addr *shopify.Address) *PresentedAddress {
	if addr == nil {
		return nil
	}
	return &PresentedAddress{
		Name:     addr.Name,
		Address1: addr.Address1,
		Address2: addr.Address2,
		City:     addr.City,
		Province: addr.Province,
		Zip:      addr.Zip,
		Country:  addr.Country,
		Phone:    addr.Phone,
	}
}
