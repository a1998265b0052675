package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Address is a postal block snapshot taken at order time.
type Address struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

// LineItem is one purchased item snapshot.
type LineItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	ImageURL  string  `json:"imageUrl"`
}

// TrackingInfo is one carrier tracking entry on a fulfillment.
type TrackingInfo struct {
	Company string `json:"company"`
	Number  string `json:"number"`
	URL     string `json:"url"`
}

// Fulfillment is the platform's record of a shipment.
type Fulfillment struct {
	Status   string         `json:"status"`
	Tracking []TrackingInfo `json:"tracking"`
}

// Order is one commerce-platform order as seen by this service.
type Order struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	CreatedAt         time.Time     `json:"createdAt"`
	FinancialStatus   string        `json:"financialStatus"`
	FulfillmentStatus string        `json:"fulfillmentStatus"`
	TotalAmount       float64       `json:"totalAmount"`
	CurrencyCode      string        `json:"currencyCode"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone"`
	CustomerPhone     string        `json:"customerPhone"`
	DefaultPhone      string        `json:"defaultPhone"`
	ShippingAddress   *Address      `json:"shippingAddress"`
	BillingAddress    *Address      `json:"billingAddress"`
	LineItems         []LineItem    `json:"lineItems"`
	Fulfillments      []Fulfillment `json:"fulfillments"`
}

// PhoneCandidates returns every phone string associated with the order from
// its different origin fields. Any of them may independently match a user.
func (o Order) PhoneCandidates() []string {
	candidates := []string{o.Phone}
	if o.ShippingAddress != nil {
		candidates = append(candidates, o.ShippingAddress.Phone)
	}
	candidates = append(candidates, o.CustomerPhone, o.DefaultPhone)
	return candidates
}

// OrdersPage is one page of an order search: the nodes plus cursor info.
type OrdersPage struct {
	Orders      []Order
	HasNextPage bool
	EndCursor   string
}

const orderFields = `
id
name
createdAt
displayFinancialStatus
displayFulfillmentStatus
email
phone
currentTotalPriceSet { shopMoney { amount currencyCode } }
customer {
  phone
  defaultAddress { phone }
}
shippingAddress { name address1 address2 city province zip country phone }
billingAddress { name address1 address2 city province zip country phone }
lineItems(first: 50) {
  edges {
    node {
      title
      quantity
      originalUnitPriceSet { shopMoney { amount } }
      image { url }
    }
  }
}
fulfillments {
  displayStatus
  trackingInfo { company number url }
}
`

const ordersSearchQuery = `
query OrdersSearch($first: Int!, $query: String!, $after: String) {
  orders(first: $first, query: $query, after: $after, sortKey: CREATED_AT, reverse: true) {
    edges {
      cursor
      node {` + orderFields + `}
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}
`

// SearchOrders fetches one page of orders matching the free-text search
// query. A nil cursor (empty string) fetches the first page. Upstream
// failures are wrapped so the caller sees the Shopify message.
func (c *Client) SearchOrders(ctx context.Context, query string, first int, after string) (*OrdersPage, error) {
	if first <= 0 {
		first = 100
	}
	variables := map[string]any{
		"first": first,
		"query": query,
	}
	if after != "" {
		variables["after"] = after
	}

	data, err := c.Execute(ctx, "orders_search", ordersSearchQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("order search failed: %w", err)
	}

	var payload struct {
		Orders json.RawMessage `json:"orders"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode orders payload: %w", err)
	}
	page, err := decodeOrderConnection(payload.Orders)
	if err != nil {
		return nil, fmt.Errorf("decode orders connection: %w", err)
	}
	return page, nil
}

// SearchOrdersByEmail fetches orders whose email exactly equals the given
// address, following pagination to completion.
func (c *Client) SearchOrdersByEmail(ctx context.Context, email string, pageSize int) ([]Order, error) {
	query := "email:" + quoteQueryValue(email)
	var all []Order
	cursor := ""
	for {
		page, err := c.SearchOrders(ctx, query, pageSize, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Orders...)
		if !page.HasNextPage || page.EndCursor == "" {
			return all, nil
		}
		cursor = page.EndCursor
	}
}

// decodeOrderConnection normalizes the connection payload into one canonical
// slice before anything downstream touches it. The platform (and recorded
// fixtures of it) deliver three shapes: an edges list, a nodes list, or a
// bare array.
func decodeOrderConnection(raw json.RawMessage) (*OrdersPage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &OrdersPage{}, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(raw, &bare); err == nil {
		page := &OrdersPage{}
		for _, node := range bare {
			order, err := decodeOrderNode(node)
			if err != nil {
				return nil, err
			}
			page.Orders = append(page.Orders, order)
		}
		return page, nil
	}

	var wrapped struct {
		Edges []struct {
			Cursor string          `json:"cursor"`
			Node   json.RawMessage `json:"node"`
		} `json:"edges"`
		Nodes    []json.RawMessage `json:"nodes"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}

	page := &OrdersPage{
		HasNextPage: wrapped.PageInfo.HasNextPage,
		EndCursor:   wrapped.PageInfo.EndCursor,
	}
	for _, edge := range wrapped.Edges {
		order, err := decodeOrderNode(edge.Node)
		if err != nil {
			return nil, err
		}
		page.Orders = append(page.Orders, order)
		if page.EndCursor == "" && edge.Cursor != "" {
			page.EndCursor = edge.Cursor
		}
	}
	for _, node := range wrapped.Nodes {
		order, err := decodeOrderNode(node)
		if err != nil {
			return nil, err
		}
		page.Orders = append(page.Orders, order)
	}
	return page, nil
}

func decodeOrderNode(raw json.RawMessage) (Order, error) {
	var node struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		CreatedAt                string `json:"createdAt"`
		DisplayFinancialStatus   string `json:"displayFinancialStatus"`
		DisplayFulfillmentStatus string `json:"displayFulfillmentStatus"`
		Email                    string `json:"email"`
		Phone                    string `json:"phone"`
		CurrentTotalPriceSet     struct {
			ShopMoney struct {
				Amount       string `json:"amount"`
				CurrencyCode string `json:"currencyCode"`
			} `json:"shopMoney"`
		} `json:"currentTotalPriceSet"`
		Customer struct {
			Phone          string `json:"phone"`
			DefaultAddress struct {
				Phone string `json:"phone"`
			} `json:"defaultAddress"`
		} `json:"customer"`
		ShippingAddress *Address `json:"shippingAddress"`
		BillingAddress  *Address `json:"billingAddress"`
		LineItems       struct {
			Edges []struct {
				Node struct {
					Title                string `json:"title"`
					Quantity             int    `json:"quantity"`
					OriginalUnitPriceSet struct {
						ShopMoney struct {
							Amount string `json:"amount"`
						} `json:"shopMoney"`
					} `json:"originalUnitPriceSet"`
					Image struct {
						URL string `json:"url"`
					} `json:"image"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"lineItems"`
		Fulfillments []struct {
			DisplayStatus string         `json:"displayStatus"`
			TrackingInfo  []TrackingInfo `json:"trackingInfo"`
		} `json:"fulfillments"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return Order{}, fmt.Errorf("decode order node: %w", err)
	}

	order := Order{
		ID:                node.ID,
		Name:              node.Name,
		FinancialStatus:   node.DisplayFinancialStatus,
		FulfillmentStatus: node.DisplayFulfillmentStatus,
		Email:             node.Email,
		Phone:             node.Phone,
		CustomerPhone:     node.Customer.Phone,
		DefaultPhone:      node.Customer.DefaultAddress.Phone,
		ShippingAddress:   node.ShippingAddress,
		BillingAddress:    node.BillingAddress,
		TotalAmount:       parseAmount(node.CurrentTotalPriceSet.ShopMoney.Amount),
		CurrencyCode:      node.CurrentTotalPriceSet.ShopMoney.CurrencyCode,
	}
	if node.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, node.CreatedAt); err == nil {
			order.CreatedAt = ts
		}
	}
	for _, edge := range node.LineItems.Edges {
		order.LineItems = append(order.LineItems, LineItem{
			Title:     edge.Node.Title,
			Quantity:  edge.Node.Quantity,
			UnitPrice: parseAmount(edge.Node.OriginalUnitPriceSet.ShopMoney.Amount),
			ImageURL:  edge.Node.Image.URL,
		})
	}
	for _, f := range node.Fulfillments {
		order.Fulfillments = append(order.Fulfillments, Fulfillment{
			Status:   f.DisplayStatus,
			Tracking: f.TrackingInfo,
		})
	}
	return order, nil
}

func parseAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return parsed
}
