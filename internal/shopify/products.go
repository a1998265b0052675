package shopify

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProductVariant is a purchasable variant of a product.
type ProductVariant struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

// Product is one catalog entry.
type Product struct {
	ID          string           `json:"id"`
	Handle      string           `json:"handle"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ImageURL    string           `json:"imageUrl"`
	Variants    []ProductVariant `json:"variants"`
}

const productFields = `
id
handle
title
description
featuredImage { url }
variants(first: 20) {
  edges {
    node {
      id
      title
      price
      availableForSale
    }
  }
}
`

const productsQuery = `
query Products($first: Int!, $query: String) {
  products(first: $first, query: $query, sortKey: TITLE) {
    edges {
      node {` + productFields + `}
    }
  }
}
`

const productByHandleQuery = `
query ProductByHandle($handle: String!) {
  productByHandle(handle: $handle) {` + productFields + `}
}
`

// Products fetches catalog entries matching an optional search query.
func (c *Client) Products(ctx context.Context, query string, first int) ([]Product, error) {
	if first <= 0 || first > 250 {
		first = 50
	}
	variables := map[string]any{"first": first}
	if query != "" {
		variables["query"] = query
	}
	data, err := c.Execute(ctx, "products", productsQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("product search failed: %w", err)
	}

	var payload struct {
		Products struct {
			Edges []struct {
				Node json.RawMessage `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode products payload: %w", err)
	}

	products := make([]Product, 0, len(payload.Products.Edges))
	for _, edge := range payload.Products.Edges {
		p, err := decodeProductNode(edge.Node)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// ProductByHandle fetches a single catalog entry. Returns ErrNotFound when
// the handle does not exist.
func (c *Client) ProductByHandle(ctx context.Context, handle string) (*Product, error) {
	data, err := c.Execute(ctx, "product_by_handle", productByHandleQuery, map[string]any{"handle": handle})
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}

	var payload struct {
		ProductByHandle json.RawMessage `json:"productByHandle"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode product payload: %w", err)
	}
	if len(payload.ProductByHandle) == 0 || string(payload.ProductByHandle) == "null" {
		return nil, ErrNotFound
	}
	p, err := decodeProductNode(payload.ProductByHandle)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeProductNode(raw json.RawMessage) (Product, error) {
	var node struct {
		ID            string `json:"id"`
		Handle        string `json:"handle"`
		Title         string `json:"title"`
		Description   string `json:"description"`
		FeaturedImage struct {
			URL string `json:"url"`
		} `json:"featuredImage"`
		Variants struct {
			Edges []struct {
				Node struct {
					ID               string          `json:"id"`
					Title            string          `json:"title"`
					Price            json.RawMessage `json:"price"`
					AvailableForSale bool            `json:"availableForSale"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"variants"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return Product{}, fmt.Errorf("decode product node: %w", err)
	}

	product := Product{
		ID:          node.ID,
		Handle:      node.Handle,
		Title:       node.Title,
		Description: node.Description,
		ImageURL:    node.FeaturedImage.URL,
	}
	for _, edge := range node.Variants.Edges {
		product.Variants = append(product.Variants, ProductVariant{
			ID:        edge.Node.ID,
			Title:     edge.Node.Title,
			Price:     parseLooseAmount(edge.Node.Price),
			Available: edge.Node.AvailableForSale,
		})
	}
	return product, nil
}

// parseLooseAmount accepts the price either as a JSON number or as a quoted
// decimal string; Shopify has shipped both across API versions.
func parseLooseAmount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return parseAmount(asString)
	}
	return 0
}
