package ikas

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Remote catalog models. These mirror the admin GraphQL schema fields the
// engine reads; the platform owns this data and nothing here is cached
// across runs.

type Named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AttributeValue struct {
	ProductAttributeID string `json:"productAttributeId"`
	Value              string `json:"value"`
}

type VariantImage struct {
	ImageID string `json:"imageId"`
	IsMain  bool   `json:"isMain"`
	Order   int    `json:"order"`
}

type VariantValue struct {
	VariantTypeName  string `json:"variantTypeName"`
	VariantValueName string `json:"variantValueName"`
}

type VariantPrice struct {
	SellPrice     float64  `json:"sellPrice"`
	DiscountPrice *float64 `json:"discountPrice"`
	BuyPrice      *float64 `json:"buyPrice"`
}

type Variant struct {
	ID            string           `json:"id"`
	SKU           string           `json:"sku"`
	Attributes    []AttributeValue `json:"attributes"`
	Images        []VariantImage   `json:"images"`
	VariantValues []VariantValue   `json:"variantValues"`
	Prices        []VariantPrice   `json:"prices"`
}

type Product struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	GoogleTaxonomyID string           `json:"googleTaxonomyId"`
	Brand            *Named           `json:"brand"`
	Categories       []Named          `json:"categories"`
	Tags             []Named          `json:"tags"`
	Attributes       []AttributeValue `json:"attributes"`
	Variants         []Variant        `json:"variants"`
}

type SalesChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// SalesChannelTarget is the visibility payload applied on create/update.
type SalesChannelTarget struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ProductAttribute struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Mutation inputs.

type PriceInput struct {
	SellPrice     float64  `json:"sellPrice"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	BuyPrice      *float64 `json:"buyPrice,omitempty"`
}

type VariantInput struct {
	SKU           string         `json:"sku"`
	IsActive      bool           `json:"isActive"`
	Prices        []PriceInput   `json:"prices"`
	VariantValues []VariantValue `json:"variantValues,omitempty"`
}

type CreateProductInput struct {
	Name          string               `json:"name"`
	Type          string               `json:"type"`
	Description   string               `json:"description"`
	SalesChannels []SalesChannelTarget `json:"salesChannels"`
	Variants      []VariantInput       `json:"variants"`
}

type VariantPriceInput struct {
	ProductID string     `json:"productId"`
	VariantID string     `json:"variantId"`
	Price     PriceInput `json:"price"`
}

// PriceUpdateError is a per-variant failure inside a batched price update.
type PriceUpdateError struct {
	ErrorCode       string `json:"errorCode"`
	InputArrayIndex int    `json:"inputArrayIndex"`
}

type VariantAttributesInput struct {
	VariantID  string           `json:"variantId"`
	Attributes []AttributeValue `json:"attributes"`
}

type AttributeUpdateInput struct {
	ProductID         string                   `json:"productId"`
	ProductAttributes []AttributeValue         `json:"productAttributes"`
	VariantAttributes []VariantAttributesInput `json:"variantAttributes"`
}

const productFields = `
      id
      name
      description
      googleTaxonomyId
      brand { id name }
      categories { id name }
      tags { id name }
      attributes { productAttributeId value }
      variants {
        id
        sku
        attributes { productAttributeId value }
        images { imageId isMain order }
        variantValues { variantTypeName variantValueName }
        prices { sellPrice discountPrice buyPrice }
      }`

// toMap round-trips a typed input through JSON so the wire payload honors
// the json tags (field names, omitempty).
func toMap(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// decodeInto maps a decoded GraphQL object into a typed model. Weak typing
// absorbs the platform returning numbers as strings and vice versa.
func decodeInto(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ListSalesChannels returns every sales channel defined on the store.
func (c *Client) ListSalesChannels(ctx context.Context) ([]SalesChannel, error) {
	query := `
    query ListSalesChannels {
      listSalesChannel {
        id
        name
        type
      }
    }`
	data, _, err := c.graphQL(ctx, query, nil, false)
	if err != nil {
		return nil, err
	}
	var channels []SalesChannel
	if err := decodeInto(data["listSalesChannel"], &channels); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode listSalesChannel: %v", err)}
	}
	return channels, nil
}

// SearchProducts runs a name search and returns the first result page. The
// caller is responsible for exact-name matching.
func (c *Client) SearchProducts(ctx context.Context, search string) ([]Product, error) {
	query := `
    query FindProduct($search: String!) {
      listProduct(search: $search, pagination: {page: 1, limit: 50}) {
        data {` + productFields + `
        }
      }
    }`
	data, _, err := c.graphQL(ctx, query, map[string]any{"search": search}, false)
	if err != nil {
		return nil, err
	}
	var page struct {
		Data []Product `json:"data"`
	}
	if err := decodeInto(data["listProduct"], &page); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode listProduct: %v", err)}
	}
	return page.Data, nil
}

// CreateProduct creates a product with all variants and prices in one call.
func (c *Client) CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error) {
	mutation := `
    mutation CreateProduct($input: CreateProductInput!) {
      createProduct(input: $input) {
        id
        name
        variants {
          id
          sku
          images { imageId isMain order }
          variantValues { variantTypeName variantValueName }
        }
      }
    }`
	data, _, err := c.graphQL(ctx, mutation, map[string]any{"input": toMap(input)}, false)
	if err != nil {
		return nil, err
	}
	var created Product
	if data["createProduct"] == nil {
		return nil, &ProtocolError{Message: "createProduct returned no product"}
	}
	if err := decodeInto(data["createProduct"], &created); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode createProduct: %v", err)}
	}
	return &created, nil
}

// UpdateProduct applies a partial product update. The input is an open map
// because the engine only sends the fields it wants changed.
func (c *Client) UpdateProduct(ctx context.Context, input map[string]any) (*Product, error) {
	mutation := `
    mutation UpdateProduct($input: UpdateProductInput!) {
      updateProduct(input: $input) {
        id
        name
        description
        googleTaxonomyId
        brand { id name }
        categories { id name }
        tags { id name }
      }
    }`
	data, _, err := c.graphQL(ctx, mutation, map[string]any{"input": input}, false)
	if err != nil {
		return nil, err
	}
	if data["updateProduct"] == nil {
		return nil, &ProtocolError{Message: "updateProduct returned no product"}
	}
	var updated Product
	if err := decodeInto(data["updateProduct"], &updated); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode updateProduct: %v", err)}
	}
	return &updated, nil
}

// AddVariant attaches one missing variant to an existing product.
func (c *Client) AddVariant(ctx context.Context, productID string, variant VariantInput) (*Product, error) {
	mutation := `
    mutation AddVariant($input: AddVariantToProductInput!) {
      addVariantToProduct(input: $input) {
        id
        name
        variants {
          id
          sku
          images { imageId isMain order }
          variantValues { variantTypeName variantValueName }
        }
      }
    }`
	input := map[string]any{
		"productId": productID,
		"variant":   toMap(variant),
	}
	data, _, err := c.graphQL(ctx, mutation, map[string]any{"input": input}, false)
	if err != nil {
		return nil, err
	}
	var updated Product
	if err := decodeInto(data["addVariantToProduct"], &updated); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode addVariantToProduct: %v", err)}
	}
	return &updated, nil
}

// UpdateVariantPrices pushes all variant prices in one batched call and
// returns the per-index failures the platform reports.
func (c *Client) UpdateVariantPrices(ctx context.Context, inputs []VariantPriceInput) ([]PriceUpdateError, error) {
	mutation := `
    mutation UpdateVariantPrices($input: UpdateVariantPricesInput!) {
      updateVariantPrices(input: $input) {
        errors {
          errorCode
          inputArrayIndex
        }
      }
    }`
	rows := make([]any, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, toMap(in))
	}
	data, _, err := c.graphQL(ctx, mutation, map[string]any{"input": map[string]any{"variantPriceInputs": rows}}, false)
	if err != nil {
		return nil, err
	}
	var result struct {
		Errors []PriceUpdateError `json:"errors"`
	}
	if err := decodeInto(data["updateVariantPrices"], &result); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode updateVariantPrices: %v", err)}
	}
	return result.Errors, nil
}

// ListProductAttributes returns the store's custom attribute definitions.
func (c *Client) ListProductAttributes(ctx context.Context) ([]ProductAttribute, error) {
	query := `
    query ListProductAttributes {
      listProductAttribute {
        id
        name
        type
      }
    }`
	data, _, err := c.graphQL(ctx, query, nil, false)
	if err != nil {
		return nil, err
	}
	var attrs []ProductAttribute
	if err := decodeInto(data["listProductAttribute"], &attrs); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("decode listProductAttribute: %v", err)}
	}
	return attrs, nil
}

// UpdateAttributes writes custom attribute values on a product and a set of
// its variants in one call.
func (c *Client) UpdateAttributes(ctx context.Context, input AttributeUpdateInput) error {
	mutation := `
    mutation UpdateProductAndVariantAttributes($input: UpdateProductAndVariantAttributesInput!) {
      updateProductAndVariantAttributes(input: $input) {
        id
        name
        attributes {
          productAttributeId
          value
        }
      }
    }`
	data, _, err := c.graphQL(ctx, mutation, map[string]any{"input": toMap(input)}, false)
	if err != nil {
		return err
	}
	if data["updateProductAndVariantAttributes"] == nil {
		return &ProtocolError{Message: "updateProductAndVariantAttributes returned no product"}
	}
	return nil
}
