package entity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

// Product is a product in REST write shape. Fields tagged omitempty that
// hold server-assigned values are cleared by ProductPayload.
type Product struct {
	ID                string          `json:"id,omitempty"`
	AdminGraphQLAPIID string          `json:"admin_graphql_api_id,omitempty"`
	CreatedAt         string          `json:"created_at,omitempty"`
	UpdatedAt         string          `json:"updated_at,omitempty"`
	PublishedAt       string          `json:"published_at,omitempty"`
	Title             string          `json:"title"`
	Handle            string          `json:"handle"`
	BodyHTML          string          `json:"body_html"`
	Vendor            string          `json:"vendor"`
	ProductType       string          `json:"product_type"`
	Tags              string          `json:"tags"`
	Status            string          `json:"status"`
	TemplateSuffix    *string         `json:"template_suffix"`
	Options           []ProductOption `json:"options"`
	Variants          []Variant       `json:"variants"`
	Images            []Image         `json:"images"`
	Image             *Image          `json:"image,omitempty"`
}

// ProductOption is a product option with its values.
type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Variant is a product variant in REST write shape.
type Variant struct {
	ID                string  `json:"id,omitempty"`
	ProductID         string  `json:"product_id,omitempty"`
	InventoryItemID   string  `json:"inventory_item_id,omitempty"`
	ImageID           string  `json:"image_id,omitempty"`
	Title             string  `json:"title"`
	Price             string  `json:"price"`
	CompareAtPrice    *string `json:"compare_at_price"`
	SKU               string  `json:"sku"`
	Barcode           string  `json:"barcode"`
	Taxable           bool    `json:"taxable"`
	RequiresShipping  bool    `json:"requires_shipping"`
	Weight            float64 `json:"weight"`
	WeightUnit        string  `json:"weight_unit"`
	InventoryQuantity int     `json:"inventory_quantity"`
	Option1           string  `json:"option1,omitempty"`
	Option2           string  `json:"option2,omitempty"`
	Option3           string  `json:"option3,omitempty"`
}

// Image is an image reference. Position is omitted for single images.
type Image struct {
	Src      string `json:"src"`
	Alt      string `json:"alt"`
	Position int    `json:"position,omitempty"`
}

// ProductPayload strips server-assigned fields from p and its variants and
// reduces images to src, alt and position. p is not modified.
func ProductPayload(p *Product) *Product {
	out := *p
	out.ID, out.AdminGraphQLAPIID = "", ""
	out.CreatedAt, out.UpdatedAt, out.PublishedAt = "", "", ""

	out.Options = append([]ProductOption(nil), p.Options...)
	out.Variants = make([]Variant, len(p.Variants))
	for i, v := range p.Variants {
		v.ID, v.ProductID, v.InventoryItemID, v.ImageID = "", "", "", ""
		out.Variants[i] = v
	}
	out.Images = make([]Image, len(p.Images))
	for i, img := range p.Images {
		out.Images[i] = Image{Src: img.Src, Alt: img.Alt, Position: img.Position}
	}
	if p.Image != nil {
		out.Image = &Image{Src: p.Image.Src, Alt: p.Image.Alt}
	}
	return &out
}

type productNode struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Handle          string   `json:"handle"`
	DescriptionHTML string   `json:"descriptionHtml"`
	Vendor          string   `json:"vendor"`
	ProductType     string   `json:"productType"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
	TemplateSuffix  *string  `json:"templateSuffix"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
	PublishedAt     *string  `json:"publishedAt"`
	Options         []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"options"`
	Variants struct {
		Nodes []variantNode `json:"nodes"`
	} `json:"variants"`
	Images struct {
		Nodes []imageNode `json:"nodes"`
	} `json:"images"`
}

type variantNode struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Price           *string `json:"price"`
	CompareAtPrice  *string `json:"compareAtPrice"`
	SKU             *string `json:"sku"`
	Barcode         *string `json:"barcode"`
	Taxable         *bool   `json:"taxable"`
	SelectedOptions []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"selectedOptions"`
	Image *struct {
		ID string `json:"id"`
	} `json:"image"`
	InventoryItem *struct {
		ID               string `json:"id"`
		RequiresShipping *bool  `json:"requiresShipping"`
		Measurement      *struct {
			Weight *struct {
				Value float64 `json:"value"`
				Unit  string  `json:"unit"`
			} `json:"weight"`
		} `json:"measurement"`
	} `json:"inventoryItem"`
}

type imageNode struct {
	URL     string  `json:"url"`
	AltText *string `json:"altText"`
}

const productFragment = `... on Product {
  id title handle descriptionHtml vendor productType
  tags status templateSuffix createdAt updatedAt publishedAt
  options { name values }
  variants(first: 250) {
    nodes {
      id title price compareAtPrice sku barcode taxable
      selectedOptions { name value }
      image { id }
      inventoryItem { id requiresShipping measurement { weight { value unit } } }
    }
  }
  images(first: 250) { nodes { url altText } }
}`

// productFromNode normalises a GraphQL product node into REST shape.
func productFromNode(n *productNode) *Product {
	p := &Product{
		ID:                platform.NumericID(n.ID),
		AdminGraphQLAPIID: n.ID,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
		PublishedAt:       stringOr(n.PublishedAt, ""),
		Title:             n.Title,
		Handle:            n.Handle,
		BodyHTML:          n.DescriptionHTML,
		Vendor:            n.Vendor,
		ProductType:       n.ProductType,
		Tags:              joinTags(n.Tags),
		Status:            strings.ToLower(firstNonEmpty(n.Status, "ACTIVE")),
		TemplateSuffix:    n.TemplateSuffix,
		Options:           make([]ProductOption, 0, len(n.Options)),
		Variants:          make([]Variant, 0, len(n.Variants.Nodes)),
		Images:            make([]Image, 0, len(n.Images.Nodes)),
	}
	for _, o := range n.Options {
		values := o.Values
		if values == nil {
			values = []string{}
		}
		p.Options = append(p.Options, ProductOption{Name: o.Name, Values: values})
	}
	for _, v := range n.Variants.Nodes {
		p.Variants = append(p.Variants, variantFromNode(v, p.ID))
	}
	for i, img := range n.Images.Nodes {
		p.Images = append(p.Images, Image{Src: img.URL, Alt: stringOr(img.AltText, ""), Position: i + 1})
	}
	if len(p.Images) > 0 {
		p.Image = &Image{Src: p.Images[0].Src, Alt: p.Images[0].Alt}
	}
	return p
}

func variantFromNode(v variantNode, productID string) Variant {
	out := Variant{
		ID:               platform.NumericID(v.ID),
		ProductID:        productID,
		Title:            v.Title,
		Price:            stringOr(v.Price, "0"),
		CompareAtPrice:   v.CompareAtPrice,
		SKU:              stringOr(v.SKU, ""),
		Barcode:          stringOr(v.Barcode, ""),
		Taxable:          v.Taxable == nil || *v.Taxable,
		RequiresShipping: true,
		WeightUnit:       "kg",
	}
	if v.Image != nil {
		out.ImageID = platform.NumericID(v.Image.ID)
	}
	if inv := v.InventoryItem; inv != nil {
		out.InventoryItemID = platform.NumericID(inv.ID)
		if inv.RequiresShipping != nil {
			out.RequiresShipping = *inv.RequiresShipping
		}
		if inv.Measurement != nil && inv.Measurement.Weight != nil {
			out.Weight = inv.Measurement.Weight.Value
			out.WeightUnit = weightUnit(inv.Measurement.Weight.Unit)
		}
	}
	opts := []*string{&out.Option1, &out.Option2, &out.Option3}
	for i, o := range v.SelectedOptions {
		if i >= len(opts) {
			break
		}
		*opts[i] = o.Value
	}
	return out
}

// productSummary is the target-side view used for existence and conflicts.
type productSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	Vendor        string `json:"vendor"`
	ProductType   string `json:"productType"`
	VariantsCount struct {
		Count int `json:"count"`
	} `json:"variantsCount"`
	MediaCount struct {
		Count int `json:"count"`
	} `json:"mediaCount"`
}

// Products migrates products by handle.
type Products struct{}

func (Products) Kind() models.EntityKind { return models.KindProducts }

func (Products) FetchByIDs(ctx context.Context, src *platform.Session, ids []string, logger func(string)) ([]*Record, error) {
	nodes := fetchNodes(ctx, src, toGIDs("Product", ids), productFragment,
		func(n *productNode) bool { return n.ID != "" }, logger)
	out := make([]*Record, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		p := productFromNode(n)
		out[i] = &Record{SourceID: p.ID, NaturalKey: p.Handle, Title: firstNonEmpty(p.Title, p.ID), Data: p}
	}
	return out, nil
}

const productByHandleQuery = `query($id: ProductIdentifierInput!) {
  product: productByIdentifier(identifier: $id) {
    id title handle vendor productType
    variantsCount { count }
    mediaCount { count }
  }
}`

func (Products) ResolveExisting(ctx context.Context, dst *platform.Session, keys []string, logger func(string)) []*Match {
	return resolveEach(ctx, keys, logger, func(ctx context.Context, handle string) (*Match, error) {
		var data struct {
			Product *productSummary `json:"product"`
		}
		if err := dst.GraphQL(ctx, productByHandleQuery, map[string]any{"id": map[string]any{"handle": handle}}, &data); err != nil {
			return nil, err
		}
		if data.Product == nil {
			return nil, nil
		}
		return &Match{TargetID: platform.NumericID(data.Product.ID), NaturalKey: data.Product.Handle, Data: data.Product}, nil
	})
}

func (Products) Create(ctx context.Context, dst *platform.Session, rec *Record) (string, error) {
	return restWrite(ctx, dst, http.MethodPost, "products.json", "product", ProductPayload(rec.Data.(*Product)))
}

func (Products) Update(ctx context.Context, dst *platform.Session, match *Match, rec *Record) (string, error) {
	return restWrite(ctx, dst, http.MethodPut, fmt.Sprintf("products/%s.json", match.TargetID), "product", ProductPayload(rec.Data.(*Product)))
}

func (Products) Compare(rec *Record, match *Match) (map[string]any, map[string]any) {
	p := rec.Data.(*Product)
	source := map[string]any{
		"title":        p.Title,
		"handle":       p.Handle,
		"vendor":       p.Vendor,
		"product_type": p.ProductType,
		"variants":     len(p.Variants),
		"images":       len(p.Images),
	}
	target := map[string]any{"handle": match.NaturalKey}
	if t, ok := match.Data.(*productSummary); ok {
		target = map[string]any{
			"title":        t.Title,
			"handle":       t.Handle,
			"vendor":       t.Vendor,
			"product_type": t.ProductType,
			"variants":     t.VariantsCount.Count,
			"images":       t.MediaCount.Count,
		}
	}
	return source, target
}
