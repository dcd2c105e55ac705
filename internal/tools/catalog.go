package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/geoharvest/internal/catalog"
)

func catalogTools(c Catalog) []Tool {
	return []Tool{
		{
			Name:        "list_appears_products",
			Description: "List the AppEEARS products available for extraction.",
			Invoke: func(ctx context.Context, _ json.RawMessage) Result {
				products, err := c.ListProducts(ctx)
				if err != nil {
					return failf(err, "Failed to list products")
				}
				return Success(fmt.Sprintf("Found %d products", len(products)), map[string]any{"products": products})
			},
		},
		{
			Name:        "get_appears_layers",
			Description: "List the layers of one product.",
			Params: []Param{
				{Name: "product", Type: "string", Required: true, Description: "Product and version, e.g. MOD13Q1.061"},
			},
			Invoke: func(ctx context.Context, raw json.RawMessage) Result {
				var a struct {
					Product string `json:"product"`
				}
				if err := decodeArgs(raw, &a); err != nil {
					return Failure(err)
				}
				if err := required("product", a.Product); err != nil {
					return Failure(err)
				}
				layers, err := c.Layers(ctx, a.Product)
				if err != nil {
					return failf(err, "Failed to get layers for %s", a.Product)
				}
				return Success(fmt.Sprintf("Found %d layers for %s", len(layers), a.Product), map[string]any{
					"product": a.Product,
					"layers":  catalog.SortedLayers(layers),
				})
			},
		},
	}
}
