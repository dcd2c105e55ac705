// Package catalog lists AppEEARS products and their layers. Catalog data
// changes rarely, so responses are cached; cache failures never block a read.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/cache"
)

// ErrNoLayers is returned when a product reports no layers.
var ErrNoLayers = errors.New("no layers found for this product")

// Fetcher is the read side of the AppEEARS gateway.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Product is one entry of the AppEEARS product list.
type Product struct {
	ProductAndVersion   string `json:"ProductAndVersion"`
	Product             string `json:"Product"`
	Version             string `json:"Version"`
	Description         string `json:"Description"`
	Platform            string `json:"Platform"`
	Source              string `json:"Source,omitempty"`
	Resolution          string `json:"Resolution"`
	TemporalGranularity string `json:"TemporalGranularity"`
	TemporalExtentStart string `json:"TemporalExtentStart,omitempty"`
	TemporalExtentEnd   string `json:"TemporalExtentEnd,omitempty"`
	DOI                 string `json:"DOI,omitempty"`
	DocLink             string `json:"DocLink,omitempty"`
	Available           bool   `json:"Available"`
}

// Layer describes one layer of a product.
type Layer struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service reads the product catalog through an optional cache.
type Service struct {
	fetch Fetcher
	cache cache.Cache
	ttl   time.Duration
}

// NewService creates a Service. c may be nil to disable caching.
func NewService(fetch Fetcher, c cache.Cache, ttl time.Duration) *Service {
	return &Service{fetch: fetch, cache: c, ttl: ttl}
}

// ListProducts returns every product AppEEARS offers.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if s.cached(ctx, cache.ProductsKey(), &products) {
		return products, nil
	}

	if err := s.fetch.GetJSON(ctx, "product", nil, &products); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	s.store(ctx, cache.ProductsKey(), products)
	return products, nil
}

// Layers returns the layers of productAndVersion (e.g. "MOD13Q1.061"),
// keyed by layer name with their descriptions.
func (s *Service) Layers(ctx context.Context, productAndVersion string) (map[string]string, error) {
	productAndVersion = strings.TrimSpace(productAndVersion)
	if productAndVersion == "" || strings.Contains(productAndVersion, "/") {
		return nil, fmt.Errorf("invalid product %q", productAndVersion)
	}

	key := cache.LayersKey(productAndVersion)
	var layers map[string]string
	if s.cached(ctx, key, &layers) {
		return layers, nil
	}

	var raw map[string]struct {
		Description string `json:"Description"`
	}
	if err := s.fetch.GetJSON(ctx, "product/"+url.PathEscape(productAndVersion), nil, &raw); err != nil {
		return nil, fmt.Errorf("listing layers of %s: %w", productAndVersion, err)
	}
	if len(raw) == 0 {
		return nil, ErrNoLayers
	}

	layers = make(map[string]string, len(raw))
	for name, l := range raw {
		layers[name] = l.Description
	}
	s.store(ctx, key, layers)
	return layers, nil
}

// SortedLayers returns Layers as a slice ordered by name.
func SortedLayers(layers map[string]string) []Layer {
	out := make([]Layer, 0, len(layers))
	for name, desc := range layers {
		out = append(out, Layer{Name: name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) cached(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	found, err := cache.GetJSON(ctx, s.cache, key, out)
	if err != nil {
		slog.Warn("catalog cache read failed", "key", key, "error", err)
		return false
	}
	return found
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttl); err != nil {
		slog.Warn("catalog cache write failed", "key", key, "error", err)
	}
}
