package cache

import "fmt"

// ProductsKey holds the AppEEARS product catalog.
func ProductsKey() string {
	return "appeears:products"
}

// LayersKey holds the layer descriptions of one product.
func LayersKey(productAndVersion string) string {
	return fmt.Sprintf("appeears:layers:%s", productAndVersion)
}

// RateLimitKey counts one caller's requests in the minute starting at windowStart (unix seconds).
func RateLimitKey(keyPrefix string, windowStart int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", keyPrefix, windowStart)
}
