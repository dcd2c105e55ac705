// Package search is a thin pass-through to the Elasticsearch backend the
// assistant uses for its document index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ErrSearchBackend wraps any non-2xx answer from Elasticsearch.
var ErrSearchBackend = errors.New("search backend error")

// Config points the client at a cluster.
type Config struct {
	Address  string
	Username string
	Password string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client wraps the typed Elasticsearch client with the four operations the tools need.
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates a Client. No request is made until the first call.
func NewClient(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Address},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Ping reports whether the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchBackend, err)
	}
	defer res.Body.Close()
	return checkResponse(res)
}

// ListIndices returns every index name, sorted.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	res, err := c.es.Indices.GetAlias(c.es.Indices.GetAlias.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchBackend, err)
	}
	defer res.Body.Close()
	if err := checkResponse(res); err != nil {
		return nil, err
	}

	var aliases map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&aliases); err != nil {
		return nil, fmt.Errorf("decoding alias response: %w", err)
	}
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Search runs query (a search request body) against index and returns the raw response.
func (c *Client) Search(ctx context.Context, index string, query map[string]any) (map[string]any, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchBackend, err)
	}
	defer res.Body.Close()
	return decodeObject(res)
}

// IndexDocument stores one document in index.
func (c *Client) IndexDocument(ctx context.Context, index string, doc map[string]any) (map[string]any, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	res, err := c.es.Index(index, bytes.NewReader(body), c.es.Index.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchBackend, err)
	}
	defer res.Body.Close()
	return decodeObject(res)
}

// BulkIngest stores docs in index with a single bulk request.
func (c *Client) BulkIngest(ctx context.Context, index string, docs []map[string]any) (map[string]any, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.New("no documents to ingest")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, doc := range docs {
		buf.WriteString(`{"index":{}}` + "\n")
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding document %d: %w", i, err)
		}
	}

	res, err := c.es.Bulk(&buf, c.es.Bulk.WithContext(ctx), c.es.Bulk.WithIndex(index))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchBackend, err)
	}
	defer res.Body.Close()
	return decodeObject(res)
}

func checkIndex(index string) error {
	if strings.TrimSpace(index) == "" {
		return errors.New("index is required")
	}
	return nil
}

func checkResponse(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	return fmt.Errorf("%w: status %d: %s", ErrSearchBackend, res.StatusCode, strings.TrimSpace(string(body)))
}

func decodeObject(res *esapi.Response) (map[string]any, error) {
	if err := checkResponse(res); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding elasticsearch response: %w", err)
	}
	return out, nil
}
