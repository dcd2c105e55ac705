package appeears

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// ChunkSize is the buffer used when streaming bundle content to disk.
	ChunkSize = 8192

	maxErrorBody = 64 << 10
)

// Gateway issues authenticated requests against the AppEEARS API.
type Gateway struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// NewGateway creates a gateway that authenticates each request with tokens.
func NewGateway(baseURL string, tokens TokenSource, client *http.Client) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  client,
	}
}

type requestOptions struct {
	body  any
	query url.Values
}

// RequestOption customizes a single gateway request.
type RequestOption func(*requestOptions)

// WithJSONBody encodes v as the JSON request body.
func WithJSONBody(v any) RequestOption {
	return func(o *requestOptions) { o.body = v }
}

// WithQuery sets the request query string.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// Do sends an authenticated request to path relative to the base URL.
// The caller owns the returned body. Non-2xx responses are consumed and
// returned as *RemoteCallError.
func (g *Gateway) Do(ctx context.Context, method, path string, opts ...RequestOption) (*http.Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := g.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(o.query) > 0 {
		u += "?" + o.query.Encode()
	}

	var body io.Reader
	if o.body != nil {
		buf, err := json.Marshal(o.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteCallError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

// GetJSON issues a GET and decodes the JSON response into out.
func (g *Gateway) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := g.Do(ctx, http.MethodGet, path, WithQuery(query))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, path, out)
}

// PostJSON issues a POST with in as the JSON body and decodes the response into out.
func (g *Gateway) PostJSON(ctx context.Context, path string, in, out any) error {
	resp, err := g.Do(ctx, http.MethodPost, path, WithJSONBody(in))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, path, out)
}

// Delete issues a DELETE and discards the response body.
func (g *Gateway) Delete(ctx context.Context, path string) error {
	resp, err := g.Do(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Stream copies the body of a GET on path into w in ChunkSize pieces,
// returning the number of bytes written. The body is never fully buffered.
func (g *Gateway) Stream(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := g.Do(ctx, http.MethodGet, path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	buf := make([]byte, ChunkSize)
	var written int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("writing %s: %w", path, werr)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("reading %s: %w", path, classifyError(rerr))
		}
	}
}

func decode(resp *http.Response, path string, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
