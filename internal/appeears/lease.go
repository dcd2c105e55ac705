package appeears

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
)

// ExpiryBuffer is subtracted from the server-reported expiry so a token is
// never presented within its last five minutes.
const ExpiryBuffer = 5 * time.Minute

// renewTimeout bounds a shared login. It is detached from the caller that
// started it, so one caller giving up does not fail the others waiting on it.
const renewTimeout = time.Minute

// TokenSource yields a bearer token that is valid at the time of the call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Lease holds the process-wide AppEEARS session token and renews it on demand.
type Lease struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	now      func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time // already reduced by ExpiryBuffer

	group singleflight.Group
}

// NewLease creates a lease that logs in against baseURL with the given credentials.
func NewLease(baseURL, username, password string, client *http.Client) *Lease {
	if client == nil {
		client = http.DefaultClient
	}
	return &Lease{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
		now:      time.Now,
	}
}

// EnsureValid renews the lease if it is absent or inside the expiry buffer.
func (l *Lease) EnsureValid(ctx context.Context) error {
	_, err := l.Token(ctx)
	return err
}

// Token returns a currently valid token, logging in first when needed.
// Concurrent callers that find the lease invalid share a single login; each
// stops waiting when its own ctx ends.
func (l *Lease) Token(ctx context.Context) (string, error) {
	if tok, ok := l.current(); ok {
		return tok, nil
	}

	ch := l.group.DoChan("renew", func() (any, error) {
		if tok, ok := l.current(); ok {
			return tok, nil
		}
		renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renewTimeout)
		defer cancel()
		return l.renew(renewCtx)
	})

	select {
	case <-ctx.Done():
		return "", &CredentialExchangeError{Cause: classifyError(ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Expiry returns the buffered expiry of the held token, zero if none.
func (l *Lease) Expiry() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.expiry
}

func (l *Lease) current() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.token == "" || l.expiry.IsZero() {
		return "", false
	}
	if !l.now().Before(l.expiry) {
		return "", false
	}
	return l.token, true
}

type loginResponse struct {
	Token      string `json:"token"`
	Expiration string `json:"expiration"`
}

func (l *Lease) renew(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/login", nil)
	if err != nil {
		return "", &CredentialExchangeError{Cause: fmt.Errorf("building request: %w", err)}
	}
	req.SetBasicAuth(l.username, l.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", &CredentialExchangeError{Cause: classifyError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &CredentialExchangeError{Cause: &RemoteCallError{
			Method:     http.MethodPost,
			Path:       "/login",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}}
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", &CredentialExchangeError{Cause: fmt.Errorf("decoding login response: %w", err)}
	}
	if lr.Token == "" {
		return "", &CredentialExchangeError{Cause: errors.New("login response carried no token")}
	}
	exp, err := time.Parse(time.RFC3339, lr.Expiration)
	if err != nil {
		return "", &CredentialExchangeError{Cause: fmt.Errorf("parsing expiration %q: %w", lr.Expiration, err)}
	}

	expiry := exp.Add(-ExpiryBuffer)
	l.mu.Lock()
	l.token = lr.Token
	l.expiry = expiry
	l.mu.Unlock()

	telemetry.TokenRenewals.Inc()
	slog.Debug("appeears token renewed", "expires_at", expiry)
	return lr.Token, nil
}

var _ TokenSource = (*Lease)(nil)
