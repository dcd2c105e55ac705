package appeears

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client for the AppEEARS API. timeout bounds
// connecting and waiting for response headers but not reading the body, so
// large bundle files can stream for as long as they need.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: t}
}
