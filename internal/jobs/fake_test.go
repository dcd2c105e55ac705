package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/appeears"
)

// fakeGateway serves canned responses keyed by "METHOD path" and records every call.
type fakeGateway struct {
	mu        sync.Mutex
	calls     []string
	queries   []url.Values
	bodies    []any
	responses map[string]string
	errs      map[string]error
	streams   map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		responses: map[string]string{},
		errs:      map[string]error{},
		streams:   map[string]string{},
	}
}

func (f *fakeGateway) record(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
}

func (f *fakeGateway) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeGateway) respond(key string, out any) error {
	if err, ok := f.errs[key]; ok {
		return err
	}
	body, ok := f.responses[key]
	if !ok {
		return &appeears.RemoteCallError{Method: strings.Fields(key)[0], Path: strings.Fields(key)[1], StatusCode: 404}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeGateway) GetJSON(_ context.Context, path string, query url.Values, out any) error {
	key := "GET " + path
	f.record(key)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.respond(key, out)
}

func (f *fakeGateway) PostJSON(_ context.Context, path string, in, out any) error {
	key := "POST " + path
	f.record(key)
	f.mu.Lock()
	f.bodies = append(f.bodies, in)
	f.mu.Unlock()
	return f.respond(key, out)
}

func (f *fakeGateway) Delete(_ context.Context, path string) error {
	key := "DELETE " + path
	f.record(key)
	return f.respond(key, nil)
}

func (f *fakeGateway) Stream(_ context.Context, path string, w io.Writer) (int64, error) {
	key := "STREAM " + path
	f.record(key)
	if err, ok := f.errs[key]; ok {
		return 0, err
	}
	body, ok := f.streams[key]
	if !ok {
		return 0, &appeears.RemoteCallError{Method: "GET", Path: path, StatusCode: 404}
	}
	n, err := io.Copy(w, strings.NewReader(body))
	return n, err
}

// withTask registers a GET task/<id> response carrying status.
func (f *fakeGateway) withTask(id, status string) *fakeGateway {
	f.responses["GET task/"+id] = fmt.Sprintf(`{"task_id":%q,"status":%q,"task_name":"ndvi","created":"2026-03-01T10:00:00.000000"}`, id, status)
	return f
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
}
