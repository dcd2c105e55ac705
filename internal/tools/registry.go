package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// ErrUnknownTool is returned by Invoke for a name nothing was registered under.
var ErrUnknownTool = errors.New("unknown tool")

const journalTimeout = 2 * time.Second

// Handler runs one tool call. args is the raw JSON argument object and may be empty.
type Handler func(ctx context.Context, args json.RawMessage) Result

// Tool is a named, described operation.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters,omitempty"`
	Invoke      Handler `json:"-"`
}

// Param documents one argument of a tool.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Journal records tool invocations. Implemented by store.PostgresStore.
type Journal interface {
	RecordInvocation(ctx context.Context, inv *models.ToolInvocation) error
}

// Registry holds the available tools and audits every call.
type Registry struct {
	tools   map[string]Tool
	journal Journal
	now     func() time.Time
}

// NewRegistry creates an empty Registry. journal may be nil.
func NewRegistry(journal Journal) *Registry {
	return &Registry{tools: make(map[string]Tool), journal: journal, now: time.Now}
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Invoke == nil {
		return fmt.Errorf("tool %q: name and handler are required", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs the named tool. The only error is ErrUnknownTool; every other
// failure, panics included, is reported inside the Result.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := r.now()
	res := r.run(ctx, t, args)
	elapsed := r.now().Sub(start)

	telemetry.ToolCalls.WithLabelValues(name, res.Status).Inc()
	slog.Info("tool invoked",
		"tool", name,
		"status", res.Status,
		"duration_ms", elapsed.Milliseconds(),
	)
	r.record(ctx, name, args, res, elapsed)
	return res, nil
}

func (r *Registry) run(ctx context.Context, t Tool, args json.RawMessage) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", t.Name, "panic", rec)
			res = Failure(fmt.Errorf("internal error in %s", t.Name))
		}
	}()
	return t.Invoke(ctx, args)
}

// record appends the call to the journal. Failures are logged only.
func (r *Registry) record(ctx context.Context, name string, args json.RawMessage, res Result, elapsed time.Duration) {
	if r.journal == nil {
		return
	}
	inv := &models.ToolInvocation{
		Tool:       name,
		JobID:      jobIDOf(args, res),
		Status:     res.Status,
		DurationMS: elapsed.Milliseconds(),
	}
	if !res.OK() {
		inv.Message = res.Message
	}

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := r.journal.RecordInvocation(jctx, inv); err != nil {
		slog.Warn("failed to journal tool invocation", "tool", name, "error", err)
	}
}

// jobIDOf finds the job a call concerned: the job_id argument, or the id a
// submission returned.
func jobIDOf(args json.RawMessage, res Result) *string {
	var a struct {
		JobID string `json:"job_id"`
	}
	if len(args) > 0 && json.Unmarshal(args, &a) == nil && a.JobID != "" {
		return &a.JobID
	}
	if s, ok := res.Data.(submitted); ok && s.JobID != "" {
		id := s.JobID
		return &id
	}
	return nil
}
