package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/geoharvest/internal/api/middleware"
	"github.com/kiranshivaraju/geoharvest/internal/api/response"
	"github.com/kiranshivaraju/geoharvest/internal/tools"
)

const maxArgsBytes = 1 << 20

// ToolRegistry defines the interface the tool handlers depend on.
type ToolRegistry interface {
	List() []tools.Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) (tools.Result, error)
}

// NewListToolsHandler returns an http.HandlerFunc for GET /api/v1/tools.
func NewListToolsHandler(reg ToolRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, reg.List())
	}
}

// NewInvokeToolHandler returns an http.HandlerFunc for POST /api/v1/tools/{name}.
// The body is the tool's JSON argument object. Both tool outcomes answer
// 200 with the tool envelope.
func NewInvokeToolHandler(reg ToolRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes+1))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read request body", nil)
			return
		}
		if len(body) > maxArgsBytes {
			response.Error(w, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "Request body too large", nil)
			return
		}
		args := bytes.TrimSpace(body)
		if len(args) > 0 && !json.Valid(args) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		res, err := reg.Invoke(r.Context(), name, args)
		if err != nil {
			if errors.Is(err, tools.ErrUnknownTool) {
				response.Error(w, http.StatusNotFound, "TOOL_NOT_FOUND", "No tool named "+name, nil)
				return
			}
			slog.Error("tool invocation failed", "tool", name, "error", err,
				"request_id", mw.RequestIDFrom(r.Context()))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Raw(w, res)
	}
}
