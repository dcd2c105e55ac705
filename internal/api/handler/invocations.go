package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/api/response"
	"github.com/kiranshivaraju/geoharvest/internal/store"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// InvocationLister defines the interface the journal handler depends on.
type InvocationLister interface {
	ListInvocations(ctx context.Context, filter store.InvocationFilter) ([]*models.ToolInvocation, int, error)
}

// NewListInvocationsHandler returns an http.HandlerFunc for GET /api/v1/invocations.
// Query parameters: tool, job_id, status, since (RFC3339), page, limit.
func NewListInvocationsHandler(l InvocationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.InvocationFilter{
			Tool:   q.Get("tool"),
			JobID:  q.Get("job_id"),
			Status: q.Get("status"),
		}
		if filter.Status != "" && filter.Status != "success" && filter.Status != "error" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "status must be success or error", nil)
			return
		}
		if s := q.Get("since"); s != "" {
			since, err := time.Parse(time.RFC3339, s)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = since
		}

		page, ok := intParam(q.Get("page"), 1)
		if !ok || page < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
			return
		}
		limit, ok := intParam(q.Get("limit"), defaultPageLimit)
		if !ok || limit < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
			return
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		filter.Page, filter.Limit = page, limit

		invocations, total, err := l.ListInvocations(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list invocations", nil)
			return
		}
		response.Collection(w, invocations, response.NewPaginationMeta(page, limit, total))
	}
}

func intParam(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
