package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tool Invocations ---

func (s *PostgresStore) RecordInvocation(ctx context.Context, inv *models.ToolInvocation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tool_invocations (id, tool, job_id, status, message, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.Tool, inv.JobID, inv.Status, inv.Message, inv.DurationMS, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInvocations(ctx context.Context, filter InvocationFilter) ([]*models.ToolInvocation, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.Tool != "" {
		conditions = append(conditions, fmt.Sprintf("tool = $%d", argIdx))
		args = append(args, filter.Tool)
		argIdx++
	}
	if filter.JobID != "" {
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", argIdx))
		args = append(args, filter.JobID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tool_invocations WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invocations: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT id, tool, job_id, status, message, duration_ms, created_at
		 FROM tool_invocations WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	invocations := []*models.ToolInvocation{}
	for rows.Next() {
		var inv models.ToolInvocation
		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.JobID, &inv.Status, &inv.Message,
			&inv.DurationMS, &inv.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan invocation: %w", err)
		}
		invocations = append(invocations, &inv)
	}
	return invocations, total, rows.Err()
}

// --- Downloads ---

func (s *PostgresStore) RecordDownload(ctx context.Context, rec *models.DownloadRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	files := rec.Files
	if files == nil {
		files = []models.DownloadedFile{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downloads (id, job_id, folder, file_count, total_size, files, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.JobID, rec.Folder, rec.FileCount, rec.TotalSize, files, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestDownload(ctx context.Context, jobID string) (*models.DownloadRecord, error) {
	var r models.DownloadRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_id, folder, file_count, total_size, files, created_at
		 FROM downloads WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID,
	).Scan(&r.ID, &r.JobID, &r.Folder, &r.FileCount, &r.TotalSize, &r.Files, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest download: %w", err)
	}
	return &r, nil
}

var _ Store = (*PostgresStore)(nil)
