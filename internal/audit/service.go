package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/funddesk/funddesk/internal/shared"
)

// Service reads the audit trail with paging.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs an audit read service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Timeline returns audit entries newest first.
func (s *Service) Timeline(ctx context.Context, page, perPage int) ([]Entry, shared.Pagination, error) {
	if s.pool == nil {
		return nil, shared.Pagination{}, fmt.Errorf("audit: pool not configured")
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if page <= 0 {
		page = 1
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM logs`).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("audit: count: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, created_by, action, created_at
		 FROM logs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ActorID, &e.ActorEmail, &e.Action, &e.At); err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("audit: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("audit: rows: %w", err)
	}

	return entries, shared.NewPagination(page, perPage, total), nil
}
