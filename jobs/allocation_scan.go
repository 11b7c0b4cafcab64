package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AllocationScanJob verifies that no purchase order has advance requests
// summing past 100%. The ledger enforces the cap on every write; the sweep
// catches rows that predate the cap or were changed out of band.
type AllocationScanJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAllocationScanJob wires the sweep against the given pool.
func NewAllocationScanJob(pool *pgxpool.Pool, logger *slog.Logger) *AllocationScanJob {
	return &AllocationScanJob{pool: pool, logger: logger}
}

// Handle processes one TaskAllocationScan task.
func (j *AllocationScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AllocationScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.pool.Query(ctx,
		`SELECT po_number, SUM(percentage) AS total
		 FROM fund_requests
		 WHERE family = 'advance'
		 GROUP BY po_number
		 HAVING SUM(percentage) > 100`)
	if err != nil {
		return fmt.Errorf("jobs: allocation scan query: %w", err)
	}
	defer rows.Close()

	var flagged int
	for rows.Next() {
		var (
			poNumber string
			total    decimal.Decimal
		)
		if err := rows.Scan(&poNumber, &total); err != nil {
			return fmt.Errorf("jobs: allocation scan: %w", err)
		}
		flagged++
		j.logger.Warn("purchase order over-allocated",
			slog.String("run_id", payload.RunID),
			slog.String("po_number", poNumber),
			slog.String("total_percentage", total.StringFixed(2)))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("jobs: allocation scan: %w", err)
	}

	j.logger.Info("allocation sweep finished",
		slog.String("run_id", payload.RunID),
		slog.Int("flagged", flagged))
	return nil
}
