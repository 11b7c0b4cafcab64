package fundreq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/funddesk/funddesk/internal/audit"
	"github.com/funddesk/funddesk/internal/shared"
)

// maxStatusBatch caps how many requests one status update may touch.
const maxStatusBatch = 100

// StatusController applies bulk payment status transitions. A batch either
// updates every named request or none of them.
type StatusController struct {
	repo   Repository
	logger *slog.Logger
}

// NewStatusController wires the status controller.
func NewStatusController(repo Repository, logger *slog.Logger) *StatusController {
	return &StatusController{repo: repo, logger: logger}
}

// UpdateStatus moves the named requests of one family to status. Every ID
// must exist; otherwise the missing IDs are reported and nothing changes.
func (c *StatusController) UpdateStatus(ctx context.Context, family Family, ids []int64, status PaymentStatus, actor shared.Identity) (int64, error) {
	if len(ids) == 0 {
		return 0, errMissingField("request_ids")
	}
	if len(ids) > maxStatusBatch {
		return 0, errTooManyIDs(maxStatusBatch)
	}
	if !ValidStatus(status) {
		return 0, errInvalidStatus(string(status))
	}

	ids = dedupe(ids)

	var updated int64
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.FindByIDs(ctx, family, ids)
		if err != nil {
			return err
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			return errNotFound(fmt.Sprintf("Requests not found: %s", joinIDs(missing)))
		}

		updated, err = tx.UpdateStatusBatch(ctx, family, ids, status)
		if err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			Action: fmt.Sprintf("%s updated the status of %d %s(s) to %s (IDs: %s)",
				actor.Email, updated, familyLabel(family), status, joinIDs(ids)),
		})
	})
	if err != nil {
		return 0, err
	}

	c.logger.Info("payment status updated",
		slog.String("family", string(family)),
		slog.Int64("count", updated),
		slog.String("status", string(status)),
		slog.String("actor", actor.Email))
	return updated, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(want, have []int64) []int64 {
	present := make(map[int64]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}
	var missing []int64
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
