package fundreq

import (
	"context"

	"github.com/shopspring/decimal"
)

var maxAllocation = decimal.NewFromInt(100)

// checkAllocation verifies that adding pct for poNumber keeps the advance
// allocation at or below 100%. It takes the PO advisory lock first so the
// sum it reads stays valid until the enclosing transaction commits.
// excludeID skips the record itself during edits.
func checkAllocation(ctx context.Context, tx TxRepository, poNumber string, pct decimal.Decimal, excludeID int64) error {
	if err := tx.LockAllocation(ctx, poNumber); err != nil {
		return err
	}
	existing, err := tx.SumPercentage(ctx, poNumber, excludeID)
	if err != nil {
		return err
	}
	total := existing.Add(pct)
	if total.GreaterThan(maxAllocation) {
		return errAllocationExceeded(poNumber, total.StringFixed(2))
	}
	return nil
}
