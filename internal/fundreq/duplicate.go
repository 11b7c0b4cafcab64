package fundreq

import (
	"context"

	"github.com/shopspring/decimal"
)

// DuplicateKey is the per-family natural key used to reject resubmissions.
type DuplicateKey struct {
	Family         Family
	SupplierName   string
	Percentage     decimal.Decimal
	PONumber       string
	DateReceived   string
	PurchaseNumber string
	InvoiceNumber  string
}

// duplicateKeyFor derives the natural key from a normalised record.
func duplicateKeyFor(rec *FundRequest) DuplicateKey {
	key := DuplicateKey{Family: rec.Family}
	switch rec.Family {
	case FamilyAdvance:
		key.SupplierName = rec.SupplierName
		key.Percentage = rec.Percentage
		key.PONumber = rec.PONumber
		key.DateReceived = rec.DateReceived
	case FamilySupplier:
		key.PurchaseNumber = rec.PurchaseNumber
	case FamilyExpense:
		key.InvoiceNumber = rec.InvoiceNumber
		key.SupplierName = rec.SupplierName
	}
	return key
}

// describe renders the key for the duplicate error message.
func (k DuplicateKey) describe() string {
	switch k.Family {
	case FamilyAdvance:
		return "An advance payment request for supplier '" + k.SupplierName +
			"' at " + k.Percentage.StringFixed(2) + "% on PO '" + k.PONumber +
			"' dated " + k.DateReceived + " already exists."
	case FamilySupplier:
		return "A supplier fund request with purchase number '" + k.PurchaseNumber + "' already exists."
	default:
		return "An expense fund request with invoice number '" + k.InvoiceNumber +
			"' for supplier '" + k.SupplierName + "' already exists."
	}
}

// checkDuplicate rejects a record whose natural key matches an existing row.
// excludeID skips the record itself during edits.
func checkDuplicate(ctx context.Context, tx TxRepository, rec *FundRequest, excludeID int64) error {
	key := duplicateKeyFor(rec)
	exists, err := tx.FindByKey(ctx, key, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return errDuplicate(key.describe())
	}
	return nil
}
