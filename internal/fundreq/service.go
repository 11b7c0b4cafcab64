package fundreq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/funddesk/funddesk/internal/audit"
	"github.com/funddesk/funddesk/internal/shared"
)

// Service implements the fund request ledger operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService wires the ledger service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create validates, prices and persists a new fund request. The duplicate
// and allocation guards run in the same transaction as the insert.
func (s *Service) Create(ctx context.Context, family Family, fields Fields, actor shared.Identity) (FundRequest, error) {
	rec, err := s.normalize(family, fields)
	if err != nil {
		return FundRequest{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkDuplicate(ctx, tx, rec, 0); err != nil {
			return err
		}
		if family == FamilyAdvance {
			if err := checkAllocation(ctx, tx, rec.PONumber, rec.Percentage, 0); err != nil {
				return err
			}
		}
		if err := tx.Insert(ctx, rec); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			Action:     fmt.Sprintf("%s created a new %s with ID %d", actor.Email, familyLabel(family), rec.ID),
		})
	})
	if err != nil {
		return FundRequest{}, err
	}

	s.logger.Info("fund request created",
		slog.String("family", string(family)),
		slog.Int64("id", rec.ID),
		slog.String("actor", actor.Email))
	return *rec, nil
}

// Edit replaces an existing fund request after re-running the full
// validation pipeline. The record itself is excluded from the duplicate
// and allocation checks so an unchanged resubmission still passes.
func (s *Service) Edit(ctx context.Context, family Family, id int64, fields Fields, actor shared.Identity) (FundRequest, error) {
	rec, err := s.normalize(family, fields)
	if err != nil {
		return FundRequest{}, err
	}
	rec.ID = id

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetRequest(ctx, family, id); err != nil {
			return err
		}
		if err := checkDuplicate(ctx, tx, rec, id); err != nil {
			return err
		}
		if family == FamilyAdvance {
			if err := checkAllocation(ctx, tx, rec.PONumber, rec.Percentage, id); err != nil {
				return err
			}
		}
		if err := tx.Update(ctx, rec); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			Action:     fmt.Sprintf("%s updated %s with ID %d", actor.Email, familyLabel(family), id),
		})
	})
	if err != nil {
		return FundRequest{}, err
	}

	s.logger.Info("fund request updated",
		slog.String("family", string(family)),
		slog.Int64("id", id),
		slog.String("actor", actor.Email))
	return *rec, nil
}

// Get fetches a single fund request.
func (s *Service) Get(ctx context.Context, family Family, id int64) (FundRequest, error) {
	return s.repo.GetRequest(ctx, family, id)
}

// List returns a page of fund requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, family Family, req ListRequest) ([]FundRequest, shared.Pagination, error) {
	if req.Status != "" && !ValidStatus(req.Status) {
		return nil, shared.Pagination{}, errInvalidStatus(string(req.Status))
	}
	records, total, err := s.repo.ListRequests(ctx, family, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(req.Page, req.Limit, total), nil
}

// normalize turns a raw field map into a priced FundRequest or a typed
// validation error. No persistence happens here.
func (s *Service) normalize(family Family, fields Fields) (*FundRequest, error) {
	if err := checkRequired(family, fields); err != nil {
		return nil, err
	}

	rec := &FundRequest{Family: family}

	rec.SupplierName = fields.str(supplierNameKey(family))
	rec.SupplierID = fields.str("supplier_id")
	rec.Note = fields.str("note")
	rec.DateReceived = fields.str("date_received")
	rec.VATPolicy = fields.str(vatPolicyKey(family))

	switch family {
	case FamilyAdvance:
		rec.Site = fields.str("site")
		rec.PONumber = fields.str("po_number")
	case FamilySupplier:
		rec.ProjectCode = fields.str("project_code")
		rec.PONumber = fields.str("po_number")
		rec.InvoiceNumber = fields.str("invoice_number")
		rec.PurchaseNumber = fields.str("purchase_number")
		rec.Description = fields.str("description")
		rec.InvoiceDate = fields.str("invoice_date")
		rec.PurchaseDate = fields.str("purchase_date")
		rec.InvoiceMonth = monthLabel(rec.InvoiceDate)
		rec.PurchaseMonth = monthLabel(rec.PurchaseDate)
	case FamilyExpense:
		rec.ProjectCode = fields.str("project_code")
		rec.InvoiceNumber = fields.str("invoice_number")
		rec.Description = fields.str("description")
		rec.Classification = fields.str("classification")
		rec.InvoiceDate = fields.str("invoice_date")
		rec.InvoiceMonth = monthLabel(rec.InvoiceDate)
	}

	var err error
	if rec.NetValue, err = fields.amount(netValueKey(family)); err != nil {
		return nil, err
	}
	if rec.Discount, err = fields.amount("discount"); err != nil {
		return nil, err
	}
	if rec.OtherCharges, err = fields.amount("other_charges"); err != nil {
		return nil, err
	}
	if family == FamilyAdvance || family == FamilyExpense {
		if rec.Percentage, err = fields.amount("percentage"); err != nil {
			return nil, err
		}
	}

	rec.NetAmount = rec.NetValue.Sub(rec.Discount).Round(2)
	if rec.NetAmount.IsNegative() {
		return nil, errInvalidAmount("discount")
	}

	amounts, err := ComputeAmounts(family, rec.NetAmount, rec.VATPolicy, rec.OtherCharges)
	if err != nil {
		return nil, err
	}
	rec.VAT = amounts.VAT
	rec.WHT = amounts.WHT
	rec.AmountPayable = amounts.AmountPayable
	rec.GrossAmount = amounts.GrossAmount

	if family == FamilyAdvance || family == FamilyExpense {
		rec.AdvancePayment = AdvanceShare(rec.GrossAmount, rec.Percentage)
	}

	status := PaymentStatus(fields.str("payment_status"))
	if status == "" {
		status = StatusPending
	}
	if !ValidStatus(status) {
		return nil, errInvalidStatus(string(status))
	}
	rec.PaymentStatus = status

	return rec, nil
}

// familyLabel is the human name used in audit actions.
func familyLabel(family Family) string {
	switch family {
	case FamilyAdvance:
		return "advance payment request"
	case FamilySupplier:
		return "supplier fund request"
	default:
		return "expense fund request"
	}
}
