package fundreq

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/funddesk/funddesk/internal/audit"
	"github.com/funddesk/funddesk/internal/platform/db"
)

// Repository defines fund request data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetRequest(ctx context.Context, family Family, id int64) (FundRequest, error)
	ListRequests(ctx context.Context, family Family, req ListRequest) ([]FundRequest, int, error)
}

// TxRepository defines operations within a transaction. Every mutation of
// the ledger runs through it so the duplicate and allocation checks observe
// the same snapshot as the eventual write.
type TxRepository interface {
	GetRequest(ctx context.Context, family Family, id int64) (FundRequest, error)
	FindByKey(ctx context.Context, key DuplicateKey, excludeID int64) (bool, error)
	SumPercentage(ctx context.Context, poNumber string, excludeID int64) (decimal.Decimal, error)
	FindByIDs(ctx context.Context, family Family, ids []int64) ([]int64, error)
	Insert(ctx context.Context, rec *FundRequest) error
	Update(ctx context.Context, rec *FundRequest) error
	UpdateStatusBatch(ctx context.Context, family Family, ids []int64, status PaymentStatus) (int64, error)
	LockAllocation(ctx context.Context, poNumber string) error
	AppendAudit(ctx context.Context, entry audit.Entry) error
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// WithTx runs fn inside a read-committed transaction, rolled back whenever
// fn returns an error. The isolation level matters: the allocation check
// sums percentages after taking the PO advisory lock, and that sum must
// include rows committed while the lock was awaited. A repeatable-read
// snapshot is fixed by the transaction's first statement, before the lock
// is held, and would hide those rows.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
	if err != nil && KindOf(err) == "" {
		return errRepository("tx", err)
	}
	return err
}

const requestColumns = `id, family, suppliers_name, supplier_id, site, project_code,
	po_number, invoice_number, purchase_number, description, classification,
	date_received, invoice_date, purchase_date, invoice_month, purchase_month,
	percentage, net_value, discount, other_charges, vat_policy,
	net_amount, vat, wht, amount_payable, gross_amount, advance_payment,
	payment_status, note, created_at, updated_at`

func scanRequest(row pgx.Row) (FundRequest, error) {
	var rec FundRequest
	err := row.Scan(
		&rec.ID, &rec.Family, &rec.SupplierName, &rec.SupplierID, &rec.Site, &rec.ProjectCode,
		&rec.PONumber, &rec.InvoiceNumber, &rec.PurchaseNumber, &rec.Description, &rec.Classification,
		&rec.DateReceived, &rec.InvoiceDate, &rec.PurchaseDate, &rec.InvoiceMonth, &rec.PurchaseMonth,
		&rec.Percentage, &rec.NetValue, &rec.Discount, &rec.OtherCharges, &rec.VATPolicy,
		&rec.NetAmount, &rec.VAT, &rec.WHT, &rec.AmountPayable, &rec.GrossAmount, &rec.AdvancePayment,
		&rec.PaymentStatus, &rec.Note, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func getRequest(ctx context.Context, q querier, family Family, id int64) (FundRequest, error) {
	row := q.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM fund_requests WHERE family = $1 AND id = $2`,
		family, id)
	rec, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return FundRequest{}, errNotFound(notFoundMessage(family, id))
	}
	if err != nil {
		return FundRequest{}, errRepository("get request", err)
	}
	return rec, nil
}

// querier is the subset of pgx shared by pool and transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *pgRepository) GetRequest(ctx context.Context, family Family, id int64) (FundRequest, error) {
	return getRequest(ctx, r.pool, family, id)
}

func (r *pgRepository) ListRequests(ctx context.Context, family Family, req ListRequest) ([]FundRequest, int, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	where := `WHERE family = $1`
	args := []any{family}
	if req.Status != "" {
		where += ` AND payment_status = $2`
		args = append(args, req.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fund_requests `+where, args...).Scan(&total); err != nil {
		return nil, 0, errRepository("count requests", err)
	}

	query := `SELECT ` + requestColumns + ` FROM fund_requests ` + where +
		` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errRepository("list requests", err)
	}
	defer rows.Close()

	var out []FundRequest
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			return nil, 0, errRepository("scan request", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errRepository("list requests", err)
	}
	return out, total, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) GetRequest(ctx context.Context, family Family, id int64) (FundRequest, error) {
	return getRequest(ctx, t.tx, family, id)
}

func (t *pgTxRepository) FindByKey(ctx context.Context, key DuplicateKey, excludeID int64) (bool, error) {
	var (
		query string
		args  []any
	)
	switch key.Family {
	case FamilyAdvance:
		query = `SELECT id FROM fund_requests
			WHERE family = $1 AND suppliers_name = $2 AND percentage = $3 AND po_number = $4 AND date_received = $5 AND id <> $6
			LIMIT 1`
		args = []any{key.Family, key.SupplierName, key.Percentage, key.PONumber, key.DateReceived, excludeID}
	case FamilySupplier:
		query = `SELECT id FROM fund_requests
			WHERE family = $1 AND purchase_number = $2 AND id <> $3
			LIMIT 1`
		args = []any{key.Family, key.PurchaseNumber, excludeID}
	default:
		query = `SELECT id FROM fund_requests
			WHERE family = $1 AND invoice_number = $2 AND suppliers_name = $3 AND id <> $4
			LIMIT 1`
		args = []any{key.Family, key.InvoiceNumber, key.SupplierName, excludeID}
	}

	var id int64
	err := t.tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errRepository("find by key", err)
	}
	return true, nil
}

func (t *pgTxRepository) SumPercentage(ctx context.Context, poNumber string, excludeID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(percentage), 0) FROM fund_requests
		 WHERE family = $1 AND po_number = $2 AND id <> $3`,
		FamilyAdvance, poNumber, excludeID).Scan(&total)
	if err != nil {
		return decimal.Zero, errRepository("sum percentage", err)
	}
	return total, nil
}

func (t *pgTxRepository) FindByIDs(ctx context.Context, family Family, ids []int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id FROM fund_requests WHERE family = $1 AND id = ANY($2)`,
		family, ids)
	if err != nil {
		return nil, errRepository("find by ids", err)
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errRepository("scan id", err)
		}
		found = append(found, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errRepository("find by ids", err)
	}
	return found, nil
}

func (t *pgTxRepository) Insert(ctx context.Context, rec *FundRequest) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO fund_requests (
			family, suppliers_name, supplier_id, site, project_code,
			po_number, invoice_number, purchase_number, description, classification,
			date_received, invoice_date, purchase_date, invoice_month, purchase_month,
			percentage, net_value, discount, other_charges, vat_policy,
			net_amount, vat, wht, amount_payable, gross_amount, advance_payment,
			payment_status, note, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, NOW(), NOW()
		) RETURNING id, created_at, updated_at`,
		rec.Family, rec.SupplierName, rec.SupplierID, rec.Site, rec.ProjectCode,
		rec.PONumber, rec.InvoiceNumber, rec.PurchaseNumber, rec.Description, rec.Classification,
		rec.DateReceived, rec.InvoiceDate, rec.PurchaseDate, rec.InvoiceMonth, rec.PurchaseMonth,
		rec.Percentage, rec.NetValue, rec.Discount, rec.OtherCharges, rec.VATPolicy,
		rec.NetAmount, rec.VAT, rec.WHT, rec.AmountPayable, rec.GrossAmount, rec.AdvancePayment,
		rec.PaymentStatus, rec.Note,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errDuplicate("This request already exists.")
		}
		return errRepository("insert request", err)
	}
	return nil
}

func (t *pgTxRepository) Update(ctx context.Context, rec *FundRequest) error {
	err := t.tx.QueryRow(ctx,
		`UPDATE fund_requests SET
			suppliers_name = $1, supplier_id = $2, site = $3, project_code = $4,
			po_number = $5, invoice_number = $6, purchase_number = $7, description = $8, classification = $9,
			date_received = $10, invoice_date = $11, purchase_date = $12, invoice_month = $13, purchase_month = $14,
			percentage = $15, net_value = $16, discount = $17, other_charges = $18, vat_policy = $19,
			net_amount = $20, vat = $21, wht = $22, amount_payable = $23, gross_amount = $24, advance_payment = $25,
			payment_status = $26, note = $27, updated_at = NOW()
		WHERE family = $28 AND id = $29
		RETURNING created_at, updated_at`,
		rec.SupplierName, rec.SupplierID, rec.Site, rec.ProjectCode,
		rec.PONumber, rec.InvoiceNumber, rec.PurchaseNumber, rec.Description, rec.Classification,
		rec.DateReceived, rec.InvoiceDate, rec.PurchaseDate, rec.InvoiceMonth, rec.PurchaseMonth,
		rec.Percentage, rec.NetValue, rec.Discount, rec.OtherCharges, rec.VATPolicy,
		rec.NetAmount, rec.VAT, rec.WHT, rec.AmountPayable, rec.GrossAmount, rec.AdvancePayment,
		rec.PaymentStatus, rec.Note,
		rec.Family, rec.ID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound(notFoundMessage(rec.Family, rec.ID))
	}
	if err != nil {
		if isUniqueViolation(err) {
			return errDuplicate("This request already exists.")
		}
		return errRepository("update request", err)
	}
	return nil
}

func (t *pgTxRepository) UpdateStatusBatch(ctx context.Context, family Family, ids []int64, status PaymentStatus) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE fund_requests SET payment_status = $1, updated_at = NOW()
		 WHERE family = $2 AND id = ANY($3)`,
		status, family, ids)
	if err != nil {
		return 0, errRepository("update status batch", err)
	}
	return tag.RowsAffected(), nil
}

// LockAllocation serialises allocation checks for one purchase order. The
// advisory lock is transaction scoped, so two concurrent creates against
// the same PO cannot both read a stale percentage total.
func (t *pgTxRepository) LockAllocation(ctx context.Context, poNumber string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, poNumber)
	if err != nil {
		return errRepository("lock allocation", err)
	}
	return nil
}

func (t *pgTxRepository) AppendAudit(ctx context.Context, entry audit.Entry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO logs (user_id, action, created_by, created_at) VALUES ($1, $2, $3, NOW())`,
		entry.ActorID, entry.Action, entry.ActorEmail)
	if err != nil {
		return errRepository("append audit", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFoundMessage(family Family, id int64) string {
	switch family {
	case FamilyAdvance:
		return fmt.Sprintf("Advance payment request with ID %d not found", id)
	case FamilySupplier:
		return fmt.Sprintf("Supplier fund request with ID %d not found", id)
	default:
		return fmt.Sprintf("Expense fund request with ID %d not found", id)
	}
}
