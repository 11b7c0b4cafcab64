package fundreq

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/funddesk/funddesk/internal/audit"
	"github.com/funddesk/funddesk/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[Family]map[int64]FundRequest
	audits  []audit.Entry
	nextID  int64

	poMu    sync.Mutex
	poLocks map[string]*sync.Mutex
}

type memoryTx struct {
	repo    *memoryRepo
	pending []func()
	held    []*sync.Mutex
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: map[Family]map[int64]FundRequest{
			FamilyAdvance:  {},
			FamilySupplier: {},
			FamilyExpense:  {},
		},
		poLocks: map[string]*sync.Mutex{},
	}
}

// WithTx mirrors the read-committed contract of the real repository: every
// statement reads currently committed state, writes stay buffered until
// commit, and allocation locks are held until the transaction ends.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r}
	err := fn(ctx, tx)
	if err == nil {
		r.mu.Lock()
		for _, apply := range tx.pending {
			apply()
		}
		r.mu.Unlock()
	}
	for _, lock := range tx.held {
		lock.Unlock()
	}
	return err
}

func (r *memoryRepo) get(family Family, id int64) (FundRequest, error) {
	rec, ok := r.records[family][id]
	if !ok {
		return FundRequest{}, errNotFound(notFoundMessage(family, id))
	}
	return rec, nil
}

func (r *memoryRepo) GetRequest(ctx context.Context, family Family, id int64) (FundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(family, id)
}

func (r *memoryRepo) ListRequests(ctx context.Context, family Family, req ListRequest) ([]FundRequest, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FundRequest
	for _, rec := range r.records[family] {
		if req.Status != "" && rec.PaymentStatus != req.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (t *memoryTx) GetRequest(ctx context.Context, family Family, id int64) (FundRequest, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	return t.repo.get(family, id)
}

func (t *memoryTx) FindByKey(ctx context.Context, key DuplicateKey, excludeID int64) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for id, rec := range t.repo.records[key.Family] {
		if id == excludeID {
			continue
		}
		switch key.Family {
		case FamilyAdvance:
			if rec.SupplierName == key.SupplierName && rec.Percentage.Equal(key.Percentage) &&
				rec.PONumber == key.PONumber && rec.DateReceived == key.DateReceived {
				return true, nil
			}
		case FamilySupplier:
			if rec.PurchaseNumber == key.PurchaseNumber {
				return true, nil
			}
		case FamilyExpense:
			if rec.InvoiceNumber == key.InvoiceNumber && rec.SupplierName == key.SupplierName {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memoryTx) SumPercentage(ctx context.Context, poNumber string, excludeID int64) (decimal.Decimal, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	total := decimal.Zero
	for id, rec := range t.repo.records[FamilyAdvance] {
		if id == excludeID || rec.PONumber != poNumber {
			continue
		}
		total = total.Add(rec.Percentage)
	}
	return total, nil
}

func (t *memoryTx) FindByIDs(ctx context.Context, family Family, ids []int64) ([]int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	var found []int64
	for _, id := range ids {
		if _, ok := t.repo.records[family][id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (t *memoryTx) Insert(ctx context.Context, rec *FundRequest) error {
	t.repo.mu.Lock()
	t.repo.nextID++
	rec.ID = t.repo.nextID
	t.repo.mu.Unlock()
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	stored := *rec
	t.pending = append(t.pending, func() {
		t.repo.records[stored.Family][stored.ID] = stored
	})
	return nil
}

func (t *memoryTx) Update(ctx context.Context, rec *FundRequest) error {
	t.repo.mu.Lock()
	existing, ok := t.repo.records[rec.Family][rec.ID]
	t.repo.mu.Unlock()
	if !ok {
		return errNotFound(notFoundMessage(rec.Family, rec.ID))
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now()
	stored := *rec
	t.pending = append(t.pending, func() {
		t.repo.records[stored.Family][stored.ID] = stored
	})
	return nil
}

func (t *memoryTx) UpdateStatusBatch(ctx context.Context, family Family, ids []int64, status PaymentStatus) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	var updated int64
	for _, id := range ids {
		if _, ok := t.repo.records[family][id]; !ok {
			continue
		}
		id := id
		t.pending = append(t.pending, func() {
			rec := t.repo.records[family][id]
			rec.PaymentStatus = status
			rec.UpdatedAt = time.Now()
			t.repo.records[family][id] = rec
		})
		updated++
	}
	return updated, nil
}

func (t *memoryTx) LockAllocation(ctx context.Context, poNumber string) error {
	t.repo.poMu.Lock()
	lock, ok := t.repo.poLocks[poNumber]
	if !ok {
		lock = &sync.Mutex{}
		t.repo.poLocks[poNumber] = lock
	}
	t.repo.poMu.Unlock()

	lock.Lock()
	t.held = append(t.held, lock)
	return nil
}

func (t *memoryTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	t.pending = append(t.pending, func() {
		t.repo.audits = append(t.repo.audits, entry)
	})
	return nil
}

var testActor = shared.Identity{ID: 7, Email: "ops@funddesk.test", Role: shared.RoleAdmin}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, logger), repo
}

func num(s string) json.Number {
	return json.Number(s)
}

func advanceFields() Fields {
	return Fields{
		"supplier_name":  "Acme Industrial",
		"supplier_id":    "SUP-001",
		"site":           "Lagos",
		"po_number":      "PO-1001",
		"date_received":  "2025-03-14",
		"percentage":     num("50"),
		"amount":         num("1000"),
		"discount":       num("0"),
		"vat_status":     "7.50%",
		"payment_status": "Pending",
	}
}

func supplierFields() Fields {
	return Fields{
		"suppliers_name":  "Bolt Fabrications",
		"supplier_id":     "SUP-044",
		"invoice_number":  "INV-2201",
		"purchase_number": "PN-88",
		"po_number":       "PO-2002",
		"invoice_date":    "2025-02-10",
		"purchase_date":   "2025-01-28",
		"date_received":   "2025-02-12",
		"project_code":    "PRJ-9",
		"description":     "Structural steel batch",
		"amount":          num("5000"),
		"vat_policy":      "2.00%",
		"discount":        num("0"),
		"other_charges":   num("150"),
		"payment_status":  "Pending",
	}
}

func expenseFields() Fields {
	return Fields{
		"suppliers_name": "Crest Logistics",
		"supplier_id":    "SUP-312",
		"invoice_number": "INV-7731",
		"invoice_date":   "2025-04-02",
		"date_received":  "2025-04-03",
		"project_code":   "PRJ-3",
		"description":    "Freight and handling",
		"classification": "Logistics",
		"percentage":     num("100"),
		"net_value":      num("1000"),
		"vat_policy":     "2.00%",
		"discount":       num("0"),
		"other_charges":  num("0"),
		"payment_status": "Pending",
	}
}

func TestCreateAdvanceComputesAmounts(t *testing.T) {
	svc, repo := newTestService(t)

	rec, err := svc.Create(context.Background(), FamilyAdvance, advanceFields(), testActor)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.ID)
	require.True(t, rec.VAT.Equal(dec("75")))
	require.True(t, rec.WHT.IsZero())
	require.True(t, rec.AmountPayable.Equal(dec("1075")))
	require.True(t, rec.GrossAmount.Equal(dec("1075")))
	require.True(t, rec.AdvancePayment.Equal(dec("537.50")))
	require.Equal(t, StatusPending, rec.PaymentStatus)

	require.Len(t, repo.audits, 1)
	require.Equal(t, testActor.Email, repo.audits[0].ActorEmail)
	require.Contains(t, repo.audits[0].Action, "created a new advance payment request with ID 1")
}

func TestCreateSupplierDerivesMonths(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Create(context.Background(), FamilySupplier, supplierFields(), testActor)
	require.NoError(t, err)
	require.Equal(t, "Feb-2025", rec.InvoiceMonth)
	require.Equal(t, "Jan-2025", rec.PurchaseMonth)
	// 2.00% on a supplier request charges VAT but withholds nothing.
	require.True(t, rec.VAT.Equal(dec("375")))
	require.True(t, rec.WHT.IsZero())
	require.True(t, rec.AmountPayable.Equal(dec("5275")))
	require.True(t, rec.GrossAmount.Equal(dec("5425")))
}

func TestCreateExpenseWithholds(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Create(context.Background(), FamilyExpense, expenseFields(), testActor)
	require.NoError(t, err)
	require.True(t, rec.VAT.Equal(dec("75")))
	require.True(t, rec.WHT.Equal(dec("20")))
	require.True(t, rec.AmountPayable.Equal(dec("1055")))
	require.True(t, rec.AdvancePayment.Equal(dec("1055")))
	require.Equal(t, "Apr-2025", rec.InvoiceMonth)
}

func TestCreateMissingFieldRejected(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	delete(fields, "po_number")
	_, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.Equal(t, KindMissingField, KindOf(err))
	require.EqualError(t, err, "Field 'po_number' is required.")

	fields = advanceFields()
	fields["site"] = ""
	_, err = svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.Equal(t, KindMissingField, KindOf(err))
}

func TestCreateZeroValuesCountAsPresent(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["percentage"] = num("0")
	fields["vat_status"] = "0.00%"
	rec, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)
	require.True(t, rec.VAT.IsZero())
	require.True(t, rec.AdvancePayment.IsZero())
}

func TestCreateRejectsNonNumericAmount(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["amount"] = "a lot"
	_, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.Equal(t, KindInvalidAmount, KindOf(err))
}

func TestCreateRejectsDiscountAboveAmount(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["discount"] = num("1200")
	_, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.Equal(t, KindInvalidAmount, KindOf(err))
}

func TestCreateBlankStatusDefaultsToPending(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["payment_status"] = "  "
	rec, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.PaymentStatus)
}

func TestCreatePreservesCallerStatus(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["payment_status"] = "Paid"
	rec, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, rec.PaymentStatus)

	fields = advanceFields()
	fields["payment_status"] = "Settled"
	fields["percentage"] = num("10")
	_, err = svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.Equal(t, KindInvalidStatus, KindOf(err))
}

func TestCreateDuplicateAdvance(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), FamilyAdvance, advanceFields(), testActor)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), FamilyAdvance, advanceFields(), testActor)
	require.Equal(t, KindDuplicateRequest, KindOf(err))

	// A different received date is a different request.
	fields := advanceFields()
	fields["date_received"] = "2025-03-15"
	fields["percentage"] = num("10")
	_, err = svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)
}

func TestCreateDuplicateSupplierByPurchaseNumber(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), FamilySupplier, supplierFields(), testActor)
	require.NoError(t, err)

	fields := supplierFields()
	fields["invoice_number"] = "INV-9999"
	_, err = svc.Create(context.Background(), FamilySupplier, fields, testActor)
	require.Equal(t, KindDuplicateRequest, KindOf(err))
}

func TestCreateDuplicateExpense(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), FamilyExpense, expenseFields(), testActor)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), FamilyExpense, expenseFields(), testActor)
	require.Equal(t, KindDuplicateRequest, KindOf(err))

	// Same invoice number under another supplier is allowed.
	fields := expenseFields()
	fields["suppliers_name"] = "Delta Freight"
	_, err = svc.Create(context.Background(), FamilyExpense, fields, testActor)
	require.NoError(t, err)
}

func TestAllocationCap(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["percentage"] = num("60")
	_, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)

	fields = advanceFields()
	fields["percentage"] = num("41")
	_, err = svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.Equal(t, KindAllocationExceeded, KindOf(err))

	// Exactly 100% is allowed.
	fields = advanceFields()
	fields["percentage"] = num("40")
	_, err = svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)
}

func TestEditExcludesOwnAllocation(t *testing.T) {
	svc, _ := newTestService(t)

	fields := advanceFields()
	fields["percentage"] = num("60")
	_, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)

	fields = advanceFields()
	fields["percentage"] = num("30")
	fields["date_received"] = "2025-03-20"
	second, err := svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)

	// Raising 30% to 40% keeps the PO at exactly 100%.
	fields["percentage"] = num("40")
	updated, err := svc.Edit(context.Background(), FamilyAdvance, second.ID, fields, testActor)
	require.NoError(t, err)
	require.True(t, updated.Percentage.Equal(dec("40")))

	fields["percentage"] = num("41")
	_, err = svc.Edit(context.Background(), FamilyAdvance, second.ID, fields, testActor)
	require.Equal(t, KindAllocationExceeded, KindOf(err))
}

func TestEditUnchangedResubmissionPasses(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Create(context.Background(), FamilySupplier, supplierFields(), testActor)
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), FamilySupplier, rec.ID, supplierFields(), testActor)
	require.NoError(t, err)
}

func TestEditNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Edit(context.Background(), FamilyAdvance, 42, advanceFields(), testActor)
	require.Equal(t, KindNotFound, KindOf(err))
	require.EqualError(t, err, "Advance payment request with ID 42 not found")
}

func TestAllocationObservesCommitDuringLockWait(t *testing.T) {
	// A transaction that waits for the PO lock must sum percentages
	// committed by the lock holder, not state from before the wait.
	repo := newMemoryRepo()

	locked := make(chan struct{})
	release := make(chan struct{})
	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
			if err := tx.LockAllocation(ctx, "PO-1001"); err != nil {
				return err
			}
			close(locked)
			<-release
			rec := FundRequest{
				Family:        FamilyAdvance,
				SupplierName:  "Acme Industrial",
				PONumber:      "PO-1001",
				DateReceived:  "2025-03-14",
				Percentage:    dec("60"),
				PaymentStatus: StatusPending,
			}
			return tx.Insert(ctx, &rec)
		})
	}()

	<-locked
	done := make(chan error, 1)
	go func() {
		done <- repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
			return checkAllocation(ctx, tx, "PO-1001", dec("60"), 0)
		})
	}()
	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	require.Equal(t, KindAllocationExceeded, KindOf(<-done))
}

func TestConcurrentAllocationOnePOWins(t *testing.T) {
	svc, _ := newTestService(t)

	make60 := func(date string) Fields {
		fields := advanceFields()
		fields["percentage"] = num("60")
		fields["date_received"] = date
		return fields
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i, date := range []string{"2025-03-14", "2025-03-15"} {
		wg.Add(1)
		go func(i int, date string) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), FamilyAdvance, make60(date), testActor)
			errs <- err
		}(i, date)
	}
	wg.Wait()
	close(errs)

	var ok, exceeded int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case KindOf(err) == KindAllocationExceeded:
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, exceeded)
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), FamilyAdvance, advanceFields(), testActor)
	require.NoError(t, err)

	fields := advanceFields()
	fields["date_received"] = "2025-03-15"
	fields["percentage"] = num("10")
	fields["payment_status"] = "Paid"
	_, err = svc.Create(context.Background(), FamilyAdvance, fields, testActor)
	require.NoError(t, err)

	records, paging, err := svc.List(context.Background(), FamilyAdvance, ListRequest{Status: StatusPaid, Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, paging.Total)

	_, _, err = svc.List(context.Background(), FamilyAdvance, ListRequest{Status: "Settled"})
	require.Equal(t, KindInvalidStatus, KindOf(err))
}
