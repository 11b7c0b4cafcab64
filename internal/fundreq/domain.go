package fundreq

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Family identifies which fund request ledger a record belongs to.
type Family string

const (
	FamilyAdvance  Family = "advance"
	FamilySupplier Family = "supplier"
	FamilyExpense  Family = "expense"
)

// ParseFamily maps a route segment to a Family.
func ParseFamily(s string) (Family, bool) {
	switch Family(s) {
	case FamilyAdvance, FamilySupplier, FamilyExpense:
		return Family(s), true
	}
	return "", false
}

// PaymentStatus enumerates fund request payment states. Any state may
// transition to any other.
type PaymentStatus string

const (
	StatusPending     PaymentStatus = "Pending"
	StatusPaid        PaymentStatus = "Paid"
	StatusUnconfirmed PaymentStatus = "Unconfirmed"
)

// ValidStatus reports whether s is one of the accepted payment states.
func ValidStatus(s PaymentStatus) bool {
	switch s {
	case StatusPending, StatusPaid, StatusUnconfirmed:
		return true
	}
	return false
}

// FundRequest is the unified model for the three request families. Fields
// that do not apply to a family stay at their zero value.
type FundRequest struct {
	ID     int64  `json:"id"`
	Family Family `json:"-"`

	SupplierName   string `json:"suppliers_name"`
	SupplierID     string `json:"supplier_id"`
	Site           string `json:"site,omitempty"`
	ProjectCode    string `json:"project_code,omitempty"`
	PONumber       string `json:"po_number,omitempty"`
	InvoiceNumber  string `json:"invoice_number,omitempty"`
	PurchaseNumber string `json:"purchase_number,omitempty"`
	Description    string `json:"description,omitempty"`
	Classification string `json:"classification,omitempty"`

	DateReceived  string `json:"date_received"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	PurchaseDate  string `json:"purchase_date,omitempty"`
	InvoiceMonth  string `json:"invoice_month,omitempty"`
	PurchaseMonth string `json:"purchase_month,omitempty"`

	Percentage   decimal.Decimal `json:"percentage"`
	NetValue     decimal.Decimal `json:"net_value"`
	Discount     decimal.Decimal `json:"discount"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	VATPolicy    string          `json:"vat_policy"`

	NetAmount      decimal.Decimal `json:"net_amount"`
	VAT            decimal.Decimal `json:"vat"`
	WHT            decimal.Decimal `json:"wht"`
	AmountPayable  decimal.Decimal `json:"amount_payable"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	AdvancePayment decimal.Decimal `json:"advance_payment"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	Note          string        `json:"note"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON renders the computed share under the key each family has
// always used on the wire: "advance_payment" for advances, "amount" for
// expense requests.
func (r FundRequest) MarshalJSON() ([]byte, error) {
	type plain FundRequest
	if r.Family == FamilyExpense {
		return json.Marshal(struct {
			plain
			Amount         decimal.Decimal  `json:"amount"`
			AdvancePayment *decimal.Decimal `json:"advance_payment,omitempty"`
		}{plain: plain(r), Amount: r.AdvancePayment})
	}
	return json.Marshal(plain(r))
}

// ListRequest filters a family listing.
type ListRequest struct {
	Status PaymentStatus
	Page   int
	Limit  int
}

// requiredFields lists the input keys that must be present for each family.
// A literal 0 and the literal "0.00%" count as present; only a missing key
// or an empty string is rejected.
var requiredFields = map[Family][]string{
	FamilyAdvance: {
		"supplier_name", "supplier_id", "site", "po_number", "date_received",
		"percentage", "amount", "discount", "vat_status", "payment_status",
	},
	FamilySupplier: {
		"suppliers_name", "supplier_id", "invoice_number", "purchase_number",
		"po_number", "invoice_date", "purchase_date", "date_received",
		"project_code", "description", "amount", "vat_policy", "discount",
		"other_charges", "payment_status",
	},
	FamilyExpense: {
		"suppliers_name", "supplier_id", "invoice_number", "invoice_date",
		"date_received", "project_code", "description", "classification",
		"percentage", "net_value", "vat_policy", "discount", "other_charges",
		"payment_status",
	},
}

// supplierNameKey returns the input key carrying the supplier name; the
// advance family historically uses a different key than the other two.
func supplierNameKey(family Family) string {
	if family == FamilyAdvance {
		return "supplier_name"
	}
	return "suppliers_name"
}

// vatPolicyKey returns the input key carrying the tax policy code.
func vatPolicyKey(family Family) string {
	if family == FamilyAdvance {
		return "vat_status"
	}
	return "vat_policy"
}

// netValueKey returns the input key carrying the raw money amount.
func netValueKey(family Family) string {
	switch family {
	case FamilyAdvance, FamilySupplier:
		return "amount"
	default:
		return "net_value"
	}
}

// monthLabel formats a YYYY-MM-DD date as MMM-YYYY for reporting columns.
// Unparseable dates yield an empty label rather than an error.
func monthLabel(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.Format("Jan-2006")
}
