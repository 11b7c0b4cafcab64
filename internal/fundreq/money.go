package fundreq

import "github.com/shopspring/decimal"

// VAT policy codes accepted on fund requests. The 2.00% and 5.00% codes
// label the withholding tier, not the VAT rate: both compute VAT at 7.5%
// of net. That tiering matches every ledger already on record and must not
// be corrected here.
const (
	PolicyZero      = "0.00%"
	PolicySevenFive = "7.50%"
	PolicyTwo       = "2.00%"
	PolicyFive      = "5.00%"
)

var (
	rateVAT     = decimal.NewFromFloat(0.075)
	rateWHTTwo  = decimal.NewFromFloat(0.020)
	rateWHTFive = decimal.NewFromFloat(0.050)
	factorTwo   = decimal.NewFromFloat(1.055)
	factorFive  = decimal.NewFromFloat(1.025)
	oneHundred  = decimal.NewFromInt(100)
)

// Amounts holds every figure derived from a net amount and a policy code.
type Amounts struct {
	VAT           decimal.Decimal
	WHT           decimal.Decimal
	AmountPayable decimal.Decimal
	GrossAmount   decimal.Decimal
}

// ComputeAmounts derives VAT, WHT, amount payable and gross amount from the
// net amount, tax policy code and other charges. Every intermediate figure
// is rounded to two places so stored ledgers stay penny-stable across
// recomputation. Withholding applies to the expense family only; advance
// and supplier requests always record zero WHT.
func ComputeAmounts(family Family, netAmount decimal.Decimal, policy string, otherCharges decimal.Decimal) (Amounts, error) {
	if netAmount.IsNegative() || otherCharges.IsNegative() {
		return Amounts{}, errInvalidAmount("amount")
	}

	var a Amounts
	switch policy {
	case PolicyZero:
		a.VAT = decimal.Zero.Round(2)
		a.WHT = decimal.Zero.Round(2)
		a.AmountPayable = netAmount
	case PolicySevenFive:
		a.VAT = netAmount.Mul(rateVAT).Round(2)
		a.WHT = decimal.Zero.Round(2)
		a.AmountPayable = netAmount.Add(a.VAT).Round(2)
	case PolicyTwo:
		a.VAT = netAmount.Mul(rateVAT).Round(2)
		a.WHT = decimal.Zero.Round(2)
		if family == FamilyExpense {
			a.WHT = netAmount.Mul(rateWHTTwo).Round(2)
		}
		a.AmountPayable = netAmount.Mul(factorTwo).Round(2)
	case PolicyFive:
		a.VAT = netAmount.Mul(rateVAT).Round(2)
		a.WHT = decimal.Zero.Round(2)
		if family == FamilyExpense {
			a.WHT = netAmount.Mul(rateWHTFive).Round(2)
		}
		a.AmountPayable = netAmount.Mul(factorFive).Round(2)
	default:
		return Amounts{}, errInvalidPolicy(policy)
	}

	a.GrossAmount = a.AmountPayable.Add(otherCharges).Round(2)
	return a, nil
}

// AdvanceShare returns the portion of gross being disbursed now for the
// given percentage, rounded to two places.
func AdvanceShare(gross, percentage decimal.Decimal) decimal.Decimal {
	return gross.Mul(percentage).Div(oneHundred).Round(2)
}
