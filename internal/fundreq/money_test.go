package fundreq

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeAmountsZeroPolicy(t *testing.T) {
	a, err := ComputeAmounts(FamilySupplier, dec("1000"), PolicyZero, dec("0"))
	require.NoError(t, err)
	require.True(t, a.VAT.IsZero())
	require.True(t, a.WHT.IsZero())
	require.True(t, a.AmountPayable.Equal(dec("1000")))
	require.True(t, a.GrossAmount.Equal(dec("1000")))
}

func TestComputeAmountsStandardVAT(t *testing.T) {
	a, err := ComputeAmounts(FamilySupplier, dec("1000"), PolicySevenFive, dec("25.50"))
	require.NoError(t, err)
	require.True(t, a.VAT.Equal(dec("75")), "vat = %s", a.VAT)
	require.True(t, a.WHT.IsZero())
	require.True(t, a.AmountPayable.Equal(dec("1075")))
	require.True(t, a.GrossAmount.Equal(dec("1100.50")))
}

func TestComputeAmountsWithholdingTiers(t *testing.T) {
	// The 2.00% and 5.00% codes still charge VAT at 7.5% of net.
	a, err := ComputeAmounts(FamilyExpense, dec("1000"), PolicyTwo, dec("0"))
	require.NoError(t, err)
	require.True(t, a.VAT.Equal(dec("75")))
	require.True(t, a.WHT.Equal(dec("20")))
	require.True(t, a.AmountPayable.Equal(dec("1055")))

	a, err = ComputeAmounts(FamilyExpense, dec("1000"), PolicyFive, dec("0"))
	require.NoError(t, err)
	require.True(t, a.VAT.Equal(dec("75")))
	require.True(t, a.WHT.Equal(dec("50")))
	require.True(t, a.AmountPayable.Equal(dec("1025")))
}

func TestComputeAmountsNoWithholdingOutsideExpense(t *testing.T) {
	for _, family := range []Family{FamilyAdvance, FamilySupplier} {
		a, err := ComputeAmounts(family, dec("1000"), PolicyFive, dec("0"))
		require.NoError(t, err)
		require.True(t, a.WHT.IsZero(), "family %s should not withhold", family)
		require.True(t, a.AmountPayable.Equal(dec("1025")))
	}
}

func TestComputeAmountsRoundsEachStep(t *testing.T) {
	a, err := ComputeAmounts(FamilySupplier, dec("333.33"), PolicySevenFive, dec("0.01"))
	require.NoError(t, err)
	require.True(t, a.VAT.Equal(dec("25")), "vat = %s", a.VAT)
	require.True(t, a.AmountPayable.Equal(dec("358.33")))
	require.True(t, a.GrossAmount.Equal(dec("358.34")))
}

func TestComputeAmountsDeterministic(t *testing.T) {
	first, err := ComputeAmounts(FamilyExpense, dec("8471.93"), PolicyTwo, dec("120.07"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ComputeAmounts(FamilyExpense, dec("8471.93"), PolicyTwo, dec("120.07"))
		require.NoError(t, err)
		require.True(t, first.GrossAmount.Equal(again.GrossAmount))
		require.True(t, first.WHT.Equal(again.WHT))
	}
}

func TestComputeAmountsRejectsUnknownPolicy(t *testing.T) {
	_, err := ComputeAmounts(FamilySupplier, dec("1000"), "10.00%", dec("0"))
	require.Equal(t, KindInvalidPolicyCode, KindOf(err))
}

func TestComputeAmountsRejectsNegativeNet(t *testing.T) {
	_, err := ComputeAmounts(FamilySupplier, dec("-1"), PolicyZero, dec("0"))
	require.Equal(t, KindInvalidAmount, KindOf(err))
}

func TestAdvanceShare(t *testing.T) {
	require.True(t, AdvanceShare(dec("1075"), dec("50")).Equal(dec("537.50")))
	require.True(t, AdvanceShare(dec("1000"), dec("33.33")).Equal(dec("333.30")))
	require.True(t, AdvanceShare(dec("1000"), dec("0")).IsZero())
}

func TestMonthLabel(t *testing.T) {
	require.Equal(t, "Feb-2025", monthLabel("2025-02-10"))
	require.Equal(t, "", monthLabel("10/02/2025"))
	require.Equal(t, "", monthLabel(""))
}
