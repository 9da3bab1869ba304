package document

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeTotals(t *testing.T) {
	totals := ComputeTotals([]Line{
		{Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("23")},
	})
	require.True(t, totals.Net.Equal(dec("200.00")), "net = %s", totals.Net)
	require.True(t, totals.Tax.Equal(dec("46.00")), "tax = %s", totals.Tax)
	require.True(t, totals.Gross.Equal(dec("246.00")), "gross = %s", totals.Gross)
}

func TestComputeTotalsMixedRates(t *testing.T) {
	totals := ComputeTotals([]Line{
		{Quantity: dec("1"), UnitPrice: dec("100"), TaxRate: dec("23")},
		{Quantity: dec("3"), UnitPrice: dec("9.99"), TaxRate: dec("8")},
		{Quantity: dec("2"), UnitPrice: dec("50"), TaxRate: dec("0")},
	})
	// 100 + 29.97 + 100 net; 23 + 2.3976 tax rounded to cents.
	require.True(t, totals.Net.Equal(dec("229.97")))
	require.True(t, totals.Tax.Equal(dec("25.40")))
	require.True(t, totals.Gross.Equal(dec("255.37")))
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals := ComputeTotals(nil)
	require.True(t, totals.Net.IsZero())
	require.True(t, totals.Tax.IsZero())
	require.True(t, totals.Gross.IsZero())
}

func TestLineTotal(t *testing.T) {
	require.True(t, LineTotal(dec("2"), dec("100"), dec("23")).Equal(dec("246.00")))
	require.True(t, LineTotal(dec("3"), dec("9.99"), dec("8")).Equal(dec("32.37")))
	require.True(t, LineTotal(dec("1"), dec("0.005"), dec("0")).Equal(dec("0.01")))
}
