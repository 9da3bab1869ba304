// Package document holds calculations shared by line-item commercial
// documents (orders, invoices, deliveries).
package document

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is the portion of a document line that totals depend on.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// Totals aggregates the monetary totals of a document.
type Totals struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

// LineTotal returns quantity * unit price * (1 + tax rate / 100) rounded to cents.
func LineTotal(quantity, unitPrice, taxRate decimal.Decimal) decimal.Decimal {
	net := quantity.Mul(unitPrice)
	return net.Add(net.Mul(taxRate).Div(hundred)).Round(2)
}

// ComputeTotals sums net, tax and gross across lines, rounded to cents.
func ComputeTotals(lines []Line) Totals {
	net := decimal.Zero
	tax := decimal.Zero
	for _, l := range lines {
		lineNet := l.Quantity.Mul(l.UnitPrice)
		net = net.Add(lineNet)
		tax = tax.Add(lineNet.Mul(l.TaxRate).Div(hundred))
	}
	net = net.Round(2)
	tax = tax.Round(2)
	return Totals{Net: net, Tax: tax, Gross: net.Add(tax)}
}
