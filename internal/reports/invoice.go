package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"busops/internal/fees"
	"busops/internal/models"
)

// InvoiceNumber is stable per fee so a reprint carries the same number.
func InvoiceNumber(f models.MonthlyFee) string {
	return fmt.Sprintf("INV-%s-%05d", f.Month, f.ID)
}

// FeeInvoice renders a one-page PDF invoice for a monthly fee.
func FeeInvoice(v fees.View, bus models.Bus, owner models.User, issued time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+InvoiceNumber(v.MonthlyFee), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	line := func(s string) {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}
	line("Invoice no : " + InvoiceNumber(v.MonthlyFee))
	line("Issued     : " + issued.Format("2006-01-02 15:04"))
	line("Due date   : " + orDash(v.DueDate.String()))
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	line("Billed to:")
	pdf.SetFont("Helvetica", "", 12)
	line("Name  : " + orDash(owner.Name))
	line("Email : " + orDash(owner.Email))
	line("Phone : " + orDash(owner.Phone))
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	line("Details:")
	pdf.SetFont("Helvetica", "", 12)
	line(fmt.Sprintf("Monthly fee for bus %s, %s", bus.BusNumber, v.Month))
	line("Amount      : " + money(v.Amount))
	if v.LateFee.IsPositive() {
		line("Late fee    : " + money(v.LateFee))
	}
	line("Paid        : " + money(v.PaidAmount))
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 13)
	line("Balance due : " + money(v.Balance.Add(v.LateFee)))
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Status: "+v.DerivedStatus, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
