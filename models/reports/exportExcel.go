package reports

import (
	"io"

	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	closureSheet = "Closure"
	balanceSheet = "Balance"
)

// sheetWriter appends rows to one sheet.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newSheetWriter(f *excelize.File, sheet string) (*sheetWriter, error) {
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return &sheetWriter{f: f, sheet: sheet, row: 1}, nil
}

func (w *sheetWriter) writeRow(values ...interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func (w *sheetWriter) writeTotals(title string, totals MethodTotals) error {
	if err := w.writeRow(title); err != nil {
		return err
	}
	for _, method := range totals.Methods() {
		if err := w.writeRow("", method, totals[method].InexactFloat64()); err != nil {
			return err
		}
	}
	return w.writeRow("", "Total", totals.Total().InexactFloat64())
}

func (w *sheetWriter) skip() {
	w.row++
}

// ExportCashClosure renders a closure as a single-sheet workbook.
func ExportCashClosure(c *CashClosure) (*excelize.File, error) {
	f := excelize.NewFile()
	w, err := newSheetWriter(f, closureSheet)
	if err != nil {
		return nil, err
	}
	if err := w.writeRow("Cash closure", utils.FormatDate(c.Date)); err != nil {
		return nil, err
	}
	w.skip()
	sections := []struct {
		title  string
		totals MethodTotals
	}{
		{"Sales", c.SalesByMethod},
		{"Credit collections", c.CreditCollectionsByMethod},
		{"Loan repayments", c.LoanRepaymentsByMethod},
		{"Loan disbursements", c.LoanDisbursementsByMethod},
		{"Payroll", c.PayrollByMethod},
		{"General expenses", c.GeneralExpensesByMethod},
	}
	for _, s := range sections {
		if err := w.writeTotals(s.title, s.totals); err != nil {
			return nil, err
		}
		w.skip()
	}
	if err := w.writeRow("Credit issued (not in cash)"); err != nil {
		return nil, err
	}
	for _, p := range c.CreditIssued {
		if err := w.writeRow("", p.ID, p.Amount.InexactFloat64(), p.Note); err != nil {
			return nil, err
		}
	}
	w.skip()
	if err := w.writeRow("General expense detail"); err != nil {
		return nil, err
	}
	for _, e := range c.GeneralExpenses {
		if err := w.writeRow("", e.Category, e.Description, e.Method, e.Amount.InexactFloat64()); err != nil {
			return nil, err
		}
	}
	w.skip()
	rows := [][]interface{}{
		{"Total in", c.TotalIn.InexactFloat64()},
		{"Total out", c.TotalOut.InexactFloat64()},
		{"Net", c.Net.InexactFloat64()},
	}
	for _, r := range rows {
		if err := w.writeRow(r...); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ExportFinancialBalance renders a balance as a single-sheet workbook.
func ExportFinancialBalance(b *FinancialBalance) (*excelize.File, error) {
	f := excelize.NewFile()
	w, err := newSheetWriter(f, balanceSheet)
	if err != nil {
		return nil, err
	}
	rows := [][]interface{}{
		{"Financial balance", utils.FormatDate(b.From), utils.FormatDate(b.To)},
		{},
		{"Sales payments", b.SalesPayments.InexactFloat64()},
		{"Discounts", b.Discounts.InexactFloat64()},
		{"Gross sales", b.GrossSales.InexactFloat64()},
		{"Total expenses", b.TotalExpenses.InexactFloat64()},
		{"Net profit", b.NetProfit.InexactFloat64()},
		{"Credit issued", b.CreditIssued.InexactFloat64()},
		{"Credit collected", b.CreditCollected.InexactFloat64()},
		{},
	}
	for _, r := range rows {
		if err := w.writeRow(r...); err != nil {
			return nil, err
		}
	}
	if err := w.writeTotals("Expenses by category", b.ExpensesByCategory); err != nil {
		return nil, err
	}
	w.skip()
	if err := w.writeTotals("Cash in", b.CashInByMethod); err != nil {
		return nil, err
	}
	w.skip()
	if err := w.writeTotals("Cash out", b.CashOutByMethod); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteWorkbook streams the workbook and releases it.
func WriteWorkbook(out io.Writer, f *excelize.File) error {
	defer f.Close()
	return f.Write(out)
}
