package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
)

// MethodTotals sums amounts per payment method.
type MethodTotals map[string]decimal.Decimal

func (m MethodTotals) add(method string, amount decimal.Decimal) {
	m[method] = m[method].Add(amount)
}

func (m MethodTotals) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// Methods returns the methods in name order.
func (m MethodTotals) Methods() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type CashClosure struct {
	Date time.Time `json:"date"`

	SalesByMethod             MethodTotals      `json:"sales_by_method"`
	CreditCollectionsByMethod MethodTotals      `json:"credit_collections_by_method"`
	CreditCollections         []*models.Payment `json:"credit_collections"`
	CreditIssued              []*models.Payment `json:"credit_issued"`
	CreditIssuedTotal         decimal.Decimal   `json:"credit_issued_total"`

	LoanRepaymentsByMethod MethodTotals              `json:"loan_repayments_by_method"`
	PayrollDeductions      []*models.LoanInstallment `json:"payroll_deductions"`
	PayrollDeductionsTotal decimal.Decimal           `json:"payroll_deductions_total"`

	LoanDisbursementsByMethod MethodTotals      `json:"loan_disbursements_by_method"`
	LoanDisbursements         []*models.Expense `json:"loan_disbursements"`
	PayrollByMethod           MethodTotals      `json:"payroll_by_method"`
	PayrollExpenses           []*models.Expense `json:"payroll_expenses"`
	GeneralExpensesByMethod   MethodTotals      `json:"general_expenses_by_method"`
	GeneralExpenses           []*models.Expense `json:"general_expenses"`
	IgnoredDiscounts          decimal.Decimal   `json:"ignored_discounts"`

	CashInByMethod  MethodTotals    `json:"cash_in_by_method"`
	CashOutByMethod MethodTotals    `json:"cash_out_by_method"`
	TotalIn         decimal.Decimal `json:"total_in"`
	TotalOut        decimal.Decimal `json:"total_out"`
	Net             decimal.Decimal `json:"net"`
}

// BuildCashClosure aggregates one day of ledger rows. Credit sales are listed but never
// counted as cash; collections of earlier credits are.
func BuildCashClosure(date time.Time, payments []*models.Payment, installments []*models.LoanInstallment, expenses []*models.Expense) *CashClosure {
	c := &CashClosure{
		Date:                      utils.TruncateToDay(date),
		SalesByMethod:             MethodTotals{},
		CreditCollectionsByMethod: MethodTotals{},
		CreditCollections:         []*models.Payment{},
		CreditIssued:              []*models.Payment{},
		CreditIssuedTotal:         decimal.Zero,
		LoanRepaymentsByMethod:    MethodTotals{},
		PayrollDeductions:         []*models.LoanInstallment{},
		PayrollDeductionsTotal:    decimal.Zero,
		LoanDisbursementsByMethod: MethodTotals{},
		LoanDisbursements:         []*models.Expense{},
		PayrollByMethod:           MethodTotals{},
		PayrollExpenses:           []*models.Expense{},
		GeneralExpensesByMethod:   MethodTotals{},
		GeneralExpenses:           []*models.Expense{},
		IgnoredDiscounts:          decimal.Zero,
		CashInByMethod:            MethodTotals{},
		CashOutByMethod:           MethodTotals{},
	}

	for _, p := range payments {
		switch {
		case p.IsCredit():
			c.CreditIssued = append(c.CreditIssued, p)
			c.CreditIssuedTotal = c.CreditIssuedTotal.Add(p.Amount)
			continue
		case p.IsCollection():
			c.CreditCollections = append(c.CreditCollections, p)
			c.CreditCollectionsByMethod.add(p.Method, p.Amount)
		default:
			c.SalesByMethod.add(p.Method, p.Amount)
		}
		c.CashInByMethod.add(p.Method, p.Amount)
	}

	for _, i := range installments {
		if !i.CountsAsCash() {
			c.PayrollDeductions = append(c.PayrollDeductions, i)
			c.PayrollDeductionsTotal = c.PayrollDeductionsTotal.Add(i.Amount)
			continue
		}
		method := i.Method
		if method == "" {
			method = models.PaymentMethodCash
		}
		c.LoanRepaymentsByMethod.add(method, i.Amount)
		c.CashInByMethod.add(method, i.Amount)
	}

	for _, e := range expenses {
		switch e.Category {
		case models.ExpenseCategorySalesDiscount:
			c.IgnoredDiscounts = c.IgnoredDiscounts.Add(e.Amount)
			continue
		case models.ExpenseCategoryLoans:
			c.LoanDisbursements = append(c.LoanDisbursements, e)
			c.LoanDisbursementsByMethod.add(e.Method, e.Amount)
		case models.ExpenseCategoryPayroll:
			c.PayrollExpenses = append(c.PayrollExpenses, e)
			c.PayrollByMethod.add(e.Method, e.Amount)
		default:
			c.GeneralExpenses = append(c.GeneralExpenses, e)
			c.GeneralExpensesByMethod.add(e.Method, e.Amount)
		}
		if e.IsCashOutflow() {
			c.CashOutByMethod.add(e.Method, e.Amount)
		}
	}

	c.TotalIn = c.CashInByMethod.Total()
	c.TotalOut = c.CashOutByMethod.Total()
	c.Net = c.TotalIn.Sub(c.TotalOut)
	return c
}

// DailyCashClosure reads one day of payments, loan installments and expenses. No writes.
func DailyCashClosure(ctx context.Context, date time.Time) (*CashClosure, error) {
	db := config.GetDB().WithContext(ctx)
	payments, err := models.PaymentsBetween(db, date, date)
	if err != nil {
		return nil, err
	}
	installments, err := models.LoanInstallmentsBetween(db, date, date)
	if err != nil {
		return nil, err
	}
	expenses, err := models.ListExpenses(ctx, date, date)
	if err != nil {
		return nil, err
	}
	return BuildCashClosure(date, payments, installments, expenses), nil
}
