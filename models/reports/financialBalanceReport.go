package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
)

type FinancialBalance struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	SalesPayments      decimal.Decimal `json:"sales_payments"`
	Discounts          decimal.Decimal `json:"discounts"`
	GrossSales         decimal.Decimal `json:"gross_sales"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	CreditIssued       decimal.Decimal `json:"credit_issued"`
	CreditCollected    decimal.Decimal `json:"credit_collected"`
	ExpensesByCategory MethodTotals    `json:"expenses_by_category"`
	CashInByMethod     MethodTotals    `json:"cash_in_by_method"`
	CashOutByMethod    MethodTotals    `json:"cash_out_by_method"`
}

// BuildFinancialBalance computes gross sales, expenses and net profit for a period.
// Discounts are added back to gross sales; collections of credits are not counted twice.
func BuildFinancialBalance(from, to time.Time, payments []*models.Payment, installments []*models.LoanInstallment, expenses []*models.Expense) *FinancialBalance {
	b := &FinancialBalance{
		From:               utils.TruncateToDay(from),
		To:                 utils.TruncateToDay(to),
		SalesPayments:      decimal.Zero,
		Discounts:          decimal.Zero,
		TotalExpenses:      decimal.Zero,
		CreditIssued:       decimal.Zero,
		CreditCollected:    decimal.Zero,
		ExpensesByCategory: MethodTotals{},
		CashInByMethod:     MethodTotals{},
		CashOutByMethod:    MethodTotals{},
	}
	for _, p := range payments {
		if p.IsCollection() {
			b.CreditCollected = b.CreditCollected.Add(p.Amount)
		} else {
			b.SalesPayments = b.SalesPayments.Add(p.Amount)
		}
		if p.IsCredit() {
			b.CreditIssued = b.CreditIssued.Add(p.Amount)
			continue
		}
		b.CashInByMethod.add(p.Method, p.Amount)
	}
	for _, i := range installments {
		if i.CountsAsCash() {
			method := i.Method
			if method == "" {
				method = models.PaymentMethodCash
			}
			b.CashInByMethod.add(method, i.Amount)
		}
	}
	for _, e := range expenses {
		b.TotalExpenses = b.TotalExpenses.Add(e.Amount)
		b.ExpensesByCategory.add(e.Category, e.Amount)
		if e.Category == models.ExpenseCategorySalesDiscount {
			b.Discounts = b.Discounts.Add(e.Amount)
		}
		if e.IsCashOutflow() {
			b.CashOutByMethod.add(e.Method, e.Amount)
		}
	}
	b.GrossSales = b.SalesPayments.Add(b.Discounts)
	b.NetProfit = b.GrossSales.Sub(b.TotalExpenses)
	return b
}

func GetFinancialBalance(ctx context.Context, from, to time.Time) (*FinancialBalance, error) {
	if to.Before(from) {
		return nil, utils.ValidationErrorf("date range ends before it starts")
	}
	db := config.GetDB().WithContext(ctx)
	payments, err := models.PaymentsBetween(db, from, to)
	if err != nil {
		return nil, err
	}
	installments, err := models.LoanInstallmentsBetween(db, from, to)
	if err != nil {
		return nil, err
	}
	expenses, err := models.ListExpenses(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return BuildFinancialBalance(from, to, payments, installments, expenses), nil
}
