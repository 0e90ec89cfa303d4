package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestPlanStockDecrements(t *testing.T) {
	available := map[int]int{1: 5, 2: 1}

	plan, err := models.PlanStockDecrements(available, []models.StockLine{
		{ProductId: 1, Quantity: 2},
		{ProductId: 1, Quantity: 3},
		{ProductId: 2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlanStockDecrements: %v", err)
	}
	if plan[1] != 5 || plan[2] != 1 {
		t.Fatalf("unexpected plan %v", plan)
	}

	// one short line rejects the whole cart
	_, err = models.PlanStockDecrements(available, []models.StockLine{
		{ProductId: 1, Quantity: 1},
		{ProductId: 2, Quantity: 2},
	})
	if !errors.Is(err, utils.ErrInsufficientResource) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if _, err := models.PlanStockDecrements(available, []models.StockLine{{ProductId: 9, Quantity: 1}}); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("unknown product should be a validation error, got %v", err)
	}
	if _, err := models.PlanStockDecrements(available, []models.StockLine{{ProductId: 1, Quantity: 0}}); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("zero quantity should be a validation error, got %v", err)
	}
}

func TestRecomputeLoan(t *testing.T) {
	outstanding, status := models.RecomputeLoan(dec(100), []decimal.Decimal{dec(30), dec(20)})
	if !outstanding.Equal(dec(50)) || status != models.LoanStatusPending {
		t.Fatalf("expected 50 pending, got %s %s", outstanding, status)
	}
	outstanding, status = models.RecomputeLoan(dec(100), []decimal.Decimal{dec(60), dec(40)})
	if !outstanding.IsZero() || status != models.LoanStatusPaid {
		t.Fatalf("expected 0 paid, got %s %s", outstanding, status)
	}
	outstanding, status = models.RecomputeLoan(dec(100), []decimal.Decimal{dec(120)})
	if !outstanding.IsZero() || status != models.LoanStatusPaid {
		t.Fatalf("overpaid loan should clamp to 0 paid, got %s %s", outstanding, status)
	}
	outstanding, status = models.RecomputeLoan(dec(80), nil)
	if !outstanding.Equal(dec(80)) || status != models.LoanStatusPending {
		t.Fatalf("new loan should be fully outstanding, got %s %s", outstanding, status)
	}
}

func TestCapToOwed(t *testing.T) {
	got, err := models.CapToOwed(dec(100), dec(40), false, "credit #1")
	if err != nil || !got.Equal(dec(40)) {
		t.Fatalf("partial amount: %s %v", got, err)
	}
	got, err = models.CapToOwed(dec(60), dec(90), false, "credit #1")
	if err != nil || !got.Equal(dec(60)) {
		t.Fatalf("lenient overpayment should cap at 60, got %s %v", got, err)
	}
	if _, err := models.CapToOwed(dec(60), dec(90), true, "credit #1"); !errors.Is(err, utils.ErrInsufficientResource) {
		t.Fatalf("strict overpayment should be rejected, got %v", err)
	}
	if _, err := models.CapToOwed(decimal.Zero, dec(10), false, "credit #1"); !errors.Is(err, utils.ErrInsufficientResource) {
		t.Fatalf("settled balance should be rejected, got %v", err)
	}
	if _, err := models.CapToOwed(dec(60), decimal.Zero, false, "credit #1"); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("zero amount should be a validation error, got %v", err)
	}
}

func TestPurchaseStatusFor(t *testing.T) {
	if models.PurchaseStatusFor(dec(100), dec(99)) != models.PurchaseStatusPending {
		t.Fatalf("partially paid purchase must stay pending")
	}
	if models.PurchaseStatusFor(dec(100), dec(100)) != models.PurchaseStatusPaid {
		t.Fatalf("fully paid purchase must be paid")
	}
}

func TestCommission(t *testing.T) {
	got := models.Commission(decimal.RequireFromString("45000"), decimal.RequireFromString("40"))
	if !got.Equal(dec(18000)) {
		t.Fatalf("expected 18000, got %s", got)
	}
	got = models.Commission(decimal.RequireFromString("33.33"), decimal.RequireFromString("12.5"))
	if got.String() != "4.17" {
		t.Fatalf("expected 4.17, got %s", got)
	}
}

func TestBuildLoanLedger(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 1, day, 0, 0, 0, 0, time.Local) }
	loans := []*models.Loan{
		{ID: 1, Date: d(5), Amount: dec(100), Description: "Advance"},
		{ID: 2, Date: d(10), Amount: dec(50), Description: "Second advance"},
	}
	installments := []*models.LoanInstallment{
		{LoanId: 1, Date: d(10), Amount: dec(30), Method: models.PaymentMethodCash},
		{LoanId: 1, Date: d(7), Amount: dec(20), Method: models.PaymentMethodPayrollDeduction},
	}
	entries := models.BuildLoanLedger(loans, installments)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	wantTypes := []models.LoanLedgerEntryType{
		models.LoanLedgerEntryLoan,
		models.LoanLedgerEntryInstallment,
		models.LoanLedgerEntryLoan,
		models.LoanLedgerEntryInstallment,
	}
	wantBalance := []int64{100, 80, 130, 100}
	for i, e := range entries {
		if e.Type != wantTypes[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, wantTypes[i], e.Type)
		}
		if !e.Balance.Equal(dec(wantBalance[i])) {
			t.Fatalf("entry %d: expected balance %d, got %s", i, wantBalance[i], e.Balance)
		}
	}
	if !entries[1].Amount.Equal(dec(-20)) {
		t.Fatalf("installments must be negative, got %s", entries[1].Amount)
	}
}

func TestLoanInstallment_CountsAsCash(t *testing.T) {
	if !(models.LoanInstallment{Method: models.PaymentMethodCash}).CountsAsCash() {
		t.Fatalf("cash installment must count as cash")
	}
	if (models.LoanInstallment{Method: models.PaymentMethodPayrollDeduction}).CountsAsCash() {
		t.Fatalf("payroll deduction must not count as cash")
	}
}

func TestExpense_IsCashOutflow(t *testing.T) {
	if !(models.Expense{Category: models.ExpenseCategoryPayroll, Method: models.PaymentMethodCash}).IsCashOutflow() {
		t.Fatalf("payroll expense is a cash outflow")
	}
	if (models.Expense{Category: models.ExpenseCategorySalesDiscount, Method: models.PaymentMethodAccountingOffset}).IsCashOutflow() {
		t.Fatalf("discount rows must not count as cash outflow")
	}
}

func TestPayment_Kinds(t *testing.T) {
	credit := models.Payment{ID: 4, Method: models.PaymentMethodCredit}
	if !credit.IsCredit() || credit.IsCollection() {
		t.Fatalf("credit row misclassified")
	}
	collection := models.Payment{Method: models.PaymentMethodCash, CreditPaymentId: &credit.ID}
	if collection.IsCredit() || !collection.IsCollection() {
		t.Fatalf("collection row misclassified")
	}
}

func TestGroupCollections(t *testing.T) {
	views := []*models.AppointmentView{
		{ID: 1, ClientId: 10, ClientName: "Maria", FinalPrice: dec(30)},
		{ID: 2, ClientId: 11, ClientName: "Julia", FinalPrice: dec(15)},
		{ID: 3, ClientId: 10, ClientName: "Maria", FinalPrice: dec(25)},
	}
	groups := models.GroupCollections(views)
	if len(groups) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(groups))
	}
	if groups[0].ClientId != 10 || !groups[0].Total.Equal(dec(55)) || len(groups[0].Appointments) != 2 {
		t.Fatalf("unexpected first group %+v", groups[0])
	}
	if groups[1].ClientId != 11 || !groups[1].Total.Equal(dec(15)) {
		t.Fatalf("unexpected second group %+v", groups[1])
	}
}

func TestRenderConfirmationMessage(t *testing.T) {
	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.Local)
	data := models.ConfirmationData{
		ClientName:       "Maria",
		ProfessionalName: "Ana",
		ServiceName:      "Manicure",
		Date:             time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		Start:            tod("15:30"),
		Price:            dec(25000),
	}
	got := models.RenderConfirmationMessage(models.DefaultConfirmationMessage, data, now)
	want := "Good morning Maria, confirming your appointment tomorrow at 15:30 with Ana for Manicure. Price: 25000."
	if got != want {
		t.Fatalf("unexpected message\n got: %s\nwant: %s", got, want)
	}

	evening := time.Date(2026, 3, 10, 19, 0, 0, 0, time.Local)
	got = models.RenderConfirmationMessage("{greeting}, {relative_day} ({date})", data, evening)
	if got != "Good evening, today (2026-03-10)" {
		t.Fatalf("unexpected message %q", got)
	}

	later := time.Date(2026, 3, 1, 14, 0, 0, 0, time.Local)
	got = models.RenderConfirmationMessage("{greeting} {relative_day}", data, later)
	if got != "Good afternoon on 2026-03-10" {
		t.Fatalf("unexpected message %q", got)
	}
}
