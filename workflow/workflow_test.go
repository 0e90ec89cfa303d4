package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
)

// These tests are DB-free. LiquidatePayroll against MySQL runs in the "payroll pays loans oldest first"
// case of models/integration_test.go when INTEGRATION_TESTS is set.

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestAllocateLoanDeduction_OldestFirst(t *testing.T) {
	loans := []*models.Loan{
		{ID: 1, Outstanding: dec(50)},
		{ID: 2, Outstanding: dec(100)},
	}
	allocations, leftover := AllocateLoanDeduction(loans, dec(120))
	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].LoanId != 1 || !allocations[0].Amount.Equal(dec(50)) || !allocations[0].Remaining.IsZero() {
		t.Fatalf("first loan should be paid off, got %+v", allocations[0])
	}
	if allocations[1].LoanId != 2 || !allocations[1].Amount.Equal(dec(70)) || !allocations[1].Remaining.Equal(dec(30)) {
		t.Fatalf("second loan should keep 30 outstanding, got %+v", allocations[1])
	}
	if !leftover.IsZero() {
		t.Fatalf("expected no leftover, got %s", leftover)
	}
}

func TestAllocateLoanDeduction_Leftover(t *testing.T) {
	loans := []*models.Loan{
		{ID: 1, Outstanding: decimal.Zero},
		{ID: 2, Outstanding: dec(40)},
	}
	allocations, leftover := AllocateLoanDeduction(loans, dec(100))
	if len(allocations) != 1 || allocations[0].LoanId != 2 {
		t.Fatalf("settled loans must be skipped, got %+v", allocations)
	}
	if !leftover.Equal(dec(60)) {
		t.Fatalf("expected leftover 60, got %s", leftover)
	}

	allocations, leftover = AllocateLoanDeduction(nil, dec(10))
	if len(allocations) != 0 || !leftover.Equal(dec(10)) {
		t.Fatalf("without loans the whole budget is left over, got %d %s", len(allocations), leftover)
	}
}

func TestLiquidatePayrollInput_Validate(t *testing.T) {
	ok := &LiquidatePayrollInput{
		ProfessionalId: 1,
		LoanDeduction:  dec(10),
		Payouts:        []*models.PaymentLine{{Method: models.PaymentMethodCash, Amount: dec(90)}},
	}
	if err := ok.validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := map[string]*LiquidatePayrollInput{
		"missing professional": {LoanDeduction: dec(1)},
		"negative deduction":   {ProfessionalId: 1, LoanDeduction: dec(-1)},
		"negative payout":      {ProfessionalId: 1, Payouts: []*models.PaymentLine{{Method: "Cash", Amount: dec(-5)}}},
		"credit payout":        {ProfessionalId: 1, Payouts: []*models.PaymentLine{{Method: "credit", Amount: dec(5)}}},
	}
	for name, input := range cases {
		if err := input.validate(); !errors.Is(err, utils.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestNextBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{10, 10 * time.Minute},
		{50, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := NextBackoff(5*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}

func TestPayrollLockKey(t *testing.T) {
	if got := payrollLockKey(7); got != "payroll:7" {
		t.Fatalf("unexpected lock key %q", got)
	}
}
