package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("salon-backend/workflow")

type LiquidatePayrollInput struct {
	ProfessionalId int                   `json:"professional_id" validate:"required,gt=0"`
	AppointmentIds []int                 `json:"appointment_ids"`
	LoanDeduction  decimal.Decimal       `json:"loan_deduction"`
	Payouts        []*models.PaymentLine `json:"payouts" validate:"dive"`
}

// LoanAllocation is the part of a payroll deduction applied to one loan.
type LoanAllocation struct {
	LoanId    int             `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

type PayrollResult struct {
	ProfessionalId      int               `json:"professional_id"`
	SettledAppointments int               `json:"settled_appointments"`
	Deducted            decimal.Decimal   `json:"deducted"`
	Allocations         []*LoanAllocation `json:"allocations"`
	PaidOut             decimal.Decimal   `json:"paid_out"`
	Expenses            []*models.Expense `json:"expenses"`
}

// AllocateLoanDeduction consumes budget across loans in the given order (oldest first).
// It returns the allocations and whatever budget no loan could absorb.
func AllocateLoanDeduction(loans []*models.Loan, budget decimal.Decimal) ([]*LoanAllocation, decimal.Decimal) {
	allocations := make([]*LoanAllocation, 0)
	for _, loan := range loans {
		if !budget.IsPositive() {
			break
		}
		if !loan.Outstanding.IsPositive() {
			continue
		}
		amount := decimal.Min(budget, loan.Outstanding)
		allocations = append(allocations, &LoanAllocation{
			LoanId:    loan.ID,
			Amount:    amount,
			Remaining: loan.Outstanding.Sub(amount),
		})
		budget = budget.Sub(amount)
	}
	return allocations, budget
}

func (input *LiquidatePayrollInput) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.LoanDeduction.IsNegative() {
		return utils.ValidationErrorf("loan deduction must not be negative")
	}
	for _, p := range input.Payouts {
		if p.Amount.IsNegative() {
			return utils.ValidationErrorf("payout amounts must not be negative")
		}
		if strings.EqualFold(strings.TrimSpace(p.Method), models.PaymentMethodCredit) {
			return utils.ValidationErrorf("payroll cannot be paid on credit")
		}
	}
	return nil
}

func payrollLockKey(professionalId int) string {
	return fmt.Sprintf("payroll:%d", professionalId)
}

// LiquidatePayroll settles a professional's commissions in one transaction: appointments are
// flagged, loans are paid down oldest first from the deduction, and each payout is booked
// as a payroll expense.
func LiquidatePayroll(ctx context.Context, input *LiquidatePayrollInput) (*PayrollResult, error) {
	ctx, span := tracer.Start(ctx, "LiquidatePayroll", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.Int("professional_id", input.ProfessionalId),
		attribute.Int("appointments", len(input.AppointmentIds)),
		attribute.String("loan_deduction", input.LoanDeduction.String()),
	)

	result, err := liquidatePayroll(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(config.GetLogger(), "workflow", "LiquidatePayroll", "liquidatePayroll", input, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("paid_out", result.PaidOut.String()))
	models.RecordAudit(ctx, models.AuditCategoryPayroll, fmt.Sprintf("payroll for professional %d: %d appointments, loans -%s, paid %s",
		result.ProfessionalId, result.SettledAppointments, result.Deducted, result.PaidOut))
	return result, nil
}

func liquidatePayroll(ctx context.Context, input *LiquidatePayrollInput) (*PayrollResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	professional, err := models.GetResource[models.Professional](ctx, input.ProfessionalId)
	if err != nil {
		return nil, err
	}
	appointmentIds := utils.UniqueSlice(input.AppointmentIds)
	result := &PayrollResult{
		ProfessionalId:      professional.ID,
		SettledAppointments: len(appointmentIds),
		Deducted:            decimal.Zero,
		Allocations:         []*LoanAllocation{},
		PaidOut:             decimal.Zero,
		Expenses:            []*models.Expense{},
	}

	err = utils.RunSerialized(ctx, []string{payrollLockKey(professional.ID)}, func(tx *gorm.DB) error {
		if err := models.MarkPayrollSettled(tx, professional.ID, appointmentIds); err != nil {
			return err
		}

		if input.LoanDeduction.IsPositive() {
			loans, err := models.PendingLoansForUpdate(tx, professional.ID)
			if err != nil {
				return err
			}
			allocations, leftover := AllocateLoanDeduction(loans, input.LoanDeduction)
			if leftover.IsPositive() && config.StrictOverpayment() {
				return utils.InsufficientErrorf("loan deduction %s exceeds the %s owed by %s",
					input.LoanDeduction, input.LoanDeduction.Sub(leftover), professional.Name)
			}
			byId := make(map[int]*models.Loan, len(loans))
			for _, l := range loans {
				byId[l.ID] = l
			}
			date := utils.TruncateToDay(time.Now())
			for _, a := range allocations {
				if _, err := models.ApplyLoanInstallment(tx, byId[a.LoanId], a.Amount,
					models.PaymentMethodPayrollDeduction, models.InstallmentDescriptionPayroll, date); err != nil {
					return err
				}
				result.Deducted = result.Deducted.Add(a.Amount)
			}
			result.Allocations = allocations
		}

		for _, payout := range input.Payouts {
			if payout.Amount.IsZero() {
				continue
			}
			expense := &models.Expense{
				Type:           models.ExpenseTypeExpense,
				Category:       models.ExpenseCategoryPayroll,
				Description:    fmt.Sprintf("payroll %s", professional.Name),
				Method:         payout.Method,
				Amount:         payout.Amount,
				ProfessionalId: &professional.ID,
			}
			if err := models.InsertExpense(tx, expense); err != nil {
				return err
			}
			result.Expenses = append(result.Expenses, expense)
			result.PaidOut = result.PaidOut.Add(payout.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
