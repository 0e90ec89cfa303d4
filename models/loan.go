package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Loan is money advanced to a professional.
// Outstanding is always Amount minus the installments, clamped at zero.
type Loan struct {
	ID             int                `gorm:"primary_key" json:"id"`
	ProfessionalId int                `gorm:"not null;index" json:"professional_id"`
	Date           time.Time          `gorm:"type:date;not null;index" json:"date"`
	Amount         decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"amount"`
	Outstanding    decimal.Decimal    `gorm:"type:decimal(20,4);not null" json:"outstanding"`
	Status         LoanStatus         `gorm:"size:20;not null;index" json:"status"`
	Description    string             `gorm:"size:255" json:"description"`
	Method         string             `gorm:"size:50" json:"method"`
	Installments   []*LoanInstallment `json:"installments,omitempty"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type LoanInstallment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	LoanId      int             `gorm:"not null;index" json:"loan_id"`
	Date        time.Time       `gorm:"type:date;not null;index" json:"date"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description string          `gorm:"size:255" json:"description"`
	Method      string          `gorm:"size:50" json:"method"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// CountsAsCash reports whether the installment brought money in; payroll deductions do not.
func (i LoanInstallment) CountsAsCash() bool {
	return i.Method != PaymentMethodPayrollDeduction && i.Method != PaymentMethodAccountingOffset
}

// RecomputeLoan derives outstanding and status from the original amount and every installment.
func RecomputeLoan(original decimal.Decimal, installments []decimal.Decimal) (decimal.Decimal, LoanStatus) {
	paid := decimal.Zero
	for _, v := range installments {
		paid = paid.Add(v)
	}
	outstanding := original.Sub(paid)
	if !outstanding.IsPositive() {
		return decimal.Zero, LoanStatusPaid
	}
	return outstanding, LoanStatusPending
}

type NewLoan struct {
	ProfessionalId int             `json:"professional_id" validate:"required,gt=0"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description" validate:"max=255"`
	Method         string          `json:"method" validate:"max=50"`
}

// CreateLoan records the loan and the cash that left the register for it.
func CreateLoan(ctx context.Context, input *NewLoan) (*Loan, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.ValidationErrorf("loan amount must be greater than zero")
	}
	professional, err := GetResource[Professional](ctx, input.ProfessionalId)
	if err != nil {
		return nil, err
	}
	date, err := dateOrToday(input.Date)
	if err != nil {
		return nil, err
	}
	method := normalizeMethod(input.Method)
	if method == PaymentMethodCredit {
		return nil, utils.ValidationErrorf("a loan cannot be disbursed on credit")
	}

	loan := Loan{
		ProfessionalId: professional.ID,
		Date:           date,
		Amount:         input.Amount,
		Outstanding:    input.Amount,
		Status:         LoanStatusPending,
		Description:    strings.TrimSpace(input.Description),
		Method:         method,
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&loan).Error; err != nil {
			return err
		}
		return insertExpense(tx, &Expense{
			Date:           date,
			Type:           ExpenseTypeExpense,
			Category:       ExpenseCategoryLoans,
			Description:    fmt.Sprintf("loan #%d to %s", loan.ID, professional.Name),
			Method:         method,
			Amount:         loan.Amount,
			ProfessionalId: &professional.ID,
			ReferenceId:    &loan.ID,
		})
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryLoan, fmt.Sprintf("loan #%d of %s to %s", loan.ID, loan.Amount, professional.Name))
	return &loan, nil
}

// ApplyLoanInstallment appends an installment to a locked loan and recomputes it from
// every installment on record.
func ApplyLoanInstallment(tx *gorm.DB, loan *Loan, amount decimal.Decimal, method string, description string, date time.Time) (*LoanInstallment, error) {
	if !amount.IsPositive() {
		return nil, utils.ValidationErrorf("installment amount must be greater than zero")
	}
	if loan.Status == LoanStatusPaid {
		return nil, utils.InsufficientErrorf("loan #%d is already paid", loan.ID)
	}
	installment := LoanInstallment{
		LoanId:      loan.ID,
		Date:        date,
		Amount:      amount,
		Description: description,
		Method:      method,
	}
	if err := tx.Create(&installment).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	var amounts []decimal.Decimal
	if err := tx.Model(&LoanInstallment{}).Where("loan_id = ?", loan.ID).Pluck("amount", &amounts).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	loan.Outstanding, loan.Status = RecomputeLoan(loan.Amount, amounts)
	if err := tx.Model(loan).Updates(map[string]interface{}{
		"Outstanding": loan.Outstanding,
		"Status":      loan.Status,
	}).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return &installment, nil
}

type NewLoanInstallment struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"max=50"`
	Description string          `json:"description" validate:"max=255"`
}

// AmortizeLoan pays down a loan. Paid loans take no more installments; an amount above the
// outstanding balance is capped to it unless overpayment is strict.
func AmortizeLoan(ctx context.Context, loanId int, input *NewLoanInstallment) (*Loan, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	method := normalizeMethod(input.Method)
	if method == PaymentMethodCredit {
		return nil, utils.ValidationErrorf("a loan cannot be repaid on credit")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Installment"
	}
	var loan *Loan
	var applied decimal.Decimal
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = utils.FetchModelForUpdate[Loan](tx, loanId)
		if err != nil {
			return err
		}
		if loan.Status == LoanStatusPaid {
			return utils.InsufficientErrorf("loan #%d is already paid", loan.ID)
		}
		applied, err = CapToOwed(loan.Outstanding, input.Amount, config.StrictOverpayment(), fmt.Sprintf("loan #%d", loan.ID))
		if err != nil {
			return err
		}
		_, err = ApplyLoanInstallment(tx, loan, applied, method, description, today())
		return err
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryLoan, fmt.Sprintf("loan #%d amortized by %s via %s, outstanding %s", loan.ID, applied, method, loan.Outstanding))
	return loan, nil
}

// PendingLoansForUpdate locks a professional's open loans, oldest first.
func PendingLoansForUpdate(tx *gorm.DB, professionalId int) ([]*Loan, error) {
	var loans []*Loan
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("professional_id = ? AND status = ?", professionalId, LoanStatusPending).
		Order("date ASC").Order("id ASC").
		Find(&loans).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return loans, nil
}

// ListLoans returns a professional's loans, oldest first, with their installments.
func ListLoans(ctx context.Context, professionalId int, onlyPending bool) ([]*Loan, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC").Order("id ASC") }).
		Where("professional_id = ?", professionalId)
	if onlyPending {
		q = q.Where("status = ?", LoanStatusPending)
	}
	var loans []*Loan
	if err := q.Order("date ASC").Order("id ASC").Find(&loans).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return loans, nil
}

func LoanInstallmentsBetween(db *gorm.DB, from, to time.Time) ([]*LoanInstallment, error) {
	var results []*LoanInstallment
	err := db.Where("date BETWEEN ? AND ?", utils.FormatDate(from), utils.FormatDate(to)).
		Order("date ASC").Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}
