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
)

// Expense is a flat outflow row; Category classifies it for the closure and balance reports.
type Expense struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Date           time.Time       `gorm:"type:date;not null;index" json:"date"`
	Type           ExpenseType     `gorm:"size:20;not null" json:"type"`
	Category       string          `gorm:"size:50;not null;index" json:"category"`
	Description    string          `gorm:"size:255" json:"description"`
	Method         string          `gorm:"size:50;not null" json:"method"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	ProfessionalId *int            `gorm:"index" json:"professional_id"`
	SupplierId     *int            `gorm:"index" json:"supplier_id"`
	ReferenceId    *int            `json:"reference_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewExpense struct {
	Date        string          `json:"date"`
	Type        ExpenseType     `json:"type"`
	Category    string          `json:"category" validate:"required,max=50"`
	Description string          `json:"description" validate:"max=255"`
	Method      string          `json:"method" validate:"max=50"`
	Amount      decimal.Decimal `json:"amount"`
}

func today() time.Time {
	return utils.TruncateToDay(time.Now())
}

// dateOrToday parses an optional YYYY-MM-DD, defaulting to the current day.
func dateOrToday(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return today(), nil
	}
	return utils.ParseDate(value)
}

// IsCashOutflow reports whether the expense moved money; discount rows only offset gross sales.
func (e Expense) IsCashOutflow() bool {
	return e.Category != ExpenseCategorySalesDiscount && e.Method != PaymentMethodAccountingOffset
}

func insertExpense(tx *gorm.DB, expense *Expense) error {
	if expense.Type == "" {
		expense.Type = ExpenseTypeExpense
	}
	expense.Method = normalizeMethod(expense.Method)
	if expense.Date.IsZero() {
		expense.Date = today()
	}
	if err := tx.Create(expense).Error; err != nil {
		return utils.ClassifyStorageError(err)
	}
	return nil
}

// InsertExpense appends an expense inside an existing transaction.
func InsertExpense(tx *gorm.DB, expense *Expense) error {
	return insertExpense(tx, expense)
}

func RecordExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.ValidationErrorf("amount must be greater than zero")
	}
	if input.Type != "" && input.Type != ExpenseTypeExpense && input.Type != ExpenseTypeCost {
		return nil, utils.ValidationErrorf("unknown expense type %q", input.Type)
	}
	if normalizeMethod(input.Method) == PaymentMethodCredit {
		return nil, utils.ValidationErrorf("expenses cannot be paid on credit")
	}
	date, err := dateOrToday(input.Date)
	if err != nil {
		return nil, err
	}
	expense := Expense{
		Date:        date,
		Type:        input.Type,
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		Method:      input.Method,
		Amount:      input.Amount,
	}
	db := config.GetDB()
	if err := insertExpense(db.WithContext(ctx), &expense); err != nil {
		return nil, err
	}
	RecordAudit(ctx, AuditCategoryExpense, fmt.Sprintf("expense #%d %s %s via %s", expense.ID, expense.Category, expense.Amount, expense.Method))
	return &expense, nil
}

// ListExpenses returns expenses of [from, to], newest first.
func ListExpenses(ctx context.Context, from, to time.Time) ([]*Expense, error) {
	db := config.GetDB()
	var results []*Expense
	err := db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", utils.FormatDate(from), utils.FormatDate(to)).
		Order("date DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}
