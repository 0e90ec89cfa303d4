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

// Payment is one collected (or, with method CREDIT, deferred) amount of a sale.
// Credit rows are never edited; collections are separate rows pointing at them.
type Payment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SaleId          *int            `gorm:"index" json:"sale_id"`
	AppointmentId   *int            `gorm:"index" json:"appointment_id"`
	ClientId        int             `gorm:"index" json:"client_id"`
	Method          string          `gorm:"size:50;not null;index" json:"method"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	Date            time.Time       `gorm:"type:date;not null;index" json:"date"`
	PaidAt          time.Time       `gorm:"not null" json:"paid_at"`
	Note            string          `gorm:"size:255" json:"note"`
	CreditPaymentId *int            `gorm:"index" json:"credit_payment_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (p Payment) IsCredit() bool {
	return p.Method == PaymentMethodCredit
}

// IsCollection reports whether the row collects an earlier credit.
func (p Payment) IsCollection() bool {
	return p.CreditPaymentId != nil
}

// CreditSettlement is an append-only settlement event against a credit payment.
type CreditSettlement struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	CreditPaymentId     int             `gorm:"not null;index" json:"credit_payment_id"`
	CollectionPaymentId int             `gorm:"not null" json:"collection_payment_id"`
	Amount              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method              string          `gorm:"size:50;not null" json:"method"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// CapToOwed decides how much of amount applies to a balance of owed.
// Overpayment is rejected when strict, otherwise capped.
func CapToOwed(owed decimal.Decimal, amount decimal.Decimal, strict bool, what string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, utils.ValidationErrorf("amount must be greater than zero")
	}
	if !owed.IsPositive() {
		return decimal.Zero, utils.InsufficientErrorf("%s has nothing left to settle", what)
	}
	if amount.GreaterThan(owed) {
		if strict {
			return decimal.Zero, utils.InsufficientErrorf("amount %s exceeds the %s owed on %s", amount, owed, what)
		}
		return owed, nil
	}
	return amount, nil
}

func creditSettledTotal(tx *gorm.DB, creditPaymentId int) (decimal.Decimal, error) {
	var settled decimal.Decimal
	if err := tx.Model(&CreditSettlement{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("credit_payment_id = ?", creditPaymentId).
		Row().Scan(&settled); err != nil {
		return decimal.Zero, utils.ClassifyStorageError(err)
	}
	return settled, nil
}

type NewCreditSettlement struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"max=50"`
	Note   string          `json:"note" validate:"max=255"`
}

type CreditSettlementResult struct {
	Applied    decimal.Decimal `json:"applied"`
	Remaining  decimal.Decimal `json:"remaining"`
	Settled    bool            `json:"settled"`
	Collection *Payment        `json:"collection"`
}

func (r CreditSettlementResult) Message() string {
	if r.Settled {
		return "credit fully settled"
	}
	return fmt.Sprintf("partial payment recorded, remaining balance %s", r.Remaining.StringFixed(2))
}

// SettleClientCredit collects part or all of an outstanding credit payment.
// Outstanding is always derived from the original amount minus recorded settlements.
func SettleClientCredit(ctx context.Context, creditPaymentId int, input *NewCreditSettlement) (*CreditSettlementResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	method := normalizeMethod(input.Method)
	if method == PaymentMethodCredit {
		return nil, utils.ValidationErrorf("a credit cannot be settled with another credit")
	}

	var result CreditSettlementResult
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credit, err := utils.FetchModelForUpdate[Payment](tx, creditPaymentId)
		if err != nil {
			return err
		}
		if !credit.IsCredit() {
			return utils.ValidationErrorf("payment #%d is not a credit", creditPaymentId)
		}
		settled, err := creditSettledTotal(tx, credit.ID)
		if err != nil {
			return err
		}
		outstanding := credit.Amount.Sub(settled)
		applied, err := CapToOwed(outstanding, input.Amount, config.StrictOverpayment(), fmt.Sprintf("credit #%d", credit.ID))
		if err != nil {
			return err
		}
		note := strings.TrimSpace(input.Note)
		if note == "" {
			note = fmt.Sprintf("collection of credit #%d", credit.ID)
		}
		now := time.Now()
		collection := Payment{
			SaleId:          credit.SaleId,
			AppointmentId:   credit.AppointmentId,
			ClientId:        credit.ClientId,
			Method:          method,
			Amount:          applied,
			Date:            utils.TruncateToDay(now),
			PaidAt:          now,
			Note:            note,
			CreditPaymentId: &credit.ID,
		}
		if err := tx.Create(&collection).Error; err != nil {
			return err
		}
		if err := tx.Create(&CreditSettlement{
			CreditPaymentId:     credit.ID,
			CollectionPaymentId: collection.ID,
			Amount:              applied,
			Method:              method,
		}).Error; err != nil {
			return err
		}
		result.Applied = applied
		result.Remaining = outstanding.Sub(applied)
		result.Settled = result.Remaining.IsZero()
		result.Collection = &collection
		return nil
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryCredit, fmt.Sprintf("credit #%d: %s collected via %s, remaining %s",
		creditPaymentId, result.Applied, method, result.Remaining))
	return &result, nil
}

// CreditReceivable is the derived view of one credit payment still owed.
type CreditReceivable struct {
	PaymentId   int             `json:"payment_id"`
	SaleId      *int            `json:"sale_id"`
	ClientId    int             `json:"client_id"`
	ClientName  string          `json:"client_name"`
	ClientPhone string          `json:"client_phone"`
	Date        time.Time       `json:"date"`
	Original    decimal.Decimal `json:"original"`
	Settled     decimal.Decimal `json:"settled"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func creditReceivableQuery(db *gorm.DB) *gorm.DB {
	settled := db.Model(&CreditSettlement{}).
		Select("credit_payment_id, SUM(amount) AS settled").
		Group("credit_payment_id")
	return db.Table("payments AS p").
		Select(`p.id AS payment_id, p.sale_id, p.client_id, c.name AS client_name, c.phone AS client_phone,
			p.date, p.amount AS original, COALESCE(s.settled, 0) AS settled,
			p.amount - COALESCE(s.settled, 0) AS outstanding`).
		Joins("LEFT JOIN (?) AS s ON s.credit_payment_id = p.id", settled).
		Joins("LEFT JOIN clients AS c ON c.id = p.client_id").
		Where("p.method = ?", PaymentMethodCredit)
}

// OutstandingCredits lists open receivables, oldest first.
func OutstandingCredits(ctx context.Context, search string) ([]*CreditReceivable, error) {
	db := config.GetDB().WithContext(ctx)
	q := creditReceivableQuery(db).Where("p.amount - COALESCE(s.settled, 0) > 0")
	if term := strings.TrimSpace(search); term != "" {
		like := "%" + term + "%"
		q = q.Where("c.name LIKE ? OR c.phone LIKE ?", like, like)
	}
	var results []*CreditReceivable
	if err := q.Order("p.date ASC").Order("p.id ASC").Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

// CreditHistory returns a credit's settlement events in the order they happened.
func CreditHistory(ctx context.Context, creditPaymentId int) ([]*CreditSettlement, error) {
	db := config.GetDB()
	var results []*CreditSettlement
	if err := db.WithContext(ctx).Where("credit_payment_id = ?", creditPaymentId).Order("id ASC").Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

func PaymentsBetween(db *gorm.DB, from, to time.Time) ([]*Payment, error) {
	var results []*Payment
	err := db.Where("date BETWEEN ? AND ?", utils.FormatDate(from), utils.FormatDate(to)).
		Order("date ASC").Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}
