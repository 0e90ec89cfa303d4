package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase is a supplier order. Status is Paid exactly when the installments cover the total.
type Purchase struct {
	ID           int                    `gorm:"primary_key" json:"id"`
	SupplierId   int                    `gorm:"not null;index" json:"supplier_id"`
	Date         time.Time              `gorm:"type:date;not null;index" json:"date"`
	Total        decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"total"`
	Method       string                 `gorm:"size:50;not null" json:"method"`
	Status       PurchaseStatus         `gorm:"size:20;not null;index" json:"status"`
	Note         string                 `gorm:"size:255" json:"note"`
	Supplier     *Supplier              `gorm:"foreignKey:SupplierId" json:"supplier,omitempty"`
	Details      []*PurchaseDetail      `json:"details,omitempty"`
	Installments []*PurchaseInstallment `json:"installments,omitempty"`
	Paid         decimal.Decimal        `gorm:"-" json:"paid"`
	Outstanding  decimal.Decimal        `gorm:"-" json:"outstanding"`
	CreatedAt    time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseDetail struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PurchaseId int             `gorm:"not null;index" json:"purchase_id"`
	ProductId  int             `gorm:"not null;index" json:"product_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	Total      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
}

type PurchaseInstallment struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PurchaseId int             `gorm:"not null;index" json:"purchase_id"`
	Date       time.Time       `gorm:"type:date;not null" json:"date"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method     string          `gorm:"size:50;not null" json:"method"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// PurchaseStatusFor derives the status from the installments paid so far.
func PurchaseStatusFor(total decimal.Decimal, paid decimal.Decimal) PurchaseStatus {
	if paid.GreaterThanOrEqual(total) {
		return PurchaseStatusPaid
	}
	return PurchaseStatusPending
}

type PurchaseItem struct {
	ProductId int             `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type NewPurchase struct {
	SupplierId int             `json:"supplier_id" validate:"required,gt=0"`
	Date       string          `json:"date"`
	Items      []*PurchaseItem `json:"items" validate:"required,min=1,dive"`
	Method     string          `json:"method" validate:"max=50"`
	Total      decimal.Decimal `json:"total"`
	Note       string          `json:"note" validate:"max=255"`
}

// ItemsTotal is Σ quantity × unit cost.
func (input *NewPurchase) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range input.Items {
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// RegisterPurchase books a supplier order and receives its stock. Credit purchases stay
// Pending and defer their expense to the installments.
func RegisterPurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	for _, item := range input.Items {
		if item.UnitCost.IsNegative() {
			return nil, utils.ValidationErrorf("unit cost must not be negative")
		}
	}
	supplier, err := GetResource[Supplier](ctx, input.SupplierId)
	if err != nil {
		return nil, err
	}
	date, err := dateOrToday(input.Date)
	if err != nil {
		return nil, err
	}
	total := input.Total
	if total.IsZero() {
		total = input.ItemsTotal()
	}
	if !total.IsPositive() {
		return nil, utils.ValidationErrorf("purchase total must be greater than zero")
	}
	method := normalizeMethod(input.Method)
	status := PurchaseStatusPaid
	if method == PaymentMethodCredit {
		status = PurchaseStatusPending
	}

	purchase := Purchase{
		SupplierId: supplier.ID,
		Date:       date,
		Total:      total,
		Method:     method,
		Status:     status,
		Note:       strings.TrimSpace(input.Note),
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}
		increments := make(map[int]int)
		for _, item := range input.Items {
			detail := PurchaseDetail{
				PurchaseId: purchase.ID,
				ProductId:  item.ProductId,
				Quantity:   item.Quantity,
				UnitCost:   item.UnitCost,
				Total:      item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))),
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
			purchase.Details = append(purchase.Details, &detail)
			increments[item.ProductId] += item.Quantity
		}
		productIds := make([]int, 0, len(increments))
		for id := range increments {
			productIds = append(productIds, id)
		}
		sort.Ints(productIds)
		for _, id := range productIds {
			if err := AdjustStock(tx, id, increments[id]); err != nil {
				return err
			}
		}
		if method == PaymentMethodCredit {
			return nil
		}
		installment := PurchaseInstallment{PurchaseId: purchase.ID, Date: date, Amount: total, Method: method}
		if err := tx.Create(&installment).Error; err != nil {
			return err
		}
		purchase.Installments = append(purchase.Installments, &installment)
		return insertExpense(tx, &Expense{
			Date:        date,
			Type:        ExpenseTypeCost,
			Category:    ExpenseCategoryMerchandisePurchase,
			Description: fmt.Sprintf("purchase #%d from %s", purchase.ID, supplier.Name),
			Method:      method,
			Amount:      total,
			SupplierId:  &supplier.ID,
			ReferenceId: &purchase.ID,
		})
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	purchase.fillBalance()
	RecordAudit(ctx, AuditCategoryPurchase, fmt.Sprintf("purchase #%d from %s for %s via %s", purchase.ID, supplier.Name, total, method))
	return &purchase, nil
}

func purchasePaidTotal(tx *gorm.DB, purchaseId int) (decimal.Decimal, error) {
	var paid decimal.Decimal
	if err := tx.Model(&PurchaseInstallment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("purchase_id = ?", purchaseId).
		Row().Scan(&paid); err != nil {
		return decimal.Zero, utils.ClassifyStorageError(err)
	}
	return paid, nil
}

type NewSupplierInstallment struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"max=50"`
}

// SettleSupplierInstallment pays part of a credit purchase.
func SettleSupplierInstallment(ctx context.Context, purchaseId int, input *NewSupplierInstallment) (*Purchase, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	method := normalizeMethod(input.Method)
	if method == PaymentMethodCredit {
		return nil, utils.ValidationErrorf("a supplier debt cannot be paid on credit")
	}
	var purchase *Purchase
	var applied decimal.Decimal
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		purchase, err = utils.FetchModelForUpdate[Purchase](tx, purchaseId)
		if err != nil {
			return err
		}
		paid, err := purchasePaidTotal(tx, purchase.ID)
		if err != nil {
			return err
		}
		applied, err = CapToOwed(purchase.Total.Sub(paid), input.Amount, config.StrictOverpayment(), fmt.Sprintf("purchase #%d", purchase.ID))
		if err != nil {
			return err
		}
		date := today()
		if err := tx.Create(&PurchaseInstallment{PurchaseId: purchase.ID, Date: date, Amount: applied, Method: method}).Error; err != nil {
			return err
		}
		if err := insertExpense(tx, &Expense{
			Date:        date,
			Type:        ExpenseTypeCost,
			Category:    ExpenseCategorySupplierPayment,
			Description: fmt.Sprintf("installment on purchase #%d", purchase.ID),
			Method:      method,
			Amount:      applied,
			SupplierId:  &purchase.SupplierId,
			ReferenceId: &purchase.ID,
		}); err != nil {
			return err
		}
		purchase.Status = PurchaseStatusFor(purchase.Total, paid.Add(applied))
		purchase.Paid = paid.Add(applied)
		purchase.Outstanding = decimal.Max(decimal.Zero, purchase.Total.Sub(purchase.Paid))
		return tx.Model(purchase).UpdateColumn("status", purchase.Status).Error
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryPurchase, fmt.Sprintf("purchase #%d installment %s via %s, status %s", purchaseId, applied, method, purchase.Status))
	return purchase, nil
}

// Payable is the derived view of one purchase still owed to a supplier.
type Payable struct {
	PurchaseId   int             `json:"purchase_id"`
	SupplierId   int             `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Date         time.Time       `json:"date"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// AccountsPayable lists pending purchases, oldest first.
func AccountsPayable(ctx context.Context) ([]*Payable, error) {
	db := config.GetDB().WithContext(ctx)
	paid := db.Model(&PurchaseInstallment{}).
		Select("purchase_id, SUM(amount) AS paid").
		Group("purchase_id")
	var results []*Payable
	err := db.Table("purchases AS p").
		Select(`p.id AS purchase_id, p.supplier_id, s.name AS supplier_name, p.date, p.total,
			COALESCE(i.paid, 0) AS paid, p.total - COALESCE(i.paid, 0) AS outstanding`).
		Joins("LEFT JOIN (?) AS i ON i.purchase_id = p.id", paid).
		Joins("LEFT JOIN suppliers AS s ON s.id = p.supplier_id").
		Where("p.status = ?", PurchaseStatusPending).
		Order("p.date ASC").Order("p.id ASC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

// fillBalance derives Paid and Outstanding from the loaded installments.
func (p *Purchase) fillBalance() {
	p.Paid = decimal.Zero
	for _, i := range p.Installments {
		p.Paid = p.Paid.Add(i.Amount)
	}
	p.Outstanding = decimal.Max(decimal.Zero, p.Total.Sub(p.Paid))
}

// GetPurchase returns a purchase with its supplier, lines and installments.
func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	purchase, err := utils.FetchModel[Purchase](ctx, id, "Supplier", "Details", "Installments")
	if err != nil {
		return nil, err
	}
	purchase.fillBalance()
	return purchase, nil
}

// ListPurchases is the purchase history of a date range, newest first.
func ListPurchases(ctx context.Context, from, to time.Time) ([]*Purchase, error) {
	db := config.GetDB()
	var results []*Purchase
	err := db.WithContext(ctx).
		Preload("Supplier").
		Preload("Details").
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC").Order("id ASC") }).
		Where("date BETWEEN ? AND ?", utils.FormatDate(from), utils.FormatDate(to)).
		Order("date DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	for _, p := range results {
		p.fillBalance()
	}
	return results, nil
}
