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

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Barcode   string          `gorm:"size:50;index" json:"barcode"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	Cost      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost"`
	Stock     int             `gorm:"not null;default:0" json:"stock"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name    string          `json:"name" validate:"required,max=100"`
	Barcode string          `json:"barcode" validate:"max=50"`
	Price   decimal.Decimal `json:"price"`
	Cost    decimal.Decimal `json:"cost"`
	Stock   int             `json:"stock" validate:"gte=0"`
}

func (input *NewProduct) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Price.IsNegative() || input.Cost.IsNegative() {
		return utils.ValidationErrorf("price and cost must not be negative")
	}
	return utils.ValidateUnique[Product](ctx, "name", strings.TrimSpace(input.Name), id)
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	product := Product{
		Name:     strings.TrimSpace(input.Name),
		Barcode:  input.Barcode,
		Price:    input.Price,
		Cost:     input.Cost,
		Stock:    input.Stock,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Product](product.ID)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("product created: %s", product.Name))
	return &product, nil
}

// UpdateProduct edits descriptive fields; stock only moves through sales, purchases and AdjustStock.
func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(product).
		Updates(map[string]interface{}{
			"Name":    strings.TrimSpace(input.Name),
			"Barcode": input.Barcode,
			"Price":   input.Price,
			"Cost":    input.Cost,
		}).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Product](id)
	return utils.FetchModel[Product](ctx, id)
}

// GetProduct always reads the database; stock is too volatile to cache.
func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id)
}

func ListProducts(ctx context.Context, includeInactive bool) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product
	q := db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	return ToggleActiveModel[Product](ctx, id, isActive)
}

// StockLine is one requested product movement.
type StockLine struct {
	ProductId int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// PlanStockDecrements checks every line against the available stock before anything is written.
// Lines for the same product are summed. Any shortfall rejects the whole plan.
func PlanStockDecrements(available map[int]int, lines []StockLine) (map[int]int, error) {
	requested := make(map[int]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, utils.ValidationErrorf("quantity for product %d must be positive", line.ProductId)
		}
		requested[line.ProductId] += line.Quantity
	}
	for productId, qty := range requested {
		stock, ok := available[productId]
		if !ok {
			return nil, utils.NotFoundError("Product", productId)
		}
		if qty > stock {
			return nil, utils.InsufficientErrorf("insufficient stock for product %d: requested %d, available %d", productId, qty, stock)
		}
	}
	return requested, nil
}

// lockProductStock reads the stock of the given products with row locks.
func lockProductStock(tx *gorm.DB, productIds []int) (map[int]int, error) {
	var products []*Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", utils.UniqueSlice(productIds)).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	available := make(map[int]int, len(products))
	for _, p := range products {
		available[p.ID] = p.Stock
	}
	return available, nil
}

// AdjustStock is the stock collaborator: it moves a product's stock by delta inside tx.
// A decrement that would go below zero is rejected.
func AdjustStock(tx *gorm.DB, productId int, delta int) error {
	if delta == 0 {
		return nil
	}
	q := tx.Model(&Product{}).Where("id = ?", productId)
	if delta < 0 {
		q = q.Where("stock >= ?", -delta)
	}
	res := q.UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return utils.ClassifyStorageError(res.Error)
	}
	if res.RowsAffected == 0 {
		if delta < 0 {
			return utils.InsufficientErrorf("insufficient stock for product %d", productId)
		}
		return utils.NotFoundError("Product", productId)
	}
	return nil
}

// AdjustProductStock is a manual inventory correction.
func AdjustProductStock(ctx context.Context, productId int, delta int, reason string) (*Product, error) {
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return AdjustStock(tx, productId, delta)
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("stock of product #%d adjusted by %d: %s", productId, delta, reason))
	return utils.FetchModel[Product](ctx, productId)
}
