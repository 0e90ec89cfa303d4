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

// Sale is the header of one checkout: services and products paid together.
type Sale struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ClientId  int             `gorm:"index" json:"client_id"`
	Date      time.Time       `gorm:"type:date;not null;index" json:"date"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	Discount  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Total     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total"`
	Note      string          `gorm:"size:255" json:"note"`
	Payments  []*Payment      `gorm:"foreignKey:SaleId" json:"payments"`
	Items     []*ProductSale  `gorm:"foreignKey:SaleId" json:"items"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ProductSale is one product line sold with a sale.
type ProductSale struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SaleId        int             `gorm:"not null;index" json:"sale_id"`
	AppointmentId *int            `json:"appointment_id"`
	ProductId     int             `gorm:"not null;index" json:"product_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Total         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type PaymentLine struct {
	Method string          `json:"method" validate:"max=50"`
	Amount decimal.Decimal `json:"amount"`
}

type CartItem struct {
	ProductId int             `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type NewSale struct {
	ClientId       int             `json:"client_id"`
	AppointmentIds []int           `json:"appointment_ids"`
	Payments       []*PaymentLine  `json:"payments" validate:"dive"`
	Discount       decimal.Decimal `json:"discount"`
	CartItems      []*CartItem     `json:"cart_items" validate:"dive"`
	Note           string          `json:"note" validate:"max=255"`
}

func (input *NewSale) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if len(input.AppointmentIds) == 0 && len(input.CartItems) == 0 {
		return utils.ValidationErrorf("a sale needs at least one appointment or product")
	}
	if input.Discount.IsNegative() {
		return utils.ValidationErrorf("discount must not be negative")
	}
	for _, p := range input.Payments {
		if p.Amount.IsNegative() {
			return utils.ValidationErrorf("payment amounts must not be negative")
		}
	}
	for _, item := range input.CartItems {
		if item.UnitPrice.IsNegative() {
			return utils.ValidationErrorf("unit price must not be negative")
		}
	}
	return nil
}

func (input *NewSale) stockLines() []StockLine {
	lines := make([]StockLine, 0, len(input.CartItems))
	for _, item := range input.CartItems {
		lines = append(lines, StockLine{ProductId: item.ProductId, Quantity: item.Quantity})
	}
	return lines
}

// decrementPlannedStock applies a checked plan in product id order.
func decrementPlannedStock(tx *gorm.DB, plan map[int]int) error {
	ids := make([]int, 0, len(plan))
	for id := range plan {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if err := AdjustStock(tx, id, -plan[id]); err != nil {
			return err
		}
	}
	return nil
}

// RecordSale closes a checkout in one transaction: appointments become Paid, stock is
// decremented, payments and the discount are booked. Any failure leaves nothing behind.
func RecordSale(ctx context.Context, input *NewSale) (*Sale, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	appointmentIds := utils.UniqueSlice(input.AppointmentIds)
	sort.Ints(appointmentIds)

	var sale Sale
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subtotal := decimal.Zero
		clientId := input.ClientId
		var firstAppointmentId *int
		for _, id := range appointmentIds {
			appointment, err := transitionAppointment(tx, id, AppointmentStatusPaid)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(appointment.FinalPrice)
			if clientId == 0 {
				clientId = appointment.ClientId
			}
			if firstAppointmentId == nil {
				firstAppointmentId = &appointment.ID
			}
		}

		if len(input.CartItems) > 0 {
			lines := input.stockLines()
			productIds := make([]int, 0, len(lines))
			for _, line := range lines {
				productIds = append(productIds, line.ProductId)
			}
			available, err := lockProductStock(tx, productIds)
			if err != nil {
				return err
			}
			plan, err := PlanStockDecrements(available, lines)
			if err != nil {
				return err
			}
			if err := decrementPlannedStock(tx, plan); err != nil {
				return err
			}
		}

		now := time.Now()
		sale = Sale{
			ClientId: clientId,
			Date:     utils.TruncateToDay(now),
			Discount: input.Discount,
			Note:     input.Note,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}

		for _, item := range input.CartItems {
			total := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			line := ProductSale{
				SaleId:        sale.ID,
				AppointmentId: firstAppointmentId,
				ProductId:     item.ProductId,
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				Total:         total,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			subtotal = subtotal.Add(total)
			sale.Items = append(sale.Items, &line)
		}
		if input.Discount.GreaterThan(subtotal) {
			return utils.ValidationErrorf("discount %s exceeds the sale subtotal %s", input.Discount, subtotal)
		}

		for _, line := range input.Payments {
			if line.Amount.IsZero() {
				continue
			}
			payment := Payment{
				SaleId:        &sale.ID,
				AppointmentId: firstAppointmentId,
				ClientId:      clientId,
				Method:        normalizeMethod(line.Method),
				Amount:        line.Amount,
				Date:          sale.Date,
				PaidAt:        now,
				Note:          input.Note,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			sale.Payments = append(sale.Payments, &payment)
		}

		if input.Discount.IsPositive() {
			if err := insertExpense(tx, &Expense{
				Date:        sale.Date,
				Type:        ExpenseTypeExpense,
				Category:    ExpenseCategorySalesDiscount,
				Description: fmt.Sprintf("discount on sale #%d", sale.ID),
				Method:      PaymentMethodAccountingOffset,
				Amount:      input.Discount,
				ReferenceId: &sale.ID,
			}); err != nil {
				return err
			}
		}

		sale.Subtotal = subtotal
		sale.Total = subtotal.Sub(input.Discount)
		return tx.Model(&sale).Updates(map[string]interface{}{
			"Subtotal": sale.Subtotal,
			"Total":    sale.Total,
		}).Error
	})
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}

	methods := make([]string, 0, len(sale.Payments))
	for _, p := range sale.Payments {
		methods = append(methods, fmt.Sprintf("%s %s", p.Method, p.Amount))
	}
	RecordAudit(ctx, AuditCategorySale, fmt.Sprintf("sale #%d total %s (%s), appointments %v, %d products",
		sale.ID, sale.Total, strings.Join(methods, ", "), appointmentIds, len(sale.Items)))
	return &sale, nil
}

// ListSales returns sales of [from, to] with their payments and product lines.
func ListSales(ctx context.Context, from, to time.Time) ([]*Sale, error) {
	db := config.GetDB()
	var results []*Sale
	err := db.WithContext(ctx).
		Preload("Payments").Preload("Items").
		Where("date BETWEEN ? AND ?", utils.FormatDate(from), utils.FormatDate(to)).
		Order("date DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}
