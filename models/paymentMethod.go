package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
)

type PaymentMethod struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentMethod struct {
	Name string `json:"name" validate:"required,max=50"`
}

func CreatePaymentMethod(ctx context.Context, input *NewPaymentMethod) (*PaymentMethod, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if err := utils.ValidateUnique[PaymentMethod](ctx, "name", name, 0); err != nil {
		return nil, err
	}
	method := PaymentMethod{Name: name, IsActive: utils.NewTrue()}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&method).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[PaymentMethod](method.ID)
	return &method, nil
}

func ListPaymentMethods(ctx context.Context) ([]*PaymentMethod, error) {
	all, err := ListAllResource[PaymentMethod](ctx, "id ASC")
	if err != nil {
		return nil, err
	}
	active := make([]*PaymentMethod, 0, len(all))
	for _, m := range all {
		if utils.DereferencePtr(m.IsActive, true) {
			active = append(active, m)
		}
	}
	return active, nil
}

func ToggleActivePaymentMethod(ctx context.Context, id int, isActive bool) (*PaymentMethod, error) {
	return ToggleActiveModel[PaymentMethod](ctx, id, isActive)
}

// normalizeMethod trims the method name and maps blanks to cash.
func normalizeMethod(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return PaymentMethodCash
	}
	if strings.EqualFold(method, PaymentMethodCredit) {
		return PaymentMethodCredit
	}
	return method
}
