package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
)

type Supplier struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	DocumentId string    `gorm:"size:30;index" json:"document_id"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Email      string    `gorm:"size:100" json:"email"`
	Address    string    `gorm:"size:255" json:"address"`
	Notes      string    `gorm:"type:text" json:"notes"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name       string `json:"name" validate:"required,max=100"`
	DocumentId string `json:"document_id" validate:"max=30"`
	Phone      string `json:"phone"`
	Email      string `json:"email" validate:"omitempty,email,max=100"`
	Address    string `json:"address" validate:"max=255"`
	Notes      string `json:"notes"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewSupplier) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Supplier](ctx, "name", strings.TrimSpace(input.Name), id); err != nil {
		return err
	}
	if input.DocumentId != "" {
		if err := utils.ValidateUnique[Supplier](ctx, "document_id", input.DocumentId, id); err != nil {
			return err
		}
	}
	phone, err := utils.NormalizePhone(input.Phone, config.PhoneRegion())
	if err != nil {
		return err
	}
	input.Phone = phone
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Name:       strings.TrimSpace(input.Name),
		DocumentId: input.DocumentId,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Supplier](supplier.ID)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("supplier created: %s", supplier.Name))
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(supplier).
		Updates(map[string]interface{}{
			"Name":       strings.TrimSpace(input.Name),
			"DocumentId": input.DocumentId,
			"Phone":      input.Phone,
			"Email":      input.Email,
			"Address":    input.Address,
			"Notes":      input.Notes,
		}).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Supplier](id)
	return utils.FetchModel[Supplier](ctx, id)
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return GetResource[Supplier](ctx, id)
}

func ListSuppliers(ctx context.Context, includeInactive bool) ([]*Supplier, error) {
	all, err := ListAllResource[Supplier](ctx, "name ASC")
	if err != nil || includeInactive {
		return all, err
	}
	active := make([]*Supplier, 0, len(all))
	for _, s := range all {
		if utils.DereferencePtr(s.IsActive, true) {
			active = append(active, s)
		}
	}
	return active, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {
	return ToggleActiveModel[Supplier](ctx, id, isActive)
}
