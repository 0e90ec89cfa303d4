package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
)

type Service struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Name            string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	DurationMinutes int             `gorm:"not null" json:"duration_minutes"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewService struct {
	Name            string          `json:"name" validate:"required,max=100"`
	DurationMinutes int             `json:"duration_minutes" validate:"gt=0,lte=1440"`
	Price           decimal.Decimal `json:"price"`
}

func (s Service) Active() bool {
	return utils.DereferencePtr(s.IsActive, true)
}

func (input *NewService) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return utils.ValidationErrorf("price must not be negative")
	}
	return utils.ValidateUnique[Service](ctx, "name", strings.TrimSpace(input.Name), id)
}

func CreateService(ctx context.Context, input *NewService) (*Service, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	service := Service{
		Name:            strings.TrimSpace(input.Name),
		DurationMinutes: input.DurationMinutes,
		Price:           input.Price,
		IsActive:        utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Service](service.ID)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("service created: %s", service.Name))
	return &service, nil
}

func UpdateService(ctx context.Context, id int, input *NewService) (*Service, error) {
	service, err := utils.FetchModel[Service](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(service).
		Updates(map[string]interface{}{
			"Name":            strings.TrimSpace(input.Name),
			"DurationMinutes": input.DurationMinutes,
			"Price":           input.Price,
		}).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Service](id)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("service updated: %s", input.Name))
	return utils.FetchModel[Service](ctx, id)
}

func GetService(ctx context.Context, id int) (*Service, error) {
	return GetResource[Service](ctx, id)
}

func ListServices(ctx context.Context, includeInactive bool) ([]*Service, error) {
	all, err := ListAllResource[Service](ctx, "name ASC")
	if err != nil || includeInactive {
		return all, err
	}
	active := make([]*Service, 0, len(all))
	for _, s := range all {
		if s.Active() {
			active = append(active, s)
		}
	}
	return active, nil
}

func ToggleActiveService(ctx context.Context, id int, isActive bool) (*Service, error) {
	return ToggleActiveModel[Service](ctx, id, isActive)
}
