package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
)

// AllServices marks a professional able to perform every service.
const AllServices = "ALL"

// AllProfessionals is the professional id of blocks that apply to everyone.
const AllProfessionals = 0

type Professional struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Name             string          `gorm:"size:100;not null" json:"name"`
	DocumentId       string          `gorm:"size:30;index" json:"document_id"`
	Phone            string          `gorm:"size:20" json:"phone"`
	Commission       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"commission"`
	AssignedServices string          `gorm:"size:255;not null;default:'ALL'" json:"assigned_services"`
	Color            string          `gorm:"size:20" json:"color"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProfessional struct {
	Name               string          `json:"name" validate:"required,max=100"`
	DocumentId         string          `json:"document_id" validate:"max=30"`
	Phone              string          `json:"phone"`
	Commission         decimal.Decimal `json:"commission"`
	AssignedServiceIds []int           `json:"assigned_service_ids"`
	Color              string          `json:"color" validate:"max=20"`
}

func (p Professional) Active() bool {
	return utils.DereferencePtr(p.IsActive, true)
}

// CanPerform resolves the assigned-service set ("ALL" or comma separated ids).
func (p Professional) CanPerform(serviceId int) bool {
	assigned := strings.TrimSpace(p.AssignedServices)
	if assigned == "" || strings.EqualFold(assigned, AllServices) {
		return true
	}
	for _, raw := range strings.Split(assigned, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && id == serviceId {
			return true
		}
	}
	return false
}

func encodeAssignedServices(ids []int) string {
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return AllServices
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProfessional) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Commission.IsNegative() || input.Commission.GreaterThan(decimal.NewFromInt(100)) {
		return utils.ValidationErrorf("commission must be between 0 and 100")
	}
	if input.DocumentId != "" {
		if err := utils.ValidateUnique[Professional](ctx, "document_id", input.DocumentId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourcesId[Service](ctx, input.AssignedServiceIds); err != nil {
		return err
	}
	phone, err := utils.NormalizePhone(input.Phone, config.PhoneRegion())
	if err != nil {
		return err
	}
	input.Phone = phone
	return nil
}

func CreateProfessional(ctx context.Context, input *NewProfessional) (*Professional, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	professional := Professional{
		Name:             strings.TrimSpace(input.Name),
		DocumentId:       input.DocumentId,
		Phone:            input.Phone,
		Commission:       input.Commission,
		AssignedServices: encodeAssignedServices(input.AssignedServiceIds),
		Color:            input.Color,
		IsActive:         utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&professional).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Professional](professional.ID)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("professional created: %s", professional.Name))
	return &professional, nil
}

func UpdateProfessional(ctx context.Context, id int, input *NewProfessional) (*Professional, error) {
	professional, err := utils.FetchModel[Professional](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(professional).
		Updates(map[string]interface{}{
			"Name":             strings.TrimSpace(input.Name),
			"DocumentId":       input.DocumentId,
			"Phone":            input.Phone,
			"Commission":       input.Commission,
			"AssignedServices": encodeAssignedServices(input.AssignedServiceIds),
			"Color":            input.Color,
		}).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Professional](id)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("professional updated: %s", input.Name))
	return utils.FetchModel[Professional](ctx, id)
}

func GetProfessional(ctx context.Context, id int) (*Professional, error) {
	return GetResource[Professional](ctx, id)
}

func ListProfessionals(ctx context.Context, includeInactive bool) ([]*Professional, error) {
	all, err := ListAllResource[Professional](ctx, "name ASC")
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return all, nil
	}
	active := make([]*Professional, 0, len(all))
	for _, p := range all {
		if p.Active() {
			active = append(active, p)
		}
	}
	return active, nil
}

func ToggleActiveProfessional(ctx context.Context, id int, isActive bool) (*Professional, error) {
	return ToggleActiveModel[Professional](ctx, id, isActive)
}

// ListProfessionalsForService returns the active professionals assigned to serviceId.
func ListProfessionalsForService(ctx context.Context, serviceId int) ([]*Professional, error) {
	all, err := ListProfessionals(ctx, false)
	if err != nil {
		return nil, err
	}
	result := make([]*Professional, 0, len(all))
	for _, p := range all {
		if p.CanPerform(serviceId) {
			result = append(result, p)
		}
	}
	return result, nil
}
