package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"gorm.io/gorm"
)

type Client struct {
	ID         int        `gorm:"primary_key" json:"id"`
	Name       string     `gorm:"size:100;not null;index" json:"name"`
	DocumentId string     `gorm:"size:30;index" json:"document_id"`
	Phone      string     `gorm:"size:20;index" json:"phone"`
	Email      string     `gorm:"size:100" json:"email"`
	Address    string     `gorm:"size:255" json:"address"`
	City       string     `gorm:"size:100" json:"city"`
	BirthDate  *time.Time `gorm:"type:date" json:"birth_date"`
	Notes      string     `gorm:"type:text" json:"notes"`
	IsActive   *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name       string     `json:"name" validate:"required,max=100"`
	DocumentId string     `json:"document_id" validate:"max=30"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email" validate:"omitempty,email,max=100"`
	Address    string     `json:"address" validate:"max=255"`
	City       string     `json:"city" validate:"max=100"`
	BirthDate  *time.Time `json:"birth_date"`
	Notes      string     `json:"notes"`
}

// fieldValue maps a required-field policy name onto the input; unknown names are not enforced.
func (input *NewClient) fieldValue(field string) (string, bool) {
	switch field {
	case ClientFieldDocumentId:
		return input.DocumentId, true
	case ClientFieldPhone:
		return input.Phone, true
	case ClientFieldEmail:
		return input.Email, true
	case ClientFieldAddress:
		return input.Address, true
	case ClientFieldCity:
		return input.City, true
	}
	return "", false
}

// checkRequiredFields enforces the business's required-field policy.
func (input *NewClient) checkRequiredFields(required []string) error {
	missing := make([]string, 0)
	for _, field := range required {
		if v, known := input.fieldValue(field); known && strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return utils.ValidationErrorf("missing required client fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (input *NewClient) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	required, err := GetRequiredClientFields(ctx)
	if err != nil {
		return err
	}
	if err := input.checkRequiredFields(required); err != nil {
		return err
	}
	phone, err := utils.NormalizePhone(input.Phone, config.PhoneRegion())
	if err != nil {
		return err
	}
	input.Phone = phone
	if input.DocumentId != "" {
		if err := utils.ValidateUnique[Client](ctx, "document_id", input.DocumentId, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	client := Client{
		Name:       strings.TrimSpace(input.Name),
		DocumentId: input.DocumentId,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		City:       input.City,
		BirthDate:  input.BirthDate,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("client created: %s", client.Name))
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input *NewClient) (*Client, error) {
	client, err := utils.FetchModel[Client](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(client).
		Updates(map[string]interface{}{
			"Name":       strings.TrimSpace(input.Name),
			"DocumentId": input.DocumentId,
			"Phone":      input.Phone,
			"Email":      input.Email,
			"Address":    input.Address,
			"City":       input.City,
			"BirthDate":  input.BirthDate,
			"Notes":      input.Notes,
		}).Error
	if err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[Client](id)
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("client updated: %s", input.Name))
	return utils.FetchModel[Client](ctx, id)
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	return GetResource[Client](ctx, id)
}

func ToggleActiveClient(ctx context.Context, id int, isActive bool) (*Client, error) {
	return ToggleActiveModel[Client](ctx, id, isActive)
}

// FindClientByPhone returns nil when nobody has that phone.
func FindClientByPhone(ctx context.Context, phone string) (*Client, error) {
	normalized, err := utils.NormalizePhone(phone, config.PhoneRegion())
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, nil
	}
	db := config.GetDB()
	return findClientByPhone(db.WithContext(ctx), normalized)
}

func findClientByPhone(tx *gorm.DB, normalizedPhone string) (*Client, error) {
	var clients []*Client
	if err := tx.Where("phone = ?", normalizedPhone).Order("id ASC").Limit(1).Find(&clients).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	if len(clients) == 0 {
		return nil, nil
	}
	return clients[0], nil
}

// SearchClients matches name, phone or document.
func SearchClients(ctx context.Context, term string, limit int) ([]*Client, error) {
	if limit <= 0 {
		limit = config.SearchLimit
	}
	db := config.GetDB()
	var results []*Client
	q := db.WithContext(ctx).Where("is_active = ?", true)
	if term = strings.TrimSpace(term); term != "" {
		like := "%" + term + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR document_id LIKE ?", like, like, like)
	}
	if err := q.Order("name ASC").Limit(limit).Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

// resolveBookingClient returns clientId when given, otherwise reuses a client with the same
// phone or creates a basic one. The required-field policy does not apply to walk-in clients.
func resolveBookingClient(tx *gorm.DB, clientId int, name string, phone string) (int, error) {
	if clientId > 0 {
		var count int64
		if err := tx.Model(&Client{}).Where("id = ?", clientId).Count(&count).Error; err != nil {
			return 0, utils.ClassifyStorageError(err)
		}
		if count == 0 {
			return 0, utils.NotFoundError("Client", clientId)
		}
		return clientId, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, utils.ValidationErrorf("client id or client name is required")
	}
	normalized, err := utils.NormalizePhone(phone, config.PhoneRegion())
	if err != nil {
		return 0, err
	}
	if normalized != "" {
		existing, err := findClientByPhone(tx, normalized)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return existing.ID, nil
		}
	}
	client := Client{Name: name, Phone: normalized, IsActive: utils.NewTrue()}
	if err := tx.Create(&client).Error; err != nil {
		return 0, utils.ClassifyStorageError(err)
	}
	return client.ID, nil
}
