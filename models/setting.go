package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// Setting is the key-value store for business configuration that does not affect core invariants.
type Setting struct {
	Key       string    `gorm:"primary_key;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	SettingConfirmationMessage  = "confirmation_message"
	SettingRequiredClientFields = "required_client_fields"
	SettingBusinessProfile      = "business_profile"
)

const (
	ClientFieldDocumentId = "document_id"
	ClientFieldPhone      = "phone"
	ClientFieldEmail      = "email"
	ClientFieldAddress    = "address"
	ClientFieldCity       = "city"
)

const DefaultConfirmationMessage = "{greeting} {client}, confirming your appointment {relative_day} at {time} with {professional} for {service}. Price: {price}."

var defaultRequiredClientFields = []string{ClientFieldPhone}

func settingCacheKey(key string) string {
	return "Setting:" + key
}

// GetSetting returns the value and whether the key exists.
func GetSetting(ctx context.Context, key string) (string, bool, error) {
	if v, ok, err := config.GetRedisValue(settingCacheKey(key)); err == nil && ok {
		return v, true, nil
	}
	db := config.GetDB()
	var settings []*Setting
	if err := db.WithContext(ctx).Where("`key` = ?", key).Limit(1).Find(&settings).Error; err != nil {
		return "", false, utils.ClassifyStorageError(err)
	}
	if len(settings) == 0 {
		return "", false, nil
	}
	if err := config.SetRedisValue(settingCacheKey(key), settings[0].Value, utils.GetCacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "models", "GetSetting", "SetRedisValue", key, err)
	}
	return settings[0].Value, true, nil
}

func SetSetting(ctx context.Context, key string, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return utils.ValidationErrorf("setting key is required")
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
	if err != nil {
		return utils.ClassifyStorageError(err)
	}
	if err := config.RemoveRedisKey(settingCacheKey(key)); err != nil {
		config.LogError(config.GetLogger(), "models", "SetSetting", "RemoveRedisKey", key, err)
	}
	RecordAudit(ctx, AuditCategorySettings, "setting updated: "+key)
	return nil
}

func GetConfirmationTemplate(ctx context.Context) (string, error) {
	v, ok, err := GetSetting(ctx, SettingConfirmationMessage)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return DefaultConfirmationMessage, nil
	}
	return v, nil
}

func SetConfirmationTemplate(ctx context.Context, template string) error {
	if strings.TrimSpace(template) == "" {
		return utils.ValidationErrorf("message template must not be empty")
	}
	return SetSetting(ctx, SettingConfirmationMessage, template)
}

// ConfirmationData is what the confirmation template can reference.
type ConfirmationData struct {
	ClientName       string
	ProfessionalName string
	ServiceName      string
	Date             time.Time
	Start            TimeOfDay
	Price            decimal.Decimal
}

func greetingFor(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	}
	return "Good evening"
}

func relativeDay(date time.Time, now time.Time) string {
	today := utils.TruncateToDay(now)
	day := utils.TruncateToDay(date)
	switch {
	case day.Equal(today):
		return "today"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "tomorrow"
	}
	return "on " + utils.FormatDate(day)
}

// RenderConfirmationMessage fills the template placeholders.
func RenderConfirmationMessage(template string, data ConfirmationData, now time.Time) string {
	r := strings.NewReplacer(
		"{greeting}", greetingFor(now),
		"{client}", data.ClientName,
		"{relative_day}", relativeDay(data.Date, now),
		"{date}", utils.FormatDate(data.Date),
		"{time}", data.Start.String(),
		"{professional}", data.ProfessionalName,
		"{service}", data.ServiceName,
		"{price}", data.Price.StringFixed(0),
	)
	return r.Replace(template)
}

// AppointmentConfirmationMessage renders the stored template for one appointment.
func AppointmentConfirmationMessage(ctx context.Context, appointmentId int) (string, error) {
	view, err := GetAppointmentView(ctx, appointmentId)
	if err != nil {
		return "", err
	}
	template, err := GetConfirmationTemplate(ctx)
	if err != nil {
		return "", err
	}
	return RenderConfirmationMessage(template, ConfirmationData{
		ClientName:       view.ClientName,
		ProfessionalName: view.ProfessionalName,
		ServiceName:      view.ServiceName,
		Date:             view.Date,
		Start:            view.StartTime,
		Price:            view.FinalPrice,
	}, time.Now()), nil
}

var knownClientFields = map[string]bool{
	ClientFieldDocumentId: true,
	ClientFieldPhone:      true,
	ClientFieldEmail:      true,
	ClientFieldAddress:    true,
	ClientFieldCity:       true,
}

func GetRequiredClientFields(ctx context.Context) ([]string, error) {
	v, ok, err := GetSetting(ctx, SettingRequiredClientFields)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return defaultRequiredClientFields, nil
	}
	var fields []string
	if err := json.Unmarshal([]byte(v), &fields); err != nil {
		config.LogError(config.GetLogger(), "models", "GetRequiredClientFields", "Unmarshal", v, err)
		return defaultRequiredClientFields, nil
	}
	return fields, nil
}

func SetRequiredClientFields(ctx context.Context, fields []string) error {
	fields = utils.UniqueSlice(fields)
	for _, f := range fields {
		if !knownClientFields[f] {
			return utils.ValidationErrorf("unknown client field %q", f)
		}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return utils.ValidationErrorf("invalid field list: %v", err)
	}
	return SetSetting(ctx, SettingRequiredClientFields, string(b))
}

// BusinessProfile is printed on receipts and exports.
type BusinessProfile struct {
	Name    string `json:"name" validate:"required,max=100"`
	TaxId   string `json:"tax_id"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func GetBusinessProfile(ctx context.Context) (*BusinessProfile, error) {
	v, ok, err := GetSetting(ctx, SettingBusinessProfile)
	if err != nil {
		return nil, err
	}
	profile := BusinessProfile{Name: "Salon"}
	if !ok {
		return &profile, nil
	}
	if err := json.Unmarshal([]byte(v), &profile); err != nil {
		return nil, utils.ValidationErrorf("stored business profile is invalid: %v", err)
	}
	return &profile, nil
}

func SetBusinessProfile(ctx context.Context, profile *BusinessProfile) error {
	if err := utils.ValidateStruct(profile); err != nil {
		return err
	}
	b, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal business profile: %w", err)
	}
	return SetSetting(ctx, SettingBusinessProfile, string(b))
}
