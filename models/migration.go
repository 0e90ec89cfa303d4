package models

import (
	"context"
	"encoding/json"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&Professional{}, &Client{}, &Supplier{}, &Service{}, &Product{}, &PaymentMethod{},
		&Appointment{}, &Block{},
		&Sale{}, &ProductSale{}, &Payment{}, &CreditSettlement{},
		&Loan{}, &LoanInstallment{},
		&Purchase{}, &PurchaseDetail{}, &PurchaseInstallment{},
		&Expense{},
		&Setting{}, &AuditLog{}, &User{},
	)
}

// DefaultPaymentMethods are offered at the register out of the box. CREDIT must exist for
// sales on account to be selectable.
var DefaultPaymentMethods = []string{PaymentMethodCash, "Card", "Transfer", PaymentMethodCredit}

// SeedDefaults inserts the default payment methods and settings. Existing rows are left alone.
func SeedDefaults(ctx context.Context) error {
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	for _, name := range DefaultPaymentMethods {
		method := PaymentMethod{Name: name, IsActive: utils.NewTrue()}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&method).Error; err != nil {
			return utils.ClassifyStorageError(err)
		}
	}
	if err := utils.RemoveRedisList[PaymentMethod](); err != nil {
		config.LogError(logger, "models", "SeedDefaults", "RemoveRedisList", nil, err)
	}

	requiredFields, err := json.Marshal(defaultRequiredClientFields)
	if err != nil {
		return err
	}
	defaults := []Setting{
		{Key: SettingConfirmationMessage, Value: DefaultConfirmationMessage},
		{Key: SettingRequiredClientFields, Value: string(requiredFields)},
	}
	for i := range defaults {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults[i]).Error; err != nil {
			return utils.ClassifyStorageError(err)
		}
	}
	logger.WithFields(logrus.Fields{
		"field":           "SeedDefaults",
		"payment_methods": len(DefaultPaymentMethods),
		"settings":        len(defaults),
	}).Info("defaults seeded")
	return nil
}
