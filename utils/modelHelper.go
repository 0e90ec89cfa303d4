package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/salon_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db
// (may return a not-found validation error)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	if db == nil {
		return nil, ClassifyStorageError(ErrTransientStorage)
	}
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(GetTypeName[T](), id)
		}
		return nil, ClassifyStorageError(err)
	}
	return &result, nil
}

// fetch model inside a transaction, locking the row for update
func FetchModelForUpdate[T any](tx *gorm.DB, id int) (*T, error) {
	var result T
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError(GetTypeName[T](), id)
		}
		return nil, ClassifyStorageError(err)
	}
	return &result, nil
}
