package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
)

// Activatable is implemented by directory entities that are soft-disabled instead of deleted.
type Activatable interface {
	Professional | Client | Supplier | Service | Product | PaymentMethod
}

// first find in redis, then in db, cache result
// (may return a not-found validation error)
func GetResource[T any](ctx context.Context, id int) (*T, error) {
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "GetResource", "RetrieveRedis", id, err)
		result = nil
	}
	if result != nil {
		return result, nil
	}

	result, err = utils.FetchModel[T](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		config.LogError(config.GetLogger(), "models", "GetResource", "StoreRedis", id, err)
	}
	return result, nil
}

// list all rows of a directory table, redis or db, cache result
func ListAllResource[T any](ctx context.Context, orders ...string) ([]*T, error) {
	results, err := utils.RetrieveRedisList[T]()
	if err != nil {
		config.LogError(config.GetLogger(), "models", "ListAllResource", "RetrieveRedisList", nil, err)
		results = nil
	}
	if results != nil {
		return results, nil
	}

	db := config.GetDB()
	var model T
	dbCtx := db.WithContext(ctx).Model(&model)
	for _, order := range orders {
		dbCtx = dbCtx.Order(order)
	}
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	if err := utils.StoreRedisList[T](results); err != nil {
		config.LogError(config.GetLogger(), "models", "ListAllResource", "StoreRedisList", nil, err)
	}
	return results, nil
}

// ToggleActiveModel soft-enables or disables a directory entity; rows are never hard-deleted.
func ToggleActiveModel[T Activatable](ctx context.Context, id int, isActive bool) (*T, error) {
	db := config.GetDB()
	result, err := utils.FetchModel[T](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(result).UpdateColumn("is_active", isActive).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	clearDirectoryCache[T](id)

	state := "disabled"
	if isActive {
		state = "enabled"
	}
	RecordAudit(ctx, AuditCategoryDirectory, fmt.Sprintf("%s #%d %s", utils.GetTypeName[T](), id, state))
	return utils.FetchModel[T](ctx, id)
}

func clearDirectoryCache[T any](id int) {
	if err := utils.RemoveRedisItem[T](id); err != nil {
		config.LogError(config.GetLogger(), "models", "clearDirectoryCache", utils.GetTypeName[T](), id, err)
	}
}
