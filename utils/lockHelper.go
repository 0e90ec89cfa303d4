package utils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/salon_backend/config"
	"gorm.io/gorm"
)

// KeyedMutex hands out one mutex per key and forgets keys nobody holds.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedEntry{}}
}

func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e := k.locks[key]
	if e == nil {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll locks every key in sorted order so overlapping key sets cannot deadlock.
func (k *KeyedMutex) LockAll(keys []string) func() {
	sorted := normalizeLockKeys(keys)
	unlocks := make([]func(), 0, len(sorted))
	for _, key := range sorted {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func normalizeLockKeys(keys []string) []string {
	out := UniqueSlice(keys)
	sort.Strings(out)
	return out
}

var processLocks = NewKeyedMutex()

// RunSerialized runs fn inside one transaction while holding every key exclusively.
//
// Three layers are taken in order: an in-process keyed mutex, a best-effort redis lock,
// and a MySQL advisory lock per key. GET_LOCK is connection-scoped, so the advisory
// locks and the transaction share a single pinned connection.
func RunSerialized(ctx context.Context, keys []string, fn func(tx *gorm.DB) error) error {
	keys = normalizeLockKeys(keys)
	unlock := processLocks.LockAll(keys)
	defer unlock()

	release := obtainRedisLocks(ctx, keys)
	defer release()

	db := config.GetDB()
	if db == nil {
		return newClassified(ErrTransientStorage, nil, "database is not ready")
	}

	timeout := config.BookingLockTimeout()
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		acquired := make([]string, 0, len(keys))
		defer func() {
			for _, key := range acquired {
				releaseAdvisoryLock(conn, key)
			}
		}()
		for _, key := range keys {
			if err := acquireAdvisoryLock(conn, key, timeout); err != nil {
				return err
			}
			acquired = append(acquired, key)
		}
		return conn.Transaction(fn)
	})
	return ClassifyStorageError(err)
}

func acquireAdvisoryLock(conn *gorm.DB, key string, timeout time.Duration) error {
	var ok *int
	if err := conn.Raw("SELECT GET_LOCK(?, ?)", advisoryLockName(key), int(timeout.Seconds())).Scan(&ok).Error; err != nil {
		return err
	}
	if ok == nil || *ok != 1 {
		return newClassified(ErrTransientStorage, nil, "could not acquire lock %s", key)
	}
	return nil
}

func releaseAdvisoryLock(conn *gorm.DB, key string) {
	var released *int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", advisoryLockName(key)).Scan(&released).Error
}

// MySQL caps lock names at 64 characters.
func advisoryLockName(key string) string {
	name := "salon:" + key
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func obtainRedisLocks(ctx context.Context, keys []string) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	logger := config.GetLogger()
	ttl := config.BookingLockTimeout() * 3
	obtainCtx, cancel := context.WithTimeout(ctx, config.BookingLockTimeout())
	defer cancel()

	held := make([]*redislock.Lock, 0, len(keys))
	for _, key := range keys {
		lock, err := locker.Obtain(obtainCtx, fmt.Sprintf("lock:%s", key), ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
		})
		if err != nil {
			// redis is an optimization; the advisory lock still serializes.
			config.LogWarn(logger, "utils", "RunSerialized", "proceeding without redis lock: "+err.Error(), key)
			continue
		}
		held = append(held, lock)
	}
	return func() {
		for _, lock := range held {
			if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
				config.LogWarn(logger, "utils", "RunSerialized", "failed to release redis lock: "+err.Error(), lock.Key())
			}
		}
	}
}
