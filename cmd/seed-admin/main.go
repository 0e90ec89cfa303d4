// seed-admin migrates the schema, seeds default payment methods and settings,
// and creates the first admin user when it does not exist yet.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_USERNAME=admin ADMIN_PASSWORD=... go run ./cmd/seed-admin
//
// FLUSH_CACHE=true also drops every cached directory entry from redis.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminName     = "Salon Admin"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	username := envOr("ADMIN_USERNAME", defaultAdminUsername)
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	// audit rows name the actor from context
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, "seed")

	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}
	if err := models.SeedDefaults(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed defaults: %v\n", err)
		os.Exit(1)
	}

	if strings.EqualFold(os.Getenv("FLUSH_CACHE"), "true") {
		if err := config.ClearRedis(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush cache: %v\n", err)
		}
	}

	user, created, err := models.EnsureAdmin(ctx, username, envOr("ADMIN_NAME", defaultAdminName), password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("Created admin user: username=%q id=%d\n", user.Username, user.ID)
		return
	}
	fmt.Printf("Admin user %q already exists (id=%d, role=%s); nothing to do\n", user.Username, user.ID, user.Role)
}
