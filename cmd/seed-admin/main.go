package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/stayhq-ng/hostelpay-backend/internal/admins"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
)

// Seeds a back-office operator. The password comes from
// HOSTELPAY_SEED_ADMIN_PASSWORD so it never lands in shell history.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed-admin"})

	_ = godotenv.Load()

	email := flag.String("email", "", "admin email")
	fullName := flag.String("name", "", "admin full name")
	role := flag.String("role", enums.AdminRoleSuperAdmin.String(), "admin role: super_admin|admin|viewer")
	flag.Parse()

	if *email == "" || *fullName == "" {
		fmt.Fprintln(os.Stderr, "missing -email or -name")
		os.Exit(1)
	}
	password := os.Getenv("HOSTELPAY_SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "HOSTELPAY_SEED_ADMIN_PASSWORD is not set")
		os.Exit(1)
	}

	parsedRole, err := enums.ParseAdminRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed-admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	svc, err := admins.NewService(admins.ServiceParams{
		Repo:     admins.NewRepository(dbClient.DB()),
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Logger:   logg,
	})
	requireResource(ctx, logg, "admin service", err)

	admin := &models.AdminUser{
		Email:    *email,
		FullName: *fullName,
		Role:     parsedRole,
	}
	if err := svc.CreateAdmin(ctx, admin, password); err != nil {
		logg.Error(ctx, "failed to seed admin", err)
		os.Exit(1)
	}

	seededCtx := logg.WithEmail(ctx, admin.Email)
	seededCtx = logg.WithField(seededCtx, "role", parsedRole.String())
	logg.Info(seededCtx, "admin seeded")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
