// Package seed installs the rows a fresh ledger needs before anyone can
// log in: the default waste categories and the bootstrap super admin.
package seed

import (
	"context"
	"fmt"

	"github.com/angelmondragon/banksampah-backend/internal/residents"
	"github.com/angelmondragon/banksampah-backend/pkg/config"
	"github.com/angelmondragon/banksampah-backend/pkg/logger"
)

type categorySeeder interface {
	SeedDefaults(ctx context.Context) (int, error)
}

type adminSeeder interface {
	SeedSuperAdmin(ctx context.Context, input residents.SeedAdminInput) (bool, error)
}

type Params struct {
	Categories categorySeeder
	Residents  adminSeeder
	Config     config.SeedConfig
	Logger     *logger.Logger
}

type Summary struct {
	CategoriesCreated int  `json:"categories_created"`
	AdminCreated      bool `json:"admin_created"`
}

// Run is idempotent. The super admin is skipped when no password is
// configured.
func Run(ctx context.Context, params Params) (*Summary, error) {
	if params.Categories == nil || params.Residents == nil || params.Logger == nil {
		return nil, fmt.Errorf("seed dependencies required")
	}
	summary := &Summary{}
	created, err := params.Categories.SeedDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	summary.CategoriesCreated = created

	if params.Config.AdminPassword == "" {
		params.Logger.Warn(ctx, "seed.super_admin.skipped_no_password")
	} else {
		adminCreated, err := params.Residents.SeedSuperAdmin(ctx, residents.SeedAdminInput{
			Username: params.Config.AdminUsername,
			Password: params.Config.AdminPassword,
			FullName: params.Config.AdminFullName,
		})
		if err != nil {
			return nil, fmt.Errorf("seed super admin: %w", err)
		}
		summary.AdminCreated = adminCreated
	}

	params.Logger.Info(params.Logger.WithFields(ctx, map[string]any{
		"categories_created": summary.CategoriesCreated,
		"admin_created":      summary.AdminCreated,
	}), "seed.complete")
	return summary, nil
}
