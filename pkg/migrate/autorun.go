package migrate

import (
	"context"
	"fmt"

	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/db"
	"github.com/airink/storefront-backend/pkg/logger"
)

// Seeder loads reference rows after the schema is current and reports how
// many rows it wrote.
type Seeder struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// MaybeRunDev applies the cart schema on boot, then runs seeders, when the
// app is in dev, auto-migrate is on and the postgres remote backend is used.
// It reports whether anything ran.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, seeders ...Seeder) (bool, error) {
	if !devAutorunEnabled(cfg) || client == nil {
		return false, nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return false, fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "migrate.dev_autorun_started")
	applied, err := Run(ctx, sqlDB, DefaultDir, "up")
	if err != nil {
		return false, fmt.Errorf("running goose up: %w", err)
	}
	for _, step := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": step.Version, "path": step.Path, "duration_ms": step.Duration.Milliseconds()}), "migrate.applied")
	}

	for _, s := range seeders {
		rows, err := s.Run(ctx)
		if err != nil {
			return true, fmt.Errorf("seed %s: %w", s.Name, err)
		}
		logg.Info(logg.WithFields(ctx, map[string]any{"seeder": s.Name, "rows": rows}), "migrate.dev_seed_completed")
	}

	logg.Info(ctx, "migrate.dev_autorun_completed")
	return true, nil
}

func devAutorunEnabled(cfg *config.Config) bool {
	return cfg != nil && cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate && cfg.Cart.NeedsDB()
}
