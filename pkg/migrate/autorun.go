package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/db"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup in dev when
// auto-migrate is on. SQLite databases are skipped since the schema uses
// Postgres types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	if cfg.FeatureFlags.UseSQLite {
		logg.Warn(ctx, "auto-migrate skipped for sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "applying gamification migrations")
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "gamification migrations up to date")
	return nil
}
