package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/db"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot. sqlite is always built
// from the models; Postgres is only migrated in dev with DROPSHIP_AUTO_MIGRATE.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	switch {
	case cfg.DB.IsSQLite():
		logg.Info(ctx, "auto-migrating sqlite schema")
		return AutoMigrateModels(ctx, client.DB())
	case !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate:
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, "", logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "running embedded migrations")
	return runner.Up(ctx)
}
