package cmd

import (
	"context"
	"fmt"

	"github.com/namelens/tubelens/internal/config"
	"github.com/namelens/tubelens/internal/core/store"
)

// openStore opens the configured history database and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
