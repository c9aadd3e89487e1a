// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/spaces/internal/config"
	"github.com/aristath/spaces/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the spaces database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// spaces.db - balances and the append-only ledger
	spacesDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "spaces",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize spaces database: %w", err)
	}

	if err := spacesDB.Migrate(); err != nil {
		spacesDB.Close()
		return nil, fmt.Errorf("failed to migrate spaces database: %w", err)
	}
	container.SpacesDB = spacesDB

	log.Info().Str("path", spacesDB.Path()).Msg("Spaces database initialized")

	return container, nil
}
