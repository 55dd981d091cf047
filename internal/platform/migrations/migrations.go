// Package migrations centralizes the gormigrate versions applied at startup.
package migrations

import (
	"fmt"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/marcelojr/awards-night/internal/platform/storage/postgres"
)

func Run(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil db")
	}

	// gormigrate keeps migrations versioned instead of relying on bare AutoMigrate in production.
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608010001_document_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(postgres.MigrationModels()...)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("document_snapshots", "documents")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: apply failed: %w", err)
	}

	return nil
}
