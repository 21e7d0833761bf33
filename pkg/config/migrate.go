package config

import (
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	log "github.com/sirupsen/logrus"
)

func newMigrator() (*migrate.Migrate, error) {
	db, err := DB.DB()
	if err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, err
	}

	return migrate.NewWithDatabaseInstance(
		"file://"+filepath.Join("migrations"),
		"postgres",
		driver,
	)
}

// ExecuteMigrations runs all pending database migrations
func ExecuteMigrations() {
	m, err := newMigrator()
	if err != nil {
		log.Fatal("Failed to create migrate instance: ", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("Failed to run migrations: ", err)
	}

	log.Info("Database migrations completed successfully")
}

// RollbackMigration rolls back the last migration
func RollbackMigration() {
	m, err := newMigrator()
	if err != nil {
		log.Fatal("Failed to create migrate instance: ", err)
	}

	if err := m.Steps(-1); err != nil {
		log.Fatal("Failed to rollback migration: ", err)
	}

	log.Info("Migration rolled back successfully")
}
