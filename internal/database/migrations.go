package database

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// MigrationRunner applies the curation schema: the users directory, the
// curation_objects document table, and the transfer_audit trail.
type MigrationRunner struct {
	migrate *migrate.Migrate
	source  string
	log     *logrus.Logger
}

// NewMigrationRunner creates a runner for the SQL files under migrationsPath.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	source := fmt.Sprintf("file://%s", migrationsPath)
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		source:  source,
		log:     logger,
	}, nil
}

// Up applies all pending migrations.
func (mr *MigrationRunner) Up() error {
	mr.log.WithField("source", mr.source).Info("Applying curation schema migrations")

	if err := mr.migrate.Up(); err != nil {
		if err == migrate.ErrNoChange {
			mr.log.Info("Curation schema is up to date")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	mr.logVersion("Curation schema migrated")
	return nil
}

// Down rolls back a single migration step.
func (mr *MigrationRunner) Down() error {
	if err := mr.migrate.Steps(-1); err != nil {
		if err == migrate.ErrNoChange {
			mr.log.Info("No curation schema migrations to roll back")
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}

	mr.logVersion("Curation schema rolled back one step")
	return nil
}

// Version returns the current schema version and whether it is dirty.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

func (mr *MigrationRunner) logVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read schema version")
		return
	}
	mr.log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info(msg)
}

// Close releases the migration source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
