package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL audit store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL audit store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Record persists a transfer audit entry.
func (s *PostgresStore) Record(ctx context.Context, entry *TransferAudit) error {
	now := time.Now()

	contributors, err := encodePKList(entry.Contributors)
	if err != nil {
		return fmt.Errorf("failed to encode contributors: %w", err)
	}
	updatedPKs, err := encodePKList(entry.UpdatedPKs)
	if err != nil {
		return fmt.Errorf("failed to encode updated_pks: %w", err)
	}
	failedPKs, err := encodePKList(entry.FailedPKs)
	if err != nil {
		return fmt.Errorf("failed to encode failed_pks: %w", err)
	}

	query := `
		INSERT INTO transfer_audit (
			record_pk, curation_type, contributor_type, contributors,
			destination_affiliation, acting_user_pk, outcome, reason,
			updated_pks, failed_pks, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err = s.db.QueryRowContext(ctx, query,
		entry.RecordPK, entry.CurationType, entry.ContributorType, contributors,
		entry.DestinationAffiliation, entry.ActingUserPK, string(entry.Outcome),
		entry.Reason, updatedPKs, failedPKs, now,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	entry.CreatedAt = now
	return nil
}

// Get retrieves a single audit entry by ID.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*TransferAudit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+auditColumns+" FROM transfer_audit WHERE id = $1", id)

	entry, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// ListByRecord returns audit entries for a curation record, newest first.
func (s *PostgresStore) ListByRecord(ctx context.Context, recordPK string, limit, offset int) ([]*TransferAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM transfer_audit WHERE record_pk = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		recordPK, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return collectAudits(rows)
}

// List returns all audit entries with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*TransferAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM transfer_audit ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return collectAudits(rows)
}

// Count returns the total number of audit entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transfer_audit").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// PruneBefore removes entries created before the cutoff.
func (s *PostgresStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM transfer_audit WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return result.RowsAffected()
}

// ExportJSON exports all audit entries to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	export := &AuditExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Entries:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
