package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfer_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_pk TEXT NOT NULL,
		curation_type TEXT NOT NULL,
		contributor_type TEXT NOT NULL,
		contributors TEXT NOT NULL DEFAULT '[]',
		destination_affiliation TEXT NOT NULL,
		acting_user_pk TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT DEFAULT '',
		updated_pks TEXT NOT NULL DEFAULT '[]',
		failed_pks TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_record_pk ON transfer_audit(record_pk);
	CREATE INDEX IF NOT EXISTS idx_audit_outcome ON transfer_audit(outcome);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON transfer_audit(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanAudit scans a row into a TransferAudit struct.
func scanAudit(s scanner) (*TransferAudit, error) {
	entry := &TransferAudit{}
	var outcome, contributors, updatedPKs, failedPKs string

	err := s.Scan(
		&entry.ID, &entry.RecordPK, &entry.CurationType, &entry.ContributorType,
		&contributors, &entry.DestinationAffiliation, &entry.ActingUserPK,
		&outcome, &entry.Reason, &updatedPKs, &failedPKs, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Outcome = Outcome(outcome)
	if err := json.Unmarshal([]byte(contributors), &entry.Contributors); err != nil {
		return nil, fmt.Errorf("failed to decode contributors: %w", err)
	}
	if err := json.Unmarshal([]byte(updatedPKs), &entry.UpdatedPKs); err != nil {
		return nil, fmt.Errorf("failed to decode updated_pks: %w", err)
	}
	if err := json.Unmarshal([]byte(failedPKs), &entry.FailedPKs); err != nil {
		return nil, fmt.Errorf("failed to decode failed_pks: %w", err)
	}
	return entry, nil
}

func encodePKList(pks []string) (string, error) {
	if pks == nil {
		pks = []string{}
	}
	data, err := json.Marshal(pks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Record persists a transfer audit entry.
func (s *SQLiteStore) Record(ctx context.Context, entry *TransferAudit) error {
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

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_audit (
			record_pk, curation_type, contributor_type, contributors,
			destination_affiliation, acting_user_pk, outcome, reason,
			updated_pks, failed_pks, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RecordPK, entry.CurationType, entry.ContributorType, contributors,
		entry.DestinationAffiliation, entry.ActingUserPK, string(entry.Outcome),
		entry.Reason, updatedPKs, failedPKs, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = now
	return nil
}

const auditColumns = `id, record_pk, curation_type, contributor_type, contributors,
	destination_affiliation, acting_user_pk, outcome, reason, updated_pks, failed_pks, created_at`

// Get retrieves a single audit entry by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*TransferAudit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+auditColumns+" FROM transfer_audit WHERE id = ?", id)

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
func (s *SQLiteStore) ListByRecord(ctx context.Context, recordPK string, limit, offset int) ([]*TransferAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM transfer_audit WHERE record_pk = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		recordPK, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return collectAudits(rows)
}

// List returns all audit entries with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*TransferAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM transfer_audit ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return collectAudits(rows)
}

func collectAudits(rows *sql.Rows) ([]*TransferAudit, error) {
	var result []*TransferAudit
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Count returns the total number of audit entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transfer_audit").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// PruneBefore removes entries created before the cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM transfer_audit WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return result.RowsAffected()
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all audit entries to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
