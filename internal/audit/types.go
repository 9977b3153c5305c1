// Package audit provides persistent audit records for ownership transfers.
// Every transfer attempt is recorded with its outcome so curators can trace
// who moved which record, when, and what happened to it.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/clingen-curation-server/internal/domain"
)

// Outcome represents the final state of a transfer attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomePartial   Outcome = "partial"
)

// TransferAudit represents one recorded transfer attempt.
type TransferAudit struct {
	ID                     int64     `json:"id,omitempty"`
	RecordPK               string    `json:"record_pk"`                // GDM or interpretation being transferred
	CurationType           string    `json:"curation_type"`            // gdm or interpretation
	ContributorType        string    `json:"contributor_type"`         // individual or affiliation
	Contributors           []string  `json:"contributors"`             // resolved contributor identifiers
	DestinationAffiliation string    `json:"destination_affiliation"`  // "0" means no affiliation
	ActingUserPK           string    `json:"acting_user_pk"`           // user who requested the transfer
	Outcome                Outcome   `json:"outcome"`
	Reason                 string    `json:"reason,omitempty"`         // rejection reason, if any
	UpdatedPKs             []string  `json:"updated_pks,omitempty"`    // objects reassigned
	FailedPKs              []string  `json:"failed_pks,omitempty"`     // objects that failed to update
	CreatedAt              time.Time `json:"created_at"`
}

// Store defines the interface for transfer audit storage operations.
// Audit records are append-only; there is no update path.
type Store interface {
	// Record persists a transfer audit entry.
	Record(ctx context.Context, entry *TransferAudit) error

	// Get retrieves a single audit entry by ID.
	Get(ctx context.Context, id int64) (*TransferAudit, error)

	// ListByRecord returns audit entries for a curation record, newest first.
	ListByRecord(ctx context.Context, recordPK string, limit, offset int) ([]*TransferAudit, error)

	// List returns all audit entries with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*TransferAudit, error)

	// Count returns the total number of audit entries.
	Count(ctx context.Context) (int64, error)

	// PruneBefore removes entries created before the cutoff.
	// Returns the number of entries removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ExportJSON exports all audit entries to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// AuditExport represents the JSON export format.
type AuditExport struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Entries    []*TransferAudit `json:"entries"`
}

// NewStore creates an audit store for the configured backend.
func NewStore(config *domain.AuditConfig) (Store, error) {
	switch config.Backend {
	case "sqlite":
		store, err := NewSQLiteStore(config.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStoreFromURL(config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", config.Backend)
	}
}
