package domain

import (
	"context"
)

// UserDirectory resolves user identities for transfer requests.
type UserDirectory interface {
	// LookupUserPKByEmail returns the PK for the user registered under email,
	// or ErrNotFound.
	LookupUserPKByEmail(ctx context.Context, email string) (string, error)
}

// CurationLoader fetches a curation record with its nested evidence graph
// fully hydrated.
type CurationLoader interface {
	LoadGDM(ctx context.Context, pk string) (*GDM, error)
	LoadInterpretation(ctx context.Context, pk string) (*Interpretation, error)
}

// InterpretationFilter narrows the duplicate-interpretation query. Exactly one
// of Affiliation and SubmittedBy is set.
type InterpretationFilter struct {
	Variant     string
	Affiliation string
	SubmittedBy string
}

// InterpretationFinder runs the live duplicate-interpretation query against
// the curation data service.
type InterpretationFinder interface {
	FindInterpretations(ctx context.Context, filter InterpretationFilter) ([]Interpretation, error)
}

// ObjectStore persists individual object updates produced by a transfer.
type ObjectStore interface {
	// UpdateObject applies one ownership update. Implementations route on
	// update.ItemType to the right collection/endpoint.
	UpdateObject(ctx context.Context, update ObjectUpdate) error
}

// ConfigManager provides typed access to service configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetRegistryConfig() *RegistryConfig
	GetTransferConfig() *TransferConfig
	Validate() error
	IsProduction() bool
}
