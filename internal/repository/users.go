// Package repository contains the PostgreSQL-backed implementations of the
// transfer engine's external collaborators: the user directory, the curation
// record loader, the duplicate-interpretation query, and the object store.
// Curation records live as fully hydrated JSONB documents, keyed by PK with
// ownership columns lifted out for querying.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/domain"
)

// UserRepository resolves user identities from the users table.
type UserRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: logger,
	}
}

// LookupUserPKByEmail returns the PK of the user registered under email.
func (r *UserRepository) LookupUserPKByEmail(ctx context.Context, email string) (string, error) {
	query := `SELECT pk FROM users WHERE lower(email) = lower($1)`

	var pk string
	err := r.db.QueryRow(ctx, query, email).Scan(&pk)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"email": email,
			"error": err,
		}).Error("Failed to look up user by email")
		return "", fmt.Errorf("looking up user by email: %w", err)
	}

	return pk, nil
}
