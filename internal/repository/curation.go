package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/domain"
)

// CurationRepository loads curation record graphs and runs the
// duplicate-interpretation query. Each record row carries the fully hydrated
// evidence graph as a JSONB document; ownership fields are duplicated into
// columns so duplicate checks never parse documents.
type CurationRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCurationRepository creates a new curation repository
func NewCurationRepository(db *pgxpool.Pool, logger *logrus.Logger) *CurationRepository {
	return &CurationRepository{
		db:  db,
		log: logger,
	}
}

// LoadGDM fetches a gene-disease record with its nested evidence graph.
func (r *CurationRepository) LoadGDM(ctx context.Context, pk string) (*domain.GDM, error) {
	doc, err := r.loadDocument(ctx, pk, "gdm")
	if err != nil {
		return nil, err
	}

	var gdm domain.GDM
	if err := json.Unmarshal(doc, &gdm); err != nil {
		return nil, fmt.Errorf("unmarshaling GDM %s: %w", pk, err)
	}

	r.log.WithFields(logrus.Fields{
		"gdm_pk":          pk,
		"annotations":     len(gdm.Annotations),
		"classifications": len(gdm.ProvisionalClassifications),
	}).Debug("Loaded GDM graph")

	return &gdm, nil
}

// LoadInterpretation fetches a variant interpretation with its evaluations
// and curated evidence.
func (r *CurationRepository) LoadInterpretation(ctx context.Context, pk string) (*domain.Interpretation, error) {
	doc, err := r.loadDocument(ctx, pk, "interpretation")
	if err != nil {
		return nil, err
	}

	var interp domain.Interpretation
	if err := json.Unmarshal(doc, &interp); err != nil {
		return nil, fmt.Errorf("unmarshaling interpretation %s: %w", pk, err)
	}

	r.log.WithFields(logrus.Fields{
		"interpretation_pk": pk,
		"evaluations":       len(interp.Evaluations),
		"curated_evidence":  len(interp.CuratedEvidences),
	}).Debug("Loaded interpretation graph")

	return &interp, nil
}

func (r *CurationRepository) loadDocument(ctx context.Context, pk, itemType string) ([]byte, error) {
	query := `SELECT document FROM curation_objects WHERE pk = $1 AND item_type = $2`

	var doc []byte
	err := r.db.QueryRow(ctx, query, pk, itemType).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%s %s: %w", itemType, pk, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"pk":        pk,
			"item_type": itemType,
			"error":     err,
		}).Error("Failed to load curation record")
		return nil, fmt.Errorf("loading %s %s: %w", itemType, pk, err)
	}
	return doc, nil
}

// FindInterpretations returns interpretations on the filter's variant owned
// by the given affiliation or creator. Exactly one of Affiliation and
// SubmittedBy is expected to be set.
func (r *CurationRepository) FindInterpretations(ctx context.Context, filter domain.InterpretationFilter) ([]domain.Interpretation, error) {
	query := `
		SELECT document FROM curation_objects
		WHERE item_type = 'interpretation' AND variant = $1`
	args := []any{filter.Variant}

	switch {
	case filter.Affiliation != "":
		query += ` AND affiliation = $2`
		args = append(args, filter.Affiliation)
	case filter.SubmittedBy != "":
		query += ` AND submitted_by = $2`
		args = append(args, filter.SubmittedBy)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interpretations: %w", err)
	}
	defer rows.Close()

	var found []domain.Interpretation
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning interpretation row: %w", err)
		}
		var interp domain.Interpretation
		if err := json.Unmarshal(doc, &interp); err != nil {
			return nil, fmt.Errorf("unmarshaling interpretation: %w", err)
		}
		found = append(found, interp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interpretation rows: %w", err)
	}

	return found, nil
}
