package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/domain"
)

// ObjectRepository persists the object updates produced by a transfer. Every
// update rewrites the ownership columns and the matching document fields in
// one statement, so a partially applied transfer never leaves a row whose
// column and document ownership disagree.
type ObjectRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewObjectRepository creates a new object repository
func NewObjectRepository(db *pgxpool.Pool, logger *logrus.Logger) *ObjectRepository {
	return &ObjectRepository{
		db:  db,
		log: logger,
	}
}

// UpdateObject applies one ownership update. A nil NewAffiliation clears the
// affiliation column and strips the field from the document; an interpretation
// root update also replaces the embedded provisionalVariant.
func (r *ObjectRepository) UpdateObject(ctx context.Context, update domain.ObjectUpdate) error {
	var query string
	args := []any{update.PK, update.ItemType, update.ModifiedBy}

	if update.NewAffiliation != nil {
		query = `
			UPDATE curation_objects
			SET affiliation = $4,
			    modified_by = $3,
			    last_modified = now(),
			    document = jsonb_set(jsonb_set(document, '{affiliation}', to_jsonb($4::text)), '{modified_by}', to_jsonb($3::text))
			WHERE pk = $1 AND item_type = $2`
		args = append(args, *update.NewAffiliation)
	} else {
		query = `
			UPDATE curation_objects
			SET affiliation = NULL,
			    modified_by = $3,
			    last_modified = now(),
			    document = jsonb_set(document - 'affiliation', '{modified_by}', to_jsonb($3::text))
			WHERE pk = $1 AND item_type = $2`
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"pk":        update.PK,
			"item_type": update.ItemType,
			"error":     err,
		}).Error("Failed to update object ownership")
		return fmt.Errorf("updating object %s: %w", update.PK, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("object %s (%s): %w", update.PK, update.ItemType, domain.ErrNotFound)
	}

	if update.ProvisionalVariant != nil {
		if err := r.writeProvisionalVariant(ctx, update.PK, update.ProvisionalVariant); err != nil {
			return err
		}
	}

	return nil
}

func (r *ObjectRepository) writeProvisionalVariant(ctx context.Context, pk string, pv domain.ProvisionalVariant) error {
	payload, err := json.Marshal(pv)
	if err != nil {
		return fmt.Errorf("marshaling provisionalVariant for %s: %w", pk, err)
	}

	query := `
		UPDATE curation_objects
		SET document = jsonb_set(document, '{provisionalVariant}', $2::jsonb)
		WHERE pk = $1`
	if _, err := r.db.Exec(ctx, query, pk, payload); err != nil {
		return fmt.Errorf("updating provisionalVariant for %s: %w", pk, err)
	}
	return nil
}
