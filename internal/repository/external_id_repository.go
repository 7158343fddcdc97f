package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/benglish/academic-core/internal/models"
)

// ExternalIDRepository maps stable seed identifiers to database rows.
type ExternalIDRepository struct {
	db *sqlx.DB
}

// NewExternalIDRepository constructs the repository.
func NewExternalIDRepository(db *sqlx.DB) *ExternalIDRepository {
	return &ExternalIDRepository{db: db}
}

// Find returns the mapping for (model, xmlID).
func (r *ExternalIDRepository) Find(ctx context.Context, model, xmlID string) (*models.ExternalID, error) {
	const query = `SELECT model, xml_id, record_id, noupdate FROM external_ids WHERE model = $1 AND xml_id = $2`
	var ext models.ExternalID
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &ext, query, model, xmlID); err != nil {
		return nil, err
	}
	return &ext, nil
}

// Save records or refreshes a mapping.
func (r *ExternalIDRepository) Save(ctx context.Context, ext *models.ExternalID) error {
	const query = `INSERT INTO external_ids (model, xml_id, record_id, noupdate)
VALUES (:model, :xml_id, :record_id, :noupdate)
ON CONFLICT (model, xml_id) DO UPDATE SET record_id = EXCLUDED.record_id, noupdate = EXCLUDED.noupdate`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, ext); err != nil {
		return fmt.Errorf("save external id %s: %w", ext.XMLID, err)
	}
	return nil
}
