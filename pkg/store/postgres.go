package store

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

// PostgresEntities is the optional durable Entities backing store. It is
// never required by the core's unit tests; NewMemEntities is the default
// for tests and single-process deployments.
type PostgresEntities struct {
	db *sql.DB
}

// OpenPostgres opens a *sql.DB against dsn using the lib/pq driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindServiceUnavailable, "open postgres connection", err)
	}
	return db, nil
}

func NewPostgresEntities(db *sql.DB) *PostgresEntities {
	return &PostgresEntities{db: db}
}

func (p *PostgresEntities) Create(ctx context.Context, e Entity) (Entity, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return Entity{}, apierrors.Wrap(apierrors.KindValidation, "marshal entity attributes", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO entities (id, jurisdiction_id, legal_name, entity_type, attributes) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.JurisdictionID, e.LegalName, e.EntityType, attrs)
	if err != nil {
		return Entity{}, apierrors.Wrap(apierrors.KindUpstream, "insert entity", err)
	}
	return e, nil
}

func (p *PostgresEntities) Get(ctx context.Context, id uuid.UUID) (Entity, error) {
	var e Entity
	var attrs []byte
	row := p.db.QueryRowContext(ctx,
		`SELECT id, jurisdiction_id, legal_name, entity_type, attributes FROM entities WHERE id = $1`, id)
	if err := row.Scan(&e.ID, &e.JurisdictionID, &e.LegalName, &e.EntityType, &attrs); err != nil {
		if err == sql.ErrNoRows {
			return Entity{}, apierrors.NotFound("entity %s", id)
		}
		return Entity{}, apierrors.Wrap(apierrors.KindUpstream, "query entity", err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
			return Entity{}, apierrors.Wrap(apierrors.KindInternal, "unmarshal entity attributes", err)
		}
	}
	return e, nil
}

func (p *PostgresEntities) Update(ctx context.Context, e Entity) (Entity, error) {
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return Entity{}, apierrors.Wrap(apierrors.KindValidation, "marshal entity attributes", err)
	}

	result, err := p.db.ExecContext(ctx,
		`UPDATE entities SET jurisdiction_id = $2, legal_name = $3, entity_type = $4, attributes = $5 WHERE id = $1`,
		e.ID, e.JurisdictionID, e.LegalName, e.EntityType, attrs)
	if err != nil {
		return Entity{}, apierrors.Wrap(apierrors.KindUpstream, "update entity", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return Entity{}, apierrors.Wrap(apierrors.KindUpstream, "check update result", err)
	}
	if rows == 0 {
		return Entity{}, apierrors.NotFound("entity %s", e.ID)
	}
	return e, nil
}
