package server

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
)

type registryPGQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// pgRegistry persists compliance entities. Deliberately plain CRUD: the
// registry consumes the numbering subsystem but carries none of its
// correctness argument.
type pgRegistry struct {
	q registryPGQuerier
}

func newPGRegistry(q registryPGQuerier) *pgRegistry {
	return &pgRegistry{q: q}
}

func (s *pgRegistry) Insert(ctx context.Context, e ComplianceEntity) error {
	_, err := s.q.Exec(ctx, `
INSERT INTO traceability.entities (id, organization_id, kind, number, title, traceability_chain, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`, e.ID, e.OrganizationID, string(e.Kind), e.Number, e.Title, e.TraceabilityChain, e.CreatedAt)
	return err
}

func (s *pgRegistry) GetByNumber(ctx context.Context, orgID string, number string) (ComplianceEntity, bool, error) {
	var e ComplianceEntity
	var kind string
	err := s.q.QueryRow(ctx, `
SELECT id::text, organization_id, kind, number, title, traceability_chain, created_at
FROM traceability.entities
WHERE organization_id = $1 AND number = $2;
`, orgID, number).Scan(&e.ID, &e.OrganizationID, &kind, &e.Number, &e.Title, &e.TraceabilityChain, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ComplianceEntity{}, false, nil
	}
	if err != nil {
		return ComplianceEntity{}, false, err
	}
	e.Kind = types.EntityKind(kind)
	return e, true, nil
}

func (s *pgRegistry) ListByKind(ctx context.Context, orgID string, kind types.EntityKind) ([]ComplianceEntity, error) {
	rows, err := s.q.Query(ctx, `
SELECT id::text, organization_id, kind, number, title, traceability_chain, created_at
FROM traceability.entities
WHERE organization_id = $1 AND kind = $2
ORDER BY id;
`, orgID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplianceEntity
	for rows.Next() {
		var e ComplianceEntity
		var k string
		if err := rows.Scan(&e.ID, &e.OrganizationID, &k, &e.Number, &e.Title, &e.TraceabilityChain, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = types.EntityKind(k)
		out = append(out, e)
	}
	return out, rows.Err()
}
