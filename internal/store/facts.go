package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

const factColumns = `id, entity, attribute, value, value_type, as_of_date, source_url, source_trust, last_verified_at`

// FindFacts returns the trusted facts for (entity, attribute). Entities
// match case-insensitively.
func (s *Store) FindFacts(ctx context.Context, entity, attribute string) ([]model.FactRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+factColumns+` FROM facts WHERE entity = ? AND attribute = ? ORDER BY id`,
		entity, attribute)
	if err != nil {
		return nil, errors.Wrap(err, "query facts")
	}
	defer func() { _ = rows.Close() }()

	var facts []model.FactRecord
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, errors.Wrap(rows.Err(), "iterate facts")
}

// GetFact returns one fact by id
func (s *Store) GetFact(ctx context.Context, id int64) (model.FactRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	fact, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FactRecord{}, errors.Wrapf(ErrNotFound, "fact %d", id)
	}
	return fact, err
}

// SaveFact inserts a fact or replaces the existing one for (entity, attribute)
func (s *Store) SaveFact(ctx context.Context, fact model.FactRecord) (int64, error) {
	return upsertFact(ctx, s.db, fact)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertFact(ctx context.Context, db execer, fact model.FactRecord) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO facts (entity, attribute, value, value_type, as_of_date, source_url, source_trust, last_verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity, attribute) DO UPDATE SET
			value = excluded.value,
			value_type = excluded.value_type,
			as_of_date = excluded.as_of_date,
			source_url = excluded.source_url,
			source_trust = excluded.source_trust,
			last_verified_at = excluded.last_verified_at
		RETURNING id
	`, fact.Entity, fact.Attribute, fact.Value, fact.ValueType, nullTime(fact.AsOfDate),
		fact.SourceURL, fact.SourceTrust, nullTime(fact.LastVerifiedAt)).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "save fact %s/%s", fact.Entity, fact.Attribute)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFact(row scanner) (model.FactRecord, error) {
	var (
		fact     model.FactRecord
		asOf     sql.NullString
		verified sql.NullString
	)
	err := row.Scan(&fact.ID, &fact.Entity, &fact.Attribute, &fact.Value, &fact.ValueType,
		&asOf, &fact.SourceURL, &fact.SourceTrust, &verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fact, err
		}
		return fact, errors.Wrap(err, "scan fact")
	}

	if fact.AsOfDate, err = parseNullTime(asOf); err != nil {
		return fact, err
	}
	if fact.LastVerifiedAt, err = parseNullTime(verified); err != nil {
		return fact, err
	}
	return fact, nil
}
