package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

const evaluationColumns = `id, entity, attribute, value, value_type, source_url, source_trust,
	source_trust_score, recency_score, consensus_score,
	source_trust_weight, recency_weight, consensus_weight,
	trust_score, evaluation_notes, as_of_date, evaluated_at, status`

// FindEvaluations returns the non-rejected evaluations for (entity,
// attribute), highest trust first. A window restricts as_of_date years.
func (s *Store) FindEvaluations(ctx context.Context, entity, attribute string, window *model.YearWindow) ([]model.CredibleEvaluation, error) {
	query := `SELECT id, entity, attribute, value, source_url, source_trust, as_of_date, trust_score, evaluated_at
		FROM facts_evaluation
		WHERE entity = ? AND attribute = ? AND status <> ?`
	args := []any{entity, attribute, string(model.StatusRejected)}

	if window != nil {
		query += ` AND as_of_date IS NOT NULL AND CAST(substr(as_of_date, 1, 4) AS INTEGER) BETWEEN ? AND ?`
		args = append(args, window.From, window.To)
	}
	query += ` ORDER BY COALESCE(trust_score, -1) DESC, evaluated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query evaluations")
	}
	defer func() { _ = rows.Close() }()

	var out []model.CredibleEvaluation
	for rows.Next() {
		var (
			ev        model.CredibleEvaluation
			asOf      sql.NullString
			trust     sql.NullInt64
			evaluated string
		)
		if err := rows.Scan(&ev.ID, &ev.Entity, &ev.Attribute, &ev.Value, &ev.SourceURL, &ev.SourceTrust,
			&asOf, &trust, &evaluated); err != nil {
			return nil, errors.Wrap(err, "scan evaluation")
		}
		if ev.AsOfDate, err = parseNullTime(asOf); err != nil {
			return nil, err
		}
		if ev.EvaluatedAt, err = parseTime(evaluated); err != nil {
			return nil, err
		}
		if trust.Valid {
			v := int(trust.Int64)
			ev.TrustScore = &v
		}
		out = append(out, ev)
	}
	return out, errors.Wrap(rows.Err(), "iterate evaluations")
}

// SaveEvaluation inserts a new evaluation and returns its id. An empty
// status defaults to evaluating. Records without weights were never scored
// and keep a NULL trust score.
func (s *Store) SaveEvaluation(ctx context.Context, ev model.FactsEvaluation) (int64, error) {
	if ev.Status == "" {
		ev.Status = model.StatusEvaluating
	}
	if ev.EvaluatedAt.IsZero() {
		ev.EvaluatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO facts_evaluation (entity, attribute, value, value_type, source_url, source_trust,
			source_trust_score, recency_score, consensus_score,
			source_trust_weight, recency_weight, consensus_weight,
			trust_score, evaluation_notes, as_of_date, evaluated_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Entity, ev.Attribute, ev.Value, ev.ValueType, ev.SourceURL, ev.SourceTrust,
		ev.SourceTrustScore, ev.RecencyScore, ev.ConsensusScore,
		ev.Weights.SourceTrust, ev.Weights.Recency, ev.Weights.Consensus,
		nullScore(ev), ev.Notes, nullTime(ev.AsOfDate), formatTime(ev.EvaluatedAt), string(ev.Status))
	if err != nil {
		return 0, errors.Wrapf(err, "save evaluation %s/%s", ev.Entity, ev.Attribute)
	}
	return res.LastInsertId()
}

// GetEvaluation returns one evaluation by id
func (s *Store) GetEvaluation(ctx context.Context, id int64) (model.FactsEvaluation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM facts_evaluation WHERE id = ?`, id)
	ev, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, errors.Wrapf(ErrNotFound, "evaluation %d", id)
	}
	return ev, err
}

// ListEvaluations returns evaluations in any of the given statuses, oldest
// first. No statuses means all of them.
func (s *Store) ListEvaluations(ctx context.Context, statuses ...model.EvaluationStatus) ([]model.FactsEvaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM facts_evaluation`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query evaluations")
	}
	defer func() { _ = rows.Close() }()

	var out []model.FactsEvaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, errors.Wrap(rows.Err(), "iterate evaluations")
}

// ListPendingEvaluations returns evaluations that have not been promoted
// or rejected yet
func (s *Store) ListPendingEvaluations(ctx context.Context) ([]model.FactsEvaluation, error) {
	return s.ListEvaluations(ctx, model.StatusEvaluating, model.StatusPending)
}

// UpdateEvaluationStatus moves an evaluation to status. Promotion also
// copies the value into the trusted facts table, in the same transaction.
func (s *Store) UpdateEvaluationStatus(ctx context.Context, id int64, status model.EvaluationStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin status update")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE facts_evaluation SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return errors.Wrapf(err, "update status of evaluation %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "evaluation %d", id)
	}

	if status == model.StatusPromoted {
		ev, err := scanEvaluation(tx.QueryRowContext(ctx,
			`SELECT `+evaluationColumns+` FROM facts_evaluation WHERE id = ?`, id))
		if err != nil {
			return errors.Wrapf(err, "load evaluation %d", id)
		}

		now := s.now()
		fact := model.FactRecord{
			Entity:         ev.Entity,
			Attribute:      ev.Attribute,
			Value:          ev.Value,
			ValueType:      ev.ValueType,
			AsOfDate:       ev.AsOfDate,
			SourceURL:      ev.SourceURL,
			SourceTrust:    ev.SourceTrust,
			LastVerifiedAt: &now,
		}
		if _, err := upsertFact(ctx, tx, fact); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(), "commit status update")
}

// UpdateEvaluationScores stores a rescored evaluation's component scores,
// weights and trust score
func (s *Store) UpdateEvaluationScores(ctx context.Context, ev model.FactsEvaluation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE facts_evaluation SET
			source_trust_score = ?, recency_score = ?, consensus_score = ?,
			source_trust_weight = ?, recency_weight = ?, consensus_weight = ?,
			trust_score = ?, evaluation_notes = ?
		WHERE id = ?
	`, ev.SourceTrustScore, ev.RecencyScore, ev.ConsensusScore,
		ev.Weights.SourceTrust, ev.Weights.Recency, ev.Weights.Consensus,
		ev.TrustScore, ev.Notes, ev.ID)
	if err != nil {
		return errors.Wrapf(err, "update scores of evaluation %d", ev.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "evaluation %d", ev.ID)
	}
	return nil
}

// CountSources returns the number of distinct source URLs among the
// non-rejected evaluations for (entity, attribute)
func (s *Store) CountSources(ctx context.Context, entity, attribute string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT source_url) FROM facts_evaluation
		WHERE entity = ? AND attribute = ? AND status <> ? AND source_url <> ''
	`, entity, attribute, string(model.StatusRejected)).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count sources for %s/%s", entity, attribute)
	}
	return n, nil
}

// nullScore keeps a computed zero apart from an evaluation that was never scored
func nullScore(ev model.FactsEvaluation) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(ev.TrustScore), Valid: ev.TrustScore != 0 || !ev.Weights.IsZero()}
}

func scanEvaluation(row scanner) (model.FactsEvaluation, error) {
	var (
		ev        model.FactsEvaluation
		trust     sql.NullInt64
		asOf      sql.NullString
		evaluated string
		status    string
	)
	err := row.Scan(&ev.ID, &ev.Entity, &ev.Attribute, &ev.Value, &ev.ValueType, &ev.SourceURL, &ev.SourceTrust,
		&ev.SourceTrustScore, &ev.RecencyScore, &ev.ConsensusScore,
		&ev.Weights.SourceTrust, &ev.Weights.Recency, &ev.Weights.Consensus,
		&trust, &ev.Notes, &asOf, &evaluated, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, errors.Wrap(err, "scan evaluation")
	}

	ev.TrustScore = int(trust.Int64)
	ev.Status = model.EvaluationStatus(status)
	if ev.AsOfDate, err = parseNullTime(asOf); err != nil {
		return ev, err
	}
	if ev.EvaluatedAt, err = parseTime(evaluated); err != nil {
		return ev, err
	}
	return ev, nil
}
