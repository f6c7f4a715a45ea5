package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

// AppendGateDecision adds a decision to the append-only decision log
func (s *Store) AppendGateDecision(ctx context.Context, d model.GateDecision) error {
	criteria, err := json.Marshal(d.Criteria)
	if err != nil {
		return errors.Wrap(err, "marshal criteria")
	}
	metrics, err := json.Marshal(d.Metrics)
	if err != nil {
		return errors.Wrap(err, "marshal metrics")
	}
	decidedAt := d.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = s.now()
	}

	var evaluationID sql.NullInt64
	if d.EvaluationID != 0 {
		evaluationID = sql.NullInt64{Int64: d.EvaluationID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gate_decisions (id, evaluation_id, entity, attribute, passed, tier, reason, criteria, metrics, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, evaluationID, d.Entity, d.Attribute, d.Passed, d.Tier, d.Reason,
		string(criteria), string(metrics), formatTime(decidedAt))
	return errors.Wrapf(err, "append gate decision %s", d.ID)
}

// ListGateDecisions returns logged decisions for an evaluation, oldest first.
// evaluationID 0 lists every decision.
func (s *Store) ListGateDecisions(ctx context.Context, evaluationID int64) ([]model.GateDecision, error) {
	query := `SELECT id, evaluation_id, entity, attribute, passed, tier, reason, criteria, metrics, decided_at
		FROM gate_decisions`
	var args []any
	if evaluationID != 0 {
		query += ` WHERE evaluation_id = ?`
		args = append(args, evaluationID)
	}
	query += ` ORDER BY decided_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query gate decisions")
	}
	defer func() { _ = rows.Close() }()

	var out []model.GateDecision
	for rows.Next() {
		var (
			d                 model.GateDecision
			evID              sql.NullInt64
			criteria, metrics string
			decidedAt         string
		)
		if err := rows.Scan(&d.ID, &evID, &d.Entity, &d.Attribute, &d.Passed, &d.Tier, &d.Reason,
			&criteria, &metrics, &decidedAt); err != nil {
			return nil, errors.Wrap(err, "scan gate decision")
		}
		d.EvaluationID = evID.Int64
		if err := json.Unmarshal([]byte(criteria), &d.Criteria); err != nil {
			return nil, errors.Wrapf(err, "decode criteria of decision %s", d.ID)
		}
		if err := json.Unmarshal([]byte(metrics), &d.Metrics); err != nil {
			return nil, errors.Wrapf(err, "decode metrics of decision %s", d.ID)
		}
		if d.DecidedAt, err = parseTime(decidedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "iterate gate decisions")
}

// RecordUnmetRequest logs a claim that could not be checked for lack of data
func (s *Store) RecordUnmetRequest(ctx context.Context, req model.UnmetRequest) error {
	requestedAt := req.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unmet_requests (entity, attribute, claim_value, context, requested_at)
		VALUES (?, ?, ?, ?, ?)
	`, req.Entity, req.Attribute, req.ClaimValue, req.Context, formatTime(requestedAt))
	return errors.Wrapf(err, "record unmet request %s/%s", req.Entity, req.Attribute)
}

// UnmetSummary counts unmet requests for one (entity, attribute)
type UnmetSummary struct {
	Entity    string `json:"entity"`
	Attribute string `json:"attribute"`
	Count     int    `json:"count"`
	LastValue string `json:"last_value"`
}

// ListUnmetRequests groups unmet requests by key, most requested first
func (s *Store) ListUnmetRequests(ctx context.Context, limit int) ([]UnmetSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity, attribute, COUNT(*) AS n,
			(SELECT u2.claim_value FROM unmet_requests u2
			 WHERE u2.entity = u.entity AND u2.attribute = u.attribute
			 ORDER BY u2.id DESC LIMIT 1)
		FROM unmet_requests u
		GROUP BY entity, attribute
		ORDER BY n DESC, entity, attribute
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query unmet requests")
	}
	defer func() { _ = rows.Close() }()

	var out []UnmetSummary
	for rows.Next() {
		var u UnmetSummary
		if err := rows.Scan(&u.Entity, &u.Attribute, &u.Count, &u.LastValue); err != nil {
			return nil, errors.Wrap(err, "scan unmet request")
		}
		out = append(out, u)
	}
	return out, errors.Wrap(rows.Err(), "iterate unmet requests")
}

// SaveAssayResult persists an assay result for the promotion gate
func (s *Store) SaveAssayResult(ctx context.Context, result *model.RetrievalAssayResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal assay result")
	}
	executedAt := result.ExecutedAt
	if executedAt.IsZero() {
		executedAt = s.now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assay_results (assay_id, assay, entity, attribute, claimed_value, verified, agreement, result, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.AssayID, result.Assay, result.Request.Entity, result.Request.Attribute, result.Request.ClaimedValue,
		result.Verified, result.ConsensusResult.Agreement, string(payload), formatTime(executedAt))
	return errors.Wrapf(err, "save assay result %s", result.AssayID)
}

// ListAssays returns the assays for (entity, attribute), newest first
func (s *Store) ListAssays(ctx context.Context, entity, attribute string) ([]*model.RetrievalAssayResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result FROM assay_results
		WHERE entity = ? AND attribute = ?
		ORDER BY executed_at DESC, rowid DESC
	`, entity, attribute)
	if err != nil {
		return nil, errors.Wrapf(err, "query assays for %s/%s", entity, attribute)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.RetrievalAssayResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan assay result")
		}
		var result model.RetrievalAssayResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, errors.Wrap(err, "decode assay result")
		}
		out = append(out, &result)
	}
	return out, errors.Wrap(rows.Err(), "iterate assay results")
}
