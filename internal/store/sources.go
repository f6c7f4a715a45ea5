package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/factgate/internal/model"
)

// GetSourceMetrics returns the curated metrics of a domain, or nil when the
// domain is not rated
func (s *Store) GetSourceMetrics(ctx context.Context, domain string) (*model.SourceMetrics, error) {
	var m model.SourceMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT domain, name, public_trust, data_accuracy, proprietary_score
		FROM sources WHERE domain = ?
	`, strings.ToLower(domain)).Scan(&m.Domain, &m.Name, &m.PublicTrust, &m.DataAccuracy, &m.ProprietaryScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get source metrics for %s", domain)
	}
	return &m, nil
}

// SaveSource inserts or replaces a source's metrics
func (s *Store) SaveSource(ctx context.Context, m model.SourceMetrics) error {
	if m.Domain == "" {
		return errors.New("source domain is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (domain, name, public_trust, data_accuracy, proprietary_score)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			name = excluded.name,
			public_trust = excluded.public_trust,
			data_accuracy = excluded.data_accuracy,
			proprietary_score = excluded.proprietary_score
	`, strings.ToLower(m.Domain), m.Name, m.PublicTrust, m.DataAccuracy, m.ProprietaryScore)
	return errors.Wrapf(err, "save source %s", m.Domain)
}
