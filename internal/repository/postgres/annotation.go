// Package postgres implements repositories against PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
)

const annotationSchema = `
CREATE TABLE IF NOT EXISTS wbr_annotations (
	report_date           DATE        NOT NULL,
	campaign_name         TEXT        NOT NULL,
	root_cause_hypothesis TEXT        NOT NULL DEFAULT '',
	path_to_green         TEXT        NOT NULL DEFAULT '',
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (report_date, campaign_name)
)`

// AnnotationRepo implements narrative.Repository against PostgreSQL.
type AnnotationRepo struct{ db *sql.DB }

// NewAnnotationRepo creates a Postgres-backed annotation repository.
func NewAnnotationRepo(db *sql.DB) *AnnotationRepo { return &AnnotationRepo{db: db} }

// EnsureSchema creates the annotations table if it does not exist.
func (r *AnnotationRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, annotationSchema); err != nil {
		return fmt.Errorf("create wbr_annotations: %w", err)
	}
	return nil
}

func (r *AnnotationRepo) Get(ctx context.Context, id domain.RowID) (domain.Annotation, bool, error) {
	day, err := time.Parse(domain.DateLayout, id.Date)
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("parse row date: %w", err)
	}
	var a domain.Annotation
	err = r.db.QueryRowContext(ctx, `
		SELECT root_cause_hypothesis, path_to_green
		FROM wbr_annotations
		WHERE report_date = $1 AND campaign_name = $2
	`, day, id.CampaignName).Scan(&a.RootCauseHypothesis, &a.PathToGreen)
	if err == sql.ErrNoRows {
		return domain.Annotation{}, false, nil
	}
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("get annotation: %w", err)
	}
	return a, true, nil
}

func (r *AnnotationRepo) Put(ctx context.Context, id domain.RowID, a domain.Annotation) error {
	day, err := time.Parse(domain.DateLayout, id.Date)
	if err != nil {
		return fmt.Errorf("parse row date: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO wbr_annotations
			(report_date, campaign_name, root_cause_hypothesis, path_to_green, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (report_date, campaign_name) DO UPDATE SET
			root_cause_hypothesis = EXCLUDED.root_cause_hypothesis,
			path_to_green = EXCLUDED.path_to_green,
			updated_at = NOW()
	`, day, id.CampaignName, a.RootCauseHypothesis, a.PathToGreen)
	if err != nil {
		return fmt.Errorf("upsert annotation: %w", err)
	}
	return nil
}

func (r *AnnotationRepo) All(ctx context.Context) (map[domain.RowID]domain.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report_date, campaign_name, root_cause_hypothesis, path_to_green
		FROM wbr_annotations
	`)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.RowID]domain.Annotation)
	for rows.Next() {
		var (
			day  time.Time
			name string
			a    domain.Annotation
		)
		if err := rows.Scan(&day, &name, &a.RootCauseHypothesis, &a.PathToGreen); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out[domain.NewRowID(day, name)] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return out, nil
}

func (r *AnnotationRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wbr_annotations`); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	return nil
}
