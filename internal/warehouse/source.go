// Package warehouse loads campaign records with a SQL query against
// PostgreSQL or Snowflake.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"                   // PostgreSQL driver
	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/pkg/retry"
)

// Source runs the configured query. The query must return, in order:
// report date, campaign name, emails sent, opens and goal open rate (the
// goal may be NULL).
type Source struct {
	db          *sql.DB
	query       string
	timeout     time.Duration
	defaultGoal float64
	retry       retry.Policy
}

// Open connects to the configured warehouse.
func Open(cfg config.WarehouseConfig, defaultGoal float64) (*Source, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver != "postgres" && driver != "snowflake" {
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
	dsn := cfg.DataSourceName()
	if dsn == "" {
		return nil, fmt.Errorf("warehouse dsn is empty")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := NewSource(db, cfg.Query, defaultGoal).WithRetry(retry.New(2))
	s.timeout = cfg.Timeout()
	return s, nil
}

// NewSource wraps an open database handle.
func NewSource(db *sql.DB, query string, defaultGoal float64) *Source {
	if query == "" {
		query = config.DefaultWarehouseQuery
	}
	return &Source{db: db, query: query, defaultGoal: defaultGoal}
}

// WithRetry retries failed queries under p. Scan and validation failures
// are never retried.
func (s *Source) WithRetry(p retry.Policy) *Source {
	s.retry = p
	return s
}

// Records runs the query and returns validated records.
func (s *Source) Records(ctx context.Context) ([]domain.CampaignRecord, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var out []domain.CampaignRecord
	err := s.retry.Do(ctx, "warehouse query", func(ctx context.Context) error {
		var err error
		out, err = s.fetch(ctx)
		return err
	})
	return out, err
}

func (s *Source) fetch(ctx context.Context) ([]domain.CampaignRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query campaign records: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignRecord
	for n := 1; rows.Next(); n++ {
		var (
			r    domain.CampaignRecord
			date time.Time
			goal sql.NullFloat64
		)
		if err := rows.Scan(&date, &r.CampaignName, &r.EmailsSent, &r.Opens, &goal); err != nil {
			return nil, retry.Permanent(fmt.Errorf("scan campaign record %d: %w", n, err))
		}
		date = date.UTC()
		r.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		r.CampaignName = strings.TrimSpace(r.CampaignName)
		r.GoalOpenRate = s.defaultGoal
		if goal.Valid {
			r.GoalOpenRate = goal.Float64
		}
		if err := r.Validate(); err != nil {
			return nil, retry.Permanent(fmt.Errorf("campaign record %d: %w", n, err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign records: %w", err)
	}
	return out, nil
}

// Dataset wraps Records for the session loader.
func (s *Source) Dataset(ctx context.Context) (*ingest.Dataset, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return &ingest.Dataset{Records: recs}, nil
}

// Ping tests the database connection
func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Source) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
