package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/ignite/wbr-monitor/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"report_date", "campaign_name", "emails_sent", "opens", "goal_open_rate"}

func newSource(t *testing.T) (*Source, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSource(db, "", 0.25), mock
}

func TestRecords(t *testing.T) {
	src, mock := newSource(t)
	ny, _ := time.LoadLocation("America/New_York")

	mock.ExpectQuery(regexp.QuoteMeta(config.DefaultWarehouseQuery)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Newsletter 1 ", 1000, 200, 0.20).
			AddRow(time.Date(2024, 1, 7, 22, 0, 0, 0, ny), "Newsletter 2", 1200, 250, nil))

	recs, err := src.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Newsletter 1", recs[0].CampaignName)
	assert.InDelta(t, 0.20, recs[0].GoalOpenRate, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), recs[1].Date, "UTC calendar day")
	assert.InDelta(t, 0.25, recs[1].GoalOpenRate, 1e-9, "NULL goal takes the default")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecords_InvalidRow(t *testing.T) {
	src, mock := newSource(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "A", -1, 0, 0.2))

	_, err := src.Records(context.Background())
	assert.ErrorContains(t, err, "campaign record 1")
}

func TestRecords_RetriesQueryErrors(t *testing.T) {
	src, mock := newSource(t)
	src.WithRetry(retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "A", 10, 2, 0.2))

	recs, err := src.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecords_InvalidRowNotRetried(t *testing.T) {
	src, mock := newSource(t)
	src.WithRetry(retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "A", -1, 0, 0.2))

	_, err := src.Records(context.Background())
	assert.ErrorContains(t, err, "emails sent must be non-negative")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataset(t *testing.T) {
	src, mock := newSource(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "A", 10, 2, 0.2))

	ds, err := src.Dataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)
	assert.False(t, ds.HasAnnotations)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.WarehouseConfig{Driver: "mysql", DSN: "x"}, 0.2)
	assert.Error(t, err)

	_, err = Open(config.WarehouseConfig{Driver: "postgres"}, 0.2)
	assert.ErrorContains(t, err, "dsn is empty")
}
