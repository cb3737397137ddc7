package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLock_Exclusive(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "row-1", time.Minute)
	b := NewRedisLock(client, "row-1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the key, so its release is a no-op
	require.NoError(t, b.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLock(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	factory := NewFactory(client, nil, time.Minute)
	require.NotNil(t, factory)

	called := false
	err := WithLock(ctx, factory("row-2"), func() error {
		called = true
		// nested attempt on the same key must fail
		inner := WithLock(ctx, factory("row-2"), func() error { return nil })
		assert.True(t, errors.Is(inner, ErrNotAcquired))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	// released after fn returns
	require.NoError(t, WithLock(ctx, factory("row-2"), func() error { return nil }))
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "row-3")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, WithLock(context.Background(), l, func() error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Held(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "row-4")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	called := false
	err = WithLock(context.Background(), l, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, called)
	assert.Nil(t, l.conn)
	assert.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewFactory_NoBackend(t *testing.T) {
	assert.Nil(t, NewFactory(nil, nil, time.Second))
}
