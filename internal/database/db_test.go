package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, driver Driver) *DB {
	t.Helper()
	db, err := New(Config{
		Path:   filepath.Join(t.TempDir(), "nested", name+".db"),
		Name:   name,
		Driver: driver,
	})
	if err != nil && driver == DriverMattn && strings.Contains(err.Error(), "cgo") {
		t.Skip("go-sqlite3 needs cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseDriver(t *testing.T) {
	d, err := ParseDriver("")
	require.NoError(t, err)
	assert.Equal(t, DriverModernc, d)

	d, err = ParseDriver("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, DriverMattn, d)

	_, err = ParseDriver("postgres")
	assert.Error(t, err)
}

func TestBuildConnectionString(t *testing.T) {
	modernc := buildConnectionString(DriverModernc, "/tmp/a.db", ProfileStandard)
	assert.True(t, strings.HasPrefix(modernc, "/tmp/a.db?_pragma=journal_mode(WAL)"))
	assert.Contains(t, modernc, "synchronous(NORMAL)")
	assert.Contains(t, modernc, "foreign_keys(1)")

	cache := buildConnectionString(DriverModernc, "/tmp/a.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")

	mattn := buildConnectionString(DriverMattn, "file:x?mode=memory", ProfileStandard)
	assert.Equal(t, "file:x?mode=memory&_journal_mode=WAL&_synchronous=NORMAL&_auto_vacuum=incremental&_foreign_keys=1&_busy_timeout=5000", mattn)
}

func TestNew_CreatesDirectoryAndMigrates(t *testing.T) {
	for _, driver := range []Driver{DriverModernc, DriverMattn} {
		t.Run(string(driver), func(t *testing.T) {
			db := newTestDB(t, "history", driver)

			require.NoError(t, db.Migrate())
			// idempotent
			require.NoError(t, db.Migrate())

			_, err := db.Conn().Exec(`INSERT INTO assets (asset, synced_at) VALUES ('BTC', 1)`)
			require.NoError(t, err)
			_, err = db.Conn().Exec(`INSERT INTO daily_prices (asset, date, close) VALUES ('BTC', '2024-01-01', 1.5)`)
			require.NoError(t, err)

			// foreign keys are enforced
			_, err = db.Conn().Exec(`INSERT INTO daily_prices (asset, date, close) VALUES ('NOPE', '2024-01-01', 1)`)
			assert.Error(t, err)

			assert.Equal(t, driver, db.Driver())
			assert.Equal(t, "history", db.Name())
			assert.True(t, filepath.IsAbs(db.Path()))
		})
	}
}

func TestMigrate_RunsSchema(t *testing.T) {
	db := newTestDB(t, "runs", DriverModernc)
	require.NoError(t, db.Migrate())

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count))
	assert.Zero(t, count)
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", DriverModernc)
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "scratch", DriverModernc)
	_, err := db.Conn().Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t VALUES (1)`)
		return err
	}))

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t VALUES (2)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec(`INSERT INTO t VALUES (3)`)
		panic("oops")
	})
	assert.ErrorContains(t, err, "panic in transaction")

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestHealthAndStats(t *testing.T) {
	db := newTestDB(t, "history", DriverModernc)
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	assert.NoError(t, db.QuickCheck(ctx))
	assert.NoError(t, db.HealthCheck(ctx))
	assert.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, "history", stats.Name)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}
