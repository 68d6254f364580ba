package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)
}

func TestMigrateError(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	assert.EqualError(t, Migrate(context.Background(), db), "boom")
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+t`).WillReturnError(errors.New("fail"))
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "UPDATE t SET v = 1")
		return err
	})
	assert.EqualError(t, err, "fail")
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil }))
}
