package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/jwtauth/blacklist"
	"github.com/MrEthical07/jwtauth/internal/flows"
	"github.com/MrEthical07/jwtauth/jwt"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTokenStore(t *testing.T) (*TokenStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMock(t)
	s := NewTokenStore(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func entry(jti string) blacklist.Entry {
	return blacklist.Entry{
		TokenID:   jti,
		UserID:    "1",
		TokenType: "refresh",
		CreatedAt: fixedNow,
		ExpiresAt: fixedNow.Add(time.Hour),
	}
}

func TestTokenStoreOutstanding(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectExec(`INSERT\s+INTO\s+outstanding_tokens.*ON\s+CONFLICT`).
		WithArgs("j1", "1", "refresh", fixedNow, fixedNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Outstanding(context.Background(), entry("j1")))

	expired := entry("old")
	expired.ExpiresAt = fixedNow.Add(-time.Second)
	require.NoError(t, s.Outstanding(context.Background(), expired))
	assert.ErrorIs(t, s.Outstanding(context.Background(), blacklist.Entry{}), blacklist.ErrInvalidEntry)
}

func TestTokenStoreBlacklist(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+blacklisted_tokens`).
		WithArgs("j1", "1", "refresh", fixedNow.Add(time.Hour), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+outstanding_tokens\s+WHERE\s+jti`).WithArgs("j1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+blacklisted_tokens`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE\s+FROM\s+outstanding_tokens`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	added, err := s.Blacklist(context.Background(), entry("j1"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Blacklist(context.Background(), entry("j1"))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestTokenStoreBlacklistWithinLeeway(t *testing.T) {
	s, mock := newTokenStore(t)
	claims := &jwt.Claims{
		TokenType: jwt.TypeRefresh,
		UserID:    "1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        "late",
			ExpiresAt: jwtlib.NewNumericDate(fixedNow.Add(-30 * time.Second)),
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+blacklisted_tokens`).
		WithArgs("late", "1", "refresh", fixedNow.Add(30*time.Second), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+outstanding_tokens\s+WHERE\s+jti`).WithArgs("late").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	added, err := s.Blacklist(context.Background(), flows.EntryFor(claims, fixedNow, time.Minute))
	require.NoError(t, err)
	assert.True(t, added)

	// Without the leeway the entry is already past retention and skipped.
	added, err = s.Blacklist(context.Background(), flows.EntryFor(claims, fixedNow, 0))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestTokenStoreIsBlacklisted(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectQuery(`(?s)SELECT\s+EXISTS.*blacklisted_tokens.*expires_at\s*>\s*\$2`).
		WithArgs("j1", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs("j2", fixedNow).
		WillReturnError(errors.New("connection refused"))

	ok, err := s.IsBlacklisted(context.Background(), "j1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.IsBlacklisted(context.Background(), "j2")
	assert.ErrorIs(t, err, blacklist.ErrUnavailable)
}

func TestTokenStoreRotate(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+blacklisted_tokens`).WithArgs("old", "1", "refresh", fixedNow.Add(time.Hour), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+outstanding_tokens`).WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+outstanding_tokens`).WithArgs("new", "1", "refresh", fixedNow, fixedNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Rotate(context.Background(), entry("old"), entry("new")))
}

func TestTokenStoreRotateFloorsOldExpiry(t *testing.T) {
	s, mock := newTokenStore(t)
	old := entry("old")
	old.ExpiresAt = fixedNow.Add(-time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+blacklisted_tokens`).WithArgs("old", "1", "refresh", fixedNow.Add(minRetention), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+outstanding_tokens`).WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+outstanding_tokens`).WithArgs("new", "1", "refresh", fixedNow, fixedNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Rotate(context.Background(), old, entry("new")))
}

func TestTokenStoreRotateLoser(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+blacklisted_tokens`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Rotate(context.Background(), entry("old"), entry("new"))
	assert.ErrorIs(t, err, blacklist.ErrAlreadyBlacklisted)
}

func TestTokenStoreRevokeUser(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectExec(`(?s)WITH\s+moved\s+AS.*DELETE\s+FROM\s+outstanding_tokens.*INSERT\s+INTO\s+blacklisted_tokens`).
		WithArgs("1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.RevokeUser(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTokenStoreFlushExpired(t *testing.T) {
	s, mock := newTokenStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE\s+FROM\s+outstanding_tokens\s+WHERE\s+expires_at\s*<=\s*\$1`).WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE\s+FROM\s+blacklisted_tokens\s+WHERE\s+expires_at\s*<=\s*\$1`).WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	n, err := s.FlushExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
