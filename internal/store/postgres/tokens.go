package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrEthical07/jwtauth/blacklist"
)

// TokenStore keeps outstanding and blacklisted token ids in Postgres. Rows
// outlive their entries until FlushExpired removes them; reads ignore rows
// past expires_at, which holds the token's exp plus the parser leeway.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ blacklist.Store = (*TokenStore)(nil)

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, now: time.Now}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: db error: %v", blacklist.ErrUnavailable, err)
}

const insertOutstanding = `INSERT INTO outstanding_tokens (jti, user_id, token_type, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (jti) DO NOTHING`

const insertBlacklisted = `INSERT INTO blacklisted_tokens (jti, user_id, token_type, expires_at, blacklisted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (jti) DO NOTHING`

const deleteOutstanding = `DELETE FROM outstanding_tokens WHERE jti = $1`

func (s *TokenStore) Outstanding(ctx context.Context, e blacklist.Entry) error {
	if e.TokenID == "" {
		return blacklist.ErrInvalidEntry
	}
	now := s.now()
	if e.Remaining(now) <= 0 {
		return nil
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	if _, err := s.db.ExecContext(ctx, insertOutstanding, e.TokenID, e.UserID, e.TokenType, created.UTC(), e.ExpiresAt.UTC()); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *TokenStore) Blacklist(ctx context.Context, e blacklist.Entry) (bool, error) {
	if e.TokenID == "" {
		return false, blacklist.ErrInvalidEntry
	}
	now := s.now()
	if e.Remaining(now) <= 0 {
		return false, nil
	}

	var added bool
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, insertBlacklisted, e.TokenID, e.UserID, e.TokenType, e.ExpiresAt.UTC(), now.UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		added = n == 1
		_, err = tx.ExecContext(ctx, deleteOutstanding, e.TokenID)
		return err
	})
	if err != nil {
		return false, unavailable(err)
	}
	return added, nil
}

func (s *TokenStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM blacklisted_tokens
		 WHERE jti = $1 AND expires_at > $2)
		 `
	var found bool
	if err := s.db.QueryRowContext(ctx, query, tokenID, s.now().UTC()).Scan(&found); err != nil {
		return false, unavailable(err)
	}
	return found, nil
}

// minRetention is the shortest lifetime a rotated token's row is given.
const minRetention = time.Second

// Rotate blacklists old and records next in one transaction. The primary key
// on blacklisted_tokens serializes concurrent rotations of the same token:
// the loser inserts nothing and gets ErrAlreadyBlacklisted. The old row is
// always inserted, expiring no sooner than minRetention from now.
func (s *TokenStore) Rotate(ctx context.Context, old, next blacklist.Entry) error {
	if old.TokenID == "" || next.TokenID == "" {
		return blacklist.ErrInvalidEntry
	}
	now := s.now()
	oldExpires := old.ExpiresAt
	if floor := now.Add(minRetention); oldExpires.Before(floor) {
		oldExpires = floor
	}

	var lost bool
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, insertBlacklisted, old.TokenID, old.UserID, old.TokenType, oldExpires.UTC(), now.UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			lost = true
			return blacklist.ErrAlreadyBlacklisted
		}
		if _, err := tx.ExecContext(ctx, deleteOutstanding, old.TokenID); err != nil {
			return err
		}
		created := next.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err = tx.ExecContext(ctx, insertOutstanding, next.TokenID, next.UserID, next.TokenType, created.UTC(), next.ExpiresAt.UTC())
		return err
	})
	if lost {
		return blacklist.ErrAlreadyBlacklisted
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *TokenStore) RevokeUser(ctx context.Context, userID string) (int, error) {
	query :=
		`WITH moved AS (
		   DELETE FROM outstanding_tokens
		   WHERE user_id = $1
		   RETURNING jti, user_id, token_type, expires_at
		 )
		 INSERT INTO blacklisted_tokens (jti, user_id, token_type, expires_at, blacklisted_at)
		 SELECT jti, user_id, token_type, expires_at, $2 FROM moved
		 WHERE expires_at > $2
		 ON CONFLICT (jti) DO NOTHING
		 `
	res, err := s.db.ExecContext(ctx, query, userID, s.now().UTC())
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// FlushExpired deletes rows whose tokens have expired and returns how many
// were removed.
func (s *TokenStore) FlushExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	var total int64
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		for _, table := range []string{"outstanding_tokens", "blacklisted_tokens"} {
			res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= $1`, now)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}
