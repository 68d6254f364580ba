package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/jwtauth"
)

// Users stores accounts and implements jwtauth.UserProvider.
type Users struct {
	db DBTX
}

var _ jwtauth.UserProvider = (*Users)(nil)

func NewUsers(db DBTX) *Users {
	return &Users{db: db}
}

// NewUser is the input of Create.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Staff        bool
}

// Create inserts an active user and returns the stored record. A taken
// username returns jwtauth.ErrDuplicateUser.
func (r *Users) Create(ctx context.Context, u NewUser) (jwtauth.UserRecord, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, is_staff)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.Staff).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return jwtauth.UserRecord{}, jwtauth.ErrDuplicateUser
		}
		return jwtauth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	return jwtauth.UserRecord{
		UserID:       strconv.FormatInt(id, 10),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Active:       true,
		Staff:        u.Staff,
	}, nil
}

func (r *Users) GetUserByUsername(ctx context.Context, username string) (jwtauth.UserRecord, error) {
	query :=
		`SELECT id, username, email, password_hash, is_active, is_staff FROM users
		 WHERE username = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *Users) GetUserByID(ctx context.Context, userID string) (jwtauth.UserRecord, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return jwtauth.UserRecord{}, err
	}
	query :=
		`SELECT id, username, email, password_hash, is_active, is_staff FROM users
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *Users) scanOne(row *sql.Row) (jwtauth.UserRecord, error) {
	var (
		id  int64
		rec jwtauth.UserRecord
	)
	err := row.Scan(&id, &rec.Username, &rec.Email, &rec.PasswordHash, &rec.Active, &rec.Staff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jwtauth.UserRecord{}, jwtauth.ErrUserNotFound
		}
		return jwtauth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	rec.UserID = strconv.FormatInt(id, 10)
	return rec, nil
}

func (r *Users) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	query :=
		`UPDATE users SET last_login = $2
		 WHERE id = $1
		 `
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, id, at.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Users) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	query :=
		`UPDATE users SET password_hash = $2
		 WHERE id = $1
		 `
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, id, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetActive enables or disables login for username.
func (r *Users) SetActive(ctx context.Context, username string, active bool) error {
	query :=
		`UPDATE users SET is_active = $2
		 WHERE username = $1
		 `
	res, err := r.db.ExecContext(ctx, query, username, active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return jwtauth.ErrUserNotFound
	}
	return nil
}

func parseUserID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, jwtauth.ErrUserNotFound
	}
	return id, nil
}
