package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Post is a row of the posts table joined with its author's username.
type Post struct {
	ID             int64
	Title          string
	Content        string
	AuthorID       int64
	AuthorUsername string
	Created        time.Time
}

// PostFilter narrows List. A zero Limit returns every matching row.
type PostFilter struct {
	AuthorID       int64
	AuthorUsername string
	Limit          int
	Offset         int
}

type Posts struct {
	db DBTX
}

func NewPosts(db DBTX) *Posts {
	return &Posts{db: db}
}

const postColumns = `p.id, p.title, p.content, p.author_id, u.username, p.created_at`

func (r *Posts) Create(ctx context.Context, p *Post) (*Post, error) {
	query :=
		`INSERT INTO posts (title, content, author_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `
	err := r.db.QueryRowContext(ctx, query, p.Title, p.Content, p.AuthorID).Scan(&p.ID, &p.Created)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *Posts) Get(ctx context.Context, id int64) (*Post, error) {
	query :=
		`SELECT ` + postColumns + ` FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.id = $1
		 `
	p := &Post{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorUsername, &p.Created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Update replaces title and content of post id.
func (r *Posts) Update(ctx context.Context, id int64, title, content string) error {
	query :=
		`UPDATE posts SET title = $2, content = $3
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id, title, content)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *Posts) Delete(ctx context.Context, id int64) error {
	query :=
		`DELETE FROM posts
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

// List returns one page of posts, newest first, and the total number of
// matching rows.
func (r *Posts) List(ctx context.Context, f PostFilter) ([]Post, int, error) {
	where, args := f.where()

	var total int
	countQuery := `SELECT count(*) FROM posts p JOIN users u ON u.id = p.author_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.author_id` +
		where + ` ORDER BY p.created_at DESC, p.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorUsername, &p.Created); err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return posts, total, nil
}

func (f PostFilter) where() (string, []any) {
	switch {
	case f.AuthorID != 0:
		return ` WHERE p.author_id = $1`, []any{f.AuthorID}
	case f.AuthorUsername != "":
		return ` WHERE u.username = $1`, []any{f.AuthorUsername}
	default:
		return "", nil
	}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
