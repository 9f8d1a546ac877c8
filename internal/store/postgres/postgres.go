// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.applySchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) applySchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	issued_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS content (
	id UUID PRIMARY KEY,
	wallet_id TEXT NOT NULL,
	token TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	is_public BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT content_token_unique UNIQUE (token)
);
CREATE INDEX IF NOT EXISTS idx_content_wallet_id ON content(wallet_id);

CREATE TABLE IF NOT EXISTS posts (
	id UUID PRIMARY KEY,
	content_id UUID NOT NULL REFERENCES content(id),
	wallet_id TEXT NOT NULL,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_content_id ON posts(content_id);

CREATE TABLE IF NOT EXISTS comments (
	id UUID PRIMARY KEY,
	post_id UUID NOT NULL REFERENCES posts(id),
	wallet_id TEXT NOT NULL,
	comment TEXT NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`)
	return err
}

// Sessions

func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO sessions (token, address, issued_at, expires_at)
VALUES ($1, $2, $3, $4)
`, sess.Token, sess.Address, sess.IssuedAt, sess.ExpiresAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, token string) (model.Session, error) {
	var sess model.Session
	err := s.pool.QueryRow(ctx, `
SELECT token, address, issued_at, expires_at FROM sessions WHERE token = $1
`, token).Scan(&sess.Token, &sess.Address, &sess.IssuedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, store.ErrNotFound
		}
		return model.Session{}, err
	}
	return sess, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Content

func (s *Store) CreateContent(ctx context.Context, c *model.Content) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO content (id, wallet_id, token, title, description, is_public, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, c.ID, c.WalletID, c.Token, c.Title, c.Description, c.IsPublic, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicateToken
		}
		return err
	}
	return nil
}

const contentColumns = `id, wallet_id, token, title, description, is_public, created_at, updated_at`

func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (model.Content, error) {
	return s.scanContentRow(s.pool.QueryRow(ctx, `
SELECT `+contentColumns+` FROM content WHERE id = $1
`, id))
}

func (s *Store) FindContentByToken(ctx context.Context, token string) (model.Content, error) {
	return s.scanContentRow(s.pool.QueryRow(ctx, `
SELECT `+contentColumns+` FROM content WHERE token = $1
`, token))
}

func (s *Store) ListContentByTokens(ctx context.Context, tokens []string) ([]model.Content, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+contentColumns+` FROM content
WHERE token = ANY($1)
ORDER BY created_at ASC
`, tokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Content
	for rows.Next() {
		var c model.Content
		if err := rows.Scan(&c.ID, &c.WalletID, &c.Token, &c.Title, &c.Description, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateContent(ctx context.Context, c *model.Content) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE content SET title = $1, description = $2, is_public = $3, updated_at = $4
WHERE id = $5
`, c.Title, c.Description, c.IsPublic, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) scanContentRow(row pgx.Row) (model.Content, error) {
	var c model.Content
	err := row.Scan(&c.ID, &c.WalletID, &c.Token, &c.Title, &c.Description, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Content{}, store.ErrNotFound
		}
		return model.Content{}, err
	}
	return c, nil
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO posts (id, content_id, wallet_id, title, text, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, p.ID, p.ContentID, p.WalletID, p.Title, p.Text, p.IsDeleted, p.CreatedAt, p.UpdatedAt)
	return err
}

const postColumns = `id, content_id, wallet_id, title, text, is_deleted, created_at, updated_at`

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (model.Post, error) {
	return s.scanPostRow(s.pool.QueryRow(ctx, `
SELECT `+postColumns+` FROM posts WHERE id = $1 AND NOT is_deleted
`, id))
}

func (s *Store) GetPostAny(ctx context.Context, id uuid.UUID) (model.Post, error) {
	return s.scanPostRow(s.pool.QueryRow(ctx, `
SELECT `+postColumns+` FROM posts WHERE id = $1
`, id))
}

func (s *Store) ListPostsByContent(ctx context.Context, contentID uuid.UUID) ([]model.Post, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+postColumns+` FROM posts
WHERE content_id = $1 AND NOT is_deleted
ORDER BY created_at ASC
`, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.ContentID, &p.WalletID, &p.Title, &p.Text, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, p *model.Post) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE posts SET title = $1, text = $2, updated_at = $3
WHERE id = $4 AND NOT is_deleted
`, p.Title, p.Text, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeletePost(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE posts SET is_deleted = TRUE, updated_at = $1
WHERE id = $2 AND NOT is_deleted
`, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) scanPostRow(row pgx.Row) (model.Post, error) {
	var p model.Post
	err := row.Scan(&p.ID, &p.ContentID, &p.WalletID, &p.Title, &p.Text, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	return p, nil
}

// Comments

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO comments (id, post_id, wallet_id, comment, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, c.ID, c.PostID, c.WalletID, c.Comment, c.IsDeleted, c.CreatedAt, c.UpdatedAt)
	return err
}

const commentColumns = `id, post_id, wallet_id, comment, is_deleted, created_at, updated_at`

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	return s.scanCommentRow(s.pool.QueryRow(ctx, `
SELECT `+commentColumns+` FROM comments WHERE id = $1 AND NOT is_deleted
`, id))
}

func (s *Store) GetCommentAny(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	return s.scanCommentRow(s.pool.QueryRow(ctx, `
SELECT `+commentColumns+` FROM comments WHERE id = $1
`, id))
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID uuid.UUID) ([]model.Comment, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+commentColumns+` FROM comments
WHERE post_id = $1 AND NOT is_deleted
ORDER BY created_at ASC
`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.WalletID, &c.Comment, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateComment(ctx context.Context, c *model.Comment) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE comments SET comment = $1, updated_at = $2
WHERE id = $3 AND NOT is_deleted
`, c.Comment, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeleteComment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE comments SET is_deleted = TRUE, updated_at = $1
WHERE id = $2 AND NOT is_deleted
`, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := s.pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM content),
	(SELECT COUNT(*) FROM posts WHERE NOT is_deleted),
	(SELECT COUNT(*) FROM comments WHERE NOT is_deleted)
`).Scan(&stats.Content, &stats.Posts, &stats.Comments)
	if err != nil {
		return model.Stats{}, err
	}
	return stats, nil
}

func (s *Store) scanCommentRow(row pgx.Row) (model.Comment, error) {
	var c model.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.WalletID, &c.Comment, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	return c, nil
}
