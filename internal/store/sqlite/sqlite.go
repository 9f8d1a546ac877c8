// Package sqlite implements store.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations. Each migration runs
// exactly once, tracked by the schema_version table.
var migrations = []string{
	// Migration 1: Initial schema. The unique index on content.token is the
	// whole uniqueness story: creation races resolve here, not in app code.
	`
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	issued_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS content (
	id TEXT PRIMARY KEY,
	wallet_id TEXT NOT NULL,
	token TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	is_public INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_content_token ON content(token);
CREATE INDEX IF NOT EXISTS idx_content_wallet_id ON content(wallet_id);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	content_id TEXT NOT NULL,
	wallet_id TEXT NOT NULL,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(content_id) REFERENCES content(id)
);
CREATE INDEX IF NOT EXISTS idx_posts_content_id ON posts(content_id);
CREATE INDEX IF NOT EXISTS idx_posts_wallet_id ON posts(wallet_id);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL,
	wallet_id TEXT NOT NULL,
	comment TEXT NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(post_id) REFERENCES posts(id)
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`,
	// Future migrations go here.
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Sessions

func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (token, address, issued_at, expires_at)
VALUES (?, ?, ?, ?)
`, sess.Token, sess.Address, sess.IssuedAt.Unix(), sess.ExpiresAt.Unix())
	return err
}

func (s *Store) GetSession(ctx context.Context, token string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, address, issued_at, expires_at
FROM sessions
WHERE token = ?
`, token)
	var sess model.Session
	var issued, expires int64
	if err := row.Scan(&sess.Token, &sess.Address, &issued, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, store.ErrNotFound
		}
		return model.Session{}, err
	}
	sess.IssuedAt = time.Unix(issued, 0)
	sess.ExpiresAt = time.Unix(expires, 0)
	return sess, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Content

func (s *Store) CreateContent(ctx context.Context, c *model.Content) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO content (id, wallet_id, token, title, description, is_public, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID.String(), c.WalletID, c.Token, c.Title, nullIfEmpty(c.Description), boolToInt(c.IsPublic), c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateToken
		}
		return err
	}
	return nil
}

const contentColumns = `id, wallet_id, token, title, description, is_public, created_at, updated_at`

func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (model.Content, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+contentColumns+` FROM content WHERE id = ?
`, id.String())
	return scanContent(row)
}

func (s *Store) FindContentByToken(ctx context.Context, token string) (model.Content, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+contentColumns+` FROM content WHERE token = ?
`, token)
	return scanContent(row)
}

func (s *Store) ListContentByTokens(ctx context.Context, tokens []string) ([]model.Content, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokens)), ",")
	args := make([]any, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+contentColumns+` FROM content
WHERE token IN (`+placeholders+`)
ORDER BY created_at ASC
`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateContent(ctx context.Context, c *model.Content) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE content SET title = ?, description = ?, is_public = ?, updated_at = ?
WHERE id = ?
`, c.Title, nullIfEmpty(c.Description), boolToInt(c.IsPublic), c.UpdatedAt.Unix(), c.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO posts (id, content_id, wallet_id, title, text, is_deleted, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, p.ID.String(), p.ContentID.String(), p.WalletID, p.Title, p.Text, boolToInt(p.IsDeleted), p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	return err
}

const postColumns = `id, content_id, wallet_id, title, text, is_deleted, created_at, updated_at`

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+postColumns+` FROM posts WHERE id = ? AND is_deleted = 0
`, id.String())
	return scanPost(row)
}

func (s *Store) GetPostAny(ctx context.Context, id uuid.UUID) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+postColumns+` FROM posts WHERE id = ?
`, id.String())
	return scanPost(row)
}

func (s *Store) ListPostsByContent(ctx context.Context, contentID uuid.UUID) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+` FROM posts
WHERE content_id = ? AND is_deleted = 0
ORDER BY created_at ASC
`, contentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, p *model.Post) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE posts SET title = ?, text = ?, updated_at = ?
WHERE id = ? AND is_deleted = 0
`, p.Title, p.Text, p.UpdatedAt.Unix(), p.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SoftDeletePost(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE posts SET is_deleted = 1, updated_at = ?
WHERE id = ? AND is_deleted = 0
`, time.Now().Unix(), id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Comments

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO comments (id, post_id, wallet_id, comment, is_deleted, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, c.ID.String(), c.PostID.String(), c.WalletID, c.Comment, boolToInt(c.IsDeleted), c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	return err
}

const commentColumns = `id, post_id, wallet_id, comment, is_deleted, created_at, updated_at`

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+commentColumns+` FROM comments WHERE id = ? AND is_deleted = 0
`, id.String())
	return scanComment(row)
}

func (s *Store) GetCommentAny(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+commentColumns+` FROM comments WHERE id = ?
`, id.String())
	return scanComment(row)
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID uuid.UUID) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+commentColumns+` FROM comments
WHERE post_id = ? AND is_deleted = 0
ORDER BY created_at ASC
`, postID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateComment(ctx context.Context, c *model.Comment) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE comments SET comment = ?, updated_at = ?
WHERE id = ? AND is_deleted = 0
`, c.Comment, c.UpdatedAt.Unix(), c.ID.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SoftDeleteComment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE comments SET is_deleted = 1, updated_at = ?
WHERE id = ? AND is_deleted = 0
`, time.Now().Unix(), id.String())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	row := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM content),
	(SELECT COUNT(*) FROM posts WHERE is_deleted = 0),
	(SELECT COUNT(*) FROM comments WHERE is_deleted = 0)
`)
	if err := row.Scan(&stats.Content, &stats.Posts, &stats.Comments); err != nil {
		return model.Stats{}, err
	}
	return stats, nil
}

// Scan helpers

type scanner interface{ Scan(dest ...any) error }

func scanContent(row scanner) (model.Content, error) {
	var c model.Content
	var id string
	var description sql.NullString
	var isPublic int
	var created, updated int64
	if err := row.Scan(&id, &c.WalletID, &c.Token, &c.Title, &description, &isPublic, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Content{}, store.ErrNotFound
		}
		return model.Content{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Content{}, err
	}
	c.ID = parsed
	c.Description = description.String
	c.IsPublic = isPublic != 0
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return c, nil
}

func scanPost(row scanner) (model.Post, error) {
	var p model.Post
	var id, contentID string
	var deleted int
	var created, updated int64
	if err := row.Scan(&id, &contentID, &p.WalletID, &p.Title, &p.Text, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return model.Post{}, err
	}
	if p.ContentID, err = uuid.Parse(contentID); err != nil {
		return model.Post{}, err
	}
	p.IsDeleted = deleted != 0
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}

func scanComment(row scanner) (model.Comment, error) {
	var c model.Comment
	var id, postID string
	var deleted int
	var created, updated int64
	if err := row.Scan(&id, &postID, &c.WalletID, &c.Comment, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Comment{}, store.ErrNotFound
		}
		return model.Comment{}, err
	}
	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return model.Comment{}, err
	}
	if c.PostID, err = uuid.Parse(postID); err != nil {
		return model.Comment{}, err
	}
	c.IsDeleted = deleted != 0
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return c, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
