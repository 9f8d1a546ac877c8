// Package store defines the persistence collaborator consumed by the
// authorization engine. Implementations must enforce content-token
// uniqueness with a storage-level constraint so concurrent creates cannot
// race past the check, and must exclude tombstoned rows from default reads.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/walletgate/walletgate/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateToken = errors.New("duplicate token")
)

type Store interface {
	SessionStore
	ContentStore
	PostStore
	CommentStore
	Stats(ctx context.Context) (model.Stats, error)
	Close() error
}

type SessionStore interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, token string) (model.Session, error)
	// DeleteExpiredSessions removes sessions that expired before now and
	// reports how many were dropped.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type ContentStore interface {
	// CreateContent returns ErrDuplicateToken when another row already
	// holds the same token; the check is atomic at the storage boundary.
	CreateContent(ctx context.Context, c *model.Content) error
	GetContent(ctx context.Context, id uuid.UUID) (model.Content, error)
	FindContentByToken(ctx context.Context, token string) (model.Content, error)
	ListContentByTokens(ctx context.Context, tokens []string) ([]model.Content, error)
	UpdateContent(ctx context.Context, c *model.Content) error
}

type PostStore interface {
	CreatePost(ctx context.Context, p *model.Post) error
	// GetPost excludes tombstoned rows; GetPostAny is the administrative
	// bypass that sees them.
	GetPost(ctx context.Context, id uuid.UUID) (model.Post, error)
	GetPostAny(ctx context.Context, id uuid.UUID) (model.Post, error)
	ListPostsByContent(ctx context.Context, contentID uuid.UUID) ([]model.Post, error)
	UpdatePost(ctx context.Context, p *model.Post) error
	SoftDeletePost(ctx context.Context, id uuid.UUID) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (model.Comment, error)
	GetCommentAny(ctx context.Context, id uuid.UUID) (model.Comment, error)
	ListCommentsByPost(ctx context.Context, postID uuid.UUID) ([]model.Comment, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	SoftDeleteComment(ctx context.Context, id uuid.UUID) error
}
