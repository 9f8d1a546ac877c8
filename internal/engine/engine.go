// Package engine applies the per-resource authorization rules and executes
// the guarded reads and writes. Content access follows possession of the
// gating token in the caller's resolved asset set; post and comment
// authorship is wallet-bound and immutable. Every operation takes the
// request's Identity explicitly; nothing is read from ambient state.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store"
)

type Engine struct {
	store store.Store
	log   *slog.Logger
}

func New(st store.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: st, log: log}
}

// Content

func (e *Engine) ListContent(ctx context.Context, id model.Identity) ([]model.Content, error) {
	rows, err := e.store.ListContentByTokens(ctx, id.Assets)
	if err != nil {
		return nil, internal(err)
	}
	e.log.InfoContext(ctx, "content listed", "address", id.Address, "count", len(rows))
	return rows, nil
}

func (e *Engine) GetContent(ctx context.Context, id model.Identity, contentID string) (model.Content, error) {
	cid, ok := parseID(contentID)
	if !ok {
		return model.Content{}, malformed("Content")
	}
	content, err := e.store.GetContent(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Content{}, notFound("Content")
		}
		return model.Content{}, internal(err)
	}
	if !id.Owns(content.Token) {
		return model.Content{}, unauthorized("Token not available in wallet")
	}
	e.log.InfoContext(ctx, "content fetched", "address", id.Address, "content_id", cid)
	return content, nil
}

type CreateContentInput struct {
	Title       string
	Description string
	IsPublic    bool
	Token       string
}

// CreateContent binds one owned token to a new content record. Global token
// uniqueness is settled by the store's unique constraint, so two concurrent
// creates for the same token cannot both win.
func (e *Engine) CreateContent(ctx context.Context, id model.Identity, in CreateContentInput) (model.Content, error) {
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return model.Content{}, validation("Missing token")
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Content{}, validation("Missing title")
	}
	if !id.Owns(token) {
		return model.Content{}, unauthorized("Token not available in wallet")
	}

	now := time.Now()
	content := model.Content{
		ID:          uuid.New(),
		WalletID:    id.Address,
		Token:       token,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateContent(ctx, &content); err != nil {
		if errors.Is(err, store.ErrDuplicateToken) {
			// A token already spent on the caller's own content reads as
			// unavailable; anyone else's collision is a uniqueness conflict.
			if existing, ferr := e.store.FindContentByToken(ctx, token); ferr == nil && existing.WalletID == id.Address {
				return model.Content{}, unauthorized("Token not available in wallet")
			}
			return model.Content{}, conflict("Token must be unique")
		}
		return model.Content{}, internal(err)
	}
	e.log.InfoContext(ctx, "content created", "address", id.Address, "content_id", content.ID, "token", token)
	return content, nil
}

type UpdateContentInput struct {
	Title       string
	Description string
	IsPublic    bool
}

// UpdateContent is token-gated like reads: whoever currently holds the token
// controls the record, regardless of who created it. The token itself never
// changes.
func (e *Engine) UpdateContent(ctx context.Context, id model.Identity, contentID string, in UpdateContentInput) (model.Content, error) {
	cid, ok := parseID(contentID)
	if !ok {
		return model.Content{}, malformed("Content")
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Content{}, validation("Missing title")
	}
	content, err := e.store.GetContent(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Content{}, notFound("Content")
		}
		return model.Content{}, internal(err)
	}
	if !id.Owns(content.Token) {
		return model.Content{}, unauthorized("Token not available in wallet")
	}

	content.Title = strings.TrimSpace(in.Title)
	content.Description = strings.TrimSpace(in.Description)
	content.IsPublic = in.IsPublic
	content.UpdatedAt = time.Now()
	if err := e.store.UpdateContent(ctx, &content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Content{}, notFound("Content")
		}
		return model.Content{}, internal(err)
	}
	e.log.InfoContext(ctx, "content updated", "address", id.Address, "content_id", cid)
	return content, nil
}

// Posts

func (e *Engine) ListPosts(ctx context.Context, id model.Identity, contentID string) ([]model.Post, error) {
	if strings.TrimSpace(contentID) == "" {
		return nil, validation("Missing content ID")
	}
	cid, ok := parseID(contentID)
	if !ok {
		return nil, malformed("Content")
	}
	content, err := e.store.GetContent(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Content")
		}
		return nil, internal(err)
	}
	if !id.Owns(content.Token) {
		return nil, unauthorized("Token not available in wallet")
	}
	posts, err := e.store.ListPostsByContent(ctx, cid)
	if err != nil {
		return nil, internal(err)
	}
	e.log.InfoContext(ctx, "posts listed", "address", id.Address, "content_id", cid, "count", len(posts))
	return posts, nil
}

// GetPost returns the post with its live comments and parent content,
// assembled explicitly rather than through any polymorphic include.
func (e *Engine) GetPost(ctx context.Context, id model.Identity, postID string) (model.PostDetail, error) {
	pid, ok := parseID(postID)
	if !ok {
		return model.PostDetail{}, malformed("Post")
	}
	post, err := e.store.GetPost(ctx, pid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.PostDetail{}, notFound("Post")
		}
		return model.PostDetail{}, internal(err)
	}
	content, err := e.store.GetContent(ctx, post.ContentID)
	if err != nil {
		// A post without its parent content is a data fault, not a 404.
		return model.PostDetail{}, internal(err)
	}
	if !id.Owns(content.Token) {
		return model.PostDetail{}, unauthorized("Token not available in wallet")
	}
	comments, err := e.store.ListCommentsByPost(ctx, pid)
	if err != nil {
		return model.PostDetail{}, internal(err)
	}
	e.log.InfoContext(ctx, "post fetched", "address", id.Address, "post_id", pid)
	return model.PostDetail{Post: post, Comments: comments, Content: content}, nil
}

type CreatePostInput struct {
	ContentID string
	Title     string
	Text      string
}

func (e *Engine) CreatePost(ctx context.Context, id model.Identity, in CreatePostInput) (model.Post, error) {
	if strings.TrimSpace(in.ContentID) == "" {
		return model.Post{}, validation("Missing contentId or malformed")
	}
	cid, ok := parseID(in.ContentID)
	if !ok {
		return model.Post{}, malformed("Content")
	}
	if strings.TrimSpace(in.Text) == "" {
		return model.Post{}, validation("Missing content")
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Post{}, validation("Missing title")
	}
	content, err := e.store.GetContent(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, notFound("Content")
		}
		return model.Post{}, internal(err)
	}
	if !id.Owns(content.Token) {
		return model.Post{}, unauthorized("Token not available in wallet")
	}

	now := time.Now()
	post := model.Post{
		ID:        uuid.New(),
		ContentID: cid,
		WalletID:  id.Address,
		Title:     strings.TrimSpace(in.Title),
		Text:      in.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreatePost(ctx, &post); err != nil {
		return model.Post{}, internal(err)
	}
	e.log.InfoContext(ctx, "post created", "address", id.Address, "post_id", post.ID, "content_id", cid)
	return post, nil
}

type UpdatePostInput struct {
	Title string
	Text  string
}

// UpdatePost is wallet-gated: only the recorded author may edit, even if the
// gating token has since moved to another wallet.
func (e *Engine) UpdatePost(ctx context.Context, id model.Identity, postID string, in UpdatePostInput) (model.Post, error) {
	pid, ok := parseID(postID)
	if !ok {
		return model.Post{}, malformed("Post")
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Post{}, validation("Missing title")
	}
	if strings.TrimSpace(in.Text) == "" {
		return model.Post{}, validation("Missing content")
	}
	post, err := e.store.GetPost(ctx, pid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, notFound("Post")
		}
		return model.Post{}, internal(err)
	}
	if post.WalletID != id.Address {
		return model.Post{}, unauthorized("Post not owned by wallet")
	}

	post.Title = strings.TrimSpace(in.Title)
	post.Text = in.Text
	post.UpdatedAt = time.Now()
	if err := e.store.UpdatePost(ctx, &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, notFound("Post")
		}
		return model.Post{}, internal(err)
	}
	e.log.InfoContext(ctx, "post updated", "address", id.Address, "post_id", pid)
	return post, nil
}

// DeletePost tombstones the post. The row is retained; a second delete of
// the same post reads as not found.
func (e *Engine) DeletePost(ctx context.Context, id model.Identity, postID string) error {
	pid, ok := parseID(postID)
	if !ok {
		return malformed("Post")
	}
	post, err := e.store.GetPost(ctx, pid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Post")
		}
		return internal(err)
	}
	if post.WalletID != id.Address {
		return unauthorized("Post not owned by wallet")
	}
	if err := e.store.SoftDeletePost(ctx, pid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Post")
		}
		return internal(err)
	}
	e.log.InfoContext(ctx, "post deleted", "address", id.Address, "post_id", pid)
	return nil
}

// Comments

func (e *Engine) ListComments(ctx context.Context, id model.Identity, contentID, postID string) ([]model.Comment, error) {
	if strings.TrimSpace(contentID) == "" || !isUUID(contentID) {
		return nil, validation("Missing contentId or malformed")
	}
	if strings.TrimSpace(postID) == "" || !isUUID(postID) {
		return nil, validation("Missing postId or malformed")
	}
	cid, _ := parseID(contentID)
	pid, _ := parseID(postID)

	content, err := e.store.GetContent(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Content")
		}
		return nil, internal(err)
	}
	if !id.Owns(content.Token) {
		return nil, unauthorized("Token not available in wallet")
	}
	if _, err := e.store.GetPost(ctx, pid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Post")
		}
		return nil, internal(err)
	}
	comments, err := e.store.ListCommentsByPost(ctx, pid)
	if err != nil {
		return nil, internal(err)
	}
	e.log.InfoContext(ctx, "comments listed", "address", id.Address, "post_id", pid, "count", len(comments))
	return comments, nil
}

type CreateCommentInput struct {
	PostID  string
	Comment string
}

// CreateComment is wallet-gated only: commenting does not require holding
// the token that gates the parent content.
func (e *Engine) CreateComment(ctx context.Context, id model.Identity, in CreateCommentInput) (model.Comment, error) {
	pid, ok := parseID(in.PostID)
	if !ok {
		return model.Comment{}, malformed("Post")
	}
	if _, err := e.store.GetPost(ctx, pid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Comment{}, notFound("Post")
		}
		return model.Comment{}, internal(err)
	}
	if strings.TrimSpace(in.Comment) == "" {
		return model.Comment{}, validation("No comment present")
	}

	now := time.Now()
	comment := model.Comment{
		ID:        uuid.New(),
		PostID:    pid,
		WalletID:  id.Address,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateComment(ctx, &comment); err != nil {
		return model.Comment{}, internal(err)
	}
	e.log.InfoContext(ctx, "comment created", "address", id.Address, "comment_id", comment.ID, "post_id", pid)
	return comment, nil
}

func (e *Engine) UpdateComment(ctx context.Context, id model.Identity, commentID, body string) (model.Comment, error) {
	cid, ok := parseID(commentID)
	if !ok {
		return model.Comment{}, malformed("Comment")
	}
	if strings.TrimSpace(body) == "" {
		return model.Comment{}, validation("No comment present")
	}
	comment, err := e.store.GetComment(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Comment{}, notFound("Comment")
		}
		return model.Comment{}, internal(err)
	}
	if comment.WalletID != id.Address {
		return model.Comment{}, unauthorized("Comment not owned by wallet")
	}

	comment.Comment = strings.TrimSpace(body)
	comment.UpdatedAt = time.Now()
	if err := e.store.UpdateComment(ctx, &comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Comment{}, notFound("Comment")
		}
		return model.Comment{}, internal(err)
	}
	e.log.InfoContext(ctx, "comment updated", "address", id.Address, "comment_id", cid)
	return comment, nil
}

// DeleteComment tombstones the comment; reactivation is not a supported
// transition anywhere in the API.
func (e *Engine) DeleteComment(ctx context.Context, id model.Identity, commentID string) error {
	cid, ok := parseID(commentID)
	if !ok {
		return malformed("Comment")
	}
	comment, err := e.store.GetComment(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Comment")
		}
		return internal(err)
	}
	if comment.WalletID != id.Address {
		return unauthorized("Comment not owned by wallet")
	}
	if err := e.store.SoftDeleteComment(ctx, cid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Comment")
		}
		return internal(err)
	}
	e.log.InfoContext(ctx, "comment deleted", "address", id.Address, "comment_id", cid)
	return nil
}

// Inspection and stats

// InspectPost reads a post record including its tombstone state. Only the
// author may see their own deleted rows.
func (e *Engine) InspectPost(ctx context.Context, id model.Identity, postID string) (model.Post, error) {
	pid, ok := parseID(postID)
	if !ok {
		return model.Post{}, malformed("Post")
	}
	post, err := e.store.GetPostAny(ctx, pid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Post{}, notFound("Post")
		}
		return model.Post{}, internal(err)
	}
	if post.WalletID != id.Address {
		return model.Post{}, unauthorized("Post not owned by wallet")
	}
	return post, nil
}

// InspectComment is the tombstone-inclusive counterpart of GetComment.
func (e *Engine) InspectComment(ctx context.Context, id model.Identity, commentID string) (model.Comment, error) {
	cid, ok := parseID(commentID)
	if !ok {
		return model.Comment{}, malformed("Comment")
	}
	comment, err := e.store.GetCommentAny(ctx, cid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Comment{}, notFound("Comment")
		}
		return model.Comment{}, internal(err)
	}
	if comment.WalletID != id.Address {
		return model.Comment{}, unauthorized("Comment not owned by wallet")
	}
	return comment, nil
}

func (e *Engine) Stats(ctx context.Context) (model.Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return model.Stats{}, internal(err)
	}
	return stats, nil
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func isUUID(raw string) bool {
	_, ok := parseID(raw)
	return ok
}
