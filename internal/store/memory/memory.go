// Package memory holds an in-memory Store used by tests and as the dev
// default when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	content  map[uuid.UUID]model.Content
	byToken  map[string]uuid.UUID
	posts    map[uuid.UUID]model.Post
	comments map[uuid.UUID]model.Comment
}

func New() *Store {
	return &Store{
		sessions: make(map[string]model.Session),
		content:  make(map[uuid.UUID]model.Content),
		byToken:  make(map[string]uuid.UUID),
		posts:    make(map[uuid.UUID]model.Post),
		comments: make(map[uuid.UUID]model.Comment),
	}
}

func (s *Store) Close() error { return nil }

// Sessions

func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return model.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

// Content

func (s *Store) CreateContent(ctx context.Context, c *model.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byToken[c.Token]; taken {
		return store.ErrDuplicateToken
	}
	s.byToken[c.Token] = c.ID
	s.content[c.ID] = *c
	return nil
}

func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (model.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.content[id]
	if !ok {
		return model.Content{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) FindContentByToken(ctx context.Context, token string) (model.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return model.Content{}, store.ErrNotFound
	}
	return s.content[id], nil
}

func (s *Store) ListContentByTokens(ctx context.Context, tokens []string) ([]model.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Content
	for _, token := range tokens {
		if id, ok := s.byToken[token]; ok {
			out = append(out, s.content[id])
		}
	}
	sortByCreated(out, func(c model.Content) time.Time { return c.CreatedAt })
	return out, nil
}

func (s *Store) UpdateContent(ctx context.Context, c *model.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[c.ID]; !ok {
		return store.ErrNotFound
	}
	s.content[c.ID] = *c
	return nil
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = *p
	return nil
}

func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok || p.IsDeleted {
		return model.Post{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPostAny(ctx context.Context, id uuid.UUID) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return model.Post{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPostsByContent(ctx context.Context, contentID uuid.UUID) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Post
	for _, p := range s.posts {
		if p.ContentID == contentID && !p.IsDeleted {
			out = append(out, p)
		}
	}
	sortByCreated(out, func(p model.Post) time.Time { return p.CreatedAt })
	return out, nil
}

func (s *Store) UpdatePost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.posts[p.ID]
	if !ok || cur.IsDeleted {
		return store.ErrNotFound
	}
	s.posts[p.ID] = *p
	return nil
}

func (s *Store) SoftDeletePost(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.IsDeleted {
		return store.ErrNotFound
	}
	p.IsDeleted = true
	p.UpdatedAt = time.Now()
	s.posts[id] = p
	return nil
}

// Comments

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = *c
	return nil
}

func (s *Store) GetComment(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok || c.IsDeleted {
		return model.Comment{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCommentAny(ctx context.Context, id uuid.UUID) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return model.Comment{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCommentsByPost(ctx context.Context, postID uuid.UUID) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Comment
	for _, c := range s.comments {
		if c.PostID == postID && !c.IsDeleted {
			out = append(out, c)
		}
	}
	sortByCreated(out, func(c model.Comment) time.Time { return c.CreatedAt })
	return out, nil
}

func (s *Store) UpdateComment(ctx context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.comments[c.ID]
	if !ok || cur.IsDeleted {
		return store.ErrNotFound
	}
	s.comments[c.ID] = *c
	return nil
}

func (s *Store) SoftDeleteComment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok || c.IsDeleted {
		return store.ErrNotFound
	}
	c.IsDeleted = true
	c.UpdatedAt = time.Now()
	s.comments[id] = c
	return nil
}

func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := model.Stats{Content: int64(len(s.content))}
	for _, p := range s.posts {
		if !p.IsDeleted {
			stats.Posts++
		}
	}
	for _, c := range s.comments {
		if !c.IsDeleted {
			stats.Comments++
		}
	}
	return stats, nil
}

func sortByCreated[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).Before(created(items[j]))
	})
}
