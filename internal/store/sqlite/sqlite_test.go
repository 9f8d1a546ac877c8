package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func testContent(token string) model.Content {
	now := time.Now().Truncate(time.Second)
	return model.Content{
		ID:          uuid.New(),
		WalletID:    "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token:       token,
		Title:       "Gated Drop",
		Description: "holders only",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestContentLifecycle(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	content := testContent("tok-1")
	if err := st.CreateContent(ctx, &content); err != nil {
		t.Fatalf("create content: %v", err)
	}

	got, err := st.GetContent(ctx, content.ID)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if got.Token != "tok-1" || got.Title != content.Title {
		t.Fatalf("unexpected row: %+v", got)
	}

	byToken, err := st.FindContentByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("find by token: %v", err)
	}
	if byToken.ID != content.ID {
		t.Fatalf("expected %s, got %s", content.ID, byToken.ID)
	}

	got.Title = "Renamed"
	got.IsPublic = true
	if err := st.UpdateContent(ctx, &got); err != nil {
		t.Fatalf("update content: %v", err)
	}
	updated, _ := st.GetContent(ctx, content.ID)
	if updated.Title != "Renamed" || !updated.IsPublic {
		t.Fatalf("update not persisted: %+v", updated)
	}

	if _, err := st.GetContent(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateTokenRejected(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	first := testContent("tok-1")
	if err := st.CreateContent(ctx, &first); err != nil {
		t.Fatalf("create content: %v", err)
	}

	second := testContent("tok-1")
	err := st.CreateContent(ctx, &second)
	if !errors.Is(err, store.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestListContentByTokens(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	for _, token := range []string{"tok-1", "tok-2", "tok-3"} {
		c := testContent(token)
		if err := st.CreateContent(ctx, &c); err != nil {
			t.Fatalf("create content: %v", err)
		}
	}

	rows, err := st.ListContentByTokens(ctx, []string{"tok-1", "tok-3", "tok-9"})
	if err != nil {
		t.Fatalf("list by tokens: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	rows, err = st.ListContentByTokens(ctx, nil)
	if err != nil {
		t.Fatalf("list with no tokens: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestPostSoftDelete(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	content := testContent("tok-1")
	if err := st.CreateContent(ctx, &content); err != nil {
		t.Fatalf("create content: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	post := model.Post{
		ID:        uuid.New(),
		ContentID: content.ID,
		WalletID:  content.WalletID,
		Title:     "First",
		Text:      "hello",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreatePost(ctx, &post); err != nil {
		t.Fatalf("create post: %v", err)
	}

	if err := st.SoftDeletePost(ctx, post.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := st.GetPost(ctx, post.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// The row survives as a tombstone.
	kept, err := st.GetPostAny(ctx, post.ID)
	if err != nil {
		t.Fatalf("get any: %v", err)
	}
	if !kept.IsDeleted {
		t.Fatal("expected tombstone flag set")
	}

	// Repeat delete and tombstone update both read as missing.
	if err := st.SoftDeletePost(ctx, post.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
	kept.Title = "edited"
	if err := st.UpdatePost(ctx, &kept); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating tombstone, got %v", err)
	}

	posts, err := st.ListPostsByContent(ctx, content.ID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no live posts, got %d", len(posts))
	}
}

func TestCommentSoftDelete(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	content := testContent("tok-1")
	if err := st.CreateContent(ctx, &content); err != nil {
		t.Fatalf("create content: %v", err)
	}
	now := time.Now().Truncate(time.Second)
	post := model.Post{
		ID: uuid.New(), ContentID: content.ID, WalletID: content.WalletID,
		Title: "First", Text: "hello", CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreatePost(ctx, &post); err != nil {
		t.Fatalf("create post: %v", err)
	}

	comment := model.Comment{
		ID: uuid.New(), PostID: post.ID, WalletID: content.WalletID,
		Comment: "nice", CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateComment(ctx, &comment); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if err := st.SoftDeleteComment(ctx, comment.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := st.GetComment(ctx, comment.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	kept, err := st.GetCommentAny(ctx, comment.ID)
	if err != nil {
		t.Fatalf("get any: %v", err)
	}
	if !kept.IsDeleted {
		t.Fatal("expected tombstone flag set")
	}

	comments, err := st.ListCommentsByPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("expected no live comments, got %d", len(comments))
	}
}

func TestSessionExpiry(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	live := model.Session{
		Token: "live-token", Address: "0xaaaa",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	stale := model.Session{
		Token: "stale-token", Address: "0xbbbb",
		IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := st.CreateSession(ctx, live); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := st.CreateSession(ctx, stale); err != nil {
		t.Fatalf("create session: %v", err)
	}

	removed, err := st.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := st.GetSession(ctx, "live-token"); err != nil {
		t.Fatalf("live session should survive: %v", err)
	}
	if _, err := st.GetSession(ctx, "stale-token"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for removed session, got %v", err)
	}
}

func TestStatsCountsLiveRows(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	content := testContent("tok-1")
	if err := st.CreateContent(ctx, &content); err != nil {
		t.Fatalf("create content: %v", err)
	}
	now := time.Now().Truncate(time.Second)
	post := model.Post{
		ID: uuid.New(), ContentID: content.ID, WalletID: content.WalletID,
		Title: "First", Text: "hello", CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreatePost(ctx, &post); err != nil {
		t.Fatalf("create post: %v", err)
	}
	gone := model.Post{
		ID: uuid.New(), ContentID: content.ID, WalletID: content.WalletID,
		Title: "Second", Text: "bye", CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreatePost(ctx, &gone); err != nil {
		t.Fatalf("create post: %v", err)
	}
	if err := st.SoftDeletePost(ctx, gone.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Content != 1 || stats.Posts != 1 || stats.Comments != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
