// Package http exposes the JSON API. Authentication and asset resolution
// happen once per request in middleware; handlers hand the resulting
// Identity to the engine and translate typed engine errors to statuses in
// a single place.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/walletgate/walletgate/internal/assets"
	"github.com/walletgate/walletgate/internal/auth"
	"github.com/walletgate/walletgate/internal/engine"
	"github.com/walletgate/walletgate/internal/model"
	"github.com/walletgate/walletgate/internal/rate"
)

type Server struct {
	engine   *engine.Engine
	auth     *auth.Service
	resolver assets.Resolver
	limiter  rate.Limiter
	limits   Limits
	log      *slog.Logger
	version  string
}

type Limits struct {
	LoginPerMinute int
}

func NewServer(eng *engine.Engine, authSvc *auth.Service, resolver assets.Resolver, limiter rate.Limiter, limits Limits, log *slog.Logger, version string) *Server {
	if log == nil {
		log = slog.Default()
	}
	if limits.LoginPerMinute <= 0 {
		limits.LoginPerMinute = 10
	}
	return &Server{
		engine:   eng,
		auth:     authSvc,
		resolver: resolver,
		limiter:  limiter,
		limits:   limits,
		log:      log,
		version:  version,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/stats", s.handleStats)
		r.Get("/challenge", s.handleChallenge)
		r.Post("/validate-wallet", s.handleValidateWallet)

		r.Group(func(r chi.Router) {
			r.Use(s.requireIdentity)
			r.Get("/wallets", s.handleWallet)
			r.Mount("/content", s.contentRoutes())
			r.Mount("/posts", s.postRoutes())
			r.Mount("/comments", s.commentRoutes())
		})
	})

	return r
}

func (s *Server) contentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleListContent)
	r.Post("/", s.handleCreateContent)
	r.Get("/{contentId}", s.handleGetContent)
	r.Put("/{contentId}", s.handleUpdateContent)
	return r
}

func (s *Server) postRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleListPosts)
	r.Post("/", s.handleCreatePost)
	r.Get("/{postId}", s.handleGetPost)
	r.Put("/{postId}", s.handleUpdatePost)
	r.Delete("/{postId}", s.handleDeletePost)
	return r
}

func (s *Server) commentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleListComments)
	r.Post("/", s.handleCreateComment)
	r.Put("/{commentId}", s.handleUpdateComment)
	r.Delete("/{commentId}", s.handleDeleteComment)
	return r
}

// middleware

type ctxKey int

const identityKey ctxKey = 0

func identityFrom(r *http.Request) model.Identity {
	id, _ := r.Context().Value(identityKey).(model.Identity)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// requireIdentity authenticates the bearer token against the Address header
// and resolves the wallet's assets exactly once. Handlers never re-resolve.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		address := r.Header.Get("Address")
		if token == "" || address == "" {
			writeError(w, r, http.StatusUnauthorized, "Missing authentication")
			return
		}

		session, err := s.auth.Authenticate(r.Context(), token, address)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		held, err := s.resolver.Resolve(r.Context(), session.Address)
		if err != nil {
			s.log.Error("asset resolution failed", "address", session.Address, "err", err)
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		id := model.Identity{Address: session.Address, Assets: held}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(raw, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return raw
}

// auth endpoints

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"challenge": s.auth.Challenge()})
}

func (s *Server) handleValidateWallet(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "login", s.limits.LoginPerMinute) {
		return
	}
	var req struct {
		Address   string `json:"address"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}

	session, err := s.auth.Login(r.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		if errors.Is(err, auth.ErrWrongChallenge) {
			writeError(w, r, http.StatusUnauthorized, "Message does not match challenge")
			return
		}
		writeError(w, r, http.StatusUnauthorized, "Signature invalid for address")
		return
	}

	s.log.Info("wallet validated", "address", session.Address)
	render.JSON(w, r, map[string]any{
		"token":     session.Token,
		"address":   session.Address,
		"expiresAt": session.ExpiresAt,
	})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	render.JSON(w, r, map[string]any{"address": id.Address, "assets": id.Assets})
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, scope string, perMinute int) bool {
	if s.limiter == nil {
		return true
	}
	key := scope + ":" + clientIP(r)
	ok, retry := s.limiter.Allow(key, perMinute, time.Minute)
	if !ok {
		w.Header().Set("Retry-After", retry.Round(time.Second).String())
		writeError(w, r, http.StatusTooManyRequests, "Too many requests")
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// content

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.ListContent(r.Context(), identityFrom(r))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.Content{}
	}
	render.JSON(w, r, map[string]any{"content": rows})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.engine.GetContent(r.Context(), identityFrom(r), chi.URLParam(r, "contentId"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"content": content})
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		IsPublic    bool   `json:"isPublic"`
		Token       string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}
	content, err := s.engine.CreateContent(r.Context(), identityFrom(r), engine.CreateContentInput{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Token:       req.Token,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"content": content})
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		IsPublic    bool   `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}
	content, err := s.engine.UpdateContent(r.Context(), identityFrom(r), chi.URLParam(r, "contentId"), engine.UpdateContentInput{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"content": content})
}

// posts

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.engine.ListPosts(r.Context(), identityFrom(r), r.URL.Query().Get("contentId"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	render.JSON(w, r, map[string]any{"posts": posts})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	detail, err := s.engine.GetPost(r.Context(), identityFrom(r), chi.URLParam(r, "postId"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"post": detail})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentID string `json:"contentId"`
		Title     string `json:"title"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}
	post, err := s.engine.CreatePost(r.Context(), identityFrom(r), engine.CreatePostInput{
		ContentID: req.ContentID,
		Title:     req.Title,
		Text:      req.Text,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"post": post})
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}
	post, err := s.engine.UpdatePost(r.Context(), identityFrom(r), chi.URLParam(r, "postId"), engine.UpdatePostInput{
		Title: req.Title,
		Text:  req.Text,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"post": post})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeletePost(r.Context(), identityFrom(r), chi.URLParam(r, "postId")); err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"deleted": true})
}

// comments

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	comments, err := s.engine.ListComments(r.Context(), identityFrom(r), q.Get("contentId"), q.Get("postId"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	render.JSON(w, r, map[string]any{"comments": comments})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostID  string `json:"postId"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}
	comment, err := s.engine.CreateComment(r.Context(), identityFrom(r), engine.CreateCommentInput{
		PostID:  req.PostID,
		Comment: req.Comment,
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"comment": comment})
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}
	comment, err := s.engine.UpdateComment(r.Context(), identityFrom(r), chi.URLParam(r, "commentId"), req.Comment)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"comment": comment})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteComment(r.Context(), identityFrom(r), chi.URLParam(r, "commentId")); err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"deleted": true})
}

// operational

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"version": s.version})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// error mapping

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindMalformedID:
		return http.StatusBadRequest
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindUnauthorized, engine.KindValidation, engine.KindConflict:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(engine.KindOf(err)), err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}
