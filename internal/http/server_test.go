package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletgate/walletgate/internal/assets"
	"github.com/walletgate/walletgate/internal/auth"
	"github.com/walletgate/walletgate/internal/engine"
	"github.com/walletgate/walletgate/internal/rate"
	"github.com/walletgate/walletgate/internal/store/memory"
	"github.com/walletgate/walletgate/internal/wallet"
)

const testChallenge = "Please sign this message to connect."

type testEnv struct {
	srv      *httptest.Server
	resolver *assets.Static
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	resolver := assets.NewStatic()
	eng := engine.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	authSvc := auth.NewService(st, time.Hour, testChallenge)
	server := NewServer(eng, authSvc, resolver, rate.NewMemory(), Limits{LoginPerMinute: 100}, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, resolver: resolver}
}

type session struct {
	key     *secp256k1.PrivateKey
	address string
	token   string
}

func (env *testEnv) login(t *testing.T) *session {
	t.Helper()
	key, err := wallet.NewKey()
	require.NoError(t, err)
	address := wallet.AddressOf(key.PubKey())

	status, body := env.do(t, http.MethodPost, "/api/validate-wallet", nil, map[string]string{
		"address":   address,
		"message":   testChallenge,
		"signature": wallet.Sign(key, testChallenge),
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var resp struct {
		Token   string `json:"token"`
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, address, resp.Address)
	return &session{key: key, address: address, token: resp.Token}
}

func (env *testEnv) do(t *testing.T, method, path string, sess *session, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.token)
		req.Header.Set("Address", sess.address)
	}
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}

func TestValidateWalletRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	key, err := wallet.NewKey()
	require.NoError(t, err)
	imposter, err := wallet.NewKey()
	require.NoError(t, err)

	// Signature from a different key than the claimed address.
	status, _ := env.do(t, http.MethodPost, "/api/validate-wallet", nil, map[string]string{
		"address":   wallet.AddressOf(key.PubKey()),
		"message":   testChallenge,
		"signature": wallet.Sign(imposter, testChallenge),
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Client-chosen message is refused even when correctly signed.
	status, _ = env.do(t, http.MethodPost, "/api/validate-wallet", nil, map[string]string{
		"address":   wallet.AddressOf(key.PubKey()),
		"message":   "message of my choosing",
		"signature": wallet.Sign(key, "message of my choosing"),
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthenticatedRoutesNeedTokenAndAddress(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t)

	status, _ := env.do(t, http.MethodGet, "/api/content", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Address header bound to someone else's bearer token.
	other := env.login(t)
	forged := &session{token: sess.token, address: other.address}
	status, _ = env.do(t, http.MethodGet, "/api/content", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/content", sess, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestContentLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t)
	env.resolver.Grant(sess.address, "tok-1")

	status, body := env.do(t, http.MethodPost, "/api/content", sess, map[string]any{
		"title": "gated drop", "token": "tok-1", "isPublic": true,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var created struct {
		Content struct {
			ID    string `json:"id"`
			Token string `json:"token"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	status, _ = env.do(t, http.MethodGet, "/api/content/"+created.Content.ID, sess, nil)
	assert.Equal(t, http.StatusOK, status)

	// Asset revocation takes effect on the very next request.
	env.resolver.Revoke(sess.address, "tok-1")
	status, body = env.do(t, http.MethodGet, "/api/content/"+created.Content.ID, sess, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token not available in wallet", errorMessage(t, body))
}

func TestStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t)

	status, body := env.do(t, http.MethodGet, "/api/content/not-a-uuid", sess, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Content ID malformed", errorMessage(t, body))

	status, body = env.do(t, http.MethodGet, "/api/posts/2c6a8e6e-9c1e-4b5f-9d35-111111111111", sess, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Post not found", errorMessage(t, body))

	status, body = env.do(t, http.MethodPost, "/api/content", sess, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Missing token", errorMessage(t, body))
}

func TestPostAndCommentFlow(t *testing.T) {
	env := newTestEnv(t)
	author := env.login(t)
	env.resolver.Grant(author.address, "tok-1")

	_, body := env.do(t, http.MethodPost, "/api/content", author, map[string]any{
		"title": "drop", "token": "tok-1",
	})
	var created struct {
		Content struct {
			ID string `json:"id"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	status, body := env.do(t, http.MethodPost, "/api/posts", author, map[string]any{
		"contentId": created.Content.ID, "title": "first", "text": "hello",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var postResp struct {
		Post struct {
			ID string `json:"id"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(body, &postResp))

	// A wallet without the token can still comment.
	commenter := env.login(t)
	status, body = env.do(t, http.MethodPost, "/api/comments", commenter, map[string]any{
		"postId": postResp.Post.ID, "comment": "nice",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var commentResp struct {
		Comment struct {
			ID string `json:"id"`
		} `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(body, &commentResp))

	// Post detail includes the live comment for any token holder.
	env.resolver.Grant(commenter.address, "tok-1")
	status, body = env.do(t, http.MethodGet, "/api/posts/"+postResp.Post.ID, commenter, nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		Post struct {
			Comments []struct {
				ID string `json:"id"`
			} `json:"comments"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(body, &detail))
	require.Len(t, detail.Post.Comments, 1)

	// Deleting hides the post; a repeat delete reads as missing.
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+postResp.Post.ID, author, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodDelete, "/api/posts/"+postResp.Post.ID, author, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWalletEndpointEchoesResolvedAssets(t *testing.T) {
	env := newTestEnv(t)
	sess := env.login(t)
	env.resolver.Grant(sess.address, "tok-1")
	env.resolver.Grant(sess.address, "tok-2")

	status, body := env.do(t, http.MethodGet, "/api/wallets", sess, nil)
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Address string   `json:"address"`
		Assets  []string `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, sess.address, resp.Address)
	assert.ElementsMatch(t, []string{"tok-1", "tok-2"}, resp.Assets)
}

func TestLoginRateLimit(t *testing.T) {
	st := memory.New()
	eng := engine.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	authSvc := auth.NewService(st, time.Hour, testChallenge)
	server := NewServer(eng, authSvc, assets.NewStatic(), rate.NewMemory(), Limits{LoginPerMinute: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()
	env := &testEnv{srv: srv}

	for i := 0; i < 2; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/validate-wallet", nil, map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := env.do(t, http.MethodPost, "/api/validate-wallet", nil, map[string]string{})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests", errorMessage(t, body))
}

func TestVersionAndStats(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/version", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"version":"test"}`, string(body))

	status, body = env.do(t, http.MethodGet, "/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"content":0,"posts":0,"comments":0}`, string(body))
}
