package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracleResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/0xabc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"assets":["LLAMA1","LLAMA2"]}`))
	}))
	defer srv.Close()

	oracle := NewOracle(srv.URL)
	owned, err := oracle.Resolve(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []string{"LLAMA1", "LLAMA2"}, owned)
}

func TestOracleResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	oracle := NewOracle(srv.URL)
	_, err := oracle.Resolve(context.Background(), "0xabc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestOracleResolveUnreachable(t *testing.T) {
	oracle := NewOracle("http://127.0.0.1:1")
	_, err := oracle.Resolve(context.Background(), "0xabc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestStaticGrantRevoke(t *testing.T) {
	s := NewStatic()
	s.Grant("0xabc", "LLAMA1")
	s.Grant("0xabc", "LLAMA1") // idempotent
	s.Grant("0xabc", "LLAMA2")

	owned, err := s.Resolve(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []string{"LLAMA1", "LLAMA2"}, owned)

	s.Revoke("0xabc", "LLAMA1")
	owned, err = s.Resolve(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []string{"LLAMA2"}, owned)

	owned, err = s.Resolve(context.Background(), "0xother")
	require.NoError(t, err)
	assert.Empty(t, owned)
}
