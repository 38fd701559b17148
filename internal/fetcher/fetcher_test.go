package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPBackend(t *testing.T) *HTTPBackend {
	t.Helper()
	b, err := NewHTTPBackend(config.NewDefaultFetchConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	return b
}

func TestRegistryFallback(t *testing.T) {
	r := NewRegistry(BackendHTTP, zerolog.Nop())
	httpBackend := newHTTPBackend(t)
	r.Register(httpBackend)

	assert.Same(t, Backend(httpBackend), r.Resolve(""))
	assert.Same(t, Backend(httpBackend), r.Resolve("no-such-backend"))
	assert.Same(t, Backend(httpBackend), r.Resolve(BackendHTTP))
}

func TestHTTPFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	b := newHTTPBackend(t)
	resp, err := b.Fetch(context.Background(), Request{
		URL:     server.URL,
		Headers: map[string]string{"X-Custom": "value"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Contains(t, string(resp.Content), "ok")
}

func TestHTTPFetchEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	b := newHTTPBackend(t)
	_, err := b.Fetch(context.Background(), Request{URL: server.URL})
	require.Error(t, err)

	var ce *models.CheckError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, models.CheckErrorEmptyReply, ce.Kind)
	assert.Equal(t, http.StatusNoContent, ce.StatusCode)
}

func TestHTTPFetchConnectionRefused(t *testing.T) {
	b := newHTTPBackend(t)
	_, err := b.Fetch(context.Background(), Request{URL: "http://127.0.0.1:1", Timeout: time.Second})
	require.Error(t, err)

	var ce *models.CheckError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, models.CheckErrorPageUnloadable, ce.Kind)
}

func TestHTTPFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(400 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	b := newHTTPBackend(t)
	_, err := b.Fetch(context.Background(), Request{URL: server.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)

	var ce *models.CheckError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, models.CheckErrorPageUnloadable, ce.Kind)
}

func TestHTTPFetchMethodAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte("posted"))
	}))
	defer server.Close()

	b := newHTTPBackend(t)
	resp, err := b.Fetch(context.Background(), Request{
		URL:    server.URL,
		Method: http.MethodPost,
		Body:   `{"q":"check"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "posted", string(resp.Content))
}
