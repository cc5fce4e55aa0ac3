package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"private-stake-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		switch r.URL.Path {
		case "/v1/echo":
			assert.Equal(t, "native", r.URL.Query().Get("token"))
			_, _ = w.Write([]byte(`{"amount":"42"}`))
		case "/v1/post":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_ = json.NewEncoder(w).Encode(map[string]string{"got": body["x"]})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, err)
	c = c.WithHeader("X-Api-Key", "secret")

	var got struct {
		Amount string `json:"amount"`
	}
	require.NoError(t, c.Get(context.Background(), "/v1/echo", url.Values{"token": {"native"}}, &got))
	assert.Equal(t, "42", got.Amount)

	var echoed map[string]string
	require.NoError(t, c.Post(context.Background(), "/v1/post", map[string]string{"x": "y"}, &echoed))
	assert.Equal(t, "y", echoed["got"])
}

func TestClientErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"simulation failed"}`))
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("maintenance"))
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	err = c.Post(context.Background(), "/bad", nil, nil)
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "simulation failed")

	err = c.Post(context.Background(), "/down", nil, nil)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
	assert.False(t, IsClientError(err))
}

func TestClientUnreachable(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", time.Second)
	require.NoError(t, err)
	err = c.Get(context.Background(), "/", nil, nil)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("", time.Second)
	assert.Error(t, err)
}
