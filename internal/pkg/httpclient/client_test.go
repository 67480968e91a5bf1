package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"user-service": "http://users:8081"}

	base, err := r.Resolve("user-service")
	require.NoError(t, err)
	assert.Equal(t, "http://users:8081", base)

	_, err = r.Resolve("unknown-service")
	assert.Error(t, err)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/things/1", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("quantity"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"thing"}`))
	}))
	defer server.Close()

	c := NewClient(otel.Tracer("test"), StaticResolver{"things": server.URL})

	var out struct {
		Name string `json:"name"`
	}
	query := url.Values{}
	query.Set("quantity", "5")
	require.NoError(t, c.GetJSON(context.Background(), "things", "/api/things/1", query, &out))
	assert.Equal(t, "thing", out.Name)
}

func TestGetJSONNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(otel.Tracer("test"), StaticResolver{"things": server.URL})

	err := c.GetJSON(context.Background(), "things", "/api/things/1", nil, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetJSONServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(otel.Tracer("test"), StaticResolver{"things": server.URL})

	err := c.GetJSON(context.Background(), "things", "/api/things/1", nil, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestGetJSONUnresolvableService(t *testing.T) {
	c := NewClient(otel.Tracer("test"), StaticResolver{})
	err := c.GetJSON(context.Background(), "ghost", "/x", nil, nil)
	assert.Error(t, err)
}
