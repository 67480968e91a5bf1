package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderhub/internal/pkg/httpclient"
)

func newClientFor(t *testing.T, service string, handler http.Handler) *httpclient.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return httpclient.NewClient(otel.Tracer("test"), httpclient.StaticResolver{service: server.URL})
}

func TestUserAdapterGetUser(t *testing.T) {
	client := newClientFor(t, "user-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"张伟","email":"zhangwei@example.com"}`))
	}))
	users := NewUserHTTPAdapter(client, "user-service")

	user, err := users.GetUser(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "张伟", user.Name)
}

func TestUserAdapterMissingUserIsNilNotError(t *testing.T) {
	client := newClientFor(t, "user-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	users := NewUserHTTPAdapter(client, "user-service")

	user, err := users.GetUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserAdapterServerErrorIsError(t *testing.T) {
	client := newClientFor(t, "user-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	users := NewUserHTTPAdapter(client, "user-service")

	_, err := users.GetUser(context.Background(), 1)
	require.Error(t, err)
}

func TestCatalogAdapterGetProduct(t *testing.T) {
	client := newClientFor(t, "product-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/100", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":100,"name":"laptop","price":"1299.99","stock":10}`))
	}))
	catalog := NewCatalogHTTPAdapter(client, "product-service")

	product, err := catalog.GetProduct(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("1299.99")))
	assert.Equal(t, 10, product.Stock)
}

func TestCatalogAdapterMissingProductIsNilNotError(t *testing.T) {
	client := newClientFor(t, "product-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	catalog := NewCatalogHTTPAdapter(client, "product-service")

	product, err := catalog.GetProduct(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestCatalogAdapterStockOperations(t *testing.T) {
	var gotPath, gotQuantity string
	client := newClientFor(t, "product-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuantity = r.URL.Query().Get("quantity")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`true`))
	}))
	catalog := NewCatalogHTTPAdapter(client, "product-service")
	ctx := context.Background()

	ok, err := catalog.CheckStock(ctx, 100, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/api/products/100/check-stock", gotPath)
	assert.Equal(t, "5", gotQuantity)

	_, err = catalog.ReduceStock(ctx, 100, 5)
	require.NoError(t, err)
	assert.Equal(t, "/api/products/100/reduce-stock", gotPath)

	_, err = catalog.IncreaseStock(ctx, 100, 5)
	require.NoError(t, err)
	assert.Equal(t, "/api/products/100/increase-stock", gotPath)
}

func TestCatalogAdapterRefusalIsFalseNotError(t *testing.T) {
	client := newClientFor(t, "product-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`false`))
	}))
	catalog := NewCatalogHTTPAdapter(client, "product-service")

	ok, err := catalog.ReduceStock(context.Background(), 100, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogAdapterTransportFailureIsError(t *testing.T) {
	client := newClientFor(t, "product-service", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	catalog := NewCatalogHTTPAdapter(client, "product-service")

	_, err := catalog.CheckStock(context.Background(), 100, 5)
	require.Error(t, err)
}
