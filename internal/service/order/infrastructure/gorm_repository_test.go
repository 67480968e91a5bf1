package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"orderhub/internal/service/order/domain"
)

func setupRepo(t *testing.T) *GormOrderRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := NewGormOrderRepository(db)
	require.NoError(t, repo.InitSchema())
	return repo
}

func seedOrder(t *testing.T, repo *GormOrderRepository, userID, productID int64, quantity int, unitPrice string) *domain.Order {
	t.Helper()
	order := domain.NewOrder(userID, productID, quantity, decimal.RequireFromString(unitPrice))
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestCreateAssignsIDAndRoundTrips(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	order := seedOrder(t, repo, 1, 100, 2, "1299.99")
	require.NotZero(t, order.ID)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)
	assert.Equal(t, int64(1), loaded.UserID)
	assert.Equal(t, int64(100), loaded.ProductID)
	assert.Equal(t, 2, loaded.Quantity)
	assert.True(t, loaded.TotalPrice.Equal(decimal.RequireFromString("2599.98")),
		"got %s", loaded.TotalPrice)
	assert.Equal(t, domain.StatusConfirmed, loaded.Status)
}

func TestFindByIDMissing(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.FindByID(context.Background(), 404)

	var nfe *domain.NotFoundError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, int64(404), nfe.ID)
}

func TestUpdateStatus(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	order := seedOrder(t, repo, 1, 100, 1, "10.00")

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.StatusCancelled))

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, loaded.Status)
	assert.False(t, loaded.UpdatedAt.Before(order.UpdatedAt))
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	repo := setupRepo(t)

	err := repo.UpdateStatus(context.Background(), 404, domain.StatusCancelled)

	var nfe *domain.NotFoundError
	require.True(t, errors.As(err, &nfe))
}

func TestDelete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	order := seedOrder(t, repo, 1, 100, 1, "10.00")

	require.NoError(t, repo.Delete(ctx, order.ID))

	_, err := repo.FindByID(ctx, order.ID)
	var nfe *domain.NotFoundError
	require.True(t, errors.As(err, &nfe))

	err = repo.Delete(ctx, order.ID)
	require.True(t, errors.As(err, &nfe))
}

func TestFinders(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	o1 := seedOrder(t, repo, 1, 100, 2, "10.00")
	seedOrder(t, repo, 1, 200, 1, "5.00")
	seedOrder(t, repo, 2, 100, 3, "10.00")
	require.NoError(t, repo.UpdateStatus(ctx, o1.ID, domain.StatusCancelled))

	byUser, err := repo.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byProduct, err := repo.FindByProductID(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, byProduct, 2)

	cancelled, err := repo.FindByStatus(ctx, domain.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, o1.ID, cancelled[0].ID)

	confirmedOfUser1, err := repo.FindByUserIDAndStatus(ctx, 1, domain.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmedOfUser1, 1)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFindByOrderDateBetween(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	seedOrder(t, repo, 1, 100, 1, "10.00")

	now := time.Now()
	inWindow, err := repo.FindByOrderDateBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, inWindow, 1)

	outOfWindow, err := repo.FindByOrderDateBetween(ctx, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, outOfWindow)
}

func TestCounts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	o1 := seedOrder(t, repo, 1, 100, 1, "10.00")
	seedOrder(t, repo, 1, 200, 1, "5.00")
	seedOrder(t, repo, 2, 100, 1, "10.00")
	require.NoError(t, repo.UpdateStatus(ctx, o1.ID, domain.StatusDelivered))

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	confirmed, err := repo.CountByStatus(ctx, domain.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), confirmed)

	ofUser1, err := repo.CountByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ofUser1)
}

func TestTotalSalesCountsOnlyConfirmed(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seedOrder(t, repo, 1, 100, 2, "1299.99")
	excluded := seedOrder(t, repo, 1, 200, 1, "999.99")
	require.NoError(t, repo.UpdateStatus(ctx, excluded.ID, domain.StatusCancelled))

	total, err := repo.TotalSales(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("2599.98")), "got %s", total)
}

func TestTotalSalesEmptyIsZero(t *testing.T) {
	repo := setupRepo(t)

	total, err := repo.TotalSales(context.Background())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.Zero))
}

func TestMostSoldProducts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seedOrder(t, repo, 1, 100, 2, "10.00")
	seedOrder(t, repo, 2, 100, 3, "10.00")
	seedOrder(t, repo, 1, 200, 4, "5.00")
	cancelled := seedOrder(t, repo, 1, 200, 50, "5.00")
	require.NoError(t, repo.UpdateStatus(ctx, cancelled.ID, domain.StatusCancelled))

	top, err := repo.MostSoldProducts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, domain.ProductSales{ProductID: 100, TotalQuantity: 5}, top[0])
	assert.Equal(t, domain.ProductSales{ProductID: 200, TotalQuantity: 4}, top[1])

	limited, err := repo.MostSoldProducts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
