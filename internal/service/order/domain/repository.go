package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductSales 是按商品聚合的已确认销量。
type ProductSales struct {
	ProductID     int64
	TotalQuantity int64
}

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，由基础设施层实现。FindByID 对缺失记录返回 NotFoundError。
// 单条订单的状态更新必须是一次原子持久化操作。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindAll(ctx context.Context) ([]*Order, error)
	FindByUserID(ctx context.Context, userID int64) ([]*Order, error)
	FindByProductID(ctx context.Context, productID int64) ([]*Order, error)
	FindByStatus(ctx context.Context, status Status) ([]*Order, error)
	FindByUserIDAndStatus(ctx context.Context, userID int64, status Status) ([]*Order, error)
	FindByOrderDateBetween(ctx context.Context, start, end time.Time) ([]*Order, error)

	// UpdateStatus 原子地写入新状态并刷新 updated_at。
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error

	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)

	// TotalSales 汇总 CONFIRMED 订单的 total_price，无记录时返回零值而非缺失。
	TotalSales(ctx context.Context) (decimal.Decimal, error)
	MostSoldProducts(ctx context.Context, limit int) ([]ProductSales, error)
}
