package application

import (
	"context"
	"fmt"
	"time"

	"orderhub/internal/pkg/logger"
	"orderhub/internal/pkg/metrics"
	"orderhub/internal/service/order/domain"
	"orderhub/internal/service/order/port"
)

const productService = "product-service"

// StockCoordinator 把商品目录端口上的库存操作包装成编排器需要的三个原语，
// 将网络失败处理与业务流程隔离。Check/Reserve 的失败对调用方可见，
// Release 是尽力而为的补偿原语，失败只体现为 false。
type StockCoordinator struct {
	catalog port.ProductCatalog
	metrics *metrics.OrderMetrics
}

func NewStockCoordinator(catalog port.ProductCatalog, m *metrics.OrderMetrics) *StockCoordinator {
	return &StockCoordinator{catalog: catalog, metrics: m}
}

// CheckStock 查询商品侧的可售性。传输失败以 ExternalServiceError 上抛，
// 而不是静默当作"无库存"，由调用方决定中止还是重试。
func (c *StockCoordinator) CheckStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	start := time.Now()
	ok, err := c.catalog.CheckStock(ctx, productID, quantity)
	c.observe("CheckStock", start)
	if err != nil {
		return false, &domain.ExternalServiceError{Service: productService, Operation: "CheckStock", Cause: err}
	}
	return ok, nil
}

// ReserveStock 同步预占库存。传输失败和商品侧拒绝都会中止创建流程。
func (c *StockCoordinator) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	start := time.Now()
	ok, err := c.catalog.ReduceStock(ctx, productID, quantity)
	c.observe("ReduceStock", start)
	if err != nil {
		return &domain.ExternalServiceError{Service: productService, Operation: "ReduceStock", Cause: err}
	}
	if !ok {
		return &domain.ExternalServiceError{Service: productService, Operation: "ReduceStock",
			Cause: fmt.Errorf("stock reservation refused for product %d (quantity %d)", productID, quantity)}
	}
	return nil
}

// ReleaseStock 归还库存，契约是尽力而为：任何失败只返回 false，绝不报错，
// 触发它的订单操作已经提交，不允许被下游故障拖垮。
func (c *StockCoordinator) ReleaseStock(ctx context.Context, productID int64, quantity int) bool {
	start := time.Now()
	ok, err := c.catalog.IncreaseStock(ctx, productID, quantity)
	c.observe("IncreaseStock", start)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Int64("product_id", productID).
			Int("quantity", quantity).
			Msg("stock release failed, order state stands")
		c.countCompensationFailure()
		return false
	}
	if !ok {
		logger.Ctx(ctx).Warn().
			Int64("product_id", productID).
			Int("quantity", quantity).
			Msg("product service refused stock release, order state stands")
		c.countCompensationFailure()
	}
	return ok
}

func (c *StockCoordinator) observe(operation string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ExternalCallDuration.
			WithLabelValues(productService, operation).
			Observe(time.Since(start).Seconds())
	}
}

func (c *StockCoordinator) countCompensationFailure() {
	if c.metrics != nil {
		c.metrics.CompensationFailures.Inc()
	}
}
