package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"orderhub/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
// 状态更新走单条 UPDATE，满足单记录读-改-写的原子性要求。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// InitSchema 初始化订单表结构。
func (r *GormOrderRepository) InitSchema() error {
	if err := r.db.AutoMigrate(&OrderModel{}); err != nil {
		return errors.Wrap(err, "migrate orders table")
	}
	return nil
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "insert order")
	}
	// 回填数据库分配的主键与时间戳
	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Entity: "order", ID: id}
		}
		return nil, errors.Wrap(err, "query order by id")
	}
	return toDomainOrder(&model), nil
}

func (r *GormOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Order("order_date DESC").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query all orders")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("order_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query orders by user")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByProductID(ctx context.Context, productID int64) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("order_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query orders by product")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("order_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query orders by status")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByUserIDAndStatus(ctx context.Context, userID int64, status domain.Status) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(status)).
		Order("order_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query orders by user and status")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByOrderDateBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("order_date BETWEEN ? AND ?", start, end).
		Order("order_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query orders by date range")
	}
	return toDomainOrders(models), nil
}

// UpdateStatus 单条 UPDATE 写入新状态并刷新 updated_at。
// 目标记录不存在时返回 NotFoundError 而不是静默成功。
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "update order status")
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

func (r *GormOrderRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&OrderModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete order")
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).Count(&count).Error
	return count, errors.Wrap(err, "count orders")
}

func (r *GormOrderRepository) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	return count, errors.Wrap(err, "count orders by status")
}

func (r *GormOrderRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, errors.Wrap(err, "count orders by user")
}

// TotalSales 汇总 CONFIRMED 订单金额。COALESCE 保证空集返回零而非 NULL。
func (r *GormOrderRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("status = ?", string(domain.StatusConfirmed)).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, errors.Wrap(err, "sum confirmed sales")
	}
	return total, nil
}

func (r *GormOrderRepository) MostSoldProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	var results []domain.ProductSales
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Select("product_id, SUM(quantity) AS total_quantity").
		Where("status = ?", string(domain.StatusConfirmed)).
		Group("product_id").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, errors.Wrap(err, "aggregate most sold products")
	}
	return results, nil
}
