package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"orderhub/internal/pkg/logger"
	"orderhub/internal/pkg/metrics"
	"orderhub/internal/service/order/application/rule"
	"orderhub/internal/service/order/domain"
	"orderhub/internal/service/order/port"
)

const (
	userService = "user-service"
	selfService = "order-service"

	// maxQuantity 是单笔订单的数量上限。
	maxQuantity = 1000

	// recentWindow 是"最近订单"查询的固定时间窗。
	recentWindow = 24 * time.Hour
)

// OrderService 是订单生命周期的编排器。
// 创建流程跨两个外部服务与本地存储；取消/删除路径上库存补偿在状态提交之后
// 尽力执行，补偿失败不回滚已提交的订单状态。
type OrderService struct {
	repo      domain.OrderRepository
	users     port.UserDirectory
	stock     *StockCoordinator
	rules     *rule.Engine
	publisher port.EventPublisher
	lock      port.OrderLock
	tracer    trace.Tracer
	metrics   *metrics.OrderMetrics

	// reserveOnCreate 为真时创建路径同步预占库存，预占失败中止创建。
	reserveOnCreate bool
}

// Options 汇集编排器的可选依赖，nil 字段表示该能力未启用。
type Options struct {
	Rules           *rule.Engine
	Publisher       port.EventPublisher
	Lock            port.OrderLock
	Metrics         *metrics.OrderMetrics
	ReserveOnCreate bool
}

func NewOrderService(repo domain.OrderRepository, users port.UserDirectory, stock *StockCoordinator, tracer trace.Tracer, opts Options) *OrderService {
	return &OrderService{
		repo:            repo,
		users:           users,
		stock:           stock,
		rules:           opts.Rules,
		publisher:       opts.Publisher,
		lock:            opts.Lock,
		tracer:          tracer,
		metrics:         opts.Metrics,
		reserveOnCreate: opts.ReserveOnCreate,
	}
}

// CreateOrder 执行创建工作流：
// 校验 -> 接单规则 -> 用户核对 -> 商品核对 -> 库存校验 ->（按策略）预占 ->
// 锁价 -> 持久化 CONFIRMED。任何一步失败都不会留下半成品订单；
// 预占之后的持久化失败会触发一次尽力而为的库存回补。
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.user_id", req.UserID),
		attribute.Int64("order.product_id", req.ProductID),
		attribute.Int("order.quantity", req.Quantity),
	)

	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}
	if err := s.rules.Check(req.UserID, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}

	user, err := s.lookupUser(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	product, err := s.lookupProduct(ctx, req.ProductID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product lookup failed")
		return nil, err
	}

	ok, err := s.stock.CheckStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock check failed")
		return nil, err
	}
	if !ok {
		// 可用量取自上一步拿到的商品快照，省掉一次往返，接受短暂的陈旧风险
		return nil, &domain.InsufficientStockError{
			ProductID: req.ProductID,
			Requested: req.Quantity,
			Available: product.Stock,
		}
	}

	reserved := false
	if s.reserveOnCreate {
		if err := s.stock.ReserveStock(ctx, req.ProductID, req.Quantity); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock reservation failed")
			return nil, err
		}
		reserved = true
	}

	order := domain.NewOrder(req.UserID, req.ProductID, req.Quantity, product.Price)
	if err := s.repo.Create(ctx, order); err != nil {
		// 订单没落地，把刚预占的库存还回去，失败也只能记录
		if reserved {
			s.stock.ReleaseStock(ctx, req.ProductID, req.Quantity)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "order persistence failed")
		return nil, &domain.ExternalServiceError{Service: selfService, Operation: "CreateOrder", Cause: err}
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	logger.Ctx(ctx).Info().
		Int64("order_id", order.ID).
		Int64("user_id", user.ID).
		Int64("product_id", product.ID).
		Str("total_price", order.TotalPrice.String()).
		Msg("order created")

	s.publish(ctx, domain.Event{
		Type:       domain.EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		To:         order.Status,
	})
	return order, nil
}

// UpdateStatus 推进订单状态。状态写入先提交；若该迁移隐含库存释放，
// 补偿在提交之后尽力执行，结果只作记录。
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, newStatus domain.Status) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("order.new_status", string(newStatus)))

	release, err := s.acquireLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.transition(ctx, id, newStatus)
}

// transition 持有订单锁的前提下执行一次状态迁移。
func (s *OrderService) transition(ctx context.Context, id int64, newStatus domain.Status) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.Status
	tr, err := order.ChangeStatus(newStatus)
	if err != nil {
		return nil, err
	}

	// 不可补偿的持久化步骤：先提交，订单状态自此为准
	if err := s.repo.UpdateStatus(ctx, id, newStatus); err != nil {
		return nil, &domain.ExternalServiceError{Service: selfService, Operation: "UpdateStatus", Cause: err}
	}

	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(from), string(newStatus)).Inc()
	}
	logger.Ctx(ctx).Info().
		Int64("order_id", id).
		Str("from", string(from)).
		Str("to", string(newStatus)).
		Msg("order status updated")

	if tr.RequiresStockRelease {
		if !s.stock.ReleaseStock(ctx, order.ProductID, order.Quantity) {
			s.publish(ctx, domain.Event{
				Type:      domain.EventOrderCompensationFailed,
				OrderID:   id,
				UserID:    order.UserID,
				ProductID: order.ProductID,
				Quantity:  order.Quantity,
				Detail:    "stock release after cancellation did not succeed",
			})
		}
	}

	eventType := domain.EventOrderStatusChanged
	if newStatus == domain.StatusCancelled {
		eventType = domain.EventOrderCancelled
	}
	s.publish(ctx, domain.Event{
		Type:       eventType,
		OrderID:    id,
		UserID:     order.UserID,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		From:       from,
		To:         newStatus,
	})
	return order, nil
}

// CancelOrder 是取消入口，在咨询通用状态机之前先给常见场景一个更具体的错误。
func (s *OrderService) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	release, err := s.acquireLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Cancellable() {
		return nil, &domain.CannotCancelError{OrderID: id, Status: order.Status}
	}

	return s.transition(ctx, id, domain.StatusCancelled)
}

// DeleteOrder 删除订单。已送达的订单是永久记录不可删除；
// 已确认订单先尽力归还库存再删除，归还失败不阻塞删除。
// 存储删除失败是此路径上唯一致命的存储错误——没有需要保全的补偿状态。
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "order.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	if id <= 0 {
		return &domain.ValidationError{Field: "id", Value: id, Reason: "order id must be a positive number"}
	}

	release, err := s.acquireLock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !order.Deletable() {
		return &domain.CannotDeleteError{OrderID: id, Status: order.Status}
	}

	if order.Status == domain.StatusConfirmed {
		s.stock.ReleaseStock(ctx, order.ProductID, order.Quantity)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return &domain.ExternalServiceError{Service: selfService, Operation: "DeleteOrder", Cause: err}
	}

	logger.Ctx(ctx).Info().Int64("order_id", id).Msg("order deleted")
	s.publish(ctx, domain.Event{
		Type:      domain.EventOrderDeleted,
		OrderID:   id,
		UserID:    order.UserID,
		ProductID: order.ProductID,
		Quantity:  order.Quantity,
		From:      order.Status,
	})
	return nil
}

// GetOrder 按主键查询。
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, &domain.ValidationError{Field: "id", Value: id, Reason: "order id must be a positive number"}
	}
	return s.repo.FindByID(ctx, id)
}

// ListOrders 返回全部订单。
func (s *OrderService) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.FindAll(ctx)
}

// ListOrdersByUser 按本地外键查询，不回访用户服务复核存在性。
func (s *OrderService) ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if userID <= 0 {
		return nil, &domain.ValidationError{Field: "userId", Value: userID, Reason: "user id must be a positive number"}
	}
	return s.repo.FindByUserID(ctx, userID)
}

func (s *OrderService) ListOrdersByProduct(ctx context.Context, productID int64) ([]*domain.Order, error) {
	if productID <= 0 {
		return nil, &domain.ValidationError{Field: "productId", Value: productID, Reason: "product id must be a positive number"}
	}
	return s.repo.FindByProductID(ctx, productID)
}

// ListOrdersByStatus 解析字符串状态后查询，非法取值以 ValidationError 拒绝。
func (s *OrderService) ListOrdersByStatus(ctx context.Context, rawStatus string) ([]*domain.Order, error) {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByStatus(ctx, status)
}

func (s *OrderService) ListOrdersByUserAndStatus(ctx context.Context, userID int64, rawStatus string) ([]*domain.Order, error) {
	if userID <= 0 {
		return nil, &domain.ValidationError{Field: "userId", Value: userID, Reason: "user id must be a positive number"}
	}
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserIDAndStatus(ctx, userID, status)
}

func (s *OrderService) ListOrdersByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	if end.Before(start) {
		return nil, &domain.ValidationError{Field: "endDate", Value: end, Reason: "end date must not precede start date"}
	}
	return s.repo.FindByOrderDateBetween(ctx, start, end)
}

// ListRecentOrders 返回固定 24 小时窗口内的订单。
func (s *OrderService) ListRecentOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.FindByOrderDateBetween(ctx, time.Now().Add(-recentWindow), time.Now())
}

// CountOrdersByUser 统计某用户名下的订单数量。
func (s *OrderService) CountOrdersByUser(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, &domain.ValidationError{Field: "userId", Value: userID, Reason: "user id must be a positive number"}
	}
	return s.repo.CountByUserID(ctx, userID)
}

// CountOrdersByStatus 解析字符串状态后计数。
func (s *OrderService) CountOrdersByStatus(ctx context.Context, rawStatus string) (int64, error) {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return 0, err
	}
	return s.repo.CountByStatus(ctx, status)
}

// TotalSales 返回 CONFIRMED 订单的销售总额，空集时为精确零。
func (s *OrderService) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.TotalSales(ctx)
}

// MostSoldProducts 返回按已确认销量排序的商品聚合。
func (s *OrderService) MostSoldProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.MostSoldProducts(ctx, limit)
}

// Stats 并发执行各聚合查询后汇总。
func (s *OrderService) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := s.tracer.Start(ctx, "order.Stats")
	defer span.End()

	stats := &Stats{CountByStatus: make(map[domain.Status]int64, len(domain.AllStatuses))}
	var counts [4]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.repo.Count(gctx)
		stats.TotalOrders = total
		return err
	})
	g.Go(func() error {
		total, err := s.repo.TotalSales(gctx)
		stats.TotalSales = total
		return err
	})
	for i, status := range domain.AllStatuses {
		g.Go(func() error {
			n, err := s.repo.CountByStatus(gctx, status)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, &domain.ExternalServiceError{Service: selfService, Operation: "Stats", Cause: err}
	}
	for i, status := range domain.AllStatuses {
		stats.CountByStatus[status] = counts[i]
	}
	return stats, nil
}

// lookupUser 核对用户存在性。缺失与传输失败都会中止创建，
// 但错误信息区分两种情况。
func (s *OrderService) lookupUser(ctx context.Context, userID int64) (*port.User, error) {
	start := time.Now()
	user, err := s.users.GetUser(ctx, userID)
	if s.metrics != nil {
		s.metrics.ExternalCallDuration.WithLabelValues(userService, "GetUser").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: userService, Operation: "GetUser", Cause: err}
	}
	if user == nil {
		return nil, &domain.ExternalServiceError{Service: userService, Operation: "GetUser",
			Cause: &domain.NotFoundError{Entity: "user", ID: userID}}
	}
	return user, nil
}

func (s *OrderService) lookupProduct(ctx context.Context, productID int64) (*port.Product, error) {
	start := time.Now()
	product, err := s.stock.catalog.GetProduct(ctx, productID)
	if s.metrics != nil {
		s.metrics.ExternalCallDuration.WithLabelValues(productService, "GetProduct").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: productService, Operation: "GetProduct", Cause: err}
	}
	if product == nil {
		return nil, &domain.ExternalServiceError{Service: productService, Operation: "GetProduct",
			Cause: &domain.NotFoundError{Entity: "product", ID: productID}}
	}
	return product, nil
}

func (s *OrderService) acquireLock(ctx context.Context, id int64) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	release, err := s.lock.Acquire(ctx, id)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: selfService, Operation: "AcquireLock", Cause: err}
	}
	return release, nil
}

// publish 发布生命周期事件。发布是尽力而为的，失败只记日志。
func (s *OrderService) publish(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	event.ID = uuid.New().String()
	event.OccurredAt = time.Now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("event_type", event.Type).
			Int64("order_id", event.OrderID).
			Msg("failed to publish order event")
	}
}

func validateCreateRequest(req CreateOrderRequest) error {
	if req.UserID <= 0 {
		return &domain.ValidationError{Field: "userId", Value: req.UserID, Reason: "user id must be a positive number"}
	}
	if req.ProductID <= 0 {
		return &domain.ValidationError{Field: "productId", Value: req.ProductID, Reason: "product id must be a positive number"}
	}
	if req.Quantity <= 0 {
		return &domain.ValidationError{Field: "quantity", Value: req.Quantity, Reason: "quantity must be a positive number"}
	}
	if req.Quantity > maxQuantity {
		return &domain.ValidationError{Field: "quantity", Value: req.Quantity, Reason: "quantity must not exceed 1000 units"}
	}
	return nil
}
