package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderhub/internal/pkg/logger"
	"orderhub/internal/pkg/metrics"
	"orderhub/internal/service/order/application"
	"orderhub/internal/service/order/domain"
)

// OrderAPI 是 HTTP 层对应用层的依赖面。
type OrderAPI interface {
	CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListOrdersByUserAndStatus(ctx context.Context, userID int64, status string) ([]*domain.Order, error)
	CountOrdersByUser(ctx context.Context, userID int64) (int64, error)
	ListOrdersByProduct(ctx context.Context, productID int64) ([]*domain.Order, error)
	ListOrdersByStatus(ctx context.Context, status string) ([]*domain.Order, error)
	ListOrdersByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Order, error)
	ListRecentOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (*domain.Order, error)
	CancelOrder(ctx context.Context, id int64) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*application.Stats, error)
	CountOrdersByStatus(ctx context.Context, status string) (int64, error)
	TotalSales(ctx context.Context) (decimal.Decimal, error)
	MostSoldProducts(ctx context.Context, limit int) ([]domain.ProductSales, error)
}

// IdempotencyGuard 把携带 Idempotency-Key 的重放创建请求映射回原订单。
type IdempotencyGuard interface {
	Seen(ctx context.Context, key string) (orderID int64, ok bool, err error)
	Record(ctx context.Context, key string, orderID int64) error
}

const idempotencyHeader = "Idempotency-Key"

// OrderHandler 封装订单服务的 HTTP 处理器。
type OrderHandler struct {
	service     OrderAPI
	idempotency IdempotencyGuard
	feed        *EventFeed
	metrics     *metrics.OrderMetrics
}

func NewOrderHandler(service OrderAPI, idempotency IdempotencyGuard, feed *EventFeed, m *metrics.OrderMetrics) *OrderHandler {
	return &OrderHandler{service: service, idempotency: idempotency, feed: feed, metrics: m}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /api/orders/user/{userId}", h.listByUser)
	mux.HandleFunc("GET /api/orders/user/{userId}/count", h.countByUser)
	mux.HandleFunc("GET /api/orders/product/{productId}", h.listByProduct)
	mux.HandleFunc("GET /api/orders/status/{status}", h.listByStatus)
	mux.HandleFunc("GET /api/orders/recent", h.listRecent)
	mux.HandleFunc("GET /api/orders/range", h.listByDateRange)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.updateStatus)
	mux.HandleFunc("PUT /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.deleteOrder)
	mux.HandleFunc("GET /api/orders/stats", h.stats)
	mux.HandleFunc("GET /api/orders/stats/total", h.statsTotal)
	mux.HandleFunc("GET /api/orders/stats/status/{status}", h.statsByStatus)
	mux.HandleFunc("GET /api/orders/stats/sales", h.statsSales)
	mux.HandleFunc("GET /api/orders/stats/top-products", h.statsTopProducts)

	if h.feed != nil {
		mux.HandleFunc("GET /ws/events", h.feed.Serve)
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTrace(r)

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, &domain.ValidationError{Field: "body", Value: nil, Reason: "request body must be valid JSON"})
		return
	}

	// 重放的创建请求直接返回原订单
	idemKey := r.Header.Get(idempotencyHeader)
	if idemKey != "" && h.idempotency != nil {
		if orderID, seen, err := h.idempotency.Seen(ctx, idemKey); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("idempotency lookup failed, proceeding without guard")
		} else if seen {
			order, err := h.service.GetOrder(ctx, orderID)
			if err == nil {
				h.writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "order already created", Data: order})
				return
			}
			logger.Ctx(ctx).Warn().Err(err).Int64("order_id", orderID).Msg("idempotent replay points at missing order")
		}
	}

	order, err := h.service.CreateOrder(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.Record(ctx, idemKey, order.ID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to record idempotency key")
		}
	}
	h.writeJSON(w, r, http.StatusCreated, envelope{Success: true, Message: "order created", Data: order})
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.service.GetOrder(extractTrace(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, order)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(extractTrace(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// 可选的 status 过滤
	var orders []*domain.Order
	if status := r.URL.Query().Get("status"); status != "" {
		orders, err = h.service.ListOrdersByUserAndStatus(extractTrace(r), userID, status)
	} else {
		orders, err = h.service.ListOrdersByUser(extractTrace(r), userID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) countByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := h.service.CountOrdersByUser(extractTrace(r), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, count)
}

func (h *OrderHandler) listByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.service.ListOrdersByProduct(extractTrace(r), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) listByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrdersByStatus(extractTrace(r), r.PathValue("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) listRecent(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListRecentOrders(extractTrace(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) listByDateRange(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.service.ListOrdersByDateRange(extractTrace(r), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := domain.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.service.UpdateStatus(extractTrace(r), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "order status updated to " + string(status), Data: order})
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.service.CancelOrder(extractTrace(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "order cancelled", Data: order})
}

func (h *OrderHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteOrder(extractTrace(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, envelope{Success: true, Message: "order deleted"})
}

func (h *OrderHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(extractTrace(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats)
}

func (h *OrderHandler) statsTotal(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(extractTrace(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats.TotalOrders)
}

func (h *OrderHandler) statsByStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountOrdersByStatus(extractTrace(r), r.PathValue("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, count)
}

func (h *OrderHandler) statsSales(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalSales(extractTrace(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, total)
}

func (h *OrderHandler) statsTopProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	top, err := h.service.MostSoldProducts(extractTrace(r), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, top)
}

// envelope 是变更类接口的统一响应壳。
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// errorBody 是错误响应体。
type errorBody struct {
	ErrorCode string    `json:"errorCode"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
}

// writeError 把领域错误分类映射为 HTTP 状态码：
// 校验 400，未找到 404，状态冲突类 409，外部服务 502，其余 500。
func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
		field  string
	)

	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	var transitionErr *domain.InvalidTransitionError
	var cancelErr *domain.CannotCancelError
	var deleteErr *domain.CannotDeleteError
	var stockErr *domain.InsufficientStockError
	var externalErr *domain.ExternalServiceError

	switch {
	case errors.As(err, &validationErr):
		status, code, field = http.StatusBadRequest, "ORDER_VALIDATION_ERROR", validationErr.Field
	case errors.As(err, &notFoundErr):
		status, code = http.StatusNotFound, "ORDER_NOT_FOUND"
	case errors.As(err, &transitionErr):
		status, code = http.StatusConflict, "ORDER_STATUS_ERROR"
	case errors.As(err, &cancelErr):
		status, code = http.StatusConflict, "ORDER_CANCELLATION_ERROR"
	case errors.As(err, &deleteErr):
		status, code = http.StatusConflict, "ORDER_DELETION_ERROR"
	case errors.As(err, &stockErr):
		status, code = http.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.As(err, &externalErr):
		status, code = http.StatusBadGateway, "EXTERNAL_SERVICE_ERROR"
	default:
		status, code = http.StatusInternalServerError, "INTERNAL_ERROR"
	}

	logger.Ctx(r.Context()).Warn().Err(err).
		Str("error_code", code).
		Str("path", r.URL.Path).
		Msg("request failed")

	h.writeJSON(w, r, status, errorBody{
		ErrorCode: code,
		Message:   err.Error(),
		Field:     field,
		Timestamp: time.Now(),
		Path:      r.URL.Path,
		Status:    status,
	})
}

func (h *OrderHandler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	if h.metrics != nil {
		h.metrics.HTTPRequests.WithLabelValues(r.Method+" "+r.URL.Path, strconv.Itoa(status)).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// extractTrace 从入站请求头恢复追踪上下文。
func extractTrace(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Value: raw, Reason: "must be a numeric id"}
	}
	return id, nil
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: name, Value: raw, Reason: "must be an RFC3339 timestamp"}
	}
	return t, nil
}
