package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 生命周期事件类型。事件发布是尽力而为的，任何发布失败都不会影响触发它的操作。
const (
	EventOrderCreated            = "order.created"
	EventOrderStatusChanged      = "order.status_changed"
	EventOrderCancelled          = "order.cancelled"
	EventOrderDeleted            = "order.deleted"
	EventOrderCompensationFailed = "order.compensation_failed"
)

// Event 是订单生命周期事件的统一信封。
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    int64           `json:"orderId"`
	UserID     int64           `json:"userId"`
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	From       Status          `json:"from,omitempty"`
	To         Status          `json:"to,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}
