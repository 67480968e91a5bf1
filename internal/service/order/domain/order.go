package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 是订单聚合根。Quantity 与 TotalPrice 创建后不再变化，
// Status 只能经由状态机迁移。
type Order struct {
	ID         int64
	UserID     int64
	ProductID  int64
	Quantity   int
	TotalPrice decimal.Decimal
	Status     Status
	OrderDate  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOrder 在校验、外部核对与库存预占都通过后构造订单实体。
// 价格在此刻锁定：TotalPrice = unitPrice × quantity，后续不再重算。
// 当前创建路径直接进入 CONFIRMED，不落地中间的 PENDING。
func NewOrder(userID, productID int64, quantity int, unitPrice decimal.Decimal) *Order {
	now := time.Now()
	return &Order{
		UserID:     userID,
		ProductID:  productID,
		Quantity:   quantity,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Status:     StatusConfirmed,
		OrderDate:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ChangeStatus 经状态机迁移到目标状态，返回该迁移隐含的副作用描述。
// 迁移被拒绝时实体保持不变。
func (o *Order) ChangeStatus(to Status) (Transition, error) {
	tr, err := CanTransition(o.ID, o.Status, to)
	if err != nil {
		return Transition{}, err
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return tr, nil
}

// Cancellable 报告订单是否处于允许取消的状态。
func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// Deletable 报告订单是否允许删除。已送达的订单是永久记录。
func (o *Order) Deletable() bool {
	return o.Status != StatusDelivered
}
