package domain

import "strings"

// Status 定义了订单生命周期的闭合状态集。
type Status string

const (
	StatusPending   Status = "PENDING"   // 已创建但未确认（当前创建路径不会产生，保留给历史数据）
	StatusConfirmed Status = "CONFIRMED" // 已确认，库存已按策略预占
	StatusCancelled Status = "CANCELLED" // 已取消（终态）
	StatusDelivered Status = "DELIVERED" // 已送达（终态）
)

// AllStatuses 按固定顺序列出所有合法状态，用于校验提示。
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusDelivered}

// ParseStatus 将外部输入解析为状态枚举，大小写不敏感。
// 无法解析时返回带合法取值集合的 ValidationError。
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", &ValidationError{
		Field:  "status",
		Value:  raw,
		Reason: "invalid status, valid values: PENDING, CONFIRMED, CANCELLED, DELIVERED",
	}
}

// IsTerminal 报告该状态是否没有任何出边。
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Transition 描述一次合法状态迁移隐含的副作用。
type Transition struct {
	From Status
	To   Status

	// RequiresStockRelease 标记该迁移需要补偿性的库存释放。
	// 整张迁移表中只有 CONFIRMED -> CANCELLED 置位。
	RequiresStockRelease bool
}

// transitions 是有向迁移表。新增状态只需要改这份数据，不需要改控制流。
var transitions = map[Status]map[Status]Transition{
	StatusPending: {
		StatusConfirmed: {From: StatusPending, To: StatusConfirmed},
		StatusCancelled: {From: StatusPending, To: StatusCancelled},
	},
	StatusConfirmed: {
		StatusDelivered: {From: StatusConfirmed, To: StatusDelivered},
		StatusCancelled: {From: StatusConfirmed, To: StatusCancelled, RequiresStockRelease: true},
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition 判定 from -> to 是否为表内迁移。
// 非法迁移返回携带订单号与前后状态的 InvalidTransitionError。
func CanTransition(orderID int64, from, to Status) (Transition, error) {
	if tr, ok := transitions[from][to]; ok {
		return tr, nil
	}
	return Transition{}, &InvalidTransitionError{OrderID: orderID, From: from, To: to}
}
