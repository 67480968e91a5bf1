package domain

import "fmt"

// 订单服务的错误分类。调用方通过 errors.As 针对具体类别选择处理策略：
// 校验类与领域类错误不可重试，传输类失败统一收敛为 ExternalServiceError。

// ValidationError 表示输入在触达任何外部调用之前即被拒绝。
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q (value %v): %s", e.Field, e.Value, e.Reason)
}

// NotFoundError 表示按主键查找的实体不存在。
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ExternalServiceError 包装对协作方（用户服务、商品服务、存储）的失败，
// 不向上层泄露传输细节。
type ExternalServiceError struct {
	Service   string
	Operation string
	Cause     error
}

func (e *ExternalServiceError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s failed on %s", e.Service, e.Operation)
	}
	return fmt.Sprintf("%s failed on %s: %v", e.Service, e.Operation, e.Cause)
}

func (e *ExternalServiceError) Unwrap() error { return e.Cause }

// InsufficientStockError 携带请求量与商品侧报告的可用量。
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidTransitionError 表示状态机拒绝了一次迁移。
type InvalidTransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d: invalid status transition %s -> %s", e.OrderID, e.From, e.To)
}

// CannotCancelError 是取消路径上比通用状态机更具体的拒绝。
type CannotCancelError struct {
	OrderID int64
	Status  Status
}

func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("order %d cannot be cancelled in status %s", e.OrderID, e.Status)
}

// CannotDeleteError 表示订单处于不允许删除的状态（已送达的订单是永久记录）。
type CannotDeleteError struct {
	OrderID int64
	Status  Status
}

func (e *CannotDeleteError) Error() string {
	return fmt.Sprintf("order %d cannot be deleted in status %s", e.OrderID, e.Status)
}
