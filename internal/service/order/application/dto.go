package application

import (
	"github.com/shopspring/decimal"

	"orderhub/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据。
type CreateOrderRequest struct {
	UserID    int64 `json:"userId"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Stats 是订单统计查询的输出。
// TotalSales 只统计 CONFIRMED 订单，无记录时为精确零值。
type Stats struct {
	TotalOrders   int64                   `json:"totalOrders"`
	CountByStatus map[domain.Status]int64 `json:"countByStatus"`
	TotalSales    decimal.Decimal         `json:"totalSales"`
}
