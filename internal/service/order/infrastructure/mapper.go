package infrastructure

import "orderhub/internal/service/order/domain"

func toDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:         m.ID,
		UserID:     m.UserID,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		TotalPrice: m.TotalPrice,
		Status:     domain.Status(m.Status),
		OrderDate:  m.OrderDate,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toDomainOrders(models []OrderModel) []*domain.Order {
	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = toDomainOrder(&models[i])
	}
	return orders
}

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:         o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		OrderDate:  o.OrderDate,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}
