package model

// OrderStatus описывает статус заказа. Статусы двигаются только вперёд.
type OrderStatus string

const (
	OrderStatusOrdered   OrderStatus = "ORDERED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

var statusRank = map[OrderStatus]int{
	OrderStatusOrdered:   0,
	OrderStatusPreparing: 1,
	OrderStatusShipping:  2,
	OrderStatusDelivered: 3,
}

// IsValid сообщает, является ли значение известным статусом.
func (s OrderStatus) IsValid() bool {
	if s == OrderStatusCanceled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// CanTransitionTo проверяет допустимость перехода: на один шаг вперёд по цепочке
// ORDERED → PREPARING → SHIPPING → DELIVERED либо в CANCELED из любого незавершённого статуса.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next == OrderStatusCanceled {
		return true
	}
	return statusRank[next] == statusRank[s]+1
}

// CancelableStatuses возвращает статусы, из которых заказ можно отменить.
func CancelableStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusOrdered, OrderStatusPreparing, OrderStatusShipping}
}
