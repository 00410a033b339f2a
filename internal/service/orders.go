package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/repository"
	"github.com/mmeshcher/hanaro-shop/internal/sales"
)

// OrderSearch описывает поиск заказов администратором. FromDate и ToDate задают календарные даты
// включительно во временной зоне сервиса.
type OrderSearch struct {
	Status   *model.OrderStatus
	Number   string
	Username string
	FromDate *time.Time
	ToDate   *time.Time
}

// CreateOrder оформляет заказ из корзины пользователя. При коллизии номера заказа
// номер генерируется заново, повтор выполняется один раз.
func (s *Service) CreateOrder(ctx context.Context, userID int64) (model.OrderCreated, error) {
	now := s.now()

	created, err := s.repo.CreateOrderFromCart(ctx, userID, s.numbers.Next(now), now)
	if errors.Is(err, repository.ErrDuplicateOrderNumber) {
		s.logger.Warn("order number collision, retrying", zap.Int64("user_id", userID))
		created, err = s.repo.CreateOrderFromCart(ctx, userID, s.numbers.Next(now), now)
	}
	if err != nil {
		s.metrics.IncFailed(failureReason(err))
		return model.OrderCreated{}, err
	}

	s.metrics.IncCreated()
	s.logger.Info("order created",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", created.ID),
		zap.String("number", created.Number),
		zap.String("total", created.TotalPrice.StringFixed(2)),
	)
	return created, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, checkout.ErrDeletedProduct):
		return "deleted_product"
	case errors.Is(err, checkout.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, checkout.ErrConcurrentStockConflict):
		return "concurrent_conflict"
	case errors.Is(err, checkout.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, repository.ErrDuplicateOrderNumber):
		return "duplicate_number"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// GetOrdersByUser возвращает страницу заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64, page model.Page) (model.OrderPage, error) {
	return s.repo.ListOrdersByUser(ctx, userID, page)
}

// GetOrderDetail возвращает заказ пользователя. Чужой заказ не отличается от несуществующего.
func (s *Service) GetOrderDetail(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	return s.repo.GetOrderForUser(ctx, orderID, userID)
}

// GetOrderForAdmin возвращает любой заказ.
func (s *Service) GetOrderForAdmin(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// SearchOrders ищет заказы по условиям администратора.
func (s *Service) SearchOrders(ctx context.Context, q OrderSearch, page model.Page) (model.OrderPage, error) {
	f := model.OrderFilter{
		Status:       q.Status,
		NumberLike:   q.Number,
		UsernameLike: q.Username,
	}
	if q.FromDate != nil {
		start, _ := sales.DayBounds(*q.FromDate, s.loc)
		f.CreatedFrom = &start
	}
	if q.ToDate != nil {
		_, end := sales.DayBounds(*q.ToDate, s.loc)
		f.CreatedBefore = &end
	}
	if f.CreatedFrom != nil && f.CreatedBefore != nil && !f.CreatedFrom.Before(*f.CreatedBefore) {
		return model.OrderPage{Page: page.Normalize(), Orders: []model.Order{}}, nil
	}
	return s.repo.SearchOrders(ctx, f, page)
}

// CancelOrder отменяет заказ пользователя и возвращает товары на склад.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID int64) error {
	if err := s.repo.CancelOrder(ctx, orderID, userID, s.now()); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	s.logger.Info("order canceled", zap.Int64("user_id", userID), zap.Int64("order_id", orderID))
	return nil
}
