package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// AddToCart добавляет товар в корзину пользователя.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	return s.repo.AddCartItem(ctx, userID, productID, qty)
}

// UpdateCartItem меняет количество позиции корзины, ноль и меньше удаляют позицию.
func (s *Service) UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) error {
	return s.repo.UpdateCartItem(ctx, userID, itemID, qty)
}

// RemoveCartItem удаляет позицию из корзины.
func (s *Service) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	return s.repo.RemoveCartItem(ctx, userID, itemID)
}

// GetCart возвращает корзину с суммой по текущим ценам.
func (s *Service) GetCart(ctx context.Context, userID int64) (model.Cart, error) {
	items, err := s.repo.ListCart(ctx, userID)
	if err != nil {
		return model.Cart{}, err
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal)
	}
	return model.Cart{Items: items, Total: total.Round(2)}, nil
}
