package service

import (
	"context"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	p.Price = p.Price.Round(2)
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct изменяет описание и цену товара.
func (s *Service) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	p.Price = p.Price.Round(2)
	return s.repo.UpdateProduct(ctx, p)
}

// AdjustStock изменяет остаток товара на delta.
func (s *Service) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	return s.repo.AdjustStock(ctx, productID, delta)
}

// DeleteProduct помечает товар удалённым.
func (s *Service) DeleteProduct(ctx context.Context, productID int64) error {
	return s.repo.SoftDeleteProduct(ctx, productID)
}

// GetProduct возвращает товар для витрины. Удалённые товары не показываются.
func (s *Service) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Deleted {
		return nil, &checkout.StockError{Kind: checkout.ErrDeletedProduct, ProductID: p.ID, Name: p.Name}
	}
	return p, nil
}

// ListProducts возвращает страницу товаров витрины.
func (s *Service) ListProducts(ctx context.Context, query string, page model.Page) (model.ProductPage, error) {
	return s.repo.ListProducts(ctx, query, page)
}
