// Package service реализует бизнес-логику интернет-магазина.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/metrics"
	"github.com/mmeshcher/hanaro-shop/internal/model"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidQuantity возвращается, если количество товара меньше единицы.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u model.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (model.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (int, error)
	SoftDeleteProduct(ctx context.Context, productID int64) error
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	ListProducts(ctx context.Context, query string, page model.Page) (model.ProductPage, error)

	AddCartItem(ctx context.Context, userID, productID int64, qty int) error
	UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) error
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	ListCart(ctx context.Context, userID int64) ([]model.CartItemView, error)

	CreateOrderFromCart(ctx context.Context, userID int64, number string, now time.Time) (model.OrderCreated, error)
	GetOrderForUser(ctx context.Context, orderID, userID int64) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, page model.Page) (model.OrderPage, error)
	SearchOrders(ctx context.Context, f model.OrderFilter, page model.Page) (model.OrderPage, error)
	CancelOrder(ctx context.Context, orderID, userID int64, now time.Time) error

	ReplaceDailySales(ctx context.Context, day, start, end time.Time) (model.DailySales, []model.DailyProductSales, error)
	DailySalesRange(ctx context.Context, from, to time.Time) ([]model.DailySales, error)
	DailyProductSalesRange(ctx context.Context, from, to time.Time) ([]model.DailyProductSales, error)
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo       Repository
	logger     *zap.Logger
	metrics    *metrics.CheckoutMetrics
	loc        *time.Location
	numbers    *checkout.NumberGenerator
	now        func() time.Time
	bcryptCost int
}

// NewService создаёт сервис поверх репозитория. Календарные даты (границы дня продаж,
// фильтры по датам, префикс номера заказа) считаются во временной зоне loc.
func NewService(repo Repository, logger *zap.Logger, loc *time.Location, m *metrics.CheckoutMetrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:       repo,
		logger:     logger,
		metrics:    m,
		loc:        loc,
		numbers:    checkout.NewNumberGenerator(loc),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Location возвращает временную зону календарных дат сервиса.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
