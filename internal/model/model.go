// Package model содержит доменные сущности интернет-магазина.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Nickname     string
	Role         Role
	CreatedAt    time.Time
}

// Product описывает товар каталога. Товары не удаляются физически, только помечаются Deleted.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CartLine описывает позицию корзины пользователя.
type CartLine struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
}

// CartItemView описывает позицию корзины вместе с актуальными данными товара.
type CartItemView struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Cart содержит позиции корзины и итоговую сумму по текущим ценам.
type Cart struct {
	Items []CartItemView  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Order описывает оформленный заказ. TotalPrice фиксируется при создании и больше не пересчитывается.
type Order struct {
	ID              int64
	Number          string
	UserID          int64
	Username        string
	Status          OrderStatus
	TotalPrice      decimal.Decimal
	CreatedAt       time.Time
	PaidAt          time.Time
	StatusUpdatedAt time.Time
	Items           []OrderItem
}

// OrderItem описывает строку заказа со снимком названия и цены товара на момент оформления.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// LineTotal возвращает стоимость строки заказа.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderCreated содержит результат оформления заказа.
type OrderCreated struct {
	ID         int64
	Number     string
	TotalPrice decimal.Decimal
}

// DailySales содержит агрегированные продажи за календарный день.
type DailySales struct {
	Date        time.Time       `json:"date"`
	TotalOrders int             `json:"totalOrders"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// DailyProductSales содержит продажи одного товара за календарный день.
type DailyProductSales struct {
	Date      time.Time       `json:"date"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderFilter описывает условия поиска заказов администратором. Пустые поля не ограничивают выборку.
type OrderFilter struct {
	Status        *OrderStatus
	NumberLike    string
	UsernameLike  string
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
}

// Page описывает параметры постраничной выборки.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Normalize приводит параметры страницы к допустимым значениям.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset возвращает смещение первой строки страницы.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// OrderPage содержит страницу заказов и общее число найденных заказов.
type OrderPage struct {
	Orders []Order
	Total  int64
	Page   Page
}

// ProductPage содержит страницу товаров и общее число найденных товаров.
type ProductPage struct {
	Products []Product
	Total    int64
	Page     Page
}
