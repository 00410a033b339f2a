// Package checkout содержит правила оформления заказа: проверку позиций корзины по актуальным
// остаткам, точный расчёт суммы и генерацию номера заказа.
package checkout

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/validation"
)

var (
	// ErrEmptyCart возвращается при попытке оформить заказ из пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDeletedProduct возвращается, если товар помечен удалённым.
	ErrDeletedProduct = errors.New("product is deleted")
	// ErrOutOfStock возвращается, если товара нет в наличии.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrInsufficientStock возвращается, если запрошено больше, чем осталось на складе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConcurrentStockConflict возвращается, если условное списание остатка не затронуло ни одной строки.
	ErrConcurrentStockConflict = errors.New("concurrent stock conflict")
)

// StockError описывает нарушение складского ограничения по конкретному товару.
type StockError struct {
	Kind      error
	ProductID int64
	Name      string
	Requested int
	Remaining int
}

func (e *StockError) Error() string {
	if errors.Is(e.Kind, ErrInsufficientStock) {
		return fmt.Sprintf("%s: product %d (%s) requested %d, remaining stock %d",
			e.Kind, e.ProductID, e.Name, e.Requested, e.Remaining)
	}
	return fmt.Sprintf("%s: product %d (%s)", e.Kind, e.ProductID, e.Name)
}

func (e *StockError) Unwrap() error {
	return e.Kind
}

// ValidateLine проверяет, что позицию с количеством qty можно продать по текущему состоянию товара.
func ValidateLine(p model.Product, qty int) error {
	switch {
	case p.Deleted:
		return &StockError{Kind: ErrDeletedProduct, ProductID: p.ID, Name: p.Name, Requested: qty}
	case p.StockQuantity <= 0:
		return &StockError{Kind: ErrOutOfStock, ProductID: p.ID, Name: p.Name, Requested: qty}
	case qty > p.StockQuantity:
		return &StockError{
			Kind:      ErrInsufficientStock,
			ProductID: p.ID,
			Name:      p.Name,
			Requested: qty,
			Remaining: p.StockQuantity,
		}
	}
	return nil
}

// Line описывает позицию, для которой считается сумма заказа.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total возвращает сумму позиций с точностью до двух знаков без использования float.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2)
}

// NumberGenerator генерирует номера заказов вида yyyyMMddHHmmss + 4 случайные цифры + контрольная цифра Луна.
type NumberGenerator struct {
	loc    *time.Location
	random func(n int) int
}

// NewNumberGenerator создаёт генератор номеров, формирующий префикс во временной зоне loc.
func NewNumberGenerator(loc *time.Location) *NumberGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &NumberGenerator{loc: loc, random: rand.IntN}
}

// Next возвращает новый номер заказа для момента now.
// Уникальность гарантирует ограничение БД, а не генератор.
func (g *NumberGenerator) Next(now time.Time) string {
	payload := now.In(g.loc).Format("20060102150405") + fmt.Sprintf("%04d", g.random(10000))
	digit, _ := validation.CheckDigit(payload)
	return payload + string(digit)
}
