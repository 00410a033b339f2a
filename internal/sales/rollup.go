// Package sales сворачивает доставленные заказы в дневные итоги продаж.
package sales

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// Rollup считает итоги дня по заказам orderIDs и их позициям items.
// Суммы берутся из цен, зафиксированных в позициях заказа, а не из текущего каталога.
// Позиции заказов, не входящих в orderIDs, игнорируются.
func Rollup(day time.Time, orderIDs []int64, items []model.OrderItem) (model.DailySales, []model.DailyProductSales) {
	included := make(map[int64]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		included[id] = struct{}{}
	}

	daily := model.DailySales{
		Date:        day,
		TotalOrders: len(included),
		TotalAmount: decimal.Zero,
	}

	byProduct := make(map[int64]*model.DailyProductSales)
	for _, it := range items {
		if _, ok := included[it.OrderID]; !ok {
			continue
		}

		line := it.LineTotal()
		daily.TotalItems += it.Quantity
		daily.TotalAmount = daily.TotalAmount.Add(line)

		ps, ok := byProduct[it.ProductID]
		if !ok {
			ps = &model.DailyProductSales{Date: day, ProductID: it.ProductID, Amount: decimal.Zero}
			byProduct[it.ProductID] = ps
		}
		ps.Quantity += it.Quantity
		ps.Amount = ps.Amount.Add(line)
	}

	daily.TotalAmount = daily.TotalAmount.Round(2)

	perProduct := make([]model.DailyProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		ps.Amount = ps.Amount.Round(2)
		perProduct = append(perProduct, *ps)
	}
	sort.Slice(perProduct, func(i, j int) bool {
		return perProduct[i].ProductID < perProduct[j].ProductID
	})

	return daily, perProduct
}

// DayBounds возвращает полуинтервал [начало дня, начало следующего дня) для даты day во временной зоне loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Yesterday возвращает календарную дату предыдущего дня относительно now во временной зоне loc.
func Yesterday(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
