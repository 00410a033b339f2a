package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/sales"
)

// AggregateFor пересчитывает итоги продаж за календарную дату day. Повторный запуск безопасен.
func (s *Service) AggregateFor(ctx context.Context, day time.Time) (model.DailySales, []model.DailyProductSales, error) {
	date := calendarDate(day)
	start, end := sales.DayBounds(date, s.loc)

	daily, perProduct, err := s.repo.ReplaceDailySales(ctx, date, start, end)
	if err != nil {
		return model.DailySales{}, nil, fmt.Errorf("aggregate %s: %w", date.Format(time.DateOnly), err)
	}

	s.logger.Info("daily sales aggregated",
		zap.String("date", date.Format(time.DateOnly)),
		zap.Int("orders", daily.TotalOrders),
		zap.Int("items", daily.TotalItems),
		zap.String("amount", daily.TotalAmount.StringFixed(2)),
		zap.Int("products", len(perProduct)),
	)
	return daily, perProduct, nil
}

// AggregateYesterday пересчитывает итоги за вчерашний день по часам сервиса.
func (s *Service) AggregateYesterday(ctx context.Context) error {
	_, _, err := s.AggregateFor(ctx, sales.Yesterday(s.now(), s.loc))
	return err
}

// GetDailySales возвращает сохранённые итоги за даты from..to включительно.
func (s *Service) GetDailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error) {
	return s.repo.DailySalesRange(ctx, calendarDate(from), calendarDate(to))
}

// GetProductSales возвращает сохранённые продажи по товарам за даты from..to включительно.
func (s *Service) GetProductSales(ctx context.Context, from, to time.Time) ([]model.DailyProductSales, error) {
	return s.repo.DailyProductSalesRange(ctx, calendarDate(from), calendarDate(to))
}

// calendarDate отбрасывает время суток, оставляя дату в UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
