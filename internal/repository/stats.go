package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/sales"
)

// ReplaceDailySales пересчитывает итоги продаж за день day по заказам, доставленным
// с оплатой в полуинтервале [start, end), и заменяет ими ранее сохранённые строки.
// Повторный вызов для того же дня даёт тот же результат.
func (r *PostgresRepository) ReplaceDailySales(ctx context.Context, day, start, end time.Time) (model.DailySales, []model.DailyProductSales, error) {
	var (
		daily      model.DailySales
		perProduct []model.DailyProductSales
	)
	err := r.withRetry(ctx, func() error {
		var err error
		daily, perProduct, err = r.replaceDailySales(ctx, day, start, end)
		return err
	})
	return daily, perProduct, err
}

func (r *PostgresRepository) replaceDailySales(ctx context.Context, day, start, end time.Time) (model.DailySales, []model.DailyProductSales, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.DailySales{}, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Одновременные пересчёты одного дня выполняются по очереди.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, "daily_sales:"+day.Format(time.DateOnly)); err != nil {
		return model.DailySales{}, nil, fmt.Errorf("lock sales day: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM daily_product_sales WHERE sales_date = $1`, day); err != nil {
		return model.DailySales{}, nil, fmt.Errorf("delete daily product sales: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM daily_sales WHERE sales_date = $1`, day); err != nil {
		return model.DailySales{}, nil, fmt.Errorf("delete daily sales: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT id FROM orders WHERE status = $1 AND paid_at >= $2 AND paid_at < $3 ORDER BY id`,
		string(model.OrderStatusDelivered), start, end,
	)
	if err != nil {
		return model.DailySales{}, nil, fmt.Errorf("select delivered orders: %w", err)
	}
	orderIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return model.DailySales{}, nil, fmt.Errorf("collect delivered orders: %w", err)
	}

	byOrder, err := loadItems(ctx, tx, orderIDs)
	if err != nil {
		return model.DailySales{}, nil, err
	}
	items := make([]model.OrderItem, 0, len(byOrder))
	for _, id := range orderIDs {
		items = append(items, byOrder[id]...)
	}

	daily, perProduct := sales.Rollup(day, orderIDs, items)

	if _, err := tx.Exec(ctx,
		`INSERT INTO daily_sales (sales_date, total_orders, total_items, total_amount) VALUES ($1, $2, $3, $4)`,
		day, daily.TotalOrders, daily.TotalItems, toNumeric(daily.TotalAmount),
	); err != nil {
		return model.DailySales{}, nil, fmt.Errorf("insert daily sales: %w", err)
	}

	if len(perProduct) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"daily_product_sales"},
			[]string{"sales_date", "product_id", "qty", "amount"},
			pgx.CopyFromSlice(len(perProduct), func(i int) ([]any, error) {
				ps := perProduct[i]
				return []any{ps.Date, ps.ProductID, ps.Quantity, toNumeric(ps.Amount)}, nil
			}),
		)
		if err != nil {
			return model.DailySales{}, nil, fmt.Errorf("copy daily product sales: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.DailySales{}, nil, fmt.Errorf("commit transaction: %w", err)
	}
	return daily, perProduct, nil
}

// DailySalesRange возвращает сохранённые дневные итоги за даты from..to включительно.
func (r *PostgresRepository) DailySalesRange(ctx context.Context, from, to time.Time) ([]model.DailySales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sales_date, total_orders, total_items, total_amount
		 FROM daily_sales WHERE sales_date BETWEEN $1 AND $2 ORDER BY sales_date`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select daily sales: %w", err)
	}
	defer rows.Close()

	result := []model.DailySales{}
	for rows.Next() {
		var (
			ds     model.DailySales
			amount pgtype.Numeric
		)
		if err := rows.Scan(&ds.Date, &ds.TotalOrders, &ds.TotalItems, &amount); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		ds.TotalAmount = fromNumeric(amount)
		result = append(result, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// DailyProductSalesRange возвращает сохранённые продажи по товарам за даты from..to включительно.
func (r *PostgresRepository) DailyProductSalesRange(ctx context.Context, from, to time.Time) ([]model.DailyProductSales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sales_date, product_id, qty, amount
		 FROM daily_product_sales WHERE sales_date BETWEEN $1 AND $2
		 ORDER BY sales_date, product_id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select daily product sales: %w", err)
	}
	defer rows.Close()

	result := []model.DailyProductSales{}
	for rows.Next() {
		var (
			ps     model.DailyProductSales
			amount pgtype.Numeric
		)
		if err := rows.Scan(&ps.Date, &ps.ProductID, &ps.Quantity, &amount); err != nil {
			return nil, fmt.Errorf("scan daily product sales: %w", err)
		}
		ps.Amount = fromNumeric(amount)
		result = append(result, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
