package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// CreateOrderFromCart оформляет заказ из всей корзины пользователя в одной транзакции:
// проверяет остатки, фиксирует снимок цен, списывает остатки и очищает корзину.
// При любой ошибке ни одно изменение не сохраняется.
func (r *PostgresRepository) CreateOrderFromCart(ctx context.Context, userID int64, number string, now time.Time) (model.OrderCreated, error) {
	var created model.OrderCreated
	err := r.withRetry(ctx, func() error {
		var err error
		created, err = r.createOrderFromCart(ctx, userID, number, now)
		return err
	})
	return created, err
}

func (r *PostgresRepository) createOrderFromCart(ctx context.Context, userID int64, number string, now time.Time) (model.OrderCreated, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.OrderCreated{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockUser(ctx, tx, userID); err != nil {
		return model.OrderCreated{}, err
	}

	lines, err := cartLines(ctx, tx, userID)
	if err != nil {
		return model.OrderCreated{}, err
	}
	if len(lines) == 0 {
		return model.OrderCreated{}, checkout.ErrEmptyCart
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := lockProducts(ctx, tx, ids)
	if err != nil {
		return model.OrderCreated{}, err
	}

	items := make([]model.OrderItem, 0, len(lines))
	priced := make([]checkout.Line, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return model.OrderCreated{}, fmt.Errorf("%w: id=%d", ErrProductNotFound, l.ProductID)
		}
		if err := checkout.ValidateLine(p, l.Quantity); err != nil {
			return model.OrderCreated{}, err
		}
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    l.Quantity,
		})
		priced = append(priced, checkout.Line{UnitPrice: p.Price, Quantity: l.Quantity})
	}
	total := checkout.Total(priced)

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (order_no, user_id, status, total_price, created_at, paid_at, status_updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5, $5)
		 RETURNING id`,
		number, userID, string(model.OrderStatusOrdered), toNumeric(total), now,
	).Scan(&orderID)
	if err != nil {
		if isUniqueViolation(err, orderNumberConstraint) {
			return model.OrderCreated{}, fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, number)
		}
		return model.OrderCreated{}, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5)`,
			orderID, it.ProductID, it.ProductName, toNumeric(it.UnitPrice), it.Quantity,
		)
		batch.Queue(
			`UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
			 WHERE id = $1 AND stock_quantity >= $2 AND NOT is_deleted`,
			it.ProductID, it.Quantity,
		)
	}

	conflict, err := execCheckoutBatch(ctx, tx, batch, items)
	if err != nil {
		return model.OrderCreated{}, err
	}
	if conflict != nil {
		return model.OrderCreated{}, stockConflict(ctx, tx, *conflict)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return model.OrderCreated{}, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.OrderCreated{}, fmt.Errorf("commit transaction: %w", err)
	}

	return model.OrderCreated{ID: orderID, Number: number, TotalPrice: total}, nil
}

// execCheckoutBatch выполняет вставку позиций и списание остатков.
// Возвращает позицию, для которой условное списание не затронуло ни одной строки.
func execCheckoutBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, items []model.OrderItem) (*model.OrderItem, error) {
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := range items {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		tag, err := br.Exec()
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &items[i], nil
		}
	}
	return nil, br.Close()
}

// stockConflict превращает неудачное условное списание в ошибку нехватки остатка с актуальным остатком.
func stockConflict(ctx context.Context, tx pgx.Tx, it model.OrderItem) error {
	var remaining int
	if err := tx.QueryRow(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1`, it.ProductID).Scan(&remaining); err != nil {
		return fmt.Errorf("%w: product %d: %w", checkout.ErrConcurrentStockConflict, it.ProductID, err)
	}
	return fmt.Errorf("%w: %w", checkout.ErrConcurrentStockConflict, &checkout.StockError{
		Kind:      checkout.ErrInsufficientStock,
		ProductID: it.ProductID,
		Name:      it.ProductName,
		Requested: it.Quantity,
		Remaining: remaining,
	})
}

const orderColumns = `o.id, o.order_no, o.user_id, u.username, o.status, o.total_price, o.created_at, o.paid_at, o.status_updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o      model.Order
		status string
		total  pgtype.Numeric
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Username, &status, &total,
		&o.CreatedAt, &o.PaidAt, &o.StatusUpdatedAt)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.TotalPrice = fromNumeric(total)
	return o, nil
}

// GetOrderForUser возвращает заказ с позициями, только если он принадлежит пользователю userID.
func (r *PostgresRepository) GetOrderForUser(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	return r.getOrder(ctx, `o.id = $1 AND o.user_id = $2`, orderID, userID)
}

// GetOrder возвращает любой заказ с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return r.getOrder(ctx, `o.id = $1`, orderID)
}

func (r *PostgresRepository) getOrder(ctx context.Context, where string, args ...any) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o JOIN users u ON u.id = o.user_id WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := loadItems(ctx, r.pool, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

// ListOrdersByUser возвращает заказы пользователя, начиная с самых новых.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64, page model.Page) (model.OrderPage, error) {
	return r.listOrders(ctx, `WHERE o.user_id = $1`, []any{userID}, page)
}

// SearchOrders ищет заказы по фильтру администратора.
func (r *PostgresRepository) SearchOrders(ctx context.Context, f model.OrderFilter, page model.Page) (model.OrderPage, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add(`o.status = $%d`, string(*f.Status))
	}
	if f.NumberLike != "" {
		add(`o.order_no ILIKE '%%' || $%d || '%%'`, escapeLike(f.NumberLike))
	}
	if f.UsernameLike != "" {
		add(`u.username ILIKE '%%' || $%d || '%%'`, escapeLike(f.UsernameLike))
	}
	if f.CreatedFrom != nil {
		add(`o.created_at >= $%d`, *f.CreatedFrom)
	}
	if f.CreatedBefore != nil {
		add(`o.created_at < $%d`, *f.CreatedBefore)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return r.listOrders(ctx, where, args, page)
}

func (r *PostgresRepository) listOrders(ctx context.Context, where string, args []any, page model.Page) (model.OrderPage, error) {
	page = page.Normalize()
	result := model.OrderPage{Page: page, Orders: []model.Order{}}

	from := `FROM orders o JOIN users u ON u.id = o.user_id ` + where
	if err := r.pool.QueryRow(ctx, `SELECT count(*) `+from, args...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count orders: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	args = append(args, page.Size, page.Offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s %s ORDER BY o.id DESC LIMIT $%d OFFSET $%d`,
			orderColumns, from, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return result, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, page.Size)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return result, fmt.Errorf("scan order: %w", err)
		}
		result.Orders = append(result.Orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return result, err
	}
	for i := range result.Orders {
		result.Orders[i].Items = items[result.Orders[i].ID]
	}
	return result, nil
}

// loadItems одним запросом читает позиции всех перечисленных заказов.
func loadItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	result := make(map[int64][]model.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, product_name, unit_price, quantity
		 FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it    model.OrderItem
			price pgtype.Numeric
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice = fromNumeric(price)
		result[it.OrderID] = append(result[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// CancelOrder отменяет ещё не доставленный заказ пользователя и возвращает товары на склад.
func (r *PostgresRepository) CancelOrder(ctx context.Context, orderID, userID int64, now time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		cancelable := make([]string, 0, 3)
		for _, s := range model.CancelableStatuses() {
			cancelable = append(cancelable, string(s))
		}

		tag, err := tx.Exec(ctx,
			`UPDATE orders SET status = $3, status_updated_at = $4
			 WHERE id = $1 AND user_id = $2 AND status = ANY($5)`,
			orderID, userID, string(model.OrderStatusCanceled), now, cancelable,
		)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND user_id = $2)`,
				orderID, userID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check order: %w", err)
			}
			if !exists {
				return ErrOrderNotFound
			}
			return ErrInvalidTransition
		}

		// Блокировки товаров берутся в порядке id, как и при оформлении.
		if _, err := tx.Exec(ctx,
			`SELECT id FROM products
			 WHERE id IN (SELECT product_id FROM order_items WHERE order_id = $1)
			 ORDER BY id FOR UPDATE`,
			orderID,
		); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products p SET stock_quantity = p.stock_quantity + oi.qty, updated_at = now()
			 FROM (
			     SELECT product_id, sum(quantity) AS qty FROM order_items
			     WHERE order_id = $1 GROUP BY product_id
			 ) oi
			 WHERE p.id = oi.product_id`,
			orderID,
		); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// AdvanceOrderStatus одним условным UPDATE переводит в статус to все заказы в статусе from,
// последнее изменение статуса которых произошло не позже threshold.
func (r *PostgresRepository) AdvanceOrderStatus(ctx context.Context, from, to model.OrderStatus, threshold, now time.Time) (int64, error) {
	var affected int64
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE orders SET status = $2, status_updated_at = $3
			 WHERE status = $1 AND status_updated_at <= $4`,
			string(from), string(to), now, threshold,
		)
		if err != nil {
			return fmt.Errorf("advance orders %s -> %s: %w", from, to, err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}
