package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// AddCartItem добавляет товар в корзину. Если товар уже есть, количество суммируется.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID int64, qty int) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		p, err := scanProduct(tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("select product: %w", err)
		}

		var existing int
		err = tx.QueryRow(ctx,
			`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2`,
			userID, productID,
		).Scan(&existing)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("select cart item: %w", err)
		}

		total := existing + qty
		if err := checkout.ValidateLine(p, total); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, product_id)
			 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`,
			userID, productID, total,
		)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// UpdateCartItem устанавливает количество позиции корзины. Количество меньше единицы удаляет позицию.
func (r *PostgresRepository) UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		p, err := scanProduct(tx.QueryRow(ctx,
			`SELECT p.id, p.name, p.description, p.price, p.stock_quantity, p.is_deleted, p.created_at, p.updated_at
			 FROM cart_items ci JOIN products p ON p.id = ci.product_id
			 WHERE ci.id = $1 AND ci.user_id = $2`,
			itemID, userID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCartItemNotFound
			}
			return fmt.Errorf("select cart item: %w", err)
		}

		if qty <= 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID); err != nil {
				return fmt.Errorf("delete cart item: %w", err)
			}
			return tx.Commit(ctx)
		}

		if err := checkout.ValidateLine(p, qty); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`, itemID, qty); err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// RemoveCartItem удаляет позицию из корзины пользователя.
func (r *PostgresRepository) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ListCart возвращает позиции корзины с текущими названиями и ценами товаров.
func (r *PostgresRepository) ListCart(ctx context.Context, userID int64) ([]model.CartItemView, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ci.id, ci.product_id, p.name, p.price, ci.quantity
		 FROM cart_items ci JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}
	defer rows.Close()

	items := []model.CartItemView{}
	for rows.Next() {
		var (
			it    model.CartItemView
			price pgtype.Numeric
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		it.Price = fromNumeric(price)
		it.LineTotal = checkout.Total([]checkout.Line{{UnitPrice: it.Price, Quantity: it.Quantity}})
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// cartLines читает позиции корзины внутри транзакции оформления.
func cartLines(ctx context.Context, tx pgx.Tx, userID int64) ([]model.CartLine, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, user_id, product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.CartLine])
	if err != nil {
		return nil, fmt.Errorf("collect cart lines: %w", err)
	}
	return lines, nil
}
