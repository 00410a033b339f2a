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

const productColumns = `id, name, description, price, stock_quantity, is_deleted, created_at, updated_at`

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p     model.Product
		price pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &p.Deleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	p.Price = fromNumeric(price)
	return p, nil
}

// CreateProduct добавляет товар в каталог.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, price, stock_quantity)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+productColumns,
		p.Name, p.Description, toNumeric(p.Price), p.StockQuantity,
	)
	created, err := scanProduct(row)
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// UpdateProduct изменяет название, описание и цену товара.
// Уже оформленные заказы не затрагиваются: их позиции хранят снимок цены.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE products SET name = $2, description = $3, price = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		p.ID, p.Name, p.Description, toNumeric(p.Price),
	)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, ErrProductNotFound
		}
		return model.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// AdjustStock изменяет остаток товара на delta и возвращает новый остаток.
// Остаток не может стать отрицательным.
func (r *PostgresRepository) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	var stock int
	err := r.pool.QueryRow(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		 WHERE id = $1 AND stock_quantity + $2 >= 0
		 RETURNING stock_quantity`,
		productID, delta,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return 0, &checkout.StockError{
		Kind:      checkout.ErrInsufficientStock,
		ProductID: p.ID,
		Name:      p.Name,
		Requested: -delta,
		Remaining: p.StockQuantity,
	}
}

// SoftDeleteProduct помечает товар удалённым. Строки заказов и корзин продолжают на него ссылаться.
func (r *PostgresRepository) SoftDeleteProduct(ctx context.Context, productID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET is_deleted = TRUE, updated_at = now() WHERE id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct возвращает товар по идентификатору, включая удалённые.
func (r *PostgresRepository) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}

// ListProducts возвращает страницу неудалённых товаров, название которых содержит query.
func (r *PostgresRepository) ListProducts(ctx context.Context, query string, page model.Page) (model.ProductPage, error) {
	page = page.Normalize()
	result := model.ProductPage{Page: page, Products: []model.Product{}}

	where := `WHERE NOT is_deleted`
	args := []any{}
	if query != "" {
		args = append(args, escapeLike(query))
		where += ` AND name ILIKE '%' || $1 || '%'`
	}

	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products `+where, args...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count products: %w", err)
	}

	args = append(args, page.Size, page.Offset())
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM products %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
			productColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return result, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return result, fmt.Errorf("scan product: %w", err)
		}
		result.Products = append(result.Products, p)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// lockProducts блокирует строки товаров в порядке возрастания id, чтобы конкурентные
// оформления не могли захватить их в разном порядке.
func lockProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]model.Product, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]model.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}
