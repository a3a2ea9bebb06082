package repo

import (
	"context"
	"fmt"
	"strings"
)

const productColumns = `id::text, code, name, category, price, stock, active`

func scanProduct(row interface{ Scan(...any) error }, p *Product) error {
	return row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.Price, &p.Stock, &p.Active)
}

// ListProducts returns one page of active products ordered by category and
// name plus the total number of active products.
func (r *PostgresRepository) ListProducts(ctx context.Context, p Page) ([]Product, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	p = normalizePage(p)
	const q = `
SELECT ` + productColumns + `
FROM products
WHERE active
ORDER BY category ASC, name ASC, id ASC
LIMIT $1 OFFSET $2;
`
	rows, err := r.pool.Query(ctx, q, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var prod Product
		if err := scanProduct(rows, &prod); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

// GetProduct returns a product by id.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id::text = $1 LIMIT 1`, id)
	var p Product
	if err := scanProduct(row, &p); err != nil {
		return nil, notFound(err, "get product")
	}
	return &p, nil
}

// GetProductByCode looks up an active product by its code, ignoring case.
func (r *PostgresRepository) GetProductByCode(ctx context.Context, code string) (*Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE active AND LOWER(code) = $1 LIMIT 1`
	row := r.pool.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(code)))
	var p Product
	if err := scanProduct(row, &p); err != nil {
		return nil, notFound(err, "get product by code")
	}
	return &p, nil
}
