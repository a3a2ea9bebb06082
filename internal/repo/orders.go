package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `o.id::text, COALESCE(o.client_id::text, ''), o.client_name, COALESCE(o.order_date::text, ''), o.total, o.status, o.created_at`

func scanOrder(row interface{ Scan(...any) error }, o *Order) error {
	return row.Scan(&o.ID, &o.ClientID, &o.ClientName, &o.Date, &o.Total, &o.Status, &o.CreatedAt)
}

// InsertOrder stores a new order header. A zero CreatedAt uses the database
// clock.
func (r *PostgresRepository) InsertOrder(ctx context.Context, order Order) (*Order, error) {
	if order.Status == "" {
		order.Status = OrderStatusConfirmed
	}
	var createdAt any
	if !order.CreatedAt.IsZero() {
		createdAt = order.CreatedAt
	}
	const q = `
INSERT INTO orders AS o (client_id, client_name, order_date, total, status, created_at)
VALUES ($1::uuid, $2, $3::date, $4, $5, COALESCE($6::timestamptz, NOW()))
RETURNING ` + orderColumns + `;
`
	row := r.pool.QueryRow(ctx, q,
		nullable(order.ClientID),
		order.ClientName,
		nullable(order.Date),
		order.Total,
		order.Status,
		createdAt,
	)
	var inserted Order
	if err := scanOrder(row, &inserted); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return &inserted, nil
}

// InsertOrderItems stores the lines of an order in one batch.
func (r *PostgresRepository) InsertOrderItems(ctx context.Context, orderID string, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	const q = `
INSERT INTO order_items (order_id, product_id, code, name, price, qty)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6);
`
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(q, orderID, nullable(item.ProductID), item.Code, item.Name, item.Price, item.Qty)
	}
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for range items {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		return results.Close()
	})
}

// UpdateOrderTotal sets the stored total of an order.
func (r *PostgresRepository) UpdateOrderTotal(ctx context.Context, orderID string, total int64) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET total = $2 WHERE id::text = $1`, orderID, total)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update order total %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// GetOrder returns an order by id.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id::text = $1 LIMIT 1`, id)
	var o Order
	if err := scanOrder(row, &o); err != nil {
		return nil, notFound(err, "get order")
	}
	return &o, nil
}

// ListOrderItems returns the lines of an order in insertion order.
func (r *PostgresRepository) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	const q = `
SELECT id::text, order_id::text, COALESCE(product_id::text, ''), code, name, price, qty
FROM order_items
WHERE order_id::text = $1
ORDER BY position ASC;
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Code, &it.Name, &it.Price, &it.Qty); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// ListOrdersByDate returns one page of the orders of a business date, oldest
// first, plus the total count for that date.
func (r *PostgresRepository) ListOrdersByDate(ctx context.Context, date string, p Page) ([]Order, int, error) {
	const where = ` WHERE COALESCE(o.order_date, o.created_at::date) = $1::date`
	return r.listOrders(ctx, where, "o.created_at ASC", date, p)
}

// ListOrdersByClient returns one page of a client's orders, newest first.
func (r *PostgresRepository) ListOrdersByClient(ctx context.Context, clientID string, p Page) ([]Order, int, error) {
	const where = ` WHERE o.client_id::text = $1`
	return r.listOrders(ctx, where, "o.created_at DESC", clientID, p)
}

func (r *PostgresRepository) listOrders(ctx context.Context, where, orderBy, arg string, p Page) ([]Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders o`+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	p = normalizePage(p)
	q := `SELECT ` + orderColumns + ` FROM orders o` + where + ` ORDER BY ` + orderBy + `, o.id ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, arg, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

// CountOrdersUpTo counts orders of a business date created at or before
// createdAt. Orders without a stored date count under their creation date.
func (r *PostgresRepository) CountOrdersUpTo(ctx context.Context, date string, createdAt time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM orders o
WHERE COALESCE(o.order_date, o.created_at::date) = $1::date
  AND o.created_at <= $2;
`
	var n int
	if err := r.pool.QueryRow(ctx, q, date, createdAt).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders up to: %w", err)
	}
	return n, nil
}

// SalesSummary aggregates the orders of a business date.
func (r *PostgresRepository) SalesSummary(ctx context.Context, date string) (*DaySummary, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(o.total), 0)::bigint
FROM orders o
WHERE COALESCE(o.order_date, o.created_at::date) = $1::date;
`
	s := DaySummary{Date: date}
	if err := r.pool.QueryRow(ctx, q, date).Scan(&s.Orders, &s.Total); err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	return &s, nil
}
