package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// -- Clients --

const sqliteClientColumns = `id, name, phone, address, city, route, category, notes, created_at`

func scanSQLiteClient(row interface{ Scan(...any) error }, c *Client) error {
	var created string
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.City, &c.Route, &c.Category, &c.Notes, &created); err != nil {
		return err
	}
	c.CreatedAt = parseSQLiteTime(created)
	return nil
}

func sqliteClientWhere(q ClientQuery) (string, []any, error) {
	var conds []string
	var args []any
	if q.Field != "" {
		if !IsFilterField(q.Field) {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidField, q.Field)
		}
		conds = append(conds, q.Field+" = ?")
		args = append(args, q.Value)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		conds = append(conds, "(name LIKE ? OR phone LIKE ?)")
		like := "%" + text + "%"
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (r *SQLiteRepository) ListClients(ctx context.Context, q ClientQuery) ([]Client, int, error) {
	where, args, err := sqliteClientWhere(q)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	page := normalizePage(q.Page)
	args = append(args, page.Limit, page.Offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteClientColumns+` FROM clients`+where+` ORDER BY name COLLATE NOCASE ASC, id ASC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := scanSQLiteClient(rows, &c); err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, total, nil
}

func (r *SQLiteRepository) GetClient(ctx context.Context, id string) (*Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteClientColumns+` FROM clients WHERE id = ? LIMIT 1`, id)
	var c Client
	if err := scanSQLiteClient(row, &c); err != nil {
		return nil, sqliteNotFound(err, "get client")
	}
	return &c, nil
}

func (r *SQLiteRepository) InsertClient(ctx context.Context, c Client) (*Client, error) {
	c.ID = uuid.NewString()
	now := r.now()
	const q = `
INSERT INTO clients (id, name, phone, address, city, route, category, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	stamp := formatSQLiteTime(now)
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Phone, c.Address, c.City, c.Route, c.Category, c.Notes, stamp, stamp); err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	c.CreatedAt = parseSQLiteTime(stamp)
	return &c, nil
}

func (r *SQLiteRepository) UpdateClientField(ctx context.Context, id, field, value string) error {
	if !IsEditableField(field) {
		return fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	q := fmt.Sprintf(`UPDATE clients SET %s = ?, updated_at = ? WHERE id = ?`, field)
	res, err := r.db.ExecContext(ctx, q, value, formatSQLiteTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("update client %s: %w", field, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update client %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListClientOptions(ctx context.Context, field string) ([]string, error) {
	if !IsFilterField(field) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	q := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM clients WHERE %[1]s <> '' ORDER BY %[1]s ASC`, field)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list client %s options: %w", field, err)
	}
	defer rows.Close()

	var options []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan client option: %w", err)
		}
		options = append(options, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client options: %w", err)
	}
	return options, nil
}

// -- Products --

const sqliteProductColumns = `id, code, name, category, price, stock, active`

func (r *SQLiteRepository) ListProducts(ctx context.Context, p Page) ([]Product, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE active = 1`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	p = normalizePage(p)
	const q = `
SELECT ` + sqliteProductColumns + `
FROM products
WHERE active = 1
ORDER BY category ASC, name ASC, id ASC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, p.Limit, p.Offset)
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

func (r *SQLiteRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteProductColumns+` FROM products WHERE id = ? LIMIT 1`, id)
	var p Product
	if err := scanProduct(row, &p); err != nil {
		return nil, sqliteNotFound(err, "get product")
	}
	return &p, nil
}

func (r *SQLiteRepository) GetProductByCode(ctx context.Context, code string) (*Product, error) {
	const q = `SELECT ` + sqliteProductColumns + ` FROM products WHERE active = 1 AND code = ? LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, strings.TrimSpace(code))
	var p Product
	if err := scanProduct(row, &p); err != nil {
		return nil, sqliteNotFound(err, "get product by code")
	}
	return &p, nil
}

// InsertProduct stores a product. It backs seeding and tests; the chat
// flows never create products.
func (r *SQLiteRepository) InsertProduct(ctx context.Context, p Product) (*Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const q = `
INSERT INTO products (id, code, name, category, price, stock, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`
	if _, err := r.db.ExecContext(ctx, q, p.ID, p.Code, p.Name, p.Category, p.Price, p.Stock, p.Active, formatSQLiteTime(r.now())); err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// -- Orders --

const sqliteOrderColumns = `id, COALESCE(client_id, ''), client_name, COALESCE(order_date, ''), total, status, created_at`

func scanSQLiteOrder(row interface{ Scan(...any) error }, o *Order) error {
	var created string
	if err := row.Scan(&o.ID, &o.ClientID, &o.ClientName, &o.Date, &o.Total, &o.Status, &created); err != nil {
		return err
	}
	o.CreatedAt = parseSQLiteTime(created)
	return nil
}

func (r *SQLiteRepository) InsertOrder(ctx context.Context, order Order) (*Order, error) {
	order.ID = uuid.NewString()
	if order.Status == "" {
		order.Status = OrderStatusConfirmed
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now()
	}
	stamp := formatSQLiteTime(order.CreatedAt)
	const q = `
INSERT INTO orders (id, client_id, client_name, order_date, total, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	if _, err := r.db.ExecContext(ctx, q, order.ID, nullable(order.ClientID), order.ClientName, nullable(order.Date), order.Total, order.Status, stamp); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	order.CreatedAt = parseSQLiteTime(stamp)
	return &order, nil
}

func (r *SQLiteRepository) InsertOrderItems(ctx context.Context, orderID string, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert order items: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT INTO order_items (id, position, order_id, product_id, code, name, price, qty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, q, uuid.NewString(), i, orderID, nullable(item.ProductID), item.Code, item.Name, item.Price, item.Qty); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateOrderTotal(ctx context.Context, orderID string, total int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET total = ? WHERE id = ?`, total, orderID)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update order total %s: %w", orderID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteOrderColumns+` FROM orders WHERE id = ? LIMIT 1`, id)
	var o Order
	if err := scanSQLiteOrder(row, &o); err != nil {
		return nil, sqliteNotFound(err, "get order")
	}
	return &o, nil
}

func (r *SQLiteRepository) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	const q = `
SELECT id, order_id, COALESCE(product_id, ''), code, name, price, qty
FROM order_items
WHERE order_id = ?
ORDER BY position ASC;
`
	rows, err := r.db.QueryContext(ctx, q, orderID)
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

// sqliteOrderDate is the business date of a row, falling back to the UTC
// creation date.
const sqliteOrderDate = `COALESCE(order_date, substr(created_at, 1, 10))`

func (r *SQLiteRepository) ListOrdersByDate(ctx context.Context, date string, p Page) ([]Order, int, error) {
	return r.listOrders(ctx, ` WHERE `+sqliteOrderDate+` = ?`, "created_at ASC", date, p)
}

func (r *SQLiteRepository) ListOrdersByClient(ctx context.Context, clientID string, p Page) ([]Order, int, error) {
	return r.listOrders(ctx, ` WHERE client_id = ?`, "created_at DESC", clientID, p)
}

func (r *SQLiteRepository) listOrders(ctx context.Context, where, orderBy, arg string, p Page) ([]Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	p = normalizePage(p)
	q := `SELECT ` + sqliteOrderColumns + ` FROM orders` + where + ` ORDER BY ` + orderBy + `, id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, arg, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := scanSQLiteOrder(rows, &o); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func (r *SQLiteRepository) CountOrdersUpTo(ctx context.Context, date string, createdAt time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM orders WHERE ` + sqliteOrderDate + ` = ? AND created_at <= ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, date, formatSQLiteTime(createdAt)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders up to: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SalesSummary(ctx context.Context, date string) (*DaySummary, error) {
	q := `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders WHERE ` + sqliteOrderDate + ` = ?`
	s := DaySummary{Date: date}
	var total sql.NullInt64
	if err := r.db.QueryRowContext(ctx, q, date).Scan(&s.Orders, &total); err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	s.Total = total.Int64
	return &s, nil
}
