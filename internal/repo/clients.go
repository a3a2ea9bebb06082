package repo

import (
	"context"
	"fmt"
	"strings"
)

const clientColumns = `id::text, name, phone, address, city, route, category, notes, created_at`

func scanClient(row interface{ Scan(...any) error }, c *Client) error {
	return row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.City, &c.Route, &c.Category, &c.Notes, &c.CreatedAt)
}

// clientWhere builds the WHERE clause shared by the list and count queries.
// Placeholders start at $1.
func clientWhere(q ClientQuery) (string, []any, error) {
	var conds []string
	var args []any
	if q.Field != "" {
		if !IsFilterField(q.Field) {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidField, q.Field)
		}
		args = append(args, q.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", q.Field, len(args)))
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		args = append(args, "%"+text+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// ListClients returns one page of clients ordered by name plus the total
// number of matches.
func (r *PostgresRepository) ListClients(ctx context.Context, q ClientQuery) ([]Client, int, error) {
	where, args, err := clientWhere(q)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	page := normalizePage(q.Page)
	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients%s ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := scanClient(rows, &c); err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, total, nil
}

// GetClient returns a client by id.
func (r *PostgresRepository) GetClient(ctx context.Context, id string) (*Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id::text = $1 LIMIT 1`, id)
	var c Client
	if err := scanClient(row, &c); err != nil {
		return nil, notFound(err, "get client")
	}
	return &c, nil
}

// InsertClient creates a client record.
func (r *PostgresRepository) InsertClient(ctx context.Context, c Client) (*Client, error) {
	const q = `
INSERT INTO clients (name, phone, address, city, route, category, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + clientColumns + `;
`
	row := r.pool.QueryRow(ctx, q, c.Name, c.Phone, c.Address, c.City, c.Route, c.Category, c.Notes)
	var inserted Client
	if err := scanClient(row, &inserted); err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return &inserted, nil
}

// UpdateClientField sets a single editable column.
func (r *PostgresRepository) UpdateClientField(ctx context.Context, id, field, value string) error {
	if !IsEditableField(field) {
		return fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	q := fmt.Sprintf(`UPDATE clients SET %s = $2, updated_at = NOW() WHERE id::text = $1`, field)
	ct, err := r.pool.Exec(ctx, q, id, value)
	if err != nil {
		return fmt.Errorf("update client %s: %w", field, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update client %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListClientOptions returns the distinct non-empty values of a filter field.
func (r *PostgresRepository) ListClientOptions(ctx context.Context, field string) ([]string, error) {
	if !IsFilterField(field) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	q := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM clients WHERE %[1]s <> '' ORDER BY %[1]s ASC`, field)
	rows, err := r.pool.Query(ctx, q)
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
