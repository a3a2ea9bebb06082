package repo

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"ops-bot/internal/metrics"
)

// Instrumented decorates a Repository with request counters and latency
// histograms.
type Instrumented struct {
	next    Repository
	metrics *metrics.Metrics
}

// NewInstrumented wraps next. A nil metrics set returns next unchanged.
func NewInstrumented(next Repository, m *metrics.Metrics) Repository {
	if m == nil {
		return next
	}
	return &Instrumented{next: next, metrics: m}
}

func (r *Instrumented) observe(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	r.metrics.RepoRequests.WithLabelValues(op, status).Inc()
	r.metrics.RepoLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (r *Instrumented) Close() { r.next.Close() }

func (r *Instrumented) Ping(ctx context.Context) error { return r.next.Ping(ctx) }

func (r *Instrumented) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return r.next.RunMigrations(ctx, filesystem)
}

func (r *Instrumented) ListClients(ctx context.Context, q ClientQuery) (clients []Client, total int, err error) {
	defer func(start time.Time) { r.observe("list_clients", start, err) }(time.Now())
	return r.next.ListClients(ctx, q)
}

func (r *Instrumented) GetClient(ctx context.Context, id string) (c *Client, err error) {
	defer func(start time.Time) { r.observe("get_client", start, err) }(time.Now())
	return r.next.GetClient(ctx, id)
}

func (r *Instrumented) InsertClient(ctx context.Context, in Client) (c *Client, err error) {
	defer func(start time.Time) { r.observe("insert_client", start, err) }(time.Now())
	return r.next.InsertClient(ctx, in)
}

func (r *Instrumented) UpdateClientField(ctx context.Context, id, field, value string) (err error) {
	defer func(start time.Time) { r.observe("update_client_field", start, err) }(time.Now())
	return r.next.UpdateClientField(ctx, id, field, value)
}

func (r *Instrumented) ListClientOptions(ctx context.Context, field string) (opts []string, err error) {
	defer func(start time.Time) { r.observe("list_client_options", start, err) }(time.Now())
	return r.next.ListClientOptions(ctx, field)
}

func (r *Instrumented) ListProducts(ctx context.Context, p Page) (products []Product, total int, err error) {
	defer func(start time.Time) { r.observe("list_products", start, err) }(time.Now())
	return r.next.ListProducts(ctx, p)
}

func (r *Instrumented) GetProduct(ctx context.Context, id string) (p *Product, err error) {
	defer func(start time.Time) { r.observe("get_product", start, err) }(time.Now())
	return r.next.GetProduct(ctx, id)
}

func (r *Instrumented) GetProductByCode(ctx context.Context, code string) (p *Product, err error) {
	defer func(start time.Time) { r.observe("get_product_by_code", start, err) }(time.Now())
	return r.next.GetProductByCode(ctx, code)
}

func (r *Instrumented) InsertOrder(ctx context.Context, order Order) (o *Order, err error) {
	defer func(start time.Time) { r.observe("insert_order", start, err) }(time.Now())
	return r.next.InsertOrder(ctx, order)
}

func (r *Instrumented) InsertOrderItems(ctx context.Context, orderID string, items []OrderItem) (err error) {
	defer func(start time.Time) { r.observe("insert_order_items", start, err) }(time.Now())
	return r.next.InsertOrderItems(ctx, orderID, items)
}

func (r *Instrumented) UpdateOrderTotal(ctx context.Context, orderID string, total int64) (err error) {
	defer func(start time.Time) { r.observe("update_order_total", start, err) }(time.Now())
	return r.next.UpdateOrderTotal(ctx, orderID, total)
}

func (r *Instrumented) GetOrder(ctx context.Context, id string) (o *Order, err error) {
	defer func(start time.Time) { r.observe("get_order", start, err) }(time.Now())
	return r.next.GetOrder(ctx, id)
}

func (r *Instrumented) ListOrderItems(ctx context.Context, orderID string) (items []OrderItem, err error) {
	defer func(start time.Time) { r.observe("list_order_items", start, err) }(time.Now())
	return r.next.ListOrderItems(ctx, orderID)
}

func (r *Instrumented) ListOrdersByDate(ctx context.Context, date string, p Page) (orders []Order, total int, err error) {
	defer func(start time.Time) { r.observe("list_orders_by_date", start, err) }(time.Now())
	return r.next.ListOrdersByDate(ctx, date, p)
}

func (r *Instrumented) ListOrdersByClient(ctx context.Context, clientID string, p Page) (orders []Order, total int, err error) {
	defer func(start time.Time) { r.observe("list_orders_by_client", start, err) }(time.Now())
	return r.next.ListOrdersByClient(ctx, clientID, p)
}

func (r *Instrumented) CountOrdersUpTo(ctx context.Context, date string, createdAt time.Time) (n int, err error) {
	defer func(start time.Time) { r.observe("count_orders_up_to", start, err) }(time.Now())
	return r.next.CountOrdersUpTo(ctx, date, createdAt)
}

func (r *Instrumented) SalesSummary(ctx context.Context, date string) (s *DaySummary, err error) {
	defer func(start time.Time) { r.observe("sales_summary", start, err) }(time.Now())
	return r.next.SalesSummary(ctx, date)
}
