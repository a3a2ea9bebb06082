package repo

import (
	"context"
	"io/fs"
	"time"
)

// Repository defines the interface for data persistence. Every call is
// independently atomic; callers compose them without a transaction.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Clients
	ListClients(ctx context.Context, q ClientQuery) ([]Client, int, error)
	GetClient(ctx context.Context, id string) (*Client, error)
	InsertClient(ctx context.Context, c Client) (*Client, error)
	UpdateClientField(ctx context.Context, id, field, value string) error
	ListClientOptions(ctx context.Context, field string) ([]string, error)

	// Products
	ListProducts(ctx context.Context, p Page) ([]Product, int, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductByCode(ctx context.Context, code string) (*Product, error)

	// Orders
	InsertOrder(ctx context.Context, order Order) (*Order, error)
	InsertOrderItems(ctx context.Context, orderID string, items []OrderItem) error
	UpdateOrderTotal(ctx context.Context, orderID string, total int64) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	ListOrdersByDate(ctx context.Context, date string, p Page) ([]Order, int, error)
	ListOrdersByClient(ctx context.Context, clientID string, p Page) ([]Order, int, error)
	CountOrdersUpTo(ctx context.Context, date string, createdAt time.Time) (int, error)
	SalesSummary(ctx context.Context, date string) (*DaySummary, error)
}
