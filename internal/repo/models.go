package repo

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidField is returned for a client field that cannot be filtered or
// edited.
var ErrInvalidField = errors.New("invalid client field")

// Client represents a row in the clients table.
type Client struct {
	ID        string
	Name      string
	Phone     string
	Address   string
	City      string
	Route     string
	Category  string
	Notes     string
	CreatedAt time.Time
}

// Product represents a row in the products table. Prices are minor units.
type Product struct {
	ID       string
	Code     string
	Name     string
	Category string
	Price    int64
	Stock    int
	Active   bool
}

// Order represents a row in the orders table. Date is the business date
// (YYYY-MM-DD) and may be empty for legacy rows.
type Order struct {
	ID         string
	ClientID   string
	ClientName string
	Date       string
	Total      int64
	Status     string
	CreatedAt  time.Time
}

// OrderItem represents a row in the order_items table. ProductID is empty
// when the product no longer exists.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Code      string
	Name      string
	Price     int64
	Qty       int
}

// Page selects a window of rows.
type Page struct {
	Offset int
	Limit  int
}

// ClientQuery filters the client list. Field/Value is an equality filter on
// one of FilterFields; Text is a case-insensitive substring match on name
// and phone. Both may be empty.
type ClientQuery struct {
	Field string
	Value string
	Text  string
	Page  Page
}

// DaySummary aggregates the orders of one business date.
type DaySummary struct {
	Date   string
	Orders int
	Total  int64
}

// Order statuses.
const (
	OrderStatusConfirmed = "confirmed"
)

// FilterFields lists client columns usable as equality filters.
var FilterFields = []string{"category", "route", "city"}

// EditableFields lists client columns that can be updated individually.
var EditableFields = []string{"name", "phone", "address", "city", "route", "category", "notes"}

// IsFilterField reports whether field can filter clients.
func IsFilterField(field string) bool {
	return contains(FilterFields, field)
}

// IsEditableField reports whether field can be edited.
func IsEditableField(field string) bool {
	return contains(EditableFields, field)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func normalizePage(p Page) Page {
	if p.Limit <= 0 {
		p.Limit = 8
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
