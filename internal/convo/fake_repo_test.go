package convo

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"ops-bot/internal/repo"
)

// fakeRepo is an in-memory repository. fail injects an error per method
// name; panics makes a method panic.
type fakeRepo struct {
	mu       sync.Mutex
	clients  []repo.Client
	products []repo.Product
	orders   []repo.Order
	items    map[string][]repo.OrderItem
	fail     map[string]error
	panics   map[string]bool
	calls    map[string]int
	clock    time.Time
	seq      int
}

var _ repo.Repository = (*fakeRepo)(nil)

func newFakeRepo(clock time.Time) *fakeRepo {
	return &fakeRepo{
		items:  map[string][]repo.OrderItem{},
		fail:   map[string]error{},
		panics: map[string]bool{},
		calls:  map[string]int{},
		clock:  clock,
	}
}

func (f *fakeRepo) enter(op string) error {
	f.calls[op]++
	if f.panics[op] {
		panic("boom: " + op)
	}
	return f.fail[op]
}

func (f *fakeRepo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func window[T any](rows []T, p repo.Page) []T {
	if p.Limit <= 0 {
		p.Limit = 8
	}
	if p.Offset >= len(rows) {
		return nil
	}
	end := min(p.Offset+p.Limit, len(rows))
	return append([]T(nil), rows[p.Offset:end]...)
}

func (f *fakeRepo) Close()                                    {}
func (f *fakeRepo) Ping(context.Context) error                { return nil }
func (f *fakeRepo) RunMigrations(context.Context, fs.FS) error { return nil }

func clientField(c repo.Client, field string) string {
	switch field {
	case "category":
		return c.Category
	case "route":
		return c.Route
	case "city":
		return c.City
	}
	return ""
}

func (f *fakeRepo) ListClients(_ context.Context, q repo.ClientQuery) ([]repo.Client, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListClients"); err != nil {
		return nil, 0, err
	}
	if q.Field != "" && !repo.IsFilterField(q.Field) {
		return nil, 0, repo.ErrInvalidField
	}
	var rows []repo.Client
	text := strings.ToLower(q.Text)
	for _, c := range f.clients {
		if q.Field != "" && clientField(c, q.Field) != q.Value {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(c.Name), text) && !strings.Contains(c.Phone, text) {
			continue
		}
		rows = append(rows, c)
	}
	sort.SliceStable(rows, func(i, j int) bool { return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name) })
	return window(rows, q.Page), len(rows), nil
}

func (f *fakeRepo) GetClient(_ context.Context, id string) (*repo.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetClient"); err != nil {
		return nil, err
	}
	for _, c := range f.clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("get client: %w", repo.ErrNotFound)
}

func (f *fakeRepo) InsertClient(_ context.Context, c repo.Client) (*repo.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertClient"); err != nil {
		return nil, err
	}
	c.ID = f.nextID("client-")
	c.CreatedAt = f.clock
	f.clients = append(f.clients, c)
	return &c, nil
}

func (f *fakeRepo) UpdateClientField(_ context.Context, id, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateClientField"); err != nil {
		return err
	}
	if !repo.IsEditableField(field) {
		return repo.ErrInvalidField
	}
	for i := range f.clients {
		if f.clients[i].ID != id {
			continue
		}
		c := &f.clients[i]
		switch field {
		case "name":
			c.Name = value
		case "phone":
			c.Phone = value
		case "address":
			c.Address = value
		case "city":
			c.City = value
		case "route":
			c.Route = value
		case "category":
			c.Category = value
		case "notes":
			c.Notes = value
		}
		return nil
	}
	return repo.ErrNotFound
}

func (f *fakeRepo) ListClientOptions(_ context.Context, field string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListClientOptions"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range f.clients {
		v := clientField(c, field)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRepo) ListProducts(_ context.Context, p repo.Page) ([]repo.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListProducts"); err != nil {
		return nil, 0, err
	}
	var rows []repo.Product
	for _, prod := range f.products {
		if prod.Active {
			rows = append(rows, prod)
		}
	}
	return window(rows, p), len(rows), nil
}

func (f *fakeRepo) GetProduct(_ context.Context, id string) (*repo.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetProduct"); err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) GetProductByCode(_ context.Context, code string) (*repo.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetProductByCode"); err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.Active && strings.EqualFold(p.Code, strings.TrimSpace(code)) {
			return &p, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) InsertOrder(_ context.Context, o repo.Order) (*repo.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertOrder"); err != nil {
		return nil, err
	}
	o.ID = f.nextID("order-")
	if o.CreatedAt.IsZero() {
		o.CreatedAt = f.clock.Add(time.Duration(f.seq) * time.Second)
	}
	f.orders = append(f.orders, o)
	return &o, nil
}

func (f *fakeRepo) InsertOrderItems(_ context.Context, orderID string, items []repo.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertOrderItems"); err != nil {
		return err
	}
	for _, it := range items {
		it.ID = f.nextID("item-")
		it.OrderID = orderID
		f.items[orderID] = append(f.items[orderID], it)
	}
	return nil
}

func (f *fakeRepo) UpdateOrderTotal(_ context.Context, orderID string, total int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateOrderTotal"); err != nil {
		return err
	}
	for i := range f.orders {
		if f.orders[i].ID == orderID {
			f.orders[i].Total = total
			return nil
		}
	}
	return repo.ErrNotFound
}

func (f *fakeRepo) GetOrder(_ context.Context, id string) (*repo.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetOrder"); err != nil {
		return nil, err
	}
	for _, o := range f.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) ListOrderItems(_ context.Context, orderID string) ([]repo.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListOrderItems"); err != nil {
		return nil, err
	}
	return append([]repo.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeRepo) ListOrdersByDate(_ context.Context, date string, p repo.Page) ([]repo.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListOrdersByDate"); err != nil {
		return nil, 0, err
	}
	var rows []repo.Order
	for _, o := range f.orders {
		if o.Date == date {
			rows = append(rows, o)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return window(rows, p), len(rows), nil
}

func (f *fakeRepo) ListOrdersByClient(_ context.Context, clientID string, p repo.Page) ([]repo.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListOrdersByClient"); err != nil {
		return nil, 0, err
	}
	var rows []repo.Order
	for _, o := range f.orders {
		if o.ClientID == clientID {
			rows = append(rows, o)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return window(rows, p), len(rows), nil
}

func (f *fakeRepo) CountOrdersUpTo(_ context.Context, date string, createdAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CountOrdersUpTo"); err != nil {
		return 0, err
	}
	n := 0
	for _, o := range f.orders {
		if o.Date == date && !o.CreatedAt.After(createdAt) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) SalesSummary(_ context.Context, date string) (*repo.DaySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SalesSummary"); err != nil {
		return nil, err
	}
	s := repo.DaySummary{Date: date}
	for _, o := range f.orders {
		if o.Date == date {
			s.Orders++
			s.Total += o.Total
		}
	}
	return &s, nil
}
