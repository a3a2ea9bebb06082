package convo

import (
	"fmt"
	"strings"

	"ops-bot/internal/cart"
	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/shortcode"
)

func (e *Engine) page(t *turn, tok pager.Token) (*Reply, error) {
	switch tok.Kind {
	case pager.KindClientsView:
		return e.clientList(t, tok, EntityClientView)
	case pager.KindClientsEdit:
		return e.clientList(t, tok, EntityClientEdit)
	case pager.KindProducts:
		return e.productList(t, tok.Page)
	case pager.KindOrdersByDate:
		return e.ordersForDate(t, tok.FilterValue, tok.Page)
	case pager.KindOrdersByClient:
		if tok.FilterValue == "" {
			t.outcome = "noop"
			return nil, nil
		}
		return e.clientOrders(t, tok.FilterValue, tok.Page)
	case pager.KindSearchFilter:
		return e.searchResults(t, tok)
	case pager.KindSearchText:
		return e.searchResults(t, tok)
	case pager.KindSearchOptions:
		return e.searchOptions(t, tok.FilterKey, tok.Page)
	case pager.KindOrderClients:
		return e.orderClientPicker(t, tok.Page)
	case pager.KindOrderProducts:
		return e.productPicker(t, tok.Page)
	case pager.KindInventory:
		return e.inventory(t, tok.Page)
	default:
		e.logger.Info("unknown page kind", "chat_id", t.chatID, "kind", tok.Kind)
		t.unhandled()
		return nil, nil
	}
}

// fetchPage loads the requested page, clamping it against the total and
// re-reading when the request was out of range.
func fetchPage[T any](page, size int, fetch func(repo.Page) ([]T, int, error)) ([]T, pager.Window, error) {
	items, total, err := fetch(repo.Page{Offset: pager.Offset(page, size), Limit: size})
	if err != nil {
		return nil, pager.Window{}, err
	}
	w := pager.NewWindow(page, total, size)
	if w.Offset() != pager.Offset(page, size) {
		items, total, err = fetch(repo.Page{Offset: w.Offset(), Limit: size})
		if err != nil {
			return nil, pager.Window{}, err
		}
		w = pager.NewWindow(w.Page, total, size)
	}
	return items, w, nil
}

// navRow adds prev/next buttons for tok, omitting them at the boundaries.
func navRow(r *Reply, tok pager.Token, w pager.Window) *Reply {
	var row []Action
	if w.HasPrev {
		prev := tok
		prev.Page = w.Page - 1
		row = append(row, pageBtn(lblPrev, prev))
	}
	if w.HasNext {
		next := tok
		next.Page = w.Page + 1
		row = append(row, pageBtn(lblNext, next))
	}
	return r.Row(row...)
}

func pageTitle(title string, w pager.Window) string {
	if w.Last == 0 {
		return title
	}
	return fmt.Sprintf("%s (página %d/%d)", title, w.Page+1, w.Last+1)
}

func clientLabel(c repo.Client) string {
	parts := []string{c.Name}
	if c.City != "" {
		parts = append(parts, c.City)
	}
	if c.Route != "" {
		parts = append(parts, "ruta "+c.Route)
	}
	return strings.Join(parts, " · ")
}

// renderClients lists clients as one button each, tapping onto kind.
func renderClients(title string, clients []repo.Client, w pager.Window, kind EntityKind, tok pager.Token, owner string) *Reply {
	if len(clients) == 0 {
		return withFooter(newReply(title+"\n\n"+msgEmptyList), owner)
	}
	r := newReply(pageTitle(title, w))
	for _, c := range clients {
		r.Row(btn(clientLabel(c), string(kind)+":"+c.ID))
	}
	navRow(r, tok, w)
	return withFooter(r, owner)
}

func (e *Engine) clientList(t *turn, tok pager.Token, kind EntityKind) (*Reply, error) {
	clients, w, err := fetchPage(tok.Page, e.cfg.PageSize, func(p repo.Page) ([]repo.Client, int, error) {
		return e.repo.ListClients(t.ctx, repo.ClientQuery{Page: p})
	})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	title := "Clientes"
	if kind == EntityClientEdit {
		title = "¿Qué cliente quieres editar?"
	}
	return renderClients(title, clients, w, kind, tok, MenuClients), nil
}

func (e *Engine) productList(t *turn, page int) (*Reply, error) {
	products, w, err := fetchPage(page, e.cfg.PageSize, func(p repo.Page) ([]repo.Product, int, error) {
		return e.products.ListProducts(t.ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return withFooter(newReply("Lista de precios\n\n"+msgEmptyList), MenuProducts), nil
	}
	var b strings.Builder
	b.WriteString(pageTitle("Lista de precios", w))
	b.WriteString("\n")
	for _, p := range products {
		fmt.Fprintf(&b, "\n%s · %s · %s", p.Code, p.Name, cart.FormatMoney(p.Price))
	}
	r := newReply(b.String())
	navRow(r, pager.Token{Kind: pager.KindProducts}, w)
	return withFooter(r, MenuProducts), nil
}

// orderButtons renders one button per order, labelled with its short code.
func (e *Engine) orderButtons(t *turn, r *Reply, orders []repo.Order, withClient bool) {
	for _, o := range orders {
		code := e.codes.Code(t.ctx, orderRef(o))
		label := code
		if withClient && o.ClientName != "" {
			label += " · " + o.ClientName
		}
		label += " · " + cart.FormatMoney(o.Total)
		r.Row(btn(label, string(EntityOrderView)+":"+o.ID))
	}
}

func orderRef(o repo.Order) shortcode.OrderRef {
	return shortcode.OrderRef{ID: o.ID, Date: o.Date, CreatedAt: o.CreatedAt}
}

func (e *Engine) ordersForDate(t *turn, date string, page int) (*Reply, error) {
	day, ok := parseDate(date, e.now(), e.cfg.Location)
	if !ok {
		t.outcome = "noop"
		return nil, nil
	}
	date = day.Format(shortcode.DateLayout)
	orders, w, err := fetchPage(page, e.cfg.PageSize, func(p repo.Page) ([]repo.Order, int, error) {
		return e.repo.ListOrdersByDate(t.ctx, date, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list orders by date: %w", err)
	}
	title := fmt.Sprintf("Pedidos del %s: %d", displayDate(day), w.Total)
	return e.renderOrders(t, title, orders, w, pager.Token{Kind: pager.KindOrdersByDate, FilterKey: "d", FilterValue: date}, true), nil
}

func (e *Engine) clientOrders(t *turn, clientID string, page int) (*Reply, error) {
	orders, w, err := fetchPage(page, e.cfg.PageSize, func(p repo.Page) ([]repo.Order, int, error) {
		return e.repo.ListOrdersByClient(t.ctx, clientID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list orders by client: %w", err)
	}
	title := "Pedidos del cliente"
	if len(orders) > 0 && orders[0].ClientName != "" {
		title = "Pedidos de " + orders[0].ClientName
	}
	tok := pager.Token{Kind: pager.KindOrdersByClient, FilterKey: "c", FilterValue: clientID}
	r := e.renderOrders(t, title, orders, w, tok, false)
	return r, nil
}

func (e *Engine) renderOrders(t *turn, title string, orders []repo.Order, w pager.Window, tok pager.Token, withClient bool) *Reply {
	if len(orders) == 0 {
		return withFooter(newReply(title+"\n\n"+msgEmptyList), MenuOrders)
	}
	r := newReply(pageTitle(title, w))
	e.orderButtons(t, r, orders, withClient)
	navRow(r, tok, w)
	return withFooter(r, MenuOrders)
}
