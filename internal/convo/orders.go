package convo

import (
	"fmt"
	"strconv"
	"strings"

	"ops-bot/internal/cart"
	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/session"
)

// qtyKeypad is the quick quantity menu shown after picking a product.
var qtyKeypad = [][]int{{1, 2, 3, 4, 5}, {6, 8, 10, 12, 24}}

func (e *Engine) startNewOrder(t *turn) (*Reply, error) {
	t.start(session.FlowNewOrder, session.StepPickClient)
	return e.orderClientPicker(t, 0)
}

func (e *Engine) orderClientPicker(t *turn, page int) (*Reply, error) {
	clients, w, err := fetchPage(page, e.cfg.PageSize, func(p repo.Page) ([]repo.Client, int, error) {
		return e.repo.ListClients(t.ctx, repo.ClientQuery{Page: p})
	})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	if len(clients) == 0 {
		return newReply(msgPickClient+"\n\n"+msgEmptyList).
			Row(btn("Nuevo cliente", string(StartNewClient))).
			Row(btn(lblCancel, "cancel")), nil
	}
	r := newReply(pageTitle(msgPickClient, w))
	for _, c := range clients {
		r.Row(btn(clientLabel(c), string(EntityOrderNew)+":"+c.ID))
	}
	navRow(r, pager.Token{Kind: pager.KindOrderClients}, w)
	return r.Row(btn(lblCancel, "cancel")), nil
}

// orderForClient opens a new order for a client, replacing any flow state.
func (e *Engine) orderForClient(t *turn, clientID string) (*Reply, error) {
	c, err := e.repo.GetClient(t.ctx, clientID)
	if isNotFound(err) {
		return clientNotFound(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	t.start(session.FlowNewOrder, session.StepCart)
	t.sess.Data.ClientID = c.ID
	t.sess.Data.ClientName = c.Name
	return cartView(t.sess, ""), nil
}

// cartView renders the cart with its editing buttons.
func cartView(s *session.Session, header string) *Reply {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Pedido para %s", orDash(s.Data.ClientName))
	c := s.Data.Cart
	lines, total := c.Render()
	if len(lines) == 0 {
		b.WriteString("\n\n")
		b.WriteString(msgCartEmpty)
	} else {
		for _, line := range lines {
			b.WriteString("\n• ")
			b.WriteString(line)
		}
		fmt.Fprintf(&b, "\n\nTotal: %s", cart.FormatMoney(total))
	}

	r := newReply(b.String()).
		Row(btn(lblAdd, "new_order:add"), btn(lblCode, "new_order:code"))
	for _, item := range c.Items {
		r.Row(
			btn("➖ "+item.Name, "new_order:dec:"+item.ProductID),
			btn("➕", "new_order:inc:"+item.ProductID),
			btn("🗑", "new_order:rm:"+item.ProductID),
		)
	}
	if !c.Empty() {
		r.Row(btn(lblConfirm, "new_order:confirm"))
	}
	return r.Row(btn(lblCancel, "new_order:cancel"))
}

func qtyMenu(p cart.Item) *Reply {
	r := newReply(fmt.Sprintf("%s (%s)\n¿Cuántas unidades?", p.Name, cart.FormatMoney(p.Price)))
	for _, keys := range qtyKeypad {
		row := make([]Action, 0, len(keys))
		for _, n := range keys {
			row = append(row, btn(strconv.Itoa(n), fmt.Sprintf("new_order:set_qty:%s:%d", p.ProductID, n)))
		}
		r.Row(row...)
	}
	return r.Row(btn(lblOtherQty, "new_order:qty_manual:"+p.ProductID), btn(lblCart, "new_order:cart"))
}

func productItem(p *repo.Product) cart.Item {
	return cart.Item{ProductID: p.ID, Code: p.Code, Name: p.Name, Price: p.Price}
}

func (e *Engine) newOrderActions() flowActions {
	cartSteps := []session.Step{session.StepCart, session.StepAskProductCode, session.StepAskQty}
	steps := map[transitionKey]actionHandler{}
	for _, step := range cartSteps {
		steps[transitionKey{step, "add"}] = e.orderAdd
		steps[transitionKey{step, "pick"}] = e.orderPick
		steps[transitionKey{step, "set_qty"}] = e.orderSetQty
		steps[transitionKey{step, "qty_manual"}] = e.orderQtyManual
		steps[transitionKey{step, "cart"}] = e.orderShowCart
		steps[transitionKey{step, "code"}] = e.orderAskCode
		steps[transitionKey{step, "inc"}] = e.orderInc
		steps[transitionKey{step, "dec"}] = e.orderDec
		steps[transitionKey{step, "rm"}] = e.orderRemove
	}
	steps[transitionKey{session.StepCart, "confirm"}] = e.orderConfirm
	steps[transitionKey{anyStep, "cancel"}] = e.orderCancel
	return flowActions{steps: steps}
}

func (e *Engine) newOrderTexts() map[session.Step]textHandler {
	return map[session.Step]textHandler{
		session.StepAskProductCode: e.orderCodeText,
		session.StepAskQty:         e.orderQtyText,
	}
}

func (e *Engine) orderAdd(t *turn, _ []string) (*Reply, error) {
	return e.productPicker(t, 0)
}

func (e *Engine) productPicker(t *turn, page int) (*Reply, error) {
	if t.sess.Flow != session.FlowNewOrder || t.sess.Step == session.StepPickClient {
		t.unhandled()
		return nil, nil
	}
	products, w, err := fetchPage(page, e.cfg.PageSize, func(p repo.Page) ([]repo.Product, int, error) {
		return e.products.ListProducts(t.ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if t.sess.Step != session.StepCart {
		t.step(session.StepCart)
	}
	if len(products) == 0 {
		return newReply(msgPickProduct+"\n\n"+msgEmptyList).Row(btn(lblCart, "new_order:cart")), nil
	}
	r := newReply(pageTitle(msgPickProduct, w))
	for _, p := range products {
		r.Row(btn(fmt.Sprintf("%s · %s", p.Name, cart.FormatMoney(p.Price)), "new_order:pick:"+p.ID))
	}
	navRow(r, pager.Token{Kind: pager.KindOrderProducts}, w)
	return r.Row(btn(lblCart, "new_order:cart")), nil
}

// pendingProduct resolves a product id, preferring the pending selection.
func (e *Engine) pendingProduct(t *turn, id string) (*cart.Item, error) {
	if p := t.sess.Data.Pending; p != nil && p.ProductID == id {
		item := *p
		return &item, nil
	}
	if item, ok := t.sess.Data.Cart.Find(id); ok {
		item.Qty = 0
		return &item, nil
	}
	p, err := e.products.GetProduct(t.ctx, id)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	item := productItem(p)
	return &item, nil
}

func productMissing(t *turn) *Reply {
	t.sess.Data.Pending = nil
	t.step(session.StepCart)
	r := cartView(t.sess, msgProductNotFound)
	return t.missing(r)
}

func (e *Engine) orderPick(t *turn, args []string) (*Reply, error) {
	if len(args) == 0 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	item, err := e.pendingProduct(t, args[0])
	if err != nil {
		return nil, err
	}
	if item == nil {
		return productMissing(t), nil
	}
	t.sess.Data.Pending = item
	t.step(session.StepCart)
	return qtyMenu(*item), nil
}

func (e *Engine) orderSetQty(t *turn, args []string) (*Reply, error) {
	if len(args) < 2 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	qty, ok := parseQty(args[1])
	if !ok {
		return t.invalid(msgQtyInvalid), nil
	}
	item, err := e.pendingProduct(t, args[0])
	if err != nil {
		return nil, err
	}
	if item == nil {
		return productMissing(t), nil
	}
	return e.addToCart(t, *item, qty)
}

func (e *Engine) addToCart(t *turn, item cart.Item, qty int) (*Reply, error) {
	if err := t.sess.Data.Cart.AddOrIncrement(item, qty); err != nil {
		return t.invalid(msgQtyInvalid), nil
	}
	t.sess.Data.Pending = nil
	t.step(session.StepCart)
	return cartView(t.sess, ""), nil
}

func (e *Engine) orderQtyManual(t *turn, args []string) (*Reply, error) {
	if len(args) == 0 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	item, err := e.pendingProduct(t, args[0])
	if err != nil {
		return nil, err
	}
	if item == nil {
		return productMissing(t), nil
	}
	t.sess.Data.Pending = item
	t.step(session.StepAskQty)
	return newReply(fmt.Sprintf("%s\n%s", item.Name, msgAskQty)).Row(btn(lblCart, "new_order:cart")), nil
}

func (e *Engine) orderQtyText(t *turn, text string) (*Reply, error) {
	pending := t.sess.Data.Pending
	if pending == nil {
		t.step(session.StepCart)
		return t.missing(cartView(t.sess, msgNoPending)), nil
	}
	qty, ok := parseQty(text)
	if !ok {
		return t.invalid(msgQtyInvalid), nil
	}
	return e.addToCart(t, *pending, qty)
}

func (e *Engine) orderAskCode(t *turn, _ []string) (*Reply, error) {
	t.step(session.StepAskProductCode)
	return newReply(msgAskCode).Row(btn(lblCart, "new_order:cart")), nil
}

func (e *Engine) orderCodeText(t *turn, text string) (*Reply, error) {
	code := strings.TrimSpace(text)
	p, err := e.products.GetProductByCode(t.ctx, code)
	if isNotFound(err) {
		return t.missing(newReply(fmt.Sprintf("No encontré el código %q. Escribe otro código.", code)).
			Row(btn(lblAdd, "new_order:add"), btn(lblCart, "new_order:cart"))), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by code: %w", err)
	}
	item := productItem(p)
	t.sess.Data.Pending = &item
	t.step(session.StepCart)
	return qtyMenu(item), nil
}

func (e *Engine) orderShowCart(t *turn, _ []string) (*Reply, error) {
	if t.sess.Step != session.StepCart || t.sess.Data.Pending != nil {
		t.sess.Data.Pending = nil
		t.step(session.StepCart)
	}
	return cartView(t.sess, ""), nil
}

func (e *Engine) cartEdit(t *turn, args []string, apply func(c *cart.Cart, id string)) (*Reply, error) {
	if len(args) == 0 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	apply(&t.sess.Data.Cart, args[0])
	t.sess.Data.Pending = nil
	t.step(session.StepCart)
	return cartView(t.sess, ""), nil
}

func (e *Engine) orderInc(t *turn, args []string) (*Reply, error) {
	return e.cartEdit(t, args, func(c *cart.Cart, id string) {
		if item, ok := c.Find(id); ok {
			_ = c.AddOrIncrement(item, 1)
		}
	})
}

func (e *Engine) orderDec(t *turn, args []string) (*Reply, error) {
	return e.cartEdit(t, args, func(c *cart.Cart, id string) { c.Decrement(id) })
}

func (e *Engine) orderRemove(t *turn, args []string) (*Reply, error) {
	return e.cartEdit(t, args, func(c *cart.Cart, id string) { c.Remove(id) })
}

func (e *Engine) orderCancel(t *turn, _ []string) (*Reply, error) {
	t.clear()
	r := e.menu(MenuOrders)
	r.Text = msgOrderAborted + "\n\n" + r.Text
	return r, nil
}

// orderConfirm persists the cart as an order: insert the order, its items,
// then the final total. The calls are not transactional; a failure leaves
// the session untouched so the user can retry.
func (e *Engine) orderConfirm(t *turn, _ []string) (*Reply, error) {
	c := t.sess.Data.Cart
	if c.Empty() {
		return t.invalid(msgCartEmpty), nil
	}
	total := c.Total()
	order, err := e.repo.InsertOrder(t.ctx, repo.Order{
		ClientID:   t.sess.Data.ClientID,
		ClientName: t.sess.Data.ClientName,
		Date:       e.today(),
		Total:      total,
		Status:     repo.OrderStatusConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	items := make([]repo.OrderItem, 0, c.Len())
	for _, it := range c.Items {
		productID := it.ProductID
		if !it.Linked() {
			productID = ""
		}
		items = append(items, repo.OrderItem{
			OrderID:   order.ID,
			ProductID: productID,
			Code:      it.Code,
			Name:      it.Name,
			Price:     it.Price,
			Qty:       it.Qty,
		})
	}
	if err := e.repo.InsertOrderItems(t.ctx, order.ID, items); err != nil {
		return nil, fmt.Errorf("insert order items for %s: %w", order.ID, err)
	}
	if err := e.repo.UpdateOrderTotal(t.ctx, order.ID, total); err != nil {
		return nil, fmt.Errorf("update order total for %s: %w", order.ID, err)
	}
	order.Total = total

	e.logger.Info("order created",
		"chat_id", t.chatID,
		"order_id", order.ID,
		"client_id", order.ClientID,
		"items", len(items),
		"total", total,
	)
	t.clear()
	return e.renderOrder(t, order, items, msgOrderSaved), nil
}

func orderNotFound(t *turn) *Reply {
	return t.missing(withFooter(newReply(msgOrderNotFound), MenuOrders))
}

func (e *Engine) loadOrder(t *turn, id string) (*repo.Order, []repo.OrderItem, error) {
	order, err := e.repo.GetOrder(t.ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := e.repo.ListOrderItems(t.ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func (e *Engine) viewOrder(t *turn, id string) (*Reply, error) {
	order, items, err := e.loadOrder(t, id)
	if isNotFound(err) {
		return orderNotFound(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return e.renderOrder(t, order, items, ""), nil
}

func (e *Engine) renderOrder(t *turn, o *repo.Order, items []repo.OrderItem, header string) *Reply {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Pedido %s", e.codes.Code(t.ctx, orderRef(*o)))
	fmt.Fprintf(&b, "\nCliente: %s", orDash(o.ClientName))
	var total int64
	for _, it := range items {
		line := cart.Item{Name: it.Name, Price: it.Price, Qty: it.Qty}
		fmt.Fprintf(&b, "\n• %s × %d = %s", it.Name, it.Qty, cart.FormatMoney(line.LineTotal()))
		total += line.LineTotal()
	}
	if len(items) == 0 {
		total = o.Total
	}
	fmt.Fprintf(&b, "\n\nTotal: %s", cart.FormatMoney(total))

	r := newReply(b.String()).Row(btn("Repetir pedido", string(EntityOrderRepeat)+":"+o.ID))
	if o.ClientID != "" {
		r.Row(btn("Ver cliente", string(EntityClientView)+":"+o.ClientID))
	}
	return withFooter(r, MenuOrders)
}

// repeatOrder rebuilds a cart from a past order and opens it for editing.
func (e *Engine) repeatOrder(t *turn, id string) (*Reply, error) {
	order, items, err := e.loadOrder(t, id)
	if isNotFound(err) {
		return orderNotFound(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	lines := make([]cart.HistoryLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, cart.HistoryLine{
			ProductID: it.ProductID,
			Code:      it.Code,
			Name:      it.Name,
			Price:     it.Price,
			Qty:       it.Qty,
		})
	}
	t.start(session.FlowNewOrder, session.StepCart)
	t.sess.Data.ClientID = order.ClientID
	t.sess.Data.ClientName = order.ClientName
	rebuilt, adjusted := cart.FromHistory(lines)
	t.sess.Data.Cart = rebuilt
	header := fmt.Sprintf("Repitiendo el pedido %s", e.codes.Code(t.ctx, orderRef(*order)))
	if adjusted > 0 {
		e.logger.Warn("repeated order had invalid lines", "chat_id", t.chatID, "order_id", order.ID, "adjusted", adjusted)
		header += "\n" + fmt.Sprintf(msgRepeatAdjusted, adjusted)
	}
	return cartView(t.sess, header), nil
}
