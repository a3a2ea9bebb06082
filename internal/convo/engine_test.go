package convo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/session"
)

const chat = "chat-1"

var fixedNow = time.Date(2025, 3, 7, 15, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	e     *Engine
	repo  *fakeRepo
	store *session.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := newFakeRepo(fixedNow)
	r.clients = []repo.Client{
		{ID: "c1", Name: "Bodega Sur", Phone: "555-0101", City: "Lima", Route: "R1", Category: "minorista"},
		{ID: "c2", Name: "Casa Norte", Phone: "555-0102", City: "Cusco", Route: "R2", Category: "mayorista"},
	}
	r.products = []repo.Product{
		{ID: "p1", Code: "CAF", Name: "Café", Category: "Bebidas", Price: 200, Stock: 10, Active: true},
		{ID: "p2", Code: "ARZ", Name: "Arroz", Category: "Abarrotes", Price: 500, Stock: 3, Active: true},
	}
	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(r, nil, store, session.NewLocalLocker(), nil, logger, EngineConfig{PageSize: 8})
	e.now = func() time.Time { return fixedNow }
	return &fixture{t: t, e: e, repo: r, store: store}
}

func (f *fixture) action(token string) Outcome {
	f.t.Helper()
	return f.e.HandleAction(context.Background(), chat, token)
}

func (f *fixture) text(text string) Outcome {
	f.t.Helper()
	return f.e.HandleText(context.Background(), chat, text)
}

func (f *fixture) session() *session.Session {
	f.t.Helper()
	s, err := f.store.Get(context.Background(), chat)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) requireStep(flow session.Flow, step session.Step) *session.Session {
	f.t.Helper()
	s := f.session()
	require.NotNil(f.t, s)
	require.Equal(f.t, flow, s.Flow)
	require.Equal(f.t, step, s.Step)
	return s
}

func hasToken(r *Reply, token string) bool {
	for _, tok := range r.Tokens() {
		if tok == token {
			return true
		}
	}
	return false
}

func TestFreeTextWithoutFlowIsIgnored(t *testing.T) {
	f := newFixture(t)

	out := f.text("hola, ¿tienen café?")
	assert.Nil(t, out.Reply)
	assert.Empty(t, out.Notice)
	assert.Nil(t, f.session())
	assert.Zero(t, f.store.Len())
}

func TestUnknownTokenShowsNotice(t *testing.T) {
	f := newFixture(t)

	for _, tok := range []string{"bogus", "menu:nowhere", "clients_search_select", "new_order:confirm"} {
		out := f.action(tok)
		assert.Nil(t, out.Reply, tok)
		assert.Equal(t, msgUnavailable, out.Notice, tok)
	}
	assert.Nil(t, f.session())
}

func TestMissingEntityArgumentIsSilent(t *testing.T) {
	f := newFixture(t)

	for _, tok := range []string{"client:view:", "order:view", "order:repeat: "} {
		out := f.action(tok)
		assert.Nil(t, out.Reply, tok)
		assert.Empty(t, out.Notice, tok)
	}
	assert.Zero(t, f.repo.count("GetClient"))
}

func TestNavigationMenusAndBack(t *testing.T) {
	f := newFixture(t)

	out := f.action("menu:clients")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, "clients:new"))

	out = f.action("menu:back")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgMainMenu, out.Reply.Text)

	f.action("menu:orders")
	f.action("clients:new")
	f.requireStep(session.FlowNewClient, session.StepAskName)

	out = f.action("menu:products")
	require.NotNil(t, out.Reply)
	s := f.session()
	assert.False(t, s.Active())
	assert.Equal(t, []string{MenuMain, MenuOrders, MenuProducts}, s.NavStack)
}

func TestCancelClearsSessionFromAnyStep(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c1")
	f.action("new_order:pick:p1")
	f.action("new_order:qty_manual:p1")
	f.requireStep(session.FlowNewOrder, session.StepAskQty)

	out := f.text("  CANCELAR ")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, msgCancelled)
	assert.True(t, hasToken(out.Reply, "menu:orders"))
	assert.Nil(t, f.session())

	// A stale quantity arriving after the cancel is ignored.
	out = f.text("3")
	assert.Nil(t, out.Reply)
	assert.Nil(t, f.session())

	f.action("clients:new")
	out = f.action("cancel")
	require.NotNil(t, out.Reply)
	assert.Nil(t, f.session())
}

func TestStartCommandRendersMainMenu(t *testing.T) {
	f := newFixture(t)
	f.action("sales:date")

	out := f.text("/start")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgMainMenu, out.Reply.Text)
	assert.Nil(t, f.session())
}

func TestNewClientFlow(t *testing.T) {
	f := newFixture(t)

	out := f.action("clients:new")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgAskName, out.Reply.Text)
	f.requireStep(session.FlowNewClient, session.StepAskName)

	out = f.text("   ")
	require.NotNil(t, out.Reply)
	f.requireStep(session.FlowNewClient, session.StepAskName)

	f.text("Abarrotes  Luz")
	f.requireStep(session.FlowNewClient, session.StepAskPhone)

	out = f.text("llámame")
	assert.Equal(t, msgPhoneBad, out.Reply.Text)
	f.requireStep(session.FlowNewClient, session.StepAskPhone)

	f.text("+51 999 123 456")
	f.action("new_client:skip")
	f.requireStep(session.FlowNewClient, session.StepAskRoute)
	f.text("R3")
	out = f.action("new_client:skip")
	s := f.requireStep(session.FlowNewClient, session.StepConfirm)
	assert.Equal(t, "Abarrotes Luz", s.Data.Form["name"])
	assert.Contains(t, out.Reply.Text, "Ruta: R3")
	assert.Contains(t, out.Reply.Text, "Ciudad: -")

	// Save is only valid in the confirm step.
	out = f.action("new_client:skip")
	assert.Equal(t, msgUnavailable, out.Notice)

	out = f.action("new_client:save")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, msgClientSaved)
	assert.Nil(t, f.session())
	require.Len(t, f.repo.clients, 3)
	saved := f.repo.clients[2]
	assert.Equal(t, "Abarrotes Luz", saved.Name)
	assert.Equal(t, "+51 999 123 456", saved.Phone)
	assert.Equal(t, "R3", saved.Route)
	assert.Empty(t, saved.City)
}

func TestAskQtyValidation(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c1")
	out := f.action("new_order:pick:p1")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, "new_order:set_qty:p1:3"))
	f.action("new_order:qty_manual:p1")
	f.requireStep(session.FlowNewOrder, session.StepAskQty)
	assert.True(t, f.e.ExpectsText(context.Background(), chat))

	for _, bad := range []string{"abc", "-1", "1.5", "0", "+2"} {
		out := f.text(bad)
		require.NotNil(t, out.Reply, bad)
		assert.Equal(t, msgQtyInvalid, out.Reply.Text, bad)
		s := f.requireStep(session.FlowNewOrder, session.StepAskQty)
		assert.True(t, s.Data.Cart.Empty(), bad)
	}

	f.text("3")
	s := f.requireStep(session.FlowNewOrder, session.StepCart)
	require.Equal(t, 1, s.Data.Cart.Len())
	item, ok := s.Data.Cart.Find("p1")
	require.True(t, ok)
	assert.Equal(t, 3, item.Qty)
	assert.Nil(t, s.Data.Pending)
	assert.False(t, f.e.ExpectsText(context.Background(), chat))
}

func TestProductCodeLookup(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c2")
	f.action("new_order:code")
	f.requireStep(session.FlowNewOrder, session.StepAskProductCode)

	out := f.text("XYZ")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "XYZ")
	f.requireStep(session.FlowNewOrder, session.StepAskProductCode)

	out = f.text(" arz ")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, "new_order:set_qty:p2:1"))
	s := f.requireStep(session.FlowNewOrder, session.StepCart)
	require.NotNil(t, s.Data.Pending)
	assert.Equal(t, "p2", s.Data.Pending.ProductID)

	f.action("new_order:set_qty:p2:2")
	s = f.requireStep(session.FlowNewOrder, session.StepCart)
	item, ok := s.Data.Cart.Find("p2")
	require.True(t, ok)
	assert.Equal(t, 2, item.Qty)
	assert.Equal(t, int64(1000), s.Data.Cart.Total())
}

func TestCartEditingAndConfirm(t *testing.T) {
	f := newFixture(t)
	f.repo.orders = []repo.Order{{ID: "prev", Date: "2025-03-07", CreatedAt: fixedNow.Add(-time.Hour)}}

	f.action("order:new:c1")
	f.action("new_order:set_qty:p1:2")
	f.action("new_order:set_qty:p2:1")
	out := f.action("new_order:set_qty:p1:1")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Café × 3 = $6.00")
	assert.Contains(t, out.Reply.Text, "Total: $11.00")

	f.action("new_order:dec:p1")
	f.action("new_order:inc:p2")
	f.action("new_order:rm:p1")
	f.action("new_order:inc:p1")
	s := f.session()
	require.Equal(t, 1, s.Data.Cart.Len())
	assert.Equal(t, int64(1000), s.Data.Cart.Total())

	out = f.action("new_order:confirm")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, msgOrderSaved)
	assert.Contains(t, out.Reply.Text, "Pedido 7/3.2025-2")
	assert.Contains(t, out.Reply.Text, "Total: $10.00")
	assert.Nil(t, f.session())

	require.Len(t, f.repo.orders, 2)
	order := f.repo.orders[1]
	assert.Equal(t, "c1", order.ClientID)
	assert.Equal(t, "2025-03-07", order.Date)
	assert.Equal(t, int64(1000), order.Total)
	items := f.repo.items[order.ID]
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
	assert.Equal(t, 2, items[0].Qty)
	assert.Equal(t, 1, f.repo.count("InsertOrder"))
	assert.Equal(t, 1, f.repo.count("InsertOrderItems"))
	assert.Equal(t, 1, f.repo.count("UpdateOrderTotal"))
}

func TestConfirmEmptyCartIsValidation(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c1")

	out := f.action("new_order:confirm")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgCartEmpty, out.Reply.Text)
	f.requireStep(session.FlowNewOrder, session.StepCart)
	assert.Zero(t, f.repo.count("InsertOrder"))
}

func TestConfirmFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c1")
	f.action("new_order:set_qty:p1:4")
	f.repo.fail["InsertOrderItems"] = errors.New("connection reset")

	out := f.action("new_order:confirm")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgFailure, out.Reply.Text)

	s := f.requireStep(session.FlowNewOrder, session.StepCart)
	item, ok := s.Data.Cart.Find("p1")
	require.True(t, ok)
	assert.Equal(t, 4, item.Qty)
	assert.Zero(t, f.repo.count("UpdateOrderTotal"))
}

func TestCollaboratorFailureLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t)
	f.action("menu:orders")
	before := f.session()
	f.repo.fail["ListClients"] = errors.New("timeout")

	out := f.action("orders:new")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgFailure, out.Reply.Text)
	after := f.session()
	assert.Equal(t, before.Flow, after.Flow)
	assert.Equal(t, before.NavStack, after.NavStack)
}

func TestPanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	f.repo.panics["GetClient"] = true

	out := f.action("client:view:c1")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgFailure, out.Reply.Text)

	// The chat lock was released.
	out = f.action("menu:main")
	require.NotNil(t, out.Reply)
}

func TestRepeatOrderRebuildsCart(t *testing.T) {
	f := newFixture(t)
	f.repo.orders = []repo.Order{{ID: "o9", ClientID: "c2", ClientName: "Casa Norte", Date: "2025-03-01", Total: 1700, CreatedAt: fixedNow}}
	f.repo.items["o9"] = []repo.OrderItem{
		{ProductID: "p1", Code: "CAF", Name: "Café", Price: 300, Qty: 4},
		{Name: "Flete", Price: 500, Qty: 1},
	}

	out := f.action("order:repeat:o9")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Repitiendo el pedido 1/3.2025-1")
	s := f.requireStep(session.FlowNewOrder, session.StepCart)
	assert.Equal(t, "c2", s.Data.ClientID)
	assert.Equal(t, int64(1700), s.Data.Cart.Total())

	item, ok := s.Data.Cart.Find("p1")
	require.True(t, ok)
	assert.Equal(t, int64(300), item.Price, "historical price is kept")
	detached, ok := s.Data.Cart.Find("~1")
	require.True(t, ok)
	assert.Equal(t, "Flete", detached.Name)
	assert.True(t, hasToken(out.Reply, "new_order:dec:~1"))

	out = f.action("order:repeat:missing")
	assert.Contains(t, out.Reply.Text, msgOrderNotFound)
}

func TestRepeatOrderKeepsInvalidHistoryLines(t *testing.T) {
	f := newFixture(t)
	f.repo.orders = []repo.Order{{ID: "o9", ClientID: "c2", ClientName: "Casa Norte", Date: "2025-03-01", Total: 300, CreatedAt: fixedNow}}
	f.repo.items["o9"] = []repo.OrderItem{
		{ProductID: "p1", Code: "CAF", Name: "Café", Price: 300, Qty: 0},
		{ProductID: "p2", Code: "ARZ", Name: "Arroz", Price: 500, Qty: 1},
	}

	out := f.action("order:repeat:o9")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, fmt.Sprintf(msgRepeatAdjusted, 1))
	s := f.requireStep(session.FlowNewOrder, session.StepCart)
	require.Equal(t, 2, s.Data.Cart.Len())
	item, ok := s.Data.Cart.Find("p1")
	require.True(t, ok)
	assert.Equal(t, 1, item.Qty)
}

func TestOrderViewFallsBackToIDWhenCountFails(t *testing.T) {
	f := newFixture(t)
	f.repo.orders = []repo.Order{{ID: "o1", ClientName: "Mostrador", Date: "2025-03-07", Total: 400, CreatedAt: fixedNow}}
	f.repo.fail["CountOrdersUpTo"] = errors.New("boom")

	out := f.action("order:view:o1")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Pedido o1")
	assert.Contains(t, out.Reply.Text, "Total: $4.00")
}

func TestPaginationClampsAndOmitsBoundaryButtons(t *testing.T) {
	f := newFixture(t)
	f.repo.clients = nil
	for i := 0; i < 20; i++ {
		f.repo.clients = append(f.repo.clients, repo.Client{ID: fmt.Sprintf("c%02d", i), Name: fmt.Sprintf("Cliente %02d", i)})
	}

	out := f.action("pg:cv:::0")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "(página 1/3)")
	assert.True(t, hasToken(out.Reply, "pg:cv:::1"))
	assert.False(t, hasToken(out.Reply, "pg:cv:::-1"))

	out = f.action("pg:cv:::99")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "(página 3/3)")
	assert.True(t, hasToken(out.Reply, "pg:cv:::1"))
	assert.False(t, hasToken(out.Reply, "pg:cv:::3"))
	assert.True(t, hasToken(out.Reply, "client:view:c19"))

	out = f.action("pg:cv:::abc")
	assert.Contains(t, out.Reply.Text, "(página 1/3)")
}

func TestSearchByLongTextUsesSessionFilter(t *testing.T) {
	f := newFixture(t)
	term := "Distribuidora Comercial Hermanos Rodríguez del Norte"
	for i := 0; i < 10; i++ {
		f.repo.clients = append(f.repo.clients, repo.Client{ID: fmt.Sprintf("d%d", i), Name: fmt.Sprintf("%s %d", term, i)})
	}

	f.action("clients:search")
	f.action("search:text")
	f.requireStep(session.FlowSearchClients, session.StepAskText)

	out := f.text(term)
	require.NotNil(t, out.Reply)
	s := f.requireStep(session.FlowSearchClients, session.StepResults)
	assert.Equal(t, term, s.Data.Filter)
	next := "pg:st::@:1"
	require.True(t, hasToken(out.Reply, next))

	out = f.action(next)
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "(página 2/2)")
	assert.Len(t, out.Reply.Tokens(), 2+1+2+1) // two clients, prev, footer, new search
}

func TestSearchShortTextTravelsInToken(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 9; i++ {
		f.repo.clients = append(f.repo.clients, repo.Client{ID: fmt.Sprintf("s%d", i), Name: fmt.Sprintf("Sur %d", i)})
	}
	f.action("search:text")

	out := f.text("sur")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, pager.Encode(pager.Token{Kind: pager.KindSearchText, FilterValue: "sur", Page: 1})))
	assert.Empty(t, f.session().Data.Filter)
}

func TestSearchResultsAreBrowsable(t *testing.T) {
	f := newFixture(t)
	f.action("search:text")
	assert.True(t, f.e.ExpectsText(context.Background(), chat))

	out := f.text("sur")
	require.NotNil(t, out.Reply)
	f.requireStep(session.FlowSearchClients, session.StepResults)
	assert.False(t, f.e.ExpectsText(context.Background(), chat), "a number picks a listed client")

	first := out.Reply.Flatten()[0]
	assert.Equal(t, "client:view:c1", first.Token)
	out = f.action(first.Token)
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Bodega Sur")

	// Typed text in the results step still runs a new search.
	f.action("search:text")
	f.text("sur")
	out = f.text("norte")
	assert.Contains(t, out.Reply.Text, "Resultados para «norte»")
}

func TestSearchOptionByIndex(t *testing.T) {
	f := newFixture(t)

	out := f.action("search:by:city")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, "search:opt:city:0"))
	assert.True(t, hasToken(out.Reply, "search:opt:city:1"))

	out = f.action("search:opt:city:1")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "«Lima»")
	assert.True(t, hasToken(out.Reply, "client:view:c1"))
	assert.False(t, hasToken(out.Reply, "client:view:c2"))

	out = f.action("search:opt:city:7")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, msgSearchExpired)

	out = f.action("search:by:phone")
	assert.Equal(t, msgUnavailable, out.Notice)
}

func TestEditClientFlow(t *testing.T) {
	f := newFixture(t)

	out := f.action("client:edit:c2")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, "edit_client:field:phone"))
	f.requireStep(session.FlowEditClient, session.StepPickField)

	f.action("edit_client:field:phone")
	f.requireStep(session.FlowEditClient, session.StepAskValue)

	out = f.text("no tengo")
	assert.Equal(t, msgPhoneBad, out.Reply.Text)
	f.requireStep(session.FlowEditClient, session.StepAskValue)

	out = f.text("555-123456")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, msgUpdated)
	assert.Nil(t, f.session())
	assert.Equal(t, "555-123456", f.repo.clients[1].Phone)

	out = f.action("client:edit:ghost")
	assert.Contains(t, out.Reply.Text, msgClientNotFound)
	assert.Nil(t, f.session())
}

func TestSalesByDate(t *testing.T) {
	f := newFixture(t)
	f.repo.orders = []repo.Order{
		{ID: "a", ClientName: "Bodega Sur", Date: "2025-03-06", Total: 1250, CreatedAt: fixedNow.Add(-25 * time.Hour)},
		{ID: "b", ClientName: "Casa Norte", Date: "2025-03-06", Total: 750, CreatedAt: fixedNow.Add(-24 * time.Hour)},
		{ID: "c", ClientName: "Casa Norte", Date: "2025-03-07", Total: 100, CreatedAt: fixedNow},
	}

	f.action("sales:date")
	f.requireStep(session.FlowSalesByDate, session.StepAskDate)
	assert.True(t, f.e.ExpectsText(context.Background(), chat))

	out := f.text("31/02/2025")
	assert.Equal(t, msgDateInvalid, out.Reply.Text)
	f.requireStep(session.FlowSalesByDate, session.StepAskDate)

	out = f.text("ayer")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Ventas del 6/3/2025")
	assert.Contains(t, out.Reply.Text, "Pedidos: 2")
	assert.Contains(t, out.Reply.Text, "Total: $20.00")
	assert.True(t, hasToken(out.Reply, "order:view:b"))
	f.requireStep(session.FlowSalesByDate, session.StepSummary)
	assert.False(t, f.e.ExpectsText(context.Background(), chat), "a number picks a listed order")
	assert.Equal(t, "order:view:a", out.Reply.Flatten()[0].Token)

	out = f.text("2025-03-07")
	assert.Contains(t, out.Reply.Text, "Pedidos: 1")
}

func TestOrdersToday(t *testing.T) {
	f := newFixture(t)
	f.repo.orders = []repo.Order{{ID: "t1", ClientName: "Bodega Sur", Date: "2025-03-07", Total: 999, CreatedAt: fixedNow}}

	out := f.action("orders:today")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Pedidos del 7/3/2025: 1")
	require.True(t, hasToken(out.Reply, "order:view:t1"))
	assert.Equal(t, "7/3.2025-1 · Bodega Sur · $9.99", out.Reply.Flatten()[0].Label)
}

func TestInventoryAndProductPickerScope(t *testing.T) {
	f := newFixture(t)

	out := f.action("inventory")
	require.NotNil(t, out.Reply)
	assert.Contains(t, out.Reply.Text, "Arroz (ARZ) $5.00 · stock 3 ⚠")
	f.requireStep(session.FlowInventory, session.StepBrowse)

	out = f.action("pg:np:::0")
	assert.Equal(t, msgUnavailable, out.Notice)

	f.action("order:new:c1")
	out = f.action("pg:np:::0")
	require.NotNil(t, out.Reply)
	assert.True(t, hasToken(out.Reply, "new_order:pick:p1"))
}

func TestTextInButtonOnlyStepGetsHint(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c1")
	before := f.session()

	out := f.text("quiero café")
	require.NotNil(t, out.Reply)
	assert.Equal(t, msgUseButtons, out.Reply.Text)
	assert.Equal(t, before, f.session())
}

func TestUnknownStoredFlowIsDropped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), chat, &session.Session{Flow: "legacy_flow", Step: "x"}))

	out := f.text("hola")
	assert.Nil(t, out.Reply)
	assert.Nil(t, f.session())
}

func TestEveryTokenFitsTransportBudget(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("x", 36)
	f.repo.clients = append(f.repo.clients, repo.Client{ID: long, Name: "Cliente UUID", City: strings.Repeat("Ciudad ", 20)})
	f.repo.products = append(f.repo.products, repo.Product{ID: long, Code: "LONG", Name: "Producto", Price: 100, Active: true})
	f.repo.orders = []repo.Order{{ID: long, ClientID: long, ClientName: "Cliente UUID", Date: "2025-03-07", CreatedAt: fixedNow}}
	f.repo.items[long] = []repo.OrderItem{{ProductID: long, Name: "Producto", Price: 100, Qty: 1}}

	tokens := []string{
		"menu:main", "menu:clients", "menu:products", "menu:orders",
		"pg:cv:::0", "pg:ce:::0", "pg:pr:::0", "inventory", "orders:today",
		"client:view:" + long, "client:orders:" + long, "order:view:" + long,
		"search:by:city", "search:opt:city:0",
		"order:repeat:" + long, "new_order:pick:" + long, "new_order:add",
	}
	for _, tok := range tokens {
		out := f.action(tok)
		require.NotNil(t, out.Reply, tok)
		for _, got := range out.Reply.Tokens() {
			assert.LessOrEqual(t, len(got), pager.MaxTokenLen, "%s -> %s", tok, got)
		}
	}
}

func TestConcurrentEventsForOneChatSerialize(t *testing.T) {
	f := newFixture(t)
	f.action("order:new:c1")
	f.action("new_order:set_qty:p1:1")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.e.HandleAction(context.Background(), chat, "new_order:inc:p1")
		}()
	}
	wg.Wait()

	item, ok := f.session().Data.Cart.Find("p1")
	require.True(t, ok)
	assert.Equal(t, n+1, item.Qty)
}

func TestHandleDispatchesByKind(t *testing.T) {
	f := newFixture(t)

	out := f.e.Handle(context.Background(), Event{ChatID: chat, Kind: EventAction, Token: "menu:main"})
	require.NotNil(t, out.Reply)

	out = f.e.Handle(context.Background(), Event{ChatID: chat, Kind: EventText, Text: "/menu"})
	require.NotNil(t, out.Reply)

	out = f.e.Handle(context.Background(), Event{ChatID: chat, Kind: "sticker"})
	assert.Nil(t, out.Reply)
}
