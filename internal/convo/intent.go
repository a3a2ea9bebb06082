package convo

import (
	"strings"

	"ops-bot/internal/pager"
	"ops-bot/internal/session"
)

// Intent is the decoded form of an action token. The set of implementations
// is closed; the router switches over all of them.
type Intent interface {
	intent()
}

// Menu identifiers used by navigation tokens.
const (
	MenuMain     = "main"
	MenuClients  = "clients"
	MenuProducts = "products"
	MenuOrders   = "orders"
)

// NavIntent is global navigation: a menu, back, or cancel.
type NavIntent struct {
	Menu   string
	Back   bool
	Cancel bool
}

// StartAction names a static entry point.
type StartAction string

const (
	StartNewClient     StartAction = "clients:new"
	StartSearchClients StartAction = "clients:search"
	StartNewOrder      StartAction = "orders:new"
	StartOrdersToday   StartAction = "orders:today"
	StartSalesByDate   StartAction = "sales:date"
	StartInventory     StartAction = "inventory"
)

// StartIntent opens a flow or view with no arguments.
type StartIntent struct {
	Action StartAction
}

// PageIntent requests one page of a list.
type PageIntent struct {
	Token pager.Token
}

// EntityKind names an entity-scoped action.
type EntityKind string

const (
	EntityClientView   EntityKind = "client:view"
	EntityClientEdit   EntityKind = "client:edit"
	EntityClientOrders EntityKind = "client:orders"
	EntityOrderView    EntityKind = "order:view"
	EntityOrderRepeat  EntityKind = "order:repeat"
	EntityOrderNew     EntityKind = "order:new"
)

// EntityIntent acts on one record. ID is empty when the token carried none.
type EntityIntent struct {
	Kind EntityKind
	ID   string
}

// FlowIntent is a step-scoped action for a flow.
type FlowIntent struct {
	Flow   session.Flow
	Action string
	Args   []string
}

// UnknownIntent is any token the router does not recognize.
type UnknownIntent struct {
	Raw string
}

func (NavIntent) intent()     {}
func (StartIntent) intent()   {}
func (PageIntent) intent()    {}
func (EntityIntent) intent()  {}
func (FlowIntent) intent()    {}
func (UnknownIntent) intent() {}

var startActions = map[string]StartAction{
	string(StartNewClient):     StartNewClient,
	string(StartSearchClients): StartSearchClients,
	string(StartNewOrder):      StartNewOrder,
	string(StartOrdersToday):   StartOrdersToday,
	string(StartSalesByDate):   StartSalesByDate,
	string(StartInventory):     StartInventory,
}

var menus = map[string]bool{
	MenuMain:     true,
	MenuClients:  true,
	MenuProducts: true,
	MenuOrders:   true,
}

var entityKinds = map[string]EntityKind{
	string(EntityClientView):   EntityClientView,
	string(EntityClientEdit):   EntityClientEdit,
	string(EntityClientOrders): EntityClientOrders,
	string(EntityOrderView):    EntityOrderView,
	string(EntityOrderRepeat):  EntityOrderRepeat,
	string(EntityOrderNew):     EntityOrderNew,
}

// flowNamespaces maps token namespaces to the flow that owns them.
var flowNamespaces = map[string]session.Flow{
	"new_client":  session.FlowNewClient,
	"new_order":   session.FlowNewOrder,
	"edit_client": session.FlowEditClient,
	"search":      session.FlowSearchClients,
}

// ParseIntent decodes an action token in one pass.
func ParseIntent(token string) Intent {
	token = strings.TrimSpace(token)
	if token == "" {
		return UnknownIntent{Raw: token}
	}

	switch token {
	case "cancel":
		return NavIntent{Cancel: true}
	case "menu:back":
		return NavIntent{Back: true}
	}
	if id, ok := strings.CutPrefix(token, "menu:"); ok {
		if menus[id] {
			return NavIntent{Menu: id}
		}
		return UnknownIntent{Raw: token}
	}

	if action, ok := startActions[token]; ok {
		return StartIntent{Action: action}
	}

	if tok, ok := pager.Decode(token); ok {
		return PageIntent{Token: tok}
	}

	parts := strings.Split(token, ":")
	if len(parts) >= 2 {
		if kind, ok := entityKinds[parts[0]+":"+parts[1]]; ok {
			id := ""
			if len(parts) > 2 {
				id = strings.TrimSpace(strings.Join(parts[2:], ":"))
			}
			return EntityIntent{Kind: kind, ID: id}
		}
		if flow, ok := flowNamespaces[parts[0]]; ok && parts[1] != "" {
			return FlowIntent{Flow: flow, Action: parts[1], Args: parts[2:]}
		}
	}
	return UnknownIntent{Raw: token}
}
