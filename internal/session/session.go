// Package session holds the per-chat dialogue state and the primitives that
// keep concurrent events for one chat from interleaving.
package session

import (
	"context"
	"maps"
	"time"

	"ops-bot/internal/cart"
)

// Flow names a multi-step procedure.
type Flow string

const (
	FlowNone          Flow = ""
	FlowNewClient     Flow = "new_client"
	FlowNewOrder      Flow = "new_order"
	FlowEditClient    Flow = "edit_client"
	FlowSearchClients Flow = "search_clients"
	FlowInventory     Flow = "inventory"
	FlowSalesByDate   Flow = "sales_by_date"
)

// Known reports whether f is one of the defined flows.
func (f Flow) Known() bool {
	switch f {
	case FlowNewClient, FlowNewOrder, FlowEditClient, FlowSearchClients, FlowInventory, FlowSalesByDate:
		return true
	}
	return false
}

// Step is a position inside a flow.
type Step string

const (
	StepNone Step = ""

	// new_client
	StepAskName     Step = "ask_name"
	StepAskPhone    Step = "ask_phone"
	StepAskCity     Step = "ask_city"
	StepAskRoute    Step = "ask_route"
	StepAskCategory Step = "ask_category"
	StepConfirm     Step = "confirm"

	// new_order
	StepPickClient     Step = "pick_client"
	StepCart           Step = "cart"
	StepAskProductCode Step = "ask_product_code"
	StepAskQty         Step = "ask_qty"

	// edit_client
	StepPickField Step = "pick_field"
	StepAskValue  Step = "ask_value"

	// search_clients
	StepMenu    Step = "menu"
	StepAskText Step = "ask_text"
	StepResults Step = "results"

	// inventory
	StepBrowse Step = "browse"

	// sales_by_date
	StepAskDate Step = "ask_date"
	StepSummary Step = "summary"
)

// maxNav bounds the back-navigation history.
const maxNav = 10

// Data carries the fields collected while a flow runs.
type Data struct {
	ClientID   string            `json:"cliente_id,omitempty"`
	ClientName string            `json:"cliente_nombre,omitempty"`
	Cart       cart.Cart         `json:"cart"`
	Pending    *cart.Item        `json:"pending_product,omitempty"`
	Form       map[string]string `json:"form,omitempty"`
	EditField  string            `json:"edit_field,omitempty"`
	// Filter holds a list filter too long to travel inside an action token.
	Filter string `json:"filter,omitempty"`
}

// Session is the mutable record for one chat.
type Session struct {
	Flow      Flow      `json:"flow,omitempty"`
	Step      Step      `json:"step,omitempty"`
	Data      Data      `json:"data"`
	NavStack  []string  `json:"nav_stack,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session.
func New() *Session {
	return &Session{}
}

// Active reports whether a flow step is waiting for input.
func (s *Session) Active() bool {
	return s != nil && s.Flow != FlowNone && s.Step != StepNone
}

// Start replaces the flow state wholesale. Navigation history survives.
func (s *Session) Start(flow Flow, step Step) {
	s.Flow = flow
	s.Step = step
	s.Data = Data{}
}

// Reset drops any flow state.
func (s *Session) Reset() {
	s.Start(FlowNone, StepNone)
}

// SetForm stores a collected form field.
func (s *Session) SetForm(key, value string) {
	if s.Data.Form == nil {
		s.Data.Form = map[string]string{}
	}
	s.Data.Form[key] = value
}

// PushNav records a visited menu, ignoring immediate repeats.
func (s *Session) PushNav(menu string) {
	if n := len(s.NavStack); n > 0 && s.NavStack[n-1] == menu {
		return
	}
	s.NavStack = append(s.NavStack, menu)
	if len(s.NavStack) > maxNav {
		s.NavStack = s.NavStack[len(s.NavStack)-maxNav:]
	}
}

// PopNav removes the current menu and returns the previous one, or "" when
// the history is exhausted.
func (s *Session) PopNav() string {
	if len(s.NavStack) > 0 {
		s.NavStack = s.NavStack[:len(s.NavStack)-1]
	}
	if len(s.NavStack) == 0 {
		return ""
	}
	return s.NavStack[len(s.NavStack)-1]
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Data.Cart = s.Data.Cart.Clone()
	if s.Data.Pending != nil {
		p := *s.Data.Pending
		cp.Data.Pending = &p
	}
	cp.Data.Form = maps.Clone(s.Data.Form)
	if s.NavStack != nil {
		cp.NavStack = append([]string(nil), s.NavStack...)
	}
	return &cp
}

// Store persists sessions by chat id.
type Store interface {
	// Get returns the session or nil when none exists.
	Get(ctx context.Context, chatID string) (*Session, error)
	// Ensure returns the session, creating an idle one when absent.
	Ensure(ctx context.Context, chatID string) (*Session, error)
	// Set replaces the stored session.
	Set(ctx context.Context, chatID string, s *Session) error
	// Clear deletes the session; clearing an absent session is not an error.
	Clear(ctx context.Context, chatID string) error
}
