package convo

import (
	"ops-bot/internal/pager"
)

// EventKind distinguishes the two inbound channels.
type EventKind string

const (
	EventAction EventKind = "action"
	EventText   EventKind = "text"
)

// Event is a normalized inbound message from any transport.
type Event struct {
	ChatID string
	Kind   EventKind
	Token  string
	Text   string
}

// Action is one button: a label and the token it sends back.
type Action struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// Reply is the single message a transition produces.
type Reply struct {
	Text    string     `json:"text"`
	Actions [][]Action `json:"actions,omitempty"`
}

// Outcome is the result of handling one event. Reply is nil when nothing
// should be sent. Notice is shown as the acknowledgement of an action; an
// empty notice is a silent ack.
type Outcome struct {
	Reply  *Reply
	Notice string
}

func newReply(text string) *Reply {
	return &Reply{Text: text}
}

// Row appends a row of buttons.
func (r *Reply) Row(actions ...Action) *Reply {
	if len(actions) > 0 {
		r.Actions = append(r.Actions, actions)
	}
	return r
}

// Tokens returns every action token in display order.
func (r *Reply) Tokens() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, row := range r.Actions {
		for _, a := range row {
			out = append(out, a.Token)
		}
	}
	return out
}

// Flatten returns the actions in display order. Transports without button
// grids number them in this order.
func (r *Reply) Flatten() []Action {
	if r == nil {
		return nil
	}
	var out []Action
	for _, row := range r.Actions {
		out = append(out, row...)
	}
	return out
}

func btn(label, token string) Action {
	return Action{Label: label, Token: token}
}

func pageBtn(label string, tok pager.Token) Action {
	return Action{Label: label, Token: pager.Encode(tok)}
}
