package wa

import (
	"strconv"
	"strings"
	"sync"

	"ops-bot/internal/convo"
)

// renderReply turns a reply into plain text. WhatsApp personal accounts have
// no inline buttons, so actions become a numbered list.
func renderReply(r *convo.Reply) string {
	actions := r.Flatten()
	if len(actions) == 0 {
		return r.Text
	}
	var b strings.Builder
	b.WriteString(r.Text)
	b.WriteString("\n")
	for i, a := range actions {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(a.Label)
	}
	b.WriteString("\n\nResponde con el número de la opción.")
	return b.String()
}

// menuMemory keeps the last numbered menu sent to each chat.
type menuMemory struct {
	mu    sync.Mutex
	menus map[string][]convo.Action
}

func newMenuMemory() *menuMemory {
	return &menuMemory{menus: make(map[string][]convo.Action)}
}

func (m *menuMemory) remember(chatID string, actions []convo.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(actions) == 0 {
		delete(m.menus, chatID)
		return
	}
	m.menus[chatID] = actions
}

// resolve maps a numeric answer to the token of the matching option.
func (m *menuMemory) resolve(chatID, text string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := m.menus[chatID]
	if n > len(actions) {
		return "", false
	}
	return actions[n-1].Token, true
}
