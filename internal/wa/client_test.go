package wa

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ops-bot/internal/convo"
)

type fakeDialogue struct {
	expectsText bool
	actions     []string
	texts       []string
	reply       *convo.Reply
}

func (d *fakeDialogue) HandleAction(_ context.Context, _ string, token string) convo.Outcome {
	d.actions = append(d.actions, token)
	return convo.Outcome{Reply: d.reply}
}

func (d *fakeDialogue) HandleText(_ context.Context, _ string, text string) convo.Outcome {
	d.texts = append(d.texts, text)
	return convo.Outcome{Reply: d.reply}
}

func (d *fakeDialogue) ExpectsText(context.Context, string) bool {
	return d.expectsText
}

func newTestClient(d Dialogue) *Client {
	return &Client{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		dialogue: d,
		menus:    newMenuMemory(),
	}
}

func TestAnswerNumberPicksListedEntry(t *testing.T) {
	listing := &convo.Reply{
		Text: "Ventas del 6/3/2025",
		Actions: [][]convo.Action{
			{{Label: "Bodega Sur", Token: "order:view:a"}},
			{{Label: "Casa Norte", Token: "order:view:b"}},
		},
	}
	d := &fakeDialogue{reply: listing}
	c := newTestClient(d)

	c.answer(context.Background(), "chat", "ayer")
	require.Equal(t, []string{"ayer"}, d.texts)

	c.answer(context.Background(), "chat", "1")
	assert.Equal(t, []string{"order:view:a"}, d.actions)
	assert.Len(t, d.texts, 1)
}

func TestAnswerNumberStaysTextAtInputPrompt(t *testing.T) {
	d := &fakeDialogue{reply: &convo.Reply{
		Text:    "¿Cuántas unidades?",
		Actions: [][]convo.Action{{{Label: "Cancelar", Token: "cancel"}}},
	}}
	c := newTestClient(d)
	c.answer(context.Background(), "chat", "CAF")

	d.expectsText = true
	c.answer(context.Background(), "chat", "1")
	assert.Empty(t, d.actions)
	assert.Equal(t, []string{"CAF", "1"}, d.texts)
}

func TestAnswerNoticeKeepsLastMenu(t *testing.T) {
	d := &fakeDialogue{reply: &convo.Reply{
		Text:    "Menú",
		Actions: [][]convo.Action{{{Label: "Clientes", Token: "menu:clients"}}},
	}}
	c := newTestClient(d)
	c.answer(context.Background(), "chat", "hola")

	d.reply = nil
	c.answer(context.Background(), "chat", "zzz")

	c.answer(context.Background(), "chat", "1")
	assert.Equal(t, []string{"menu:clients"}, d.actions)
}
