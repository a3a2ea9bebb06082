package convo

import (
	"fmt"
	"strings"

	"ops-bot/internal/repo"
	"ops-bot/internal/session"
)

func clientNotFound(t *turn) *Reply {
	return t.missing(withFooter(newReply(msgClientNotFound), MenuClients))
}

func renderClient(c *repo.Client) *Reply {
	var b strings.Builder
	b.WriteString(c.Name)
	fmt.Fprintf(&b, "\nTeléfono: %s", orDash(c.Phone))
	fmt.Fprintf(&b, "\nDirección: %s", orDash(c.Address))
	fmt.Fprintf(&b, "\nCiudad: %s", orDash(c.City))
	fmt.Fprintf(&b, "\nRuta: %s", orDash(c.Route))
	fmt.Fprintf(&b, "\nCategoría: %s", orDash(c.Category))
	if c.Notes != "" {
		fmt.Fprintf(&b, "\nNotas: %s", c.Notes)
	}
	r := newReply(b.String()).
		Row(btn("Nuevo pedido", string(EntityOrderNew)+":"+c.ID), btn("Ver pedidos", string(EntityClientOrders)+":"+c.ID)).
		Row(btn("Editar", string(EntityClientEdit)+":"+c.ID))
	return withFooter(r, MenuClients)
}

func (e *Engine) viewClient(t *turn, id string) (*Reply, error) {
	c, err := e.repo.GetClient(t.ctx, id)
	if isNotFound(err) {
		return clientNotFound(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return renderClient(c), nil
}

// newClientStep describes one question of the new client form.
type newClientStep struct {
	step     session.Step
	field    string
	prompt   string
	optional bool
}

var newClientSteps = []newClientStep{
	{step: session.StepAskName, field: "name", prompt: msgAskName},
	{step: session.StepAskPhone, field: "phone", prompt: msgAskPhone, optional: true},
	{step: session.StepAskCity, field: "city", prompt: msgAskCity, optional: true},
	{step: session.StepAskRoute, field: "route", prompt: msgAskRoute, optional: true},
	{step: session.StepAskCategory, field: "category", prompt: msgAskCategory, optional: true},
}

func newClientPrompt(s newClientStep) *Reply {
	r := newReply(s.prompt)
	if s.optional {
		return r.Row(btn(lblSkip, "new_client:skip"), btn(lblCancel, "cancel"))
	}
	return r.Row(btn(lblCancel, "cancel"))
}

func (e *Engine) startNewClient(t *turn) (*Reply, error) {
	t.start(session.FlowNewClient, newClientSteps[0].step)
	return newClientPrompt(newClientSteps[0]), nil
}

// advanceNewClient moves past the current question.
func advanceNewClient(t *turn) *Reply {
	for i, s := range newClientSteps {
		if s.step != t.sess.Step {
			continue
		}
		if i+1 < len(newClientSteps) {
			next := newClientSteps[i+1]
			t.step(next.step)
			return newClientPrompt(next)
		}
	}
	t.step(session.StepConfirm)
	return newClientSummary(t.sess.Data.Form)
}

func newClientSummary(form map[string]string) *Reply {
	var b strings.Builder
	b.WriteString("Confirma los datos del nuevo cliente:\n")
	for _, s := range newClientSteps {
		fmt.Fprintf(&b, "\n%s: %s", fieldLabel(s.field), orDash(form[s.field]))
	}
	return newReply(b.String()).Row(btn(lblSave, "new_client:save"), btn(lblCancel, "cancel"))
}

func (e *Engine) newClientActions() flowActions {
	steps := map[transitionKey]actionHandler{
		{session.StepConfirm, "save"}: e.saveNewClient,
	}
	for _, s := range newClientSteps {
		if s.optional {
			steps[transitionKey{s.step, "skip"}] = func(t *turn, _ []string) (*Reply, error) {
				return advanceNewClient(t), nil
			}
		}
	}
	return flowActions{steps: steps}
}

func (e *Engine) newClientTexts() map[session.Step]textHandler {
	texts := map[session.Step]textHandler{}
	for _, s := range newClientSteps {
		texts[s.step] = func(t *turn, text string) (*Reply, error) {
			value, problem := validateField(s.field, text)
			if problem != "" {
				return t.invalid(problem), nil
			}
			t.sess.SetForm(s.field, value)
			return advanceNewClient(t), nil
		}
	}
	return texts
}

func (e *Engine) saveNewClient(t *turn, _ []string) (*Reply, error) {
	form := t.sess.Data.Form
	if strings.TrimSpace(form["name"]) == "" {
		t.step(session.StepAskName)
		return t.invalid(msgNameEmpty), nil
	}
	c, err := e.repo.InsertClient(t.ctx, repo.Client{
		Name:     form["name"],
		Phone:    form["phone"],
		City:     form["city"],
		Route:    form["route"],
		Category: form["category"],
	})
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	e.logger.Info("client created", "chat_id", t.chatID, "client_id", c.ID)
	t.clear()
	r := renderClient(c)
	r.Text = msgClientSaved + "\n\n" + r.Text
	return r, nil
}

func (e *Engine) startEditClient(t *turn, id string) (*Reply, error) {
	c, err := e.repo.GetClient(t.ctx, id)
	if isNotFound(err) {
		return clientNotFound(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	t.start(session.FlowEditClient, session.StepPickField)
	t.sess.Data.ClientID = c.ID
	t.sess.Data.ClientName = c.Name
	return fieldPicker(c.Name), nil
}

func fieldPicker(name string) *Reply {
	r := newReply(fmt.Sprintf("%s\n\n%s", name, msgPickField))
	var row []Action
	for _, f := range repo.EditableFields {
		row = append(row, btn(fieldLabel(f), "edit_client:field:"+f))
		if len(row) == 2 {
			r.Row(row...)
			row = nil
		}
	}
	r.Row(row...)
	return r.Row(btn(lblCancel, "cancel"))
}

func (e *Engine) editClientActions() flowActions {
	return flowActions{steps: map[transitionKey]actionHandler{
		{anyStep, "field"}: e.pickEditField,
	}}
}

func (e *Engine) pickEditField(t *turn, args []string) (*Reply, error) {
	if len(args) == 0 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	field := args[0]
	if !repo.IsEditableField(field) {
		t.unhandled()
		return nil, nil
	}
	t.sess.Data.EditField = field
	t.step(session.StepAskValue)
	prompt := fmt.Sprintf("Escribe el nuevo valor de %s para %s.", strings.ToLower(fieldLabel(field)), t.sess.Data.ClientName)
	if field != "name" {
		prompt += " Escribe - para dejarlo vacío."
	}
	return newReply(prompt).Row(btn(lblBack, "client:edit:"+t.sess.Data.ClientID), btn(lblCancel, "cancel")), nil
}

func (e *Engine) editClientTexts() map[session.Step]textHandler {
	return map[session.Step]textHandler{
		session.StepAskValue: e.applyEdit,
	}
}

func (e *Engine) applyEdit(t *turn, text string) (*Reply, error) {
	field := t.sess.Data.EditField
	value, problem := validateField(field, text)
	if problem != "" {
		return t.invalid(problem), nil
	}
	id := t.sess.Data.ClientID
	err := e.repo.UpdateClientField(t.ctx, id, field, value)
	if isNotFound(err) {
		t.clear()
		return clientNotFound(t), nil
	}
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	c, err := e.repo.GetClient(t.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	t.clear()
	r := renderClient(c)
	r.Text = msgUpdated + "\n\n" + r.Text
	return r, nil
}
