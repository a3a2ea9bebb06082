package convo

import (
	"fmt"
	"strconv"
	"strings"

	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/session"
)

func searchMenu() *Reply {
	r := newReply(msgSearchMenu).Row(btn("Por nombre o teléfono", "search:text"))
	for _, f := range repo.FilterFields {
		r.Row(btn("Por "+strings.ToLower(fieldLabel(f)), "search:by:"+f))
	}
	return withFooter(r, MenuClients)
}

func (e *Engine) startSearch(t *turn) (*Reply, error) {
	t.start(session.FlowSearchClients, session.StepMenu)
	return searchMenu(), nil
}

// searchActions are stateless: every token carries the field, option index
// or page it refers to.
func (e *Engine) searchActions() flowActions {
	return flowActions{stateless: map[string]actionHandler{
		"text": e.searchAskText,
		"by":   e.searchBy,
		"opt":  e.searchPickOption,
	}}
}

func (e *Engine) searchTexts() map[session.Step]textHandler {
	return map[session.Step]textHandler{
		session.StepAskText: e.searchText,
		session.StepResults: e.searchText,
	}
}

func (t *turn) ensureSearch(step session.Step) {
	if t.sess.Flow != session.FlowSearchClients {
		t.start(session.FlowSearchClients, step)
		return
	}
	t.step(step)
}

func (e *Engine) searchAskText(t *turn, _ []string) (*Reply, error) {
	t.ensureSearch(session.StepAskText)
	return newReply(msgAskSearch).Row(btn(lblBack, string(StartSearchClients)), btn(lblCancel, "cancel")), nil
}

func (e *Engine) searchText(t *turn, text string) (*Reply, error) {
	term := strings.Join(strings.Fields(text), " ")
	if term == "" {
		return t.invalid(msgAskSearch), nil
	}
	t.step(session.StepResults)
	return e.searchResults(t, pager.Token{Kind: pager.KindSearchText, FilterValue: term})
}

func (e *Engine) searchBy(t *turn, args []string) (*Reply, error) {
	if len(args) == 0 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	return e.searchOptions(t, args[0], 0)
}

func (e *Engine) searchOptions(t *turn, field string, page int) (*Reply, error) {
	if !repo.IsFilterField(field) {
		t.unhandled()
		return nil, nil
	}
	options, err := e.repo.ListClientOptions(t.ctx, field)
	if err != nil {
		return nil, fmt.Errorf("list client options: %w", err)
	}
	title := "Elige " + strings.ToLower(fieldLabel(field))
	if len(options) == 0 {
		return withFooter(newReply(msgNoOptions).Row(btn(lblBack, string(StartSearchClients))), MenuClients), nil
	}

	w := pager.NewWindow(page, len(options), e.cfg.PageSize)
	end := min(w.Offset()+w.Size, len(options))
	r := newReply(pageTitle(title, w))
	for i := w.Offset(); i < end; i++ {
		r.Row(btn(options[i], fmt.Sprintf("search:opt:%s:%d", field, i)))
	}
	navRow(r, pager.Token{Kind: pager.KindSearchOptions, FilterKey: field}, w)
	r.Row(btn(lblBack, string(StartSearchClients)))
	return withFooter(r, MenuClients), nil
}

// searchPickOption resolves an option by its index in the distinct value
// list; the values themselves may be too long for a token.
func (e *Engine) searchPickOption(t *turn, args []string) (*Reply, error) {
	if len(args) < 2 || args[0] == "" {
		t.outcome = "noop"
		return nil, nil
	}
	field := args[0]
	if !repo.IsFilterField(field) {
		t.unhandled()
		return nil, nil
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil || idx < 0 {
		t.unhandled()
		return nil, nil
	}
	options, err := e.repo.ListClientOptions(t.ctx, field)
	if err != nil {
		return nil, fmt.Errorf("list client options: %w", err)
	}
	if idx >= len(options) {
		t.outcome = "not_found"
		r, err := e.searchOptions(t, field, 0)
		if r != nil {
			r.Text = msgSearchExpired + "\n\n" + r.Text
		}
		return r, err
	}
	t.ensureSearch(session.StepResults)
	return e.searchResults(t, pager.Token{Kind: pager.KindSearchFilter, FilterKey: field, FilterValue: options[idx]})
}

// searchResults renders one page of clients matching tok. Filter values that
// do not fit in a token are kept in the session.
func (e *Engine) searchResults(t *turn, tok pager.Token) (*Reply, error) {
	value := tok.FilterValue
	if tok.FromSession {
		value = t.sess.Data.Filter
	}
	if value == "" {
		return t.missing(searchMenuWith(msgSearchExpired)), nil
	}

	var q repo.ClientQuery
	var title string
	switch tok.Kind {
	case pager.KindSearchFilter:
		if !repo.IsFilterField(tok.FilterKey) {
			t.unhandled()
			return nil, nil
		}
		q = repo.ClientQuery{Field: tok.FilterKey, Value: value}
		title = fmt.Sprintf("Clientes con %s «%s»", strings.ToLower(fieldLabel(tok.FilterKey)), value)
	default:
		q = repo.ClientQuery{Text: value}
		title = fmt.Sprintf("Resultados para «%s»", value)
	}

	clients, w, err := fetchPage(tok.Page, e.cfg.PageSize, func(p repo.Page) ([]repo.Client, int, error) {
		q.Page = p
		return e.repo.ListClients(t.ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}

	nav := pager.Token{Kind: tok.Kind, FilterKey: tok.FilterKey, FilterValue: value, Page: w.Last}
	if _, overflow := pager.EncodeFit(nav); overflow {
		nav.FilterValue = ""
		nav.FromSession = true
		if t.sess.Data.Filter != value {
			t.sess.Data.Filter = value
			t.touch()
		}
	}
	r := renderClients(title, clients, w, EntityClientView, nav, MenuClients)
	return r.Row(btn("Nueva búsqueda", string(StartSearchClients))), nil
}

func searchMenuWith(header string) *Reply {
	r := searchMenu()
	r.Text = header + "\n\n" + r.Text
	return r
}
