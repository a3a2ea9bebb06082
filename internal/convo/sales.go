package convo

import (
	"fmt"

	"ops-bot/internal/cart"
	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/session"
	"ops-bot/internal/shortcode"
)

func (e *Engine) startSales(t *turn) (*Reply, error) {
	t.start(session.FlowSalesByDate, session.StepAskDate)
	return newReply(msgAskDate).Row(btn(lblCancel, "cancel")), nil
}

func (e *Engine) salesTexts() map[session.Step]textHandler {
	return map[session.Step]textHandler{
		session.StepAskDate: e.salesForDate,
		session.StepSummary: e.salesForDate,
	}
}

// salesForDate shows the day summary and the first page of its orders. The
// flow stays in the summary step so another date can be typed right away.
func (e *Engine) salesForDate(t *turn, text string) (*Reply, error) {
	day, ok := parseDate(text, e.now(), e.cfg.Location)
	if !ok {
		return t.invalid(msgDateInvalid), nil
	}
	date := day.Format(shortcode.DateLayout)

	summary, err := e.repo.SalesSummary(t.ctx, date)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	orders, w, err := fetchPage(0, e.cfg.PageSize, func(p repo.Page) ([]repo.Order, int, error) {
		return e.repo.ListOrdersByDate(t.ctx, date, p)
	})
	if err != nil {
		return nil, fmt.Errorf("list orders by date: %w", err)
	}

	t.step(session.StepSummary)
	text = fmt.Sprintf("Ventas del %s\nPedidos: %d\nTotal: %s", displayDate(day), summary.Orders, cart.FormatMoney(summary.Total))
	if summary.Orders == 0 {
		text += "\n\n" + msgEmptyList
	}
	r := newReply(text + "\n\nEscribe otra fecha para consultar otro día.")
	e.orderButtons(t, r, orders, true)
	navRow(r, pager.Token{Kind: pager.KindOrdersByDate, FilterKey: "d", FilterValue: date}, w)
	return withFooter(r, MenuOrders), nil
}
