// Package convo routes chat events through per-chat dialogue flows.
package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"ops-bot/internal/metrics"
	"ops-bot/internal/pager"
	"ops-bot/internal/repo"
	"ops-bot/internal/session"
	"ops-bot/internal/shortcode"
)

// ProductSource serves product reads. The catalog cache satisfies it, and
// so does the repository itself.
type ProductSource interface {
	ListProducts(ctx context.Context, p repo.Page) ([]repo.Product, int, error)
	GetProduct(ctx context.Context, id string) (*repo.Product, error)
	GetProductByCode(ctx context.Context, code string) (*repo.Product, error)
}

// EngineConfig tunes the engine.
type EngineConfig struct {
	PageSize    int
	Location    *time.Location
	LockTimeout time.Duration
}

// Engine is the dialogue state machine shared by every transport.
type Engine struct {
	repo     repo.Repository
	products ProductSource
	sessions session.Store
	locker   session.Locker
	codes    *shortcode.Sequencer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      EngineConfig
	now      func() time.Time

	actions map[session.Flow]flowActions
	texts   map[session.Flow]map[session.Step]textHandler
}

// New constructs the engine. products may be nil to read products straight
// from the repository; metricRegistry may be nil.
func New(repository repo.Repository, products ProductSource, sessions session.Store, locker session.Locker, metricRegistry *metrics.Metrics, logger *slog.Logger, cfg EngineConfig) *Engine {
	if products == nil {
		products = repository
	}
	if locker == nil {
		locker = session.NewLocalLocker()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = pager.DefaultSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	logger = logger.With("component", "convo")

	e := &Engine{
		repo:     repository,
		products: products,
		sessions: sessions,
		locker:   locker,
		codes:    shortcode.New(repository, logger, cfg.Location),
		metrics:  metricRegistry,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
	e.actions = map[session.Flow]flowActions{
		session.FlowNewClient:     e.newClientActions(),
		session.FlowNewOrder:      e.newOrderActions(),
		session.FlowEditClient:    e.editClientActions(),
		session.FlowSearchClients: e.searchActions(),
	}
	e.texts = map[session.Flow]map[session.Step]textHandler{
		session.FlowNewClient:     e.newClientTexts(),
		session.FlowNewOrder:      e.newOrderTexts(),
		session.FlowEditClient:    e.editClientTexts(),
		session.FlowSearchClients: e.searchTexts(),
		session.FlowSalesByDate:   e.salesTexts(),
	}
	return e
}

// Handle processes one normalized event.
func (e *Engine) Handle(ctx context.Context, ev Event) Outcome {
	switch ev.Kind {
	case EventAction:
		return e.HandleAction(ctx, ev.ChatID, ev.Token)
	case EventText:
		return e.HandleText(ctx, ev.ChatID, ev.Text)
	default:
		e.logger.Warn("unknown event kind", "kind", ev.Kind, "chat_id", ev.ChatID)
		return Outcome{}
	}
}

// HandleAction processes a button press.
func (e *Engine) HandleAction(ctx context.Context, chatID, token string) Outcome {
	e.countEvent(string(EventAction))
	return e.withTurn(ctx, chatID, func(t *turn) (*Reply, error) {
		return e.route(t, ParseIntent(token), token)
	})
}

// HandleText processes a free-text message.
func (e *Engine) HandleText(ctx context.Context, chatID, text string) Outcome {
	e.countEvent(string(EventText))
	return e.withTurn(ctx, chatID, func(t *turn) (*Reply, error) {
		return e.routeText(t, text)
	})
}

// browseSteps show a list and also accept a new query as text. A number sent
// there picks a list entry rather than being typed input.
var browseSteps = map[session.Step]bool{
	session.StepResults: true,
	session.StepSummary: true,
}

// ExpectsText reports whether the chat's current step is waiting for typed
// input. Transports use it to tell typed answers from numbered menu choices.
func (e *Engine) ExpectsText(ctx context.Context, chatID string) bool {
	sess, err := e.sessions.Get(ctx, chatID)
	if err != nil || !sess.Active() || browseSteps[sess.Step] {
		return false
	}
	_, ok := e.texts[sess.Flow][sess.Step]
	return ok
}

// Session returns a copy of the chat's session, or nil.
func (e *Engine) Session(ctx context.Context, chatID string) (*session.Session, error) {
	return e.sessions.Get(ctx, chatID)
}

// turn is the working state of one event. Transitions mutate sess, which is a
// private copy; it is written back once, after the transition succeeds.
type turn struct {
	ctx     context.Context
	chatID  string
	sess    *session.Session
	dirty   bool
	cleared bool
	notice  string
	outcome string
}

func (t *turn) touch() { t.dirty = true }

// start replaces the flow state and marks the session for persistence.
func (t *turn) start(flow session.Flow, step session.Step) {
	t.sess.Start(flow, step)
	t.cleared = false
	t.dirty = true
}

func (t *turn) step(step session.Step) {
	t.sess.Step = step
	t.dirty = true
}

// clear deletes the session when the turn completes.
func (t *turn) clear() {
	t.sess = session.New()
	t.cleared = true
	t.dirty = false
}

func (t *turn) unhandled() {
	t.notice = msgUnavailable
	t.outcome = "unhandled"
}

func (e *Engine) withTurn(ctx context.Context, chatID string, fn func(*turn) (*Reply, error)) (out Outcome) {
	unlock, err := e.lock(ctx, chatID)
	if err != nil {
		e.logger.Warn("chat lock failed", "chat_id", chatID, "error", err)
		e.countError("lock")
		return Outcome{Notice: msgBusy}
	}
	defer unlock()

	t := &turn{ctx: ctx, chatID: chatID, outcome: "ok"}
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("transition panicked", "chat_id", chatID, "panic", rec, "stack", string(debug.Stack()))
			e.countError("panic")
			e.countTransition(t, "error")
			out = Outcome{Reply: newReply(msgFailure)}
		}
	}()

	stored, err := e.sessions.Get(ctx, chatID)
	if err != nil {
		e.logger.Error("load session failed", "chat_id", chatID, "error", err)
		e.countError("session")
		return Outcome{Reply: newReply(msgFailure)}
	}
	if stored == nil {
		stored = session.New()
	} else if stored.Flow != session.FlowNone && !stored.Flow.Known() {
		e.logger.Warn("dropping session with unknown flow", "chat_id", chatID, "flow", stored.Flow)
		stored.Reset()
		t.cleared = true
	}
	t.sess = stored

	reply, err := fn(t)
	if err != nil {
		e.logger.Error("transition failed",
			"chat_id", chatID,
			"flow", t.sess.Flow,
			"step", t.sess.Step,
			"error", err,
		)
		e.countError("convo")
		e.countTransition(t, "error")
		return Outcome{Reply: newReply(msgFailure)}
	}

	if err := e.persist(t); err != nil {
		e.logger.Error("persist session failed", "chat_id", chatID, "error", err)
		e.countError("session")
		return Outcome{Reply: newReply(msgFailure)}
	}
	e.countTransition(t, t.outcome)
	return Outcome{Reply: reply, Notice: t.notice}
}

func (e *Engine) lock(ctx context.Context, chatID string) (session.Unlock, error) {
	lockCtx, cancel := context.WithTimeout(ctx, e.cfg.LockTimeout)
	defer cancel()
	return e.locker.Lock(lockCtx, chatID)
}

func (e *Engine) persist(t *turn) error {
	switch {
	case t.cleared && !t.dirty:
		if err := e.sessions.Clear(t.ctx, t.chatID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
	case t.dirty:
		t.sess.UpdatedAt = e.now().UTC()
		if err := e.sessions.Set(t.ctx, t.chatID, t.sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return nil
}

// route dispatches a decoded action.
func (e *Engine) route(t *turn, in Intent, raw string) (*Reply, error) {
	switch in := in.(type) {
	case NavIntent:
		return e.navigate(t, in)
	case StartIntent:
		return e.start(t, in.Action)
	case PageIntent:
		return e.page(t, in.Token)
	case EntityIntent:
		if in.ID == "" {
			t.outcome = "noop"
			return nil, nil
		}
		return e.entity(t, in)
	case FlowIntent:
		return e.flowAction(t, in)
	case UnknownIntent:
		e.logger.Info("unhandled action", "chat_id", t.chatID, "token", raw)
		t.unhandled()
		return nil, nil
	default:
		e.logger.Warn("unexpected intent type", "chat_id", t.chatID, "intent", fmt.Sprintf("%T", in))
		t.unhandled()
		return nil, nil
	}
}

func (e *Engine) navigate(t *turn, in NavIntent) (*Reply, error) {
	switch {
	case in.Cancel:
		t.clear()
		r := e.menu(MenuMain)
		r.Text = msgCancelled + "\n\n" + r.Text
		return r, nil
	case in.Back:
		t.sess.Reset()
		prev := t.sess.PopNav()
		if prev == "" {
			prev = MenuMain
			t.sess.PushNav(prev)
		}
		t.touch()
		return e.menu(prev), nil
	default:
		t.sess.Reset()
		if in.Menu == MenuMain {
			t.sess.NavStack = nil
		}
		t.sess.PushNav(in.Menu)
		t.touch()
		return e.menu(in.Menu), nil
	}
}

func (e *Engine) start(t *turn, action StartAction) (*Reply, error) {
	switch action {
	case StartNewClient:
		return e.startNewClient(t)
	case StartSearchClients:
		return e.startSearch(t)
	case StartNewOrder:
		return e.startNewOrder(t)
	case StartOrdersToday:
		return e.ordersForDate(t, e.today(), 0)
	case StartSalesByDate:
		return e.startSales(t)
	case StartInventory:
		return e.startInventory(t)
	default:
		t.unhandled()
		return nil, nil
	}
}

func (e *Engine) entity(t *turn, in EntityIntent) (*Reply, error) {
	switch in.Kind {
	case EntityClientView:
		return e.viewClient(t, in.ID)
	case EntityClientEdit:
		return e.startEditClient(t, in.ID)
	case EntityClientOrders:
		return e.clientOrders(t, in.ID, 0)
	case EntityOrderView:
		return e.viewOrder(t, in.ID)
	case EntityOrderRepeat:
		return e.repeatOrder(t, in.ID)
	case EntityOrderNew:
		return e.orderForClient(t, in.ID)
	default:
		t.unhandled()
		return nil, nil
	}
}

// actionHandler handles a flow token; args are the segments after the
// action name.
type actionHandler func(t *turn, args []string) (*Reply, error)

// textHandler handles free text typed in a step.
type textHandler func(t *turn, text string) (*Reply, error)

// anyStep matches every step of the owning flow.
const anyStep session.Step = "*"

type transitionKey struct {
	step   session.Step
	action string
}

// flowActions is a flow's transition table. Stateless actions are accepted
// whatever the session holds because their tokens describe them fully.
type flowActions struct {
	steps     map[transitionKey]actionHandler
	stateless map[string]actionHandler
}

func (e *Engine) flowAction(t *turn, in FlowIntent) (*Reply, error) {
	table, ok := e.actions[in.Flow]
	if !ok {
		t.unhandled()
		return nil, nil
	}
	if h, ok := table.stateless[in.Action]; ok {
		return h(t, in.Args)
	}
	if t.sess.Flow != in.Flow {
		e.logger.Info("flow action outside its flow",
			"chat_id", t.chatID,
			"flow", t.sess.Flow,
			"token_flow", in.Flow,
			"action", in.Action,
		)
		t.unhandled()
		return nil, nil
	}
	h, ok := table.steps[transitionKey{t.sess.Step, in.Action}]
	if !ok {
		h, ok = table.steps[transitionKey{anyStep, in.Action}]
	}
	if !ok {
		e.logger.Info("flow action not valid in step",
			"chat_id", t.chatID,
			"flow", t.sess.Flow,
			"step", t.sess.Step,
			"action", in.Action,
		)
		t.unhandled()
		return nil, nil
	}
	return h(t, in.Args)
}

var cancelWords = map[string]bool{
	"/cancel":  true,
	"cancelar": true,
	"cancel":   true,
}

var menuWords = map[string]bool{
	"/start": true,
	"/menu":  true,
}

func (e *Engine) routeText(t *turn, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	word := strings.ToLower(text)
	if cancelWords[word] {
		if t.sess.Active() {
			return e.navigate(t, NavIntent{Cancel: true})
		}
		t.clear()
		return e.menu(MenuMain), nil
	}
	if menuWords[word] {
		t.clear()
		return e.menu(MenuMain), nil
	}

	if !t.sess.Active() {
		t.outcome = "ignored"
		return nil, nil
	}
	h, ok := e.texts[t.sess.Flow][t.sess.Step]
	if !ok {
		t.outcome = "ignored"
		return newReply(msgUseButtons), nil
	}
	return h(t, text)
}

// invalid reports a validation problem without advancing the session.
func (t *turn) invalid(msg string) *Reply {
	t.outcome = "validation"
	return newReply(msg)
}

// missing reports a not-found reference.
func (t *turn) missing(r *Reply) *Reply {
	t.outcome = "not_found"
	return r
}

func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

func (e *Engine) today() string {
	return e.now().In(e.cfg.Location).Format(shortcode.DateLayout)
}

func (e *Engine) countEvent(kind string) {
	if e.metrics != nil {
		e.metrics.IncomingEvents.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) countError(component string) {
	if e.metrics != nil {
		e.metrics.Errors.WithLabelValues(component).Inc()
	}
}

func (e *Engine) countTransition(t *turn, outcome string) {
	if e.metrics == nil {
		return
	}
	flow := "none"
	if t.sess != nil && t.sess.Flow != session.FlowNone {
		flow = string(t.sess.Flow)
	}
	e.metrics.FlowTransitions.WithLabelValues(flow, outcome).Inc()
}
