// Package engine implements the order/position/risk core of the perpetual
// futures simulator: it consumes mark-price ticks, matches resting limit
// orders, maintains the single net position, and enforces liquidation.
//
// All mutating operations are serialized behind one mutex so a tick and a
// client request can never interleave over the shared state.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/perp-engine/internal/metrics"
	"github.com/papertrade/perp-engine/internal/model"
	"github.com/papertrade/perp-engine/internal/risk"
)

// maxTradeLog bounds the in-memory fill history carried in snapshots.
const maxTradeLog = 1000

// Config carries the engine's fixed parameters for one simulation episode.
type Config struct {
	Symbol          string
	Balance         decimal.Decimal
	FeeRate         decimal.Decimal // charged as price × quantity × FeeRate per fill
	MaintenanceRate decimal.Decimal // fraction of required margin kept as equity floor
	Limiter         *risk.Limiter   // optional pre-trade limits
}

// Engine is the composition root for the core: it owns the ledger, the
// order book, and the position, and exposes the serialized operation set
// the boundary layer calls.
type Engine struct {
	mu sync.Mutex

	symbol string
	acct   *Account
	book   *OrderBook
	pos    *PositionManager
	match  *MatchingEngine

	lastPrice decimal.Decimal
	hasPrice  bool
	trades    []model.Trade

	// events, when set, receives a notification after every observable
	// state transition. The handler must not block.
	events func(model.Event)
}

// New creates an engine with a fresh account and an empty book.
func New(cfg Config) *Engine {
	acct := NewAccount(cfg.Balance)
	book := NewOrderBook()
	pos := NewPositionManager(cfg.MaintenanceRate)
	return &Engine{
		symbol: cfg.Symbol,
		acct:   acct,
		book:   book,
		pos:    pos,
		match:  NewMatchingEngine(book, acct, pos, cfg.FeeRate, cfg.Limiter),
	}
}

// SetEventHandler registers the boundary-layer event sink.
func (e *Engine) SetEventHandler(fn func(model.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = fn
}

func (e *Engine) emit(ev model.Event) {
	if e.events != nil {
		e.events(ev)
	}
}

// OnTick ingests one mark price: matches resting limit orders against it,
// then re-evaluates the position for liquidation. Called by the price feed
// only.
func (e *Engine) OnTick(t model.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastPrice = t.Price
	e.hasPrice = true
	metrics.TicksTotal.Inc()
	metrics.LastPrice.Set(t.Price.InexactFloat64())

	for _, trade := range e.match.MatchOpen(t.Price) {
		e.recordFill(trade)
	}
	e.checkLiquidation(t.Price)

	metrics.OpenOrders.Set(float64(e.book.OpenCount()))
	e.emit(model.Event{Type: model.EventTick, Price: t.Price})
}

// SubmitOrder validates and books an order. Market orders (price nil)
// execute immediately at the last known mark; limit orders rest until a
// tick satisfies their side-specific price bound.
func (e *Engine) SubmitOrder(side model.Side, quantity decimal.Decimal, price *decimal.Decimal) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitLocked(side, quantity, price)
}

func (e *Engine) submitLocked(side model.Side, quantity decimal.Decimal, price *decimal.Decimal) (int64, error) {
	kind := model.KindMarket
	limit := decimal.Zero
	if price != nil {
		kind = model.KindLimit
		limit = *price
	}
	if kind == model.KindMarket && !e.hasPrice {
		return 0, fmt.Errorf("%w: market order before first tick", ErrNoPrice)
	}

	o, err := e.book.Submit(side, quantity, kind, limit)
	if err != nil {
		return 0, err
	}
	metrics.OrdersSubmitted.Inc()
	slog.Info("order submitted",
		"order_id", o.ID,
		"side", o.Side,
		"kind", o.Kind,
		"quantity", o.Quantity.String(),
		"price", o.Price.String(),
	)

	if kind == model.KindMarket {
		trade, err := e.match.Execute(o, e.lastPrice)
		if err != nil {
			o.Status = model.StatusCancelled
			return 0, err
		}
		e.recordFill(*trade)
	}

	metrics.OpenOrders.Set(float64(e.book.OpenCount()))
	return o.ID, nil
}

// CancelOrder cancels an Open order. Cancelling a Filled or already
// Cancelled order fails with ErrNotFound.
func (e *Engine) CancelOrder(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.book.Cancel(id); err != nil {
		return err
	}
	metrics.OrdersCancelled.Inc()
	metrics.OpenOrders.Set(float64(e.book.OpenCount()))
	slog.Info("order cancelled", "order_id", id)
	return nil
}

// SetLeverage changes the leverage applied to new positions. Only allowed
// while flat.
func (e *Engine) SetLeverage(n int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pos.Current().IsFlat() {
		return fmt.Errorf("%w: cannot change leverage with an open position", ErrInvalidState)
	}
	if err := e.pos.SetLeverage(n); err != nil {
		return err
	}
	slog.Info("leverage set", "leverage", n)
	return nil
}

// ClosePosition submits an order sized to flatten the current position on
// the opposite side: a market order when price is nil, otherwise a limit
// order at that price. Fails with ErrInvalidState while flat.
func (e *Engine) ClosePosition(price *decimal.Decimal) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.pos.Current()
	if pos.IsFlat() {
		return 0, fmt.Errorf("%w: no open position to close", ErrInvalidState)
	}
	return e.submitLocked(pos.Side.ClosingSide(), pos.Quantity, price)
}

// recordFill appends the trade to the bounded log, updates metrics, and
// notifies the event sink. Caller holds the lock.
func (e *Engine) recordFill(trade model.Trade) {
	e.trades = append(e.trades, trade)
	if len(e.trades) > maxTradeLog {
		e.trades = e.trades[len(e.trades)-maxTradeLog:]
	}
	metrics.FillsTotal.WithLabelValues(string(trade.Side)).Inc()
	slog.Info("order processed",
		"order_id", trade.OrderID,
		"trade_id", trade.ID,
		"side", trade.Side,
		"quantity", trade.Quantity.String(),
		"price", trade.Price.String(),
		"fee", trade.Fee.String(),
	)
	e.emit(model.Event{Type: model.EventFill, Price: trade.Price, Trade: &trade})
}

// checkLiquidation force-closes the position when equity has fallen to the
// maintenance threshold: the full unrealized PnL is settled into the ledger
// (to zero at worst), the position resets to Flat, and every remaining Open
// order is cancelled. Caller holds the lock.
func (e *Engine) checkLiquidation(mark decimal.Decimal) {
	if !e.pos.Liquidatable(mark, e.acct.Balance()) {
		return
	}
	pos := e.pos.Current()
	pnl := pos.UnrealizedPnL(mark)

	e.acct.Liquidate(pnl)
	e.pos.Flatten()
	swept := e.book.CancelAllOpen()

	trade := model.Trade{
		ID:          uuid.New().String(),
		Side:        pos.Side.ClosingSide(),
		Quantity:    pos.Quantity,
		Price:       mark,
		Fee:         decimal.Zero,
		Liquidation: true,
		Timestamp:   time.Now().UTC(),
	}
	e.trades = append(e.trades, trade)

	metrics.LiquidationsTotal.Inc()
	slog.Warn("position liquidated",
		"price", mark.String(),
		"side", pos.Side,
		"quantity", pos.Quantity.String(),
		"pnl", pnl.String(),
		"balance", e.acct.Balance().String(),
		"orders_cancelled", swept,
	)
	e.emit(model.Event{Type: model.EventLiquidation, Price: mark, Trade: &trade})
}

// --- Read-only snapshots ---

// Symbol returns the traded symbol.
func (e *Engine) Symbol() string {
	return e.symbol
}

// Price returns the last mark price, or ErrNoPrice before the first tick.
func (e *Engine) Price() (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasPrice {
		return decimal.Zero, ErrNoPrice
	}
	return e.lastPrice, nil
}

// Account returns balance, equity (balance + unrealized PnL), cumulative
// realized PnL, and the leverage setting.
func (e *Engine) Account() model.AccountView {
	e.mu.Lock()
	defer e.mu.Unlock()

	equity := e.acct.Balance()
	if e.hasPrice {
		equity = equity.Add(e.pos.Current().UnrealizedPnL(e.lastPrice))
	}
	return model.AccountView{
		Balance:     e.acct.Balance(),
		Equity:      equity,
		RealizedPnL: e.acct.RealizedPnL(),
		Leverage:    e.pos.Leverage(),
	}
}

// Orders returns the Open orders in insertion order.
func (e *Engine) Orders() []model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := e.book.Open()
	out := make([]model.Order, 0, len(open))
	for _, o := range open {
		out = append(out, *o)
	}
	return out
}

// Position returns the position snapshot with its mark-dependent risk
// numbers, or nil while flat. Before the first tick the entry price stands
// in as the mark, so PnL reads zero.
func (e *Engine) Position() *model.PositionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	mark := e.lastPrice
	if !e.hasPrice {
		mark = e.pos.Current().EntryPrice
	}
	return e.pos.View(mark, e.acct.Balance())
}

// Trades returns the recorded fills, oldest first.
func (e *Engine) Trades() []model.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// ExportState produces the full serializable data model for persistence.
func (e *Engine) ExportState() *model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	trades := make([]model.Trade, len(e.trades))
	copy(trades, e.trades)
	return &model.Snapshot{
		Symbol:      e.symbol,
		LastPrice:   e.lastPrice,
		HasPrice:    e.hasPrice,
		Balance:     e.acct.Balance(),
		RealizedPnL: e.acct.RealizedPnL(),
		NextOrderID: e.book.NextID(),
		Orders:      e.book.All(),
		Position:    e.pos.Current(),
		Trades:      trades,
		UpdatedAt:   time.Now().UTC(),
	}
}

// ImportState restores the engine from a snapshot, validating the data
// model's invariants before any of it is applied. Either the whole snapshot
// applies or none of it does.
func (e *Engine) ImportState(s *model.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidArgument)
	}
	if s.Symbol != "" && s.Symbol != e.symbol {
		return fmt.Errorf("%w: snapshot symbol %q does not match engine symbol %q", ErrInvalidArgument, s.Symbol, e.symbol)
	}

	// Validate into fresh components first so a bad snapshot leaves the
	// current state untouched.
	acct := NewAccount(decimal.Zero)
	if err := acct.Restore(s.Balance, s.RealizedPnL); err != nil {
		return err
	}
	book := NewOrderBook()
	if err := book.Restore(s.Orders, s.NextOrderID); err != nil {
		return err
	}
	pos := NewPositionManager(e.pos.maintenanceRate)
	if err := pos.Restore(s.Position); err != nil {
		return err
	}

	e.acct = acct
	e.book = book
	e.pos = pos
	e.match = NewMatchingEngine(book, acct, pos, e.match.feeRate, e.match.limiter)
	e.lastPrice = s.LastPrice
	e.hasPrice = s.HasPrice
	e.trades = append([]model.Trade(nil), s.Trades...)

	metrics.OpenOrders.Set(float64(e.book.OpenCount()))
	slog.Info("state restored",
		"symbol", e.symbol,
		"balance", s.Balance.String(),
		"open_orders", e.book.OpenCount(),
		"position", string(s.Position.Side),
	)
	return nil
}
