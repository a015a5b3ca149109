package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/book"
	"papertrade/internal/infra"
	"papertrade/internal/stream"
)

// WorkerState tracks a symbol worker's position in its connection lifecycle.
type WorkerState int

const (
	StateDisconnected WorkerState = iota
	StateConnecting
	StateConnected
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// QuotePublisher receives informational top-of-book snapshots. Implementations
// must tolerate nil prices for empty ladder sides.
type QuotePublisher interface {
	PublishTopOfBook(ctx context.Context, symbol string, bestBid, bestAsk *decimal.Decimal) error
}

// SymbolWorker owns one symbol end to end: the depth subscription, the
// in-memory ladder and the throttled matching passes. Nothing outside the
// worker goroutine touches the ladder.
type SymbolWorker struct {
	symbol  string
	dialer  stream.Dialer
	matcher *Matcher
	quotes  QuotePublisher

	reconnectDelay time.Duration
	throttle       *infra.Throttle

	mu    sync.RWMutex
	state WorkerState
	conn  stream.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSymbolWorker creates a worker for symbol. quotes may be nil.
func NewSymbolWorker(symbol string, dialer stream.Dialer, matcher *Matcher, quotes QuotePublisher, reconnectDelay, matchInterval time.Duration) *SymbolWorker {
	return &SymbolWorker{
		symbol:         symbol,
		dialer:         dialer,
		matcher:        matcher,
		quotes:         quotes,
		reconnectDelay: reconnectDelay,
		throttle:       infra.NewThrottle(matchInterval),
		state:          StateDisconnected,
	}
}

// Symbol returns the symbol this worker serves.
func (w *SymbolWorker) Symbol() string { return w.symbol }

// State returns the worker's current lifecycle state.
func (w *SymbolWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Start launches the connect/process/reconnect loop.
func (w *SymbolWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.runLoop(ctx)
}

// Stop terminates the worker and waits for its goroutine to exit. Safe to
// call more than once.
func (w *SymbolWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConn()
	w.wg.Wait()
	w.setState(StateStopped)
}

func (w *SymbolWorker) runLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.setState(StateConnecting)
		if err := w.connect(ctx); err != nil {
			slog.Warn("Depth connection failed", "symbol", w.symbol, "err", err)
			w.setState(StateDisconnected)

			select {
			case <-ctx.Done():
				return
			case <-time.After(w.reconnectDelay):
				continue
			}
		}

		w.setState(StateConnected)
		w.process(ctx)
		w.setState(StateDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.reconnectDelay):
		}
	}
}

func (w *SymbolWorker) connect(ctx context.Context) error {
	conn, err := w.dialer.Dial(ctx, w.symbol)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	slog.Info("Depth stream connected", "symbol", w.symbol)
	return nil
}

// process drains depth deltas into the ladder until the connection dies.
// The ladder is rebuilt from scratch on every (re)connect so stale levels
// from a previous session never survive.
func (w *SymbolWorker) process(ctx context.Context) {
	lad := book.NewLadder()

	for {
		w.mu.RLock()
		c := w.conn
		w.mu.RUnlock()
		if c == nil {
			return
		}

		delta, err := c.ReadDelta()
		if err != nil {
			slog.Warn("Depth read error", "symbol", w.symbol, "err", err)
			w.closeConn()
			return
		}

		lad.ApplyDelta(delta)
		w.publishQuotes(ctx, lad)

		if w.throttle.Allow() {
			w.matcher.MatchSymbol(ctx, w.symbol, lad)
		}
	}
}

func (w *SymbolWorker) publishQuotes(ctx context.Context, lad *book.Ladder) {
	if w.quotes == nil {
		return
	}

	var bid, ask *decimal.Decimal
	if b, ok := lad.BestBid(); ok {
		bid = &b.Price
	}
	if a, ok := lad.BestAsk(); ok {
		ask = &a.Price
	}
	if err := w.quotes.PublishTopOfBook(ctx, w.symbol, bid, ask); err != nil {
		slog.Warn("Quote publish failed", "symbol", w.symbol, "err", err)
	}
}

func (w *SymbolWorker) setState(s WorkerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateStopped {
		return
	}
	w.state = s
}

func (w *SymbolWorker) closeConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
