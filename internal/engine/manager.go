package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"papertrade/internal/storage"
	"papertrade/internal/stream"
)

// Manager owns the symbol-to-worker map. It is the only component that
// creates or retires workers, so the map never races with itself.
type Manager struct {
	store  *storage.Store
	dialer stream.Dialer
	quotes QuotePublisher

	reconnectDelay    time.Duration
	matchInterval     time.Duration
	reconcileInterval time.Duration

	mu      sync.Mutex
	workers map[string]*SymbolWorker

	matcher *Matcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires the manager, its matcher and its executor together.
// quotes may be nil when no quote cache is configured.
func NewManager(store *storage.Store, dialer stream.Dialer, quotes QuotePublisher,
	reconnectDelay, matchInterval, reconcileInterval time.Duration) *Manager {

	m := &Manager{
		store:             store,
		dialer:            dialer,
		quotes:            quotes,
		reconnectDelay:    reconnectDelay,
		matchInterval:     matchInterval,
		reconcileInterval: reconcileInterval,
		workers:           make(map[string]*SymbolWorker),
	}
	m.matcher = NewMatcher(store, NewExecutor(store), m.CheckIfWorkerShouldStop)
	return m
}

// Matcher exposes the manager's matcher for order-boundary callers.
func (m *Manager) Matcher() *Matcher { return m.matcher }

// Start recovers workers for every symbol that already has pending orders,
// then begins periodic reconciliation.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	symbols, err := m.store.FindDistinctSymbolsWithPendingOrders(m.ctx)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		m.ensureWorker(sym)
	}
	slog.Info("Worker manager started", "workers", len(symbols))

	m.wg.Add(1)
	go m.reconcileLoop()
	return nil
}

// Stop retires every worker and waits for the reconcile loop to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	workers := make([]*SymbolWorker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[string]*SymbolWorker)
	m.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	slog.Info("Worker manager stopped")
}

// OnNewOrder guarantees a worker exists for the order's symbol. Idempotent;
// a second pending order for a running symbol is a no-op.
func (m *Manager) OnNewOrder(symbol string) {
	m.ensureWorker(symbol)
}

// WorkerCount returns the number of live workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// HasWorker reports whether a worker is running for symbol.
func (m *Manager) HasWorker(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[symbol]
	return ok
}

// CheckIfWorkerShouldStop retires the symbol's worker once no pending orders
// remain. Called from matching passes, which run on the worker's own
// goroutine, so the actual Stop happens on a separate goroutine to avoid the
// worker waiting on itself.
func (m *Manager) CheckIfWorkerShouldStop(ctx context.Context, symbol string) {
	n, err := m.store.CountPendingOrders(ctx, symbol)
	if err != nil {
		slog.Error("Pending-order count failed, keeping worker", "symbol", symbol, "err", err)
		return
	}
	if n > 0 {
		return
	}

	m.mu.Lock()
	w, ok := m.workers[symbol]
	if ok {
		delete(m.workers, symbol)
	}
	m.mu.Unlock()

	if ok {
		slog.Info("No pending orders left, retiring worker", "symbol", symbol)
		go w.Stop()
	}
}

// ensureWorker starts a worker for symbol unless one is already running.
func (m *Manager) ensureWorker(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workers[symbol]; ok {
		return
	}

	// OnNewOrder can race ahead of Start during process bring-up.
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	w := NewSymbolWorker(symbol, m.dialer, m.matcher, m.quotes, m.reconnectDelay, m.matchInterval)
	m.workers[symbol] = w
	w.Start(ctx)
	slog.Info("Worker started", "symbol", symbol)
}

func (m *Manager) reconcileLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.reconcile()
		}
	}
}

// reconcile brings the worker set back in line with the store: a worker for
// every symbol with pending orders, none for symbols without. Covers workers
// lost to crashes and orders inserted while no process was watching.
func (m *Manager) reconcile() {
	symbols, err := m.store.FindDistinctSymbolsWithPendingOrders(m.ctx)
	if err != nil {
		slog.Error("Reconcile query failed, keeping current workers", "err", err)
		return
	}

	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		want[sym] = true
		m.ensureWorker(sym)
	}

	m.mu.Lock()
	var stale []*SymbolWorker
	for sym, w := range m.workers {
		if !want[sym] {
			delete(m.workers, sym)
			stale = append(stale, w)
		}
	}
	m.mu.Unlock()

	for _, w := range stale {
		slog.Info("Reconcile retiring idle worker", "symbol", w.Symbol())
		w.Stop()
	}
}
