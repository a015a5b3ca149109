// Package stream provides the per-symbol market-depth feed consumed by
// symbol workers. The Dialer/Conn split keeps reconnect logic testable
// without a real network dependency.
package stream

import (
	"context"

	"papertrade/internal/book"
)

// Conn is one live depth subscription for a single symbol.
type Conn interface {
	// ReadDelta blocks until the next depth update arrives or the
	// connection fails.
	ReadDelta() (book.Delta, error)
	Close() error
}

// Dialer opens depth subscriptions. Implementations must scope each Conn to
// exactly one symbol's market-depth channel.
type Dialer interface {
	Dial(ctx context.Context, symbol string) (Conn, error)
}
