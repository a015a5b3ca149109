package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"papertrade/internal/book"
)

// WSDialer connects to the venue's websocket depth channels.
// The channel URL is <base>/depth/<symbol>.
type WSDialer struct {
	BaseURL          string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

// NewWSDialer creates a dialer with production timeouts.
func NewWSDialer(baseURL string) *WSDialer {
	return &WSDialer{
		BaseURL:          baseURL,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

// Dial opens the depth subscription for one symbol.
func (d *WSDialer) Dial(ctx context.Context, symbol string) (Conn, error) {
	url := fmt.Sprintf("%s/depth/%s", strings.TrimSuffix(d.BaseURL, "/"), strings.ToLower(symbol))

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &wsConn{conn: conn, readTimeout: d.ReadTimeout, symbol: symbol}, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	symbol      string
}

// depthMessage is the venue's incremental depth frame. Prices and quantities
// arrive as strings; a "0" quantity removes the level.
type depthMessage struct {
	BidChanges [][2]string `json:"bidChanges"`
	AskChanges [][2]string `json:"askChanges"`
}

// ReadDelta reads frames until one parses as a depth update. Malformed
// frames are logged and skipped rather than tearing the connection down.
func (c *wsConn) ReadDelta() (book.Delta, error) {
	for {
		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return book.Delta{}, err
		}

		delta, err := parseDelta(msg)
		if err != nil {
			slog.Warn("Skipping malformed depth frame", "symbol", c.symbol, "err", err)
			continue
		}
		return delta, nil
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func parseDelta(msg []byte) (book.Delta, error) {
	var dm depthMessage
	if err := json.Unmarshal(msg, &dm); err != nil {
		return book.Delta{}, err
	}

	bids, err := parseLevels(dm.BidChanges)
	if err != nil {
		return book.Delta{}, err
	}
	asks, err := parseLevels(dm.AskChanges)
	if err != nil {
		return book.Delta{}, err
	}
	return book.Delta{BidChanges: bids, AskChanges: asks}, nil
}

func parseLevels(changes [][2]string) ([]book.Level, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	levels := make([]book.Level, 0, len(changes))
	for _, c := range changes {
		price, err := decimal.NewFromString(c[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", c[0], err)
		}
		qty, err := decimal.NewFromString(c[1])
		if err != nil {
			return nil, fmt.Errorf("bad qty %q: %w", c[1], err)
		}
		levels = append(levels, book.Level{Price: price, Qty: qty})
	}
	return levels, nil
}
