// PushFeed is an optional fast path: a WebSocket subscription to
// account-change notifications that forwards advisory "check this key now"
// hints, short-cutting the next ingest poll. It is never the sole source of
// truth — the periodic multi-get in internal/ingest remains canonical, per
// spec.md §4.3's rationale. Grounded on the teacher's internal/exchange/ws.go:
// auto-reconnect with backoff, ping keepalive, and non-blocking dispatch
// that drops and logs on a full consumer channel rather than blocking the
// read loop.
package venue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mm-engine/pkg/types"
)

const (
	pushPingInterval   = 20 * time.Second
	pushMinBackoff     = 500 * time.Millisecond
	pushMaxBackoff     = 30 * time.Second
	pushHintBufferSize = 256
)

// PushFeed maintains a reconnecting WebSocket subscription and forwards
// changed account keys on Hints().
type PushFeed struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	hints  chan types.Pubkey
	cancel context.CancelFunc
}

// NewPushFeed builds a feed against the given pubsub URL. Call Start to
// begin connecting.
func NewPushFeed(url string, logger *slog.Logger) *PushFeed {
	return &PushFeed{
		url:    url,
		logger: logger.With("component", "venue_push_feed"),
		hints:  make(chan types.Pubkey, pushHintBufferSize),
	}
}

// Hints returns the channel of advisory account keys to re-check.
func (f *PushFeed) Hints() <-chan types.Pubkey {
	return f.hints
}

// Start begins the connect-and-reconnect loop in the background. Stop by
// cancelling ctx or by calling Close.
func (f *PushFeed) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	go f.run(ctx)
}

// Close tears down the feed permanently.
func (f *PushFeed) Close() {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	conn := f.conn
	f.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (f *PushFeed) run(ctx context.Context) {
	backoff := pushMinBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Warn("push feed dial failed, retrying", "error", err, "backoff", backoff)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		f.logger.Info("push feed connected", "url", f.url)
		backoff = pushMinBackoff

		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()

		f.readLoop(ctx, conn)

		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

type accountNotification struct {
	Params struct {
		Result struct {
			Value struct {
				Pubkey string `json:"pubkey"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (f *PushFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	pinger := time.NewTicker(pushPingInterval)
	defer pinger.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				f.logger.Warn("push feed read error", "error", err)
				return
			}
			f.dispatch(msg)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-pinger.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("push feed ping failed", "error", err)
				return
			}
		}
	}
}

func (f *PushFeed) dispatch(msg []byte) {
	var notif accountNotification
	if err := json.Unmarshal(msg, &notif); err != nil {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(notif.Params.Result.Value.Pubkey)
	if err != nil || len(raw) != 32 {
		return
	}
	var key types.Pubkey
	copy(key[:], raw)

	select {
	case f.hints <- key:
	default:
		f.logger.Warn("push feed hint channel full, dropping", "key", key.String())
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > pushMaxBackoff {
		return pushMaxBackoff
	}
	return next
}
