package venue

import (
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"mm-engine/pkg/types"
)

func TestNextBackoffDoublesUntilCap(t *testing.T) {
	t.Parallel()

	cur := pushMinBackoff
	for i := 0; i < 10; i++ {
		cur = nextBackoff(cur)
		if cur > pushMaxBackoff {
			t.Fatalf("backoff exceeded cap: %v", cur)
		}
	}
	if cur != pushMaxBackoff {
		t.Errorf("backoff = %v, want saturated at %v", cur, pushMaxBackoff)
	}
}

func TestDispatchDecodesValidNotification(t *testing.T) {
	t.Parallel()

	f := NewPushFeed("ws://unused.invalid", slog.New(slog.NewTextHandler(io.Discard, nil)))

	key := types.Pubkey{9, 9, 9}
	msg := []byte(`{"params":{"result":{"value":{"pubkey":"` + base64.StdEncoding.EncodeToString(key[:]) + `"}}}}`)
	f.dispatch(msg)

	select {
	case got := <-f.Hints():
		if got != key {
			t.Errorf("hint = %v, want %v", got, key)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a hint to be dispatched")
	}
}

func TestDispatchIgnoresMalformedMessages(t *testing.T) {
	t.Parallel()

	f := NewPushFeed("ws://unused.invalid", slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.dispatch([]byte(`not json`))
	f.dispatch([]byte(`{"params":{"result":{"value":{"pubkey":"not-base64!!"}}}}`))

	select {
	case got := <-f.Hints():
		t.Errorf("unexpected hint dispatched: %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
