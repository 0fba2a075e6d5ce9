package cache

import (
	"testing"

	"mm-engine/pkg/types"
)

func TestInsertAndGet(t *testing.T) {
	t.Parallel()

	c := New()
	var key types.Pubkey
	key[0] = 1

	c.Insert(key, types.Account{Bytes: []byte("a"), Slot: 5})
	acc, ok := c.Get(key)
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if acc.Slot != 5 {
		t.Errorf("Slot = %d, want 5", acc.Slot)
	}
}

func TestInsertOverwritesRegardlessOfSlotOrder(t *testing.T) {
	t.Parallel()

	c := New()
	var key types.Pubkey
	key[0] = 2

	c.Insert(key, types.Account{Slot: 10})
	c.Insert(key, types.Account{Slot: 3}) // older slot, still overwrites

	acc, _ := c.Get(key)
	if acc.Slot != 3 {
		t.Errorf("Slot = %d, want 3 (last write wins, best-effort consistency)", acc.Slot)
	}
}

func TestInsertWithoutSubscriberDoesNotBlockOrFail(t *testing.T) {
	t.Parallel()

	c := New()
	var key types.Pubkey
	c.Insert(key, types.Account{Slot: 1}) // no subscribers registered

	if _, ok := c.Get(key); !ok {
		t.Error("insert should succeed even with no subscribers")
	}
}

func TestSubscribeReceivesKeyOnInsert(t *testing.T) {
	t.Parallel()

	c := New()
	ch, _ := c.Subscribe(1)

	var key types.Pubkey
	key[3] = 9
	c.Insert(key, types.Account{Slot: 1})

	got := <-ch
	if got != key {
		t.Errorf("got key %v, want %v", got, key)
	}
}

func TestGetMissingKey(t *testing.T) {
	t.Parallel()

	c := New()
	if _, ok := c.Get(types.Pubkey{}); ok {
		t.Error("expected miss on empty cache")
	}
}
