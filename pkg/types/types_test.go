package types

import "testing"

func TestPubkeyFromBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []byte
		wantErr bool
	}{
		{"exact 32 bytes", make([]byte, 32), false},
		{"too short", make([]byte, 31), true},
		{"too long", make([]byte, 33), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := PubkeyFromBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("PubkeyFromBytes(%d bytes) error = %v, wantErr %v", len(tt.input), err, tt.wantErr)
			}
		})
	}
}

func TestPubkeyFromHexRoundTrip(t *testing.T) {
	t.Parallel()

	want := Pubkey{1, 2, 3, 4}
	got, err := PubkeyFromHex(want.String())
	if err != nil {
		t.Fatalf("PubkeyFromHex: %v", err)
	}
	if got != want {
		t.Errorf("PubkeyFromHex round trip = %v, want %v", got, want)
	}

	if _, err := PubkeyFromHex("not-hex"); err == nil {
		t.Error("expected error decoding invalid hex")
	}
}

func TestPubkeyIsZero(t *testing.T) {
	t.Parallel()

	var p Pubkey
	if !p.IsZero() {
		t.Error("zero-value Pubkey should report IsZero() == true")
	}
	p[0] = 1
	if p.IsZero() {
		t.Error("non-zero Pubkey should report IsZero() == false")
	}
}

func TestUint128FromBytesLE(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 16)
	buf[0] = 0x01      // low byte of Lo
	buf[8] = 0x02      // low byte of Hi
	u := Uint128FromBytesLE(buf)

	if u.Lo != 1 {
		t.Errorf("Lo = %d, want 1", u.Lo)
	}
	if u.Hi != 2 {
		t.Errorf("Hi = %d, want 2", u.Hi)
	}
	if u.ShiftRight64() != 2 {
		t.Errorf("ShiftRight64() = %d, want 2", u.ShiftRight64())
	}
}

func TestUint128Equal(t *testing.T) {
	t.Parallel()

	a := Uint128{Lo: 1, Hi: 2}
	b := Uint128{Lo: 1, Hi: 2}
	c := Uint128{Lo: 1, Hi: 3}

	if !a.Equal(b) {
		t.Error("expected a.Equal(b)")
	}
	if a.Equal(c) {
		t.Error("expected !a.Equal(c)")
	}
	if !(Uint128{}).IsZero() {
		t.Error("zero-value Uint128 should report IsZero() == true")
	}
}

func TestOrderBookBestBidAsk(t *testing.T) {
	t.Parallel()

	empty := &OrderBook{}
	if _, haveBid, _, haveAsk := empty.BestBidAsk(); haveBid || haveAsk {
		t.Error("empty book should report no bid and no ask")
	}

	book := &OrderBook{
		Bids: OrderBookSide{{Price: 100}, {Price: 99}},
		Asks: OrderBookSide{{Price: 101}, {Price: 102}},
	}
	bestBid, haveBid, bestAsk, haveAsk := book.BestBidAsk()
	if !haveBid || bestBid != 100 {
		t.Errorf("bestBid = %d, haveBid = %v, want 100, true", bestBid, haveBid)
	}
	if !haveAsk || bestAsk != 101 {
		t.Errorf("bestAsk = %d, haveAsk = %v, want 101, true", bestAsk, haveAsk)
	}
}

func TestSideString(t *testing.T) {
	t.Parallel()

	if Bid.String() != "bid" {
		t.Errorf("Bid.String() = %q, want bid", Bid.String())
	}
	if Ask.String() != "ask" {
		t.Errorf("Ask.String() = %q, want ask", Ask.String())
	}
}
