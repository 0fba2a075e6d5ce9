package codec

import (
	"encoding/binary"
	"testing"

	"mm-engine/pkg/types"
)

// buildPage assembles a minimal framed page: head(5) + discriminator(8) +
// header(32) + nodes + tail(7).
func buildPage(header []byte, nodes []byte) []byte {
	buf := make([]byte, 0, headLen+discriminatorLen+len(header)+len(nodes)+tailLen)
	buf = append(buf, make([]byte, headLen)...)
	buf = append(buf, make([]byte, discriminatorLen)...)
	buf = append(buf, header...)
	buf = append(buf, nodes...)
	buf = append(buf, make([]byte, tailLen)...)
	return buf
}

func encodeHeader(h slabHeader) []byte {
	buf := make([]byte, slabHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.BumpIndex)
	binary.LittleEndian.PutUint64(buf[8:16], h.FreeListLen)
	binary.LittleEndian.PutUint32(buf[16:20], h.FreeListHead)
	binary.LittleEndian.PutUint32(buf[20:24], h.RootNode)
	binary.LittleEndian.PutUint64(buf[24:32], h.LeafCount)
	return buf
}

func encodeLeaf(key [16]byte, quantity, clientOrderID uint64) []byte {
	n := make([]byte, nodeSize)
	binary.LittleEndian.PutUint32(n[0:4], leafNodeTag)
	copy(n[8:24], key[:])
	binary.LittleEndian.PutUint64(n[56:64], quantity)
	binary.LittleEndian.PutUint64(n[64:72], clientOrderID)
	return n
}

func encodeInner(child0, child1 uint32) []byte {
	n := make([]byte, nodeSize)
	binary.LittleEndian.PutUint32(n[0:4], innerNodeTag)
	binary.LittleEndian.PutUint32(n[24:28], child0)
	binary.LittleEndian.PutUint32(n[28:32], child1)
	return n
}

func keyWithPrice(price uint64) [16]byte {
	var k [16]byte
	binary.LittleEndian.PutUint64(k[8:16], price)
	return k
}

func TestStripRejectsShortPage(t *testing.T) {
	t.Parallel()
	if _, err := Strip(make([]byte, 10)); err == nil {
		t.Error("expected error for too-short page")
	}
}

func TestStripRemovesFraming(t *testing.T) {
	t.Parallel()

	header := encodeHeader(slabHeader{LeafCount: 0, RootNode: 0})
	page := buildPage(header, nil)

	body, err := Strip(page)
	if err != nil {
		t.Fatalf("Strip: %v", err)
	}
	if len(body) != slabHeaderSize {
		t.Errorf("body length = %d, want %d", len(body), slabHeaderSize)
	}
}

func TestGetDepthEmptyTree(t *testing.T) {
	t.Parallel()

	header := encodeHeader(slabHeader{LeafCount: 0})
	body := append(append([]byte{}, header...))

	out, err := GetDepth(body, 10, 1, 1, true)
	if err != nil {
		t.Fatalf("GetDepth: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty depth, got %d entries", len(out))
	}
}

func TestGetDepthSingleLeaf(t *testing.T) {
	t.Parallel()

	header := encodeHeader(slabHeader{LeafCount: 1, RootNode: 0})
	leaf := encodeLeaf(keyWithPrice(500), 10, 42)
	body := append(append([]byte{}, header...), leaf...)

	out, err := GetDepth(body, 10, 1, 1, true)
	if err != nil {
		t.Fatalf("GetDepth: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out))
	}
	if out[0].Price != 500 {
		t.Errorf("Price = %d, want 500", out[0].Price)
	}
	if out[0].Quantity != 10 {
		t.Errorf("Quantity = %d, want 10", out[0].Quantity)
	}
	if out[0].ClientOrderID != 42 {
		t.Errorf("ClientOrderID = %d, want 42", out[0].ClientOrderID)
	}
}

func TestGetDepthTraversalOrderAndLotScaling(t *testing.T) {
	t.Parallel()

	// Tree: root inner node -> child0 leaf(price=100), child1 leaf(price=200)
	header := encodeHeader(slabHeader{LeafCount: 2, RootNode: 0})
	inner := encodeInner(1, 2)
	leafLow := encodeLeaf(keyWithPrice(100), 5, 1)
	leafHigh := encodeLeaf(keyWithPrice(200), 5, 2)
	body := append(append(append([]byte{}, header...), inner...), append(leafLow, leafHigh...)...)

	// Ascending (asks): child0 first -> price 100 then 200.
	asc, err := GetDepth(body, 10, 2, 1, true)
	if err != nil {
		t.Fatalf("GetDepth ascending: %v", err)
	}
	if len(asc) != 2 || asc[0].Price != 200 || asc[1].Price != 400 {
		t.Errorf("ascending prices = %v, want [200 400] (pcLotSize=2 applied)", pricesOf(asc))
	}

	// Descending (bids): child1 first -> price 200 then 100.
	desc, err := GetDepth(body, 10, 1, 1, false)
	if err != nil {
		t.Fatalf("GetDepth descending: %v", err)
	}
	if len(desc) != 2 || desc[0].Price != 200 || desc[1].Price != 100 {
		t.Errorf("descending prices = %v, want [200 100]", pricesOf(desc))
	}
}

func TestGetDepthRespectsDepthLimit(t *testing.T) {
	t.Parallel()

	header := encodeHeader(slabHeader{LeafCount: 2, RootNode: 0})
	inner := encodeInner(1, 2)
	leafLow := encodeLeaf(keyWithPrice(100), 5, 1)
	leafHigh := encodeLeaf(keyWithPrice(200), 5, 2)
	body := append(append(append([]byte{}, header...), inner...), append(leafLow, leafHigh...)...)

	out, err := GetDepth(body, 1, 1, 1, true)
	if err != nil {
		t.Fatalf("GetDepth: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected depth-limited result of 1, got %d", len(out))
	}
}

func pricesOf(side types.OrderBookSide) []uint64 {
	prices := make([]uint64, len(side))
	for i, o := range side {
		prices[i] = o.Price
	}
	return prices
}

func TestUint128DivExactWhenHiZero(t *testing.T) {
	t.Parallel()

	got := uint128{lo: 1000}.div(10)
	if got.hi != 0 || got.lo != 100 {
		t.Errorf("div = %+v, want {0 100}", got)
	}
}

func TestUint128DivHandlesHiOverflowCase(t *testing.T) {
	t.Parallel()

	// price*pcLotSize overflows 64 bits: a.hi ends up nonzero, exercising the
	// 128/64 bits.Div64 path rather than the plain uint64 division.
	price := uint64(1) << 63
	product := uint128{lo: price}.mul(4)
	if product.hi == 0 {
		t.Fatalf("expected product.hi != 0, got %+v", product)
	}

	// 2^65 / 2 = 2^64: the quotient itself needs the high word.
	got := product.div(2)
	if got.hi != 1 || got.lo != 0 {
		t.Errorf("div = %+v, want {hi:1 lo:0} (2^64)", got)
	}
}

func TestGetDepthHandles128BitPriceOverflow(t *testing.T) {
	t.Parallel()

	// lotPrice * pcLotSize overflows uint64; the native price must still
	// come out exactly right via the 128-bit multiply/divide path.
	const lotPrice = uint64(1) << 62
	const pcLotSize = 8
	const coinLotSize = 4

	header := encodeHeader(slabHeader{LeafCount: 1, RootNode: 0})
	leaf := encodeLeaf(keyWithPrice(lotPrice), 1, 1)
	body := append(append([]byte{}, header...), leaf...)

	out, err := GetDepth(body, 10, pcLotSize, coinLotSize, true)
	if err != nil {
		t.Fatalf("GetDepth: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out))
	}

	want := uint128{lo: lotPrice}.mul(pcLotSize).div(coinLotSize).lo
	if out[0].Price != want {
		t.Errorf("Price = %d, want %d", out[0].Price, want)
	}
}
