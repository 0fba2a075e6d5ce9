// Package codec decodes the venue's critbit orderbook slab pages into
// depth-ordered order lists.
//
// A page arrives framed as: 5 bytes of head padding, an 8-byte account
// discriminator, the slab body (header + packed nodes), and 7 bytes of tail
// padding. Strip(raw) removes the framing; GetDepth parses the body.
package codec

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"mm-engine/pkg/types"
)

const (
	headLen           = 5
	discriminatorLen  = 8
	tailLen           = 7
	nodeSize          = 72
	slabHeaderSize    = 32
	uninitializedTag  = 0
	innerNodeTag      = 1
	leafNodeTag       = 2
	freeNodeTag       = 3
	lastFreeNodeTag   = 4
)

// Strip removes the page framing (head + discriminator + tail) and returns
// the slab body: header followed by the packed node array.
func Strip(raw []byte) ([]byte, error) {
	if len(raw) < headLen+discriminatorLen+tailLen {
		return nil, fmt.Errorf("codec: page too short (%d bytes)", len(raw))
	}
	body := raw[headLen : len(raw)-tailLen]
	if len(body) < discriminatorLen {
		return nil, fmt.Errorf("codec: body shorter than discriminator")
	}
	return body[discriminatorLen:], nil
}

// slabHeader is the fixed-size header preceding the node array.
type slabHeader struct {
	BumpIndex    uint64
	FreeListLen  uint64
	FreeListHead uint32
	RootNode     uint32
	LeafCount    uint64
}

func parseHeader(data []byte) (slabHeader, error) {
	if len(data) < slabHeaderSize {
		return slabHeader{}, fmt.Errorf("codec: slab header too short (%d bytes)", len(data))
	}
	return slabHeader{
		BumpIndex:    binary.LittleEndian.Uint64(data[0:8]),
		FreeListLen:  binary.LittleEndian.Uint64(data[8:16]),
		FreeListHead: binary.LittleEndian.Uint32(data[16:20]),
		RootNode:     binary.LittleEndian.Uint32(data[20:24]),
		LeafCount:    binary.LittleEndian.Uint64(data[24:32]),
	}, nil
}

// leafNode is a decoded LeafNode entry: the only node variant carrying
// order data.
type leafNode struct {
	Key           types.Uint128
	OwnerSlot     uint8
	Quantity      uint64
	ClientOrderID uint64
}

// innerNode is a decoded InnerNode entry: the only variant carrying
// children to descend into.
type innerNode struct {
	Children [2]uint32
}

// nodeAt reads the node at the given slot index within the (header-less)
// node array and returns its tag plus, if applicable, a decoded inner or
// leaf node.
func nodeAt(nodes []byte, idx uint32) (tag uint32, inner innerNode, leaf leafNode, err error) {
	off := int(idx) * nodeSize
	if off < 0 || off+nodeSize > len(nodes) {
		return 0, innerNode{}, leafNode{}, fmt.Errorf("codec: node index %d out of range", idx)
	}
	n := nodes[off : off+nodeSize]
	tag = binary.LittleEndian.Uint32(n[0:4])

	switch tag {
	case innerNodeTag:
		inner.Children[0] = binary.LittleEndian.Uint32(n[24:28])
		inner.Children[1] = binary.LittleEndian.Uint32(n[28:32])
	case leafNodeTag:
		leaf.OwnerSlot = n[4]
		leaf.Key = types.Uint128FromBytesLE(n[8:24])
		leaf.Quantity = binary.LittleEndian.Uint64(n[56:64])
		leaf.ClientOrderID = binary.LittleEndian.Uint64(n[64:72])
	}
	return tag, inner, leaf, nil
}

// price extracts the lot price packed into the high 64 bits of a leaf's key.
func (l leafNode) price() uint64 {
	return l.Key.ShiftRight64()
}

// GetDepth decodes up to depth resting orders from a slab body (as
// returned by Strip), converting lot price/quantity to native units via
// pcLotSize/coinLotSize. ascending selects traversal order: false for bids
// (descending price, best first), true for asks (ascending price, best
// first). Malformed input, or a native price that does not fit in 64 bits,
// yields a nil slice and a non-nil error; callers should log and skip rather
// than treat this as fatal.
func GetDepth(body []byte, depth int, pcLotSize, coinLotSize uint64, ascending bool) (types.OrderBookSide, error) {
	hdr, err := parseHeader(body)
	if err != nil {
		return nil, err
	}
	nodes := body[slabHeaderSize:]

	if hdr.LeafCount == 0 {
		return types.OrderBookSide{}, nil
	}

	out := make(types.OrderBookSide, 0, depth)
	stack := []uint32{hdr.RootNode}

	for len(stack) > 0 && len(out) < depth {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tag, inner, leaf, err := nodeAt(nodes, idx)
		if err != nil {
			return nil, err
		}

		switch tag {
		case innerNodeTag:
			if ascending {
				stack = append(stack, inner.Children[1], inner.Children[0])
			} else {
				stack = append(stack, inner.Children[0], inner.Children[1])
			}
		case leafNodeTag:
			lotPrice := leaf.price()
			nativePrice := uint128{lo: lotPrice}.mul(pcLotSize).div(coinLotSize)
			if nativePrice.hi != 0 {
				return nil, fmt.Errorf("codec: native price for lot price %d overflows uint64", lotPrice)
			}
			nativeQty := leaf.Quantity * coinLotSize
			out = append(out, types.OrderBookOrder{
				OrderID:       leaf.Key,
				ClientOrderID: leaf.ClientOrderID,
				Price:         nativePrice.lo,
				Quantity:      nativeQty,
			})
		default:
			// Uninitialized/Free/LastFree: not part of the live tree, skip.
		}
	}

	return out, nil
}

// uint128 is a plain big.Int-free 128-bit helper used only for the
// price*pcLotSize/coinLotSize intermediate, which can overflow 64 bits.
type uint128 struct {
	hi, lo uint64
}

func (a uint128) mul(bv uint64) uint128 {
	// 64x64 -> 128 bit multiply via two 32-bit halves, matching the
	// original's use of a 128-bit intermediate for this exact conversion.
	const mask32 = 0xFFFFFFFF
	aLo, aHi := a.lo&mask32, a.lo>>32
	bLo, bHi := bv&mask32, bv>>32

	low := aLo * bLo
	mid1 := aLo * bHi
	mid2 := aHi * bLo
	high := aHi * bHi

	carry := (low>>32 + mid1&mask32 + mid2&mask32) >> 32
	lo := low + (mid1 << 32) + (mid2 << 32)
	hi := high + mid1>>32 + mid2>>32 + carry

	return uint128{hi: hi + a.hi*bv, lo: lo}
}

func (a uint128) div(bv uint64) uint128 {
	if a.hi == 0 {
		return uint128{lo: a.lo / bv}
	}
	// 128/64 division for the (rare, only if pcLotSize*price overflows 64
	// bits) case, via bits.Div64 rather than a hand-rolled shift-and-subtract
	// loop. The high word is divided first so bits.Div64 always sees a
	// remainder below bv; a quotient wider than 64 bits is returned in full,
	// and GetDepth rejects it as a native price overflowing uint64.
	hi, rem := a.hi/bv, a.hi%bv
	lo, _ := bits.Div64(rem, a.lo, bv)
	return uint128{hi: hi, lo: lo}
}
