package ordermanager

import (
	"encoding/binary"

	"mm-engine/pkg/types"
)

// Instruction opcodes and the PostOnly/CancelProvide encoding follow the
// original's NewOrderInstructionV3 (post-only, self-trade behavior =
// CancelProvide, limit = u16::MAX, max_ts = i64::MAX) and CancelOrder
// instructions.
const (
	opNewOrder    = byte(0)
	opCancelOrder = byte(1)

	selfTradeBehaviorCancelProvide = byte(2)
)

const (
	limitMax  = uint16(0xFFFF)
	maxTsUnbounded = int64(^uint64(0) >> 1)
)

func encodeNewOrderData(side types.Side, price, quantity, clientOrderID uint64) []byte {
	buf := make([]byte, 1+1+8+8+8+1+2+8)
	off := 0
	buf[off] = opNewOrder
	off++
	buf[off] = byte(side)
	off++
	binary.LittleEndian.PutUint64(buf[off:], price)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], quantity)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], clientOrderID)
	off += 8
	buf[off] = selfTradeBehaviorCancelProvide
	off++
	binary.LittleEndian.PutUint16(buf[off:], limitMax)
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], uint64(maxTsUnbounded))
	return buf
}

func encodeCancelOrderData(orderID types.Uint128, clientOrderID uint64) []byte {
	buf := make([]byte, 1+16+8)
	off := 0
	buf[off] = opCancelOrder
	off++
	binary.LittleEndian.PutUint64(buf[off:], orderID.Lo)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], orderID.Hi)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], clientOrderID)
	return buf
}
