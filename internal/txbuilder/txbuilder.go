// Package txbuilder accumulates venue instructions into a transaction,
// respecting a maximum message-size threshold, and signs the result.
//
// Grounded on original_source's fast_tx_builder.rs (FastTxnBuilder::new/
// len/add/clear/build) and order_manager.rs's submit_transactions, which
// flushes the accumulated builder and starts a new one whenever adding the
// next instruction would push the message past a byte threshold. The
// original's flush check happens BEFORE the new instruction is appended —
// it sizes the transaction as it currently stands, and only appends the new
// instruction into the (possibly fresh) builder afterward. This package's
// Add call is built the same way: callers drive the flush-then-add loop
// themselves via ShouldFlush, matching the original's control flow rather
// than hiding it behind an auto-flushing Add.
package txbuilder

import (
	"encoding/binary"

	"mm-engine/internal/signer"
	"mm-engine/pkg/types"
)

// AccountMeta references one account touched by an instruction.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is one venue program call.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

func (ix Instruction) encodedLen() int {
	// programID(32) + account count(4) + per-account(32+1+1) + data len(4) + data
	return 32 + 4 + len(ix.Accounts)*34 + 4 + len(ix.Data)
}

// Builder accumulates instructions for a single transaction message.
type Builder struct {
	ixs []Instruction
}

func New() *Builder {
	return &Builder{}
}

// Len returns the number of instructions currently accumulated.
func (b *Builder) Len() int {
	return len(b.ixs)
}

// MessageSize returns the encoded size of the message as it currently
// stands (before adding any pending instruction).
func (b *Builder) MessageSize() int {
	size := 32 + 4 // message header: recent blockhash + instruction count
	for _, ix := range b.ixs {
		size += ix.encodedLen()
	}
	return size
}

// ShouldFlush reports whether adding ix to the current builder would push
// MessageSize() past maxBytes. Callers use this to decide: flush-and-submit
// the current builder first, then add ix to a fresh one — exactly the
// original's ordering.
func (b *Builder) ShouldFlush(ix Instruction, maxBytes int) bool {
	return b.Len() != 0 && b.MessageSize()+ix.encodedLen() > maxBytes
}

// Add appends ix to the builder.
func (b *Builder) Add(ix Instruction) {
	b.ixs = append(b.ixs, ix)
}

// Clear empties the builder for reuse.
func (b *Builder) Clear() {
	b.ixs = b.ixs[:0]
}

// Build serializes the accumulated instructions into a message, signs it
// with payer followed by any additional signers, and returns the signed
// transaction bytes. The wire format is private to this engine: a header
// (recent blockhash + instruction count) followed by each instruction's
// program id, account metas, and data, with one ed25519 signature per
// signer prepended.
func (b *Builder) Build(blockhash [32]byte, payer *signer.Signer, additionalSigners ...*signer.Signer) ([]byte, error) {
	msg := b.encodeMessage(blockhash)

	signers := append([]*signer.Signer{payer}, additionalSigners...)
	out := make([]byte, 0, 1+len(signers)*64+len(msg))
	out = append(out, byte(len(signers)))
	for _, s := range signers {
		out = append(out, s.Sign(msg)...)
	}
	out = append(out, msg...)
	return out, nil
}

func (b *Builder) encodeMessage(blockhash [32]byte) []byte {
	buf := make([]byte, 0, b.MessageSize())
	buf = append(buf, blockhash[:]...)

	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, uint32(len(b.ixs)))
	buf = append(buf, count...)

	for _, ix := range b.ixs {
		buf = append(buf, ix.ProgramID[:]...)

		accCount := make([]byte, 4)
		binary.LittleEndian.PutUint32(accCount, uint32(len(ix.Accounts)))
		buf = append(buf, accCount...)

		for _, a := range ix.Accounts {
			buf = append(buf, a.Pubkey[:]...)
			buf = append(buf, boolByte(a.IsSigner), boolByte(a.IsWritable))
		}

		dataLen := make([]byte, 4)
		binary.LittleEndian.PutUint32(dataLen, uint32(len(ix.Data)))
		buf = append(buf, dataLen...)
		buf = append(buf, ix.Data...)
	}

	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
