package common

import "math/big"

// StateToBig interprets a 256-bit storage word as a big-endian unsigned
// integer, onto this package's own Hash256 rather than go-ethereum's
// common.Hash.
func StateToBig(h Hash256) *big.Int {
	return new(big.Int).SetBytes(h.Bytes())
}

// BigToSlot renders a big.Int as a left-padded 32-byte storage slot index,
// the layout HAMT keys for packed-struct fields use.
func BigToSlot(slot *big.Int) Hash256 {
	return BytesToHash256(LeftPadBytes(slot.Bytes(), 32))
}

// IntToSlot is the common-case convenience wrapper around BigToSlot.
func IntToSlot(slot int64) Hash256 {
	return BigToSlot(big.NewInt(slot))
}

// HashToEAddr takes the low 20 bytes of a 256-bit word, the layout
// Ethereum itself uses to turn a storage word back into an address.
func HashToEAddr(h Hash256) EAddr {
	return BytesToEAddr(h.Bytes())
}
