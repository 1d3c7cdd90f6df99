// Package common holds the shared identity types, keccak helpers and typed
// errors used across the evm-loader packages: the 20-byte EVM address
// (E-addr), the 32-byte host account key (H-key), and the handful of
// deterministic key-derivation routines that bridge the two address spaces.
package common

import (
	"encoding/hex"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// EAddrLength is the size in bytes of an Ethereum-style account address.
const EAddrLength = 20

// HKeyLength is the size in bytes of a host-blockchain account public key.
const HKeyLength = 32

// EAddr is the 20-byte identity of an EVM account.
type EAddr [EAddrLength]byte

// HKey is the 32-byte identity of a host account.
type HKey [HKeyLength]byte

// BytesToEAddr left-pads or truncates b to EAddrLength bytes, taking the
// trailing EAddrLength bytes (mirrors Ethereum's own BytesToAddress).
func BytesToEAddr(b []byte) EAddr {
	var a EAddr
	if len(b) > EAddrLength {
		b = b[len(b)-EAddrLength:]
	}
	copy(a[EAddrLength-len(b):], b)
	return a
}

// BytesToHKey left-pads or truncates b to HKeyLength bytes.
func BytesToHKey(b []byte) HKey {
	var k HKey
	if len(b) > HKeyLength {
		b = b[len(b)-HKeyLength:]
	}
	copy(k[HKeyLength-len(b):], b)
	return k
}

// Bytes returns a copy of the address as a byte slice.
func (a EAddr) Bytes() []byte { return a[:] }

// Bytes returns a copy of the key as a byte slice.
func (k HKey) Bytes() []byte { return k[:] }

// IsZero reports whether a is the all-zero address.
func (a EAddr) IsZero() bool { return a == EAddr{} }

// IsZero reports whether k is the all-zero key.
func (k HKey) IsZero() bool { return k == HKey{} }

// String renders the address as 0x-prefixed hex, matching Ethereum tooling.
func (a EAddr) String() string { return "0x" + hex.EncodeToString(a[:]) }

// String renders the key as base58, matching host-chain tooling (e.g. Solana).
func (k HKey) String() string { return base58.Encode(k[:]) }

// MarshalText implements encoding.TextMarshaler for JSON reports.
func (a EAddr) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// MarshalText implements encoding.TextMarshaler for JSON reports.
func (k HKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ToEthAddress converts to go-ethereum's own Address type, for interop with
// reused go-ethereum helpers (crypto.CreateAddress, rlp, ...).
func (a EAddr) ToEthAddress() ethcommon.Address { return ethcommon.Address(a) }

// EAddrFromEth converts from go-ethereum's Address type.
func EAddrFromEth(a ethcommon.Address) EAddr { return EAddr(a) }

// Hash256 is a 32-byte EVM word: a storage key, a storage value, or a hash.
type Hash256 [32]byte

// BytesToHash256 left-pads or truncates b to 32 bytes.
func BytesToHash256(b []byte) Hash256 {
	var h Hash256
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(h[32-len(b):], b)
	return h
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash256) Bytes() []byte { return h[:] }

// String renders the hash as 0x-prefixed hex.
func (h Hash256) String() string { return "0x" + hex.EncodeToString(h[:]) }

// Keccak256 hashes data with Ethereum's Keccak-256.
func Keccak256(data ...[]byte) Hash256 {
	return Hash256(crypto.Keccak256Hash(data...))
}

// EmptyCodeHash is Keccak256("") — the code hash of an account with no code.
var EmptyCodeHash = Keccak256(nil)

// LeftPadBytes left-pads b with zero bytes up to size. Mirrors
// go-ethereum/common.LeftPadBytes, used throughout the HAMT/storage layer
// where 256-bit words must be exactly 32 bytes wide.
func LeftPadBytes(b []byte, size int) []byte {
	return ethcommon.LeftPadBytes(b, size)
}

// AssertLen returns a descriptive error wrapping ErrInvalidAccountData if b
// does not have the expected length; used at package boundaries that accept raw byte slices
// the compiler cannot size-check.
func AssertLen(name string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%s: expected %d bytes, got %d: %w", name, want, len(b), ErrInvalidAccountData)
	}
	return nil
}
