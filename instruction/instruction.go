// Package instruction implements the §6 "External Interfaces" wire formats:
// the host instruction opcode table, the CPI escape-hatch codec, and the
// persisted-Machine codec. Grounded on original_source/evm_loader/program/src/instruction.rs
// for the exact tag table and original_source/evm_loader/program/src/solana_backend.rs
// for the CPI payload shape.
package instruction

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
)

// Tag identifies a host instruction opcode.
type Tag byte

const (
	TagWrite                  Tag = 0
	TagFinalize               Tag = 1
	TagCreateAccount          Tag = 2
	TagCall                   Tag = 3
	TagCreateAccountWithSeed  Tag = 4
	TagOnReturn               Tag = 5
	TagOnEvent                Tag = 6
)

// Write is the payload of TagWrite: stream bytes into the account's code
// region at offset before Finalize runs the constructor.
type Write struct {
	Offset uint32
	Length uint64
	Bytes  []byte
}

// CreateAccount is the payload of TagCreateAccount.
type CreateAccount struct {
	Lamports uint64
	Space    uint64
	Ether    common.EAddr
	Nonce    byte
}

// CreateAccountWithSeed is the payload of TagCreateAccountWithSeed.
type CreateAccountWithSeed struct {
	Base     common.HKey
	Seed     string
	Lamports uint64
	Space    uint64
	Owner    common.HKey
}

// OnEvent is the payload of TagOnEvent (an EVM LOG).
type OnEvent struct {
	Address common.EAddr
	Topics  []common.Hash256
	Data    []byte
}

// DecodeTag reads the first byte of a host instruction.
func DecodeTag(data []byte) (Tag, []byte, error) {
	if len(data) < 1 {
		return 0, nil, errors.Wrap(common.ErrInvalidAccountData, "instruction: empty payload")
	}
	return Tag(data[0]), data[1:], nil
}

// DecodeWrite parses the TagWrite payload: 3 bytes padding, offset(u32 LE),
// length(u64 LE), then `length` bytes.
func DecodeWrite(rest []byte) (Write, error) {
	if len(rest) < 3+4+8 {
		return Write{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: short Write payload")
	}
	rest = rest[3:]
	offset := binary.LittleEndian.Uint32(rest[0:4])
	length := binary.LittleEndian.Uint64(rest[4:12])
	rest = rest[12:]
	if uint64(len(rest)) < length {
		return Write{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: Write payload shorter than declared length")
	}
	return Write{Offset: offset, Length: length, Bytes: rest[:length]}, nil
}

// DecodeCreateAccount parses the TagCreateAccount payload: 3 bytes padding,
// lamports(u64 LE), space(u64 LE), ether(20B), nonce(1B).
func DecodeCreateAccount(rest []byte) (CreateAccount, error) {
	if len(rest) < 3+8+8+common.EAddrLength+1 {
		return CreateAccount{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: short CreateAccount payload")
	}
	rest = rest[3:]
	var ca CreateAccount
	ca.Lamports = binary.LittleEndian.Uint64(rest[0:8])
	ca.Space = binary.LittleEndian.Uint64(rest[8:16])
	ca.Ether = common.BytesToEAddr(rest[16 : 16+common.EAddrLength])
	ca.Nonce = rest[16+common.EAddrLength]
	return ca, nil
}

// DecodeCreateAccountWithSeed parses the TagCreateAccountWithSeed payload:
// 3 bytes padding, base(32B), seed_len(u32 LE), 4 bytes padding, seed,
// lamports(u64 LE), space(u64 LE), owner(32B).
func DecodeCreateAccountWithSeed(rest []byte) (CreateAccountWithSeed, error) {
	if len(rest) < 3+common.HKeyLength+4+4 {
		return CreateAccountWithSeed{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: short CreateAccountWithSeed header")
	}
	rest = rest[3:]
	var out CreateAccountWithSeed
	copy(out.Base[:], rest[:common.HKeyLength])
	rest = rest[common.HKeyLength:]
	seedLen := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4+4:] // seed_len(u32) + 4 bytes padding
	if uint64(len(rest)) < uint64(seedLen)+8+8+common.HKeyLength {
		return CreateAccountWithSeed{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: short CreateAccountWithSeed body")
	}
	out.Seed = string(rest[:seedLen])
	rest = rest[seedLen:]
	out.Lamports = binary.LittleEndian.Uint64(rest[0:8])
	out.Space = binary.LittleEndian.Uint64(rest[8:16])
	copy(out.Owner[:], rest[16:16+common.HKeyLength])
	return out, nil
}

// DecodeOnEvent parses the TagOnEvent payload: address(20B),
// topics_count(u64 LE), topics[32B]*, data.
func DecodeOnEvent(rest []byte) (OnEvent, error) {
	if len(rest) < common.EAddrLength+8 {
		return OnEvent{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: short OnEvent header")
	}
	var ev OnEvent
	ev.Address = common.BytesToEAddr(rest[:common.EAddrLength])
	rest = rest[common.EAddrLength:]
	count := binary.LittleEndian.Uint64(rest[0:8])
	rest = rest[8:]
	ev.Topics = make([]common.Hash256, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(rest) < 32 {
			return OnEvent{}, errors.Wrap(common.ErrInvalidAccountData, "instruction: short OnEvent topics")
		}
		ev.Topics = append(ev.Topics, common.BytesToHash256(rest[:32]))
		rest = rest[32:]
	}
	ev.Data = rest
	return ev, nil
}

// EncodeOnEvent is the inverse of DecodeOnEvent: it builds the OnEvent host
// instruction payload for an EVM LOG.
func EncodeOnEvent(ev OnEvent) []byte {
	out := make([]byte, 0, common.EAddrLength+8+len(ev.Topics)*32+len(ev.Data))
	out = append(out, ev.Address.Bytes()...)
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(ev.Topics)))
	out = append(out, countBuf[:]...)
	for _, t := range ev.Topics {
		out = append(out, t.Bytes()...)
	}
	out = append(out, ev.Data...)
	return out
}
