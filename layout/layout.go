// Package layout implements C1 AccountLayout: the fixed-offset header packed
// at the head of every host account's data blob.
//
//	offset  size  field
//	0       20    ether      (E-addr this host account represents, big-endian raw bytes)
//	20      1     nonce      (PDA bump)
//	21      8     trx_count  (EVM account nonce, little-endian)
//	29      32    signer     (H-key of the funder/owner)
//	61      4     code_size  (little-endian)
//
// Immediately after the header lies code_size bytes of EVM bytecode,
// followed by the HAMT byte arena (hamt package) occupying the rest of the
// account blob.
package layout

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
)

// HeaderSize is the fixed size in bytes of the packed AccountLayout header.
const HeaderSize = common.EAddrLength + 1 + 8 + common.HKeyLength + 4

const (
	offEther    = 0
	offNonce    = offEther + common.EAddrLength
	offTrxCount = offNonce + 1
	offSigner   = offTrxCount + 8
	offCodeSize = offSigner + common.HKeyLength
)

// Header is the parsed, in-memory form of the AccountLayout.
type Header struct {
	Ether    common.EAddr
	Nonce    byte
	TrxCount uint64
	Signer   common.HKey
	CodeSize uint32
}

// Unpack parses the fixed header at offset 0 of buf and returns it along
// with the remaining bytes (code followed by the HAMT arena). Fails with
// ErrInvalidAccountData if buf is shorter than HeaderSize.
func Unpack(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, errors.Wrapf(common.ErrInvalidAccountData, "account data is %d bytes, need at least %d", len(buf), HeaderSize)
	}
	var h Header
	copy(h.Ether[:], buf[offEther:offEther+common.EAddrLength])
	h.Nonce = buf[offNonce]
	h.TrxCount = binary.LittleEndian.Uint64(buf[offTrxCount : offTrxCount+8])
	copy(h.Signer[:], buf[offSigner:offSigner+common.HKeyLength])
	h.CodeSize = binary.LittleEndian.Uint32(buf[offCodeSize : offCodeSize+4])
	return h, buf[HeaderSize:], nil
}

// Pack writes h at offset 0 of buf. Fails with ErrAccountDataTooSmall if buf
// is shorter than HeaderSize.
func Pack(h Header, buf []byte) error {
	if len(buf) < HeaderSize {
		return errors.Wrapf(common.ErrAccountDataTooSmall, "destination is %d bytes, need at least %d", len(buf), HeaderSize)
	}
	copy(buf[offEther:offEther+common.EAddrLength], h.Ether[:])
	buf[offNonce] = h.Nonce
	binary.LittleEndian.PutUint64(buf[offTrxCount:offTrxCount+8], h.TrxCount)
	copy(buf[offSigner:offSigner+common.HKeyLength], h.Signer[:])
	binary.LittleEndian.PutUint32(buf[offCodeSize:offCodeSize+4], h.CodeSize)
	return nil
}

// CodeRange returns the [start,end) byte range of the code blob within an
// account buffer whose header has already been unpacked, relative to the
// full account buffer (i.e. including the header offset).
func CodeRange(h Header) (start, end int) {
	start = HeaderSize
	end = start + int(h.CodeSize)
	return
}

// ArenaStart returns the offset at which the HAMT byte arena begins within
// the full account buffer.
func ArenaStart(h Header) int {
	_, end := CodeRange(h)
	return end
}
