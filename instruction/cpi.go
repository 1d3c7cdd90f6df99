package instruction

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
)

// CPIAccount is one decoded account slot of the CPI escape wire format.
type CPIAccount struct {
	NeedsTranslate bool
	// Key holds the raw account identity bytes: 20 bytes (an E-addr, if
	// NeedsTranslate) or 32 bytes (an H-key), right-aligned into a 32-byte
	// array for uniform storage.
	Key        [32]byte
	IsSigner   bool
	IsWritable bool
}

// DecodeCPICall parses a CALL to the syscall sentinel's input bytes:
//
//	program_id_len : u16 BE
//	program_id     : program_id_len bytes
//	accounts_len   : u16 BE
//	  for each account:
//	    needs_translate : u8 (0/1)
//	    key             : 32 bytes if needs_translate=0 else 20 bytes (E-addr)
//	    is_signer       : u8
//	    is_writable     : u8
//	data_len       : u16 BE
//	data           : data_len bytes
func DecodeCPICall(input []byte) (programID common.HKey, accounts []CPIAccount, data []byte, err error) {
	rest := input
	programID, rest, err = readU16PrefixedKey(rest)
	if err != nil {
		return common.HKey{}, nil, nil, err
	}

	if len(rest) < 2 {
		return common.HKey{}, nil, nil, errors.Wrap(common.ErrInvalidRange, "cpi: missing accounts_len")
	}
	accountsLen := binary.BigEndian.Uint16(rest[0:2])
	rest = rest[2:]

	accounts = make([]CPIAccount, 0, accountsLen)
	for i := uint16(0); i < accountsLen; i++ {
		if len(rest) < 1 {
			return common.HKey{}, nil, nil, errors.Wrap(common.ErrInvalidRange, "cpi: truncated account entry")
		}
		needsTranslate := rest[0] != 0
		rest = rest[1:]

		keyLen := 32
		if needsTranslate {
			keyLen = common.EAddrLength
		}
		if len(rest) < keyLen+2 {
			return common.HKey{}, nil, nil, errors.Wrap(common.ErrInvalidRange, "cpi: truncated account key")
		}
		var key [32]byte
		copy(key[32-keyLen:], rest[:keyLen])
		rest = rest[keyLen:]

		isSigner := rest[0] != 0
		isWritable := rest[1] != 0
		rest = rest[2:]

		accounts = append(accounts, CPIAccount{
			NeedsTranslate: needsTranslate,
			Key:            key,
			IsSigner:       isSigner,
			IsWritable:     isWritable,
		})
	}

	if len(rest) < 2 {
		return common.HKey{}, nil, nil, errors.Wrap(common.ErrInvalidRange, "cpi: missing data_len")
	}
	dataLen := binary.BigEndian.Uint16(rest[0:2])
	rest = rest[2:]
	if uint16(len(rest)) < dataLen {
		return common.HKey{}, nil, nil, errors.Wrap(common.ErrInvalidRange, "cpi: truncated data")
	}
	data = rest[:dataLen]
	return programID, accounts, data, nil
}

func readU16PrefixedKey(rest []byte) (common.HKey, []byte, error) {
	if len(rest) < 2 {
		return common.HKey{}, nil, errors.Wrap(common.ErrInvalidRange, "cpi: missing program_id_len")
	}
	l := binary.BigEndian.Uint16(rest[0:2])
	rest = rest[2:]
	if uint16(len(rest)) < l {
		return common.HKey{}, nil, errors.Wrap(common.ErrInvalidRange, "cpi: truncated program_id")
	}
	return common.BytesToHKey(rest[:l]), rest[l:], nil
}

// EncodeCPICall is the inverse of DecodeCPICall, used by tests and by any
// caller constructing a syscall-sentinel CALL programmatically.
func EncodeCPICall(programID common.HKey, accounts []CPIAccount, data []byte) []byte {
	var out []byte
	var u16 [2]byte

	binary.BigEndian.PutUint16(u16[:], uint16(len(programID)))
	out = append(out, u16[:]...)
	out = append(out, programID[:]...)

	binary.BigEndian.PutUint16(u16[:], uint16(len(accounts)))
	out = append(out, u16[:]...)
	for _, a := range accounts {
		if a.NeedsTranslate {
			out = append(out, 1)
			out = append(out, a.Key[32-common.EAddrLength:]...)
		} else {
			out = append(out, 0)
			out = append(out, a.Key[:]...)
		}
		out = append(out, boolByte(a.IsSigner), boolByte(a.IsWritable))
	}

	binary.BigEndian.PutUint16(u16[:], uint16(len(data)))
	out = append(out, u16[:]...)
	out = append(out, data...)
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
