package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandora-chain/evm-loader/common"
)

func sampleHeader() Header {
	var h Header
	copy(h.Ether[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	h.Nonce = 255
	h.TrxCount = 42
	copy(h.Signer[:], bytesN(32, 0xAB))
	h.CodeSize = 754
	return h
}

func bytesN(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	h := sampleHeader()
	buf := make([]byte, HeaderSize+100)
	require.NoError(t, Pack(h, buf))

	got, rest, err := Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Len(t, rest, 100)
}

func TestUnpackTooSmall(t *testing.T) {
	_, _, err := Unpack(make([]byte, HeaderSize-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidAccountData)
}

func TestPackTooSmall(t *testing.T) {
	err := Pack(sampleHeader(), make([]byte, HeaderSize-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAccountDataTooSmall)
}

func TestCodeRangeAndArenaStart(t *testing.T) {
	h := sampleHeader()
	start, end := CodeRange(h)
	assert.Equal(t, HeaderSize, start)
	assert.Equal(t, HeaderSize+int(h.CodeSize), end)
	assert.Equal(t, end, ArenaStart(h))
}
