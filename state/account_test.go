package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/hamt"
	"github.com/pandora-chain/evm-loader/layout"
)

func newTestAccount(t *testing.T, eaddr common.EAddr, lamports uint64, size int) (*SolidityAccount, *LiveBuffer) {
	t.Helper()
	buf := make([]byte, size)
	h := layout.Header{Ether: eaddr}
	require.NoError(t, layout.Pack(h, buf))
	l := lamports
	lb := NewLiveBuffer(buf, &l)
	acc, err := Open(lb)
	require.NoError(t, err)
	return acc, lb
}

func TestUninitializedAccountCodeAndStorage(t *testing.T) {
	acc, _ := newTestAccount(t, common.EAddr{1}, 100, 4096)
	assert.Equal(t, uint32(0), acc.CodeSize())
	assert.Equal(t, common.EmptyCodeHash, acc.CodeHash())

	err := acc.Storage(func(h *hamt.Hamt) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUninitializedAccount)
}

func TestUpdateWritesCodeOnceThenStorage(t *testing.T) {
	acc, buf := newTestAccount(t, common.EAddr{2}, 0, 4096)

	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01} // PUSH1 1 PUSH1 2 ADD
	err := acc.Update(1, big.NewInt(500), code, nil, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(code)), acc.CodeSize())
	assert.Equal(t, uint64(500), buf.Lamports())
	assert.Equal(t, uint64(1), acc.Nonce())

	// second attempt to set code must fail
	err = acc.Update(2, big.NewInt(500), []byte{0x00}, nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAccountAlreadyInitialized)

	key := common.Hash256{}
	key[31] = 1
	val := common.Hash256{}
	val[31] = 42
	require.NoError(t, acc.Update(2, big.NewInt(500), nil, []StorageDiff{{Key: key, Value: val}}, false))
	assert.Equal(t, val, acc.GetState(key))
}
