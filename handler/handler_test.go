package handler

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandora-chain/evm-loader/common"
	vm "github.com/pandora-chain/evm-loader/core/vm"
	"github.com/pandora-chain/evm-loader/layout"
	"github.com/pandora-chain/evm-loader/state"
)

func newAccount(t *testing.T, eaddr common.EAddr, lamports uint64) (*state.SolidityAccount, *state.LiveBuffer) {
	t.Helper()
	buf := make([]byte, 4096)
	h := layout.Header{Ether: eaddr}
	require.NoError(t, layout.Pack(h, buf))
	l := lamports
	lb := state.NewLiveBuffer(buf, &l)
	acc, err := state.Open(lb)
	require.NoError(t, err)
	return acc, lb
}

func newTestHandler(t *testing.T, accounts ...*state.SolidityAccount) *Handler {
	t.Helper()
	b := state.New(common.EAddr{1}, common.HKey{1}, nil)
	for _, a := range accounts {
		b.AddAccount(a)
	}
	return New(b, Config{EmptyConsideredExists: false})
}

func TestBalanceFallsThroughToBackend(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 500)
	h := newTestHandler(t, acc)
	assert.Equal(t, big.NewInt(500), h.Balance(common.EAddr{2}))
}

func TestSetStorageIsStagedUntilCommit(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 0)
	h := newTestHandler(t, acc)

	key := common.Hash256{31: 1}
	val := common.Hash256{31: 9}
	require.NoError(t, h.SetStorage(common.EAddr{2}, key, val))
	assert.Equal(t, val, h.GetStorage(common.EAddr{2}, key))
	assert.Equal(t, common.Hash256{}, h.OriginalStorage(common.EAddr{2}, key))

	effects, _ := h.Effects()
	require.Len(t, effects, 1)
	assert.Equal(t, common.EAddr{2}, effects[0].Addr)
	assert.Equal(t, []state.StorageDiff{{Key: key, Value: val}}, effects[0].Diffs)
}

func TestCommitMergesChildIntoParent(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 100)
	h := newTestHandler(t, acc)

	h.Enter()
	require.NoError(t, h.SetStorage(common.EAddr{2}, common.Hash256{31: 1}, common.Hash256{31: 7}))
	h.Commit()

	assert.Equal(t, common.Hash256{31: 7}, h.GetStorage(common.EAddr{2}, common.Hash256{31: 1}))
}

func TestRevertDiscardsChildEffects(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 100)
	h := newTestHandler(t, acc)

	h.Enter()
	require.NoError(t, h.SetStorage(common.EAddr{2}, common.Hash256{31: 1}, common.Hash256{31: 7}))
	h.Revert()

	assert.Equal(t, common.Hash256{}, h.GetStorage(common.EAddr{2}, common.Hash256{31: 1}))
}

func TestMarkDeleteTransfersBalance(t *testing.T) {
	contract, _ := newAccount(t, common.EAddr{2}, 100)
	beneficiary, _ := newAccount(t, common.EAddr{3}, 10)
	h := newTestHandler(t, contract, beneficiary)

	require.NoError(t, h.MarkDelete(common.EAddr{2}, common.EAddr{3}))
	assert.Equal(t, big.NewInt(0), h.Balance(common.EAddr{2}))
	assert.Equal(t, big.NewInt(110), h.Balance(common.EAddr{3}))
	assert.True(t, h.Deleted(common.EAddr{2}))
	assert.False(t, h.Exists(common.EAddr{2}))
}

func TestCreateDepthLimitReturnsCallTooDeep(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 0)
	h := newTestHandler(t, acc)
	for i := 0; i < MaxCallDepth; i++ {
		h.Enter()
	}
	exit, trap := h.Create(vm.Context{Address: common.EAddr{2}, ApparentValue: big.NewInt(0)}, vm.SchemeLegacy, big.NewInt(0), nil, common.Hash256{})
	assert.Nil(t, trap)
	assert.Equal(t, vm.ExitError, exit.Kind)
	assert.ErrorIs(t, exit.Err, common.ErrCallTooDeep)
}

func TestCreate2DeterministicAddress(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 0)
	h1 := newTestHandler(t, acc)
	h2 := newTestHandler(t, acc)

	code := []byte{0x60, 0x00}
	salt := common.Hash256{31: 5}
	ctx := vm.Context{Address: common.EAddr{2}, ApparentValue: big.NewInt(0)}

	_, trap1 := h1.Create(ctx, vm.SchemeCreate2, big.NewInt(0), code, salt)
	_, trap2 := h2.Create(ctx, vm.SchemeCreate2, big.NewInt(0), code, salt)
	require.NotNil(t, trap1)
	require.NotNil(t, trap2)
	assert.Equal(t, trap1.NewAddr, trap2.NewAddr)
}

func TestCreateCollisionDetected(t *testing.T) {
	acc, _ := newAccount(t, common.EAddr{2}, 0)
	h := newTestHandler(t, acc)

	code := []byte{0x60, 0x00}
	salt := common.Hash256{31: 5}
	ctx := vm.Context{Address: common.EAddr{2}, ApparentValue: big.NewInt(0)}

	_, trap := h.Create(ctx, vm.SchemeCreate2, big.NewInt(0), code, salt)
	require.NotNil(t, trap)
	h.SetCode(trap.NewAddr, []byte{0x01})

	exit, trap2 := h.Create(ctx, vm.SchemeCreate2, big.NewInt(0), code, salt)
	assert.Nil(t, trap2)
	assert.Equal(t, vm.ExitError, exit.Kind)
	assert.ErrorIs(t, exit.Err, common.ErrCreateCollision)
}
