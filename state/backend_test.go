package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandora-chain/evm-loader/common"
	"github.com/pandora-chain/evm-loader/instruction"
)

func TestBackendExistsAndBasic(t *testing.T) {
	b := New(common.EAddr{9}, common.HKey{1}, nil)
	acc, buf := newTestAccount(t, common.EAddr{1}, 777, 4096)
	b.AddAccount(acc)

	assert.True(t, b.Exists(common.EAddr{1}))
	assert.False(t, b.Exists(common.EAddr{2}))

	balance, nonce := b.Basic(common.EAddr{1})
	assert.Equal(t, big.NewInt(777), balance)
	assert.Equal(t, uint64(0), nonce)
	_ = buf
}

func TestBackendApplyUnknownAddress(t *testing.T) {
	b := New(common.EAddr{9}, common.HKey{1}, nil)
	err := b.Apply([]Effect{{Addr: common.EAddr{5}, Modify: true, NewBalance: big.NewInt(1)}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotEnoughAccountKeys)
}

func TestBackendApplyWritesThrough(t *testing.T) {
	b := New(common.EAddr{9}, common.HKey{1}, nil)
	acc, buf := newTestAccount(t, common.EAddr{1}, 0, 4096)
	b.AddAccount(acc)

	err := b.Apply([]Effect{{
		Addr:       common.EAddr{1},
		Modify:     true,
		NewNonce:   3,
		NewBalance: big.NewInt(1000),
		NewCode:    []byte{0x00},
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), buf.Lamports())
	assert.Equal(t, uint64(3), acc.Nonce())
}

type stubCPI struct {
	called     bool
	programID  common.HKey
	accounts   []CPIAccountMeta
	data       []byte
	failWith   error
}

func (s *stubCPI) Invoke(programID common.HKey, accounts []CPIAccountMeta, data []byte) error {
	s.called = true
	s.programID = programID
	s.accounts = accounts
	s.data = data
	return s.failWith
}

func TestCallInnerSyscallEscape(t *testing.T) {
	cpi := &stubCPI{}
	b := New(common.EAddr{9}, common.HKey{1}, cpi)

	programID := common.HKey{0xAA}
	input := instruction.EncodeCPICall(programID, []instruction.CPIAccount{
		{NeedsTranslate: false, Key: [32]byte{0xBB}, IsWritable: true},
	}, []byte{0x01, 0x02})

	result, handled := b.CallInner(SyscallSentinel, input)
	require.True(t, handled)
	require.NoError(t, result.Err)
	assert.True(t, result.Succeeded)
	assert.True(t, cpi.called)
	assert.Equal(t, programID, cpi.programID)
}

func TestCallInnerUnknownAddressNotTranslated(t *testing.T) {
	cpi := &stubCPI{}
	b := New(common.EAddr{9}, common.HKey{1}, cpi)

	programID := common.HKey{0xAA}
	input := instruction.EncodeCPICall(programID, []instruction.CPIAccount{
		{NeedsTranslate: true, Key: [32]byte{0xCC}, IsWritable: true},
	}, nil)

	result, handled := b.CallInner(SyscallSentinel, input)
	require.True(t, handled)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, common.ErrInvalidRange)
	assert.False(t, cpi.called)
}

func TestCallInnerIgnoresOtherAddresses(t *testing.T) {
	b := New(common.EAddr{9}, common.HKey{1}, nil)
	_, handled := b.CallInner(common.EAddr{1, 2, 3}, nil)
	assert.False(t, handled)
}

func TestRegisterCreate2Alias(t *testing.T) {
	b := New(common.EAddr{9}, common.HKey{1}, nil)
	acc, _ := newTestAccount(t, common.EAddr{5}, 0, 4096)
	b.AddAccount(acc)
	b.RegisterCreate2Alias(common.EAddr{6}, common.EAddr{5})

	assert.True(t, b.Exists(common.EAddr{6}))
	got, ok := b.Account(common.EAddr{6})
	require.True(t, ok)
	assert.Equal(t, common.EAddr{5}, got.Ether())
}
