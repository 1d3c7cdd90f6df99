package machine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandora-chain/evm-loader/common"
	vm "github.com/pandora-chain/evm-loader/core/vm"
	"github.com/pandora-chain/evm-loader/handler"
	"github.com/pandora-chain/evm-loader/state"
)

func TestSaveRestoreRoundTripSimpleAdd(t *testing.T) {
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}
	acc := deployedAccount(t, common.EAddr{2}, code, 0)
	m, h := newMachine(t, acc)
	m.CallBegin(common.EAddr{1}, common.EAddr{2}, nil, big.NewInt(0))

	exit, err := m.ExecuteNSteps(2)
	require.NoError(t, err)
	require.Nil(t, exit)

	buf, err := m.SaveInto()
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	resumed, err := Restore(buf, h)
	require.NoError(t, err)

	exit, err = resumed.Execute()
	require.NoError(t, err)
	assert.Equal(t, vm.ExitSucceed, exit.Kind)
	assert.Equal(t, byte(3), exit.ReturnData[31])
}

func TestSaveRestorePreservesNestedFrameStack(t *testing.T) {
	callee := []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}
	calleeAcc := deployedAccount(t, common.EAddr{3}, callee, 0)
	caller := buildCallerBytecode(common.EAddr{3})
	callerAcc := deployedAccount(t, common.EAddr{2}, caller, 0)

	b := state.New(common.EAddr{1}, common.HKey{1}, nil)
	b.AddAccount(callerAcc)
	b.AddAccount(calleeAcc)
	h := handler.New(b, handler.Config{})
	m := New(h)
	m.CallBegin(common.EAddr{1}, common.EAddr{2}, nil, big.NewInt(0))

	// Step through PUSH1*5, PUSH20, PUSH1 (gas) and CALL, so the CALL trap has
	// pushed the callee frame: the persisted state holds two frames and two
	// sub-states.
	exit, err := m.ExecuteNSteps(8)
	require.NoError(t, err)
	require.Nil(t, exit)
	require.False(t, m.Exited())

	buf, err := m.SaveInto()
	require.NoError(t, err)

	h2 := handler.New(b, handler.Config{})
	resumed, err := Restore(buf, h2)
	require.NoError(t, err)

	exit, err = resumed.Execute()
	require.NoError(t, err)
	require.Equal(t, vm.ExitSucceed, exit.Kind)
	require.Len(t, exit.ReturnData, 32)
	assert.Equal(t, byte(0x2a), exit.ReturnData[31])
}

func TestSaveIntoRejectsExitedMachine(t *testing.T) {
	code := []byte{0x00} // STOP
	acc := deployedAccount(t, common.EAddr{2}, code, 0)
	m, _ := newMachine(t, acc)
	m.CallBegin(common.EAddr{1}, common.EAddr{2}, nil, big.NewInt(0))

	_, err := m.Execute()
	require.NoError(t, err)
	require.True(t, m.Exited())

	_, err = m.SaveInto()
	assert.Error(t, err)
}
