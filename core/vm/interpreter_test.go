package vm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandora-chain/evm-loader/common"
)

// fakeHost is a minimal in-memory Host for exercising the interpreter in
// isolation, without a real state.Backend.
type fakeHost struct {
	balances map[common.EAddr]*big.Int
	storage  map[common.EAddr]map[common.Hash256]common.Hash256
	logs     []loggedEvent
	deleted  map[common.EAddr]bool
}

type loggedEvent struct {
	addr   common.EAddr
	topics []common.Hash256
	data   []byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		balances: make(map[common.EAddr]*big.Int),
		storage:  make(map[common.EAddr]map[common.Hash256]common.Hash256),
		deleted:  make(map[common.EAddr]bool),
	}
}

func (h *fakeHost) Balance(addr common.EAddr) *big.Int {
	if b, ok := h.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}
func (h *fakeHost) CodeSize(common.EAddr) int           { return 0 }
func (h *fakeHost) CodeHash(common.EAddr) common.Hash256 { return common.EmptyCodeHash }
func (h *fakeHost) CodeAt(common.EAddr) []byte           { return nil }
func (h *fakeHost) Exists(common.EAddr) bool             { return true }

func (h *fakeHost) GetStorage(addr common.EAddr, key common.Hash256) common.Hash256 {
	m := h.storage[addr]
	if m == nil {
		return common.Hash256{}
	}
	return m[key]
}
func (h *fakeHost) SetStorage(addr common.EAddr, key, value common.Hash256) error {
	if h.storage[addr] == nil {
		h.storage[addr] = make(map[common.Hash256]common.Hash256)
	}
	h.storage[addr][key] = value
	return nil
}

func (h *fakeHost) BlockNumber() uint64          { return 42 }
func (h *fakeHost) BlockTimestamp() uint64       { return 1000 }
func (h *fakeHost) ChainID() uint64              { return 0 }
func (h *fakeHost) BlockDifficulty() uint64      { return 0 }
func (h *fakeHost) BlockGasLimit() uint64        { return 0 }
func (h *fakeHost) BlockCoinbase() common.EAddr  { return common.EAddr{} }
func (h *fakeHost) Origin() common.EAddr         { return common.EAddr{1} }

func (h *fakeHost) Log(addr common.EAddr, topics []common.Hash256, data []byte) {
	h.logs = append(h.logs, loggedEvent{addr, topics, data})
}

func (h *fakeHost) Call(Context, common.EAddr, []byte, *big.Int, uint64, uint64, bool) (ExitReason, *Trap) {
	return ExitReason{}, &Trap{Kind: TrapCall}
}
func (h *fakeHost) Create(Context, CreateScheme, *big.Int, []byte, common.Hash256) (ExitReason, *Trap) {
	return ExitReason{}, &Trap{Kind: TrapCreate}
}
func (h *fakeHost) MarkDelete(addr, beneficiary common.EAddr) error {
	bal := h.Balance(addr)
	h.balances[beneficiary] = new(big.Int).Add(h.Balance(beneficiary), bal)
	h.balances[addr] = new(big.Int)
	h.deleted[addr] = true
	return nil
}

func runToExit(t *testing.T, code []byte, input []byte) ExitReason {
	t.Helper()
	ip := NewInterpreter()
	host := newFakeHost()
	f := NewFrame(code, input, Context{Address: common.EAddr{2}, Caller: common.EAddr{1}, ApparentValue: big.NewInt(0)}, false, ReasonRoot)
	for i := 0; i < 10000; i++ {
		out := ip.Step(f, host)
		if out.Exit != nil {
			return *out.Exit
		}
		require.Nil(t, out.Trap, "unexpected trap at pc %d", f.PC)
	}
	t.Fatal("did not terminate")
	return ExitReason{}
}

func TestAddReturn(t *testing.T) {
	// PUSH1 1 PUSH1 2 ADD PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	code := []byte{
		0x60, 0x01,
		0x60, 0x02,
		0x01,
		0x60, 0x00,
		0x52,
		0x60, 0x20,
		0x60, 0x00,
		0xf3,
	}
	exit := runToExit(t, code, nil)
	assert.Equal(t, ExitSucceed, exit.Kind)
	require.Len(t, exit.ReturnData, 32)
	assert.Equal(t, byte(3), exit.ReturnData[31])
}

func TestRevertCarriesData(t *testing.T) {
	// PUSH1 0x2a PUSH1 0 MSTORE PUSH1 32 PUSH1 0 REVERT
	code := []byte{
		0x60, 0x2a,
		0x60, 0x00,
		0x52,
		0x60, 0x20,
		0x60, 0x00,
		0xfd,
	}
	exit := runToExit(t, code, nil)
	assert.Equal(t, ExitRevert, exit.Kind)
	assert.Equal(t, byte(0x2a), exit.ReturnData[31])
}

func TestJumpiSkipsWhenZero(t *testing.T) {
	// PUSH1 0 PUSH1 6 JUMPI PUSH1 1 PUSH1 0 MSTORE JUMPDEST PUSH1 32 PUSH1 0 RETURN
	code := []byte{
		0x60, 0x00,
		0x60, 0x06,
		0x57,
		0x60, 0x01,
		0x60, 0x00,
		0x52,
		0x5b,
		0x60, 0x20,
		0x60, 0x00,
		0xf3,
	}
	exit := runToExit(t, code, nil)
	assert.Equal(t, ExitSucceed, exit.Kind)
	assert.Equal(t, byte(1), exit.ReturnData[31])
}

func TestInvalidJumpDestIsError(t *testing.T) {
	// PUSH1 5 JUMP (byte 5 is not a JUMPDEST)
	code := []byte{0x60, 0x05, 0x56, 0x00, 0x00, 0x00}
	exit := runToExit(t, code, nil)
	assert.Equal(t, ExitError, exit.Kind)
	assert.ErrorIs(t, exit.Err, common.ErrInvalidRange)
}

func TestSstoreSloadRoundTrip(t *testing.T) {
	// PUSH1 7 PUSH1 1 SSTORE PUSH1 1 SLOAD PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN
	code := []byte{
		0x60, 0x07,
		0x60, 0x01,
		0x55,
		0x60, 0x01,
		0x54,
		0x60, 0x00,
		0x52,
		0x60, 0x20,
		0x60, 0x00,
		0xf3,
	}
	exit := runToExit(t, code, nil)
	assert.Equal(t, ExitSucceed, exit.Kind)
	assert.Equal(t, byte(7), exit.ReturnData[31])
}

func TestSelfdestructTransfersBalance(t *testing.T) {
	host := newFakeHost()
	contract := common.EAddr{2}
	beneficiary := common.EAddr{9}
	host.balances[contract] = big.NewInt(100)
	host.balances[beneficiary] = big.NewInt(10)

	// PUSH20 <beneficiary, placed in the word's low 20 bytes> SELFDESTRUCT
	code := make([]byte, 0, 22)
	code = append(code, 0x73) // PUSH20
	code = append(code, beneficiary[:]...)
	code = append(code, 0xff) // SELFDESTRUCT

	ip := NewInterpreter()
	f := NewFrame(code, nil, Context{Address: contract, Caller: common.EAddr{1}, ApparentValue: big.NewInt(0)}, false, ReasonRoot)
	out := ip.Step(f, host)
	require.NotNil(t, out.Exit)
	assert.Equal(t, ExitSucceed, out.Exit.Kind)
	assert.Equal(t, big.NewInt(0), host.Balance(contract))
	assert.Equal(t, big.NewInt(110), host.Balance(beneficiary))
	assert.True(t, host.deleted[contract])
}

func TestLogRecordsTopicsAndData(t *testing.T) {
	host := newFakeHost()
	// PUSH1 1 PUSH1 0 MSTORE PUSH1 5 PUSH1 32 PUSH1 0 LOG1 would need a topic too;
	// keep it simple: LOG0 with no topics.
	code := []byte{
		0x60, 0x2a, // PUSH1 0x2a
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE
		0x60, 0x20, // PUSH1 32 (size)
		0x60, 0x00, // PUSH1 0 (offset)
		0xa0, // LOG0
		0x00, // STOP
	}
	ip := NewInterpreter()
	f := NewFrame(code, nil, Context{Address: common.EAddr{2}, Caller: common.EAddr{1}, ApparentValue: big.NewInt(0)}, false, ReasonRoot)
	for i := 0; i < 100; i++ {
		out := ip.Step(f, host)
		if out.Exit != nil {
			break
		}
	}
	require.Len(t, host.logs, 1)
	assert.Empty(t, host.logs[0].topics)
	assert.Equal(t, byte(0x2a), host.logs[0].data[31])
}
