package machine

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	vm "github.com/pandora-chain/evm-loader/core/vm"
	"github.com/pandora-chain/evm-loader/handler"
	"github.com/pandora-chain/evm-loader/instruction"
)

// SaveInto serializes the full resumable state — frame stack and sub-state
// stack together — into the self-delimiting binary tuple a host persists
// across transactions when a call runs out of per-transaction steps.
// Returns an error if called after the root frame has already exited:
// there is nothing left to resume.
func (m *Machine) SaveInto() ([]byte, error) {
	if m.done != nil {
		return nil, errors.New("machine: cannot persist an already-exited machine")
	}
	snap := instruction.MachineSnapshot{
		Frames:    make([]instruction.FrameSnapshot, len(m.fr)),
		SubStates: m.h.Snapshot(),
	}
	for i, f := range m.fr {
		snap.Frames[i] = frameToSnapshot(f)
	}
	return instruction.EncodeMachine(snap), nil
}

// Restore rebuilds a Machine from a buffer written by SaveInto, wired to h
// (a fresh Handler over the Backend this call resumes against). h's own
// sub-state stack is replaced wholesale with the persisted one.
func Restore(buf []byte, h *handler.Handler) (*Machine, error) {
	snap, err := instruction.DecodeMachine(buf)
	if err != nil {
		return nil, errors.Wrap(err, "machine: restore")
	}
	if len(snap.Frames) == 0 {
		return nil, errors.New("machine: restore: empty frame stack")
	}
	h.RestoreStack(snap.SubStates)

	m := &Machine{h: h, ip: vm.NewInterpreter()}
	m.fr = make([]*vm.Frame, len(snap.Frames))
	for i, fs := range snap.Frames {
		m.fr[i] = frameFromSnapshot(fs)
	}
	return m, nil
}

func frameToSnapshot(f *vm.Frame) instruction.FrameSnapshot {
	words := f.Stack.Words()
	stack := make([][32]byte, len(words))
	for i := range words {
		stack[i] = words[i].Bytes32()
	}
	return instruction.FrameSnapshot{
		Code:          f.Code,
		Input:         f.Input,
		Memory:        f.Memory.Data(),
		Stack:         stack,
		PC:            f.PC,
		Address:       f.Ctx.Address,
		Caller:        f.Ctx.Caller,
		ApparentValue: f.Ctx.ApparentValue,
		Static:        f.Static,
		Reason:        instruction.FrameReason(f.Reason),
		CreateAddr:    f.CreateAddr,
		PendingOut:    f.PendingOut,
		PendingOutLen: f.PendingOutLen,
		ReturnData:    f.ReturnData,
	}
}

func frameFromSnapshot(fs instruction.FrameSnapshot) *vm.Frame {
	words := make([]uint256.Int, len(fs.Stack))
	for i, w := range fs.Stack {
		words[i].SetBytes32(w[:])
	}
	return &vm.Frame{
		Code:  fs.Code,
		Input: fs.Input,
		PC:    fs.PC,

		Stack:  vm.StackFromWords(words),
		Memory: vm.MemoryFromBytes(fs.Memory),

		Ctx:    vm.Context{Address: fs.Address, Caller: fs.Caller, ApparentValue: fs.ApparentValue},
		Static: fs.Static,

		Reason:        vm.Reason(fs.Reason),
		CreateAddr:    fs.CreateAddr,
		PendingOut:    fs.PendingOut,
		PendingOutLen: fs.PendingOutLen,

		ReturnData: fs.ReturnData,
		Gas:        1,
	}
}
