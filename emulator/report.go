package emulator

import (
	"encoding/hex"

	"github.com/pandora-chain/evm-loader/common"
	vm "github.com/pandora-chain/evm-loader/core/vm"
)

// AccountReport is one entry of Report.Accounts: an address the run touched,
// and whether the Fetcher could resolve it.
type AccountReport struct {
	Address common.EAddr `json:"address"`
	Missing bool         `json:"missing"`
}

// Report is the emulator's JSON output: every account the call touched, the
// raw EVM exit, and a process-style status a caller can branch on without
// inspecting ReturnData.
type Report struct {
	Accounts   []AccountReport `json:"accounts"`
	Result     string          `json:"result"` // hex-encoded ReturnData, "0x" if empty
	ExitStatus string          `json:"exit_status"`
}

// BuildReport assembles a Report from a finished Backend and the Machine's
// terminal ExitReason. Calling it before the machine has exited is a
// programmer error: pass the value returned by Machine.Execute.
func BuildReport(b *Backend, exit *vm.ExitReason) Report {
	touched := b.Touched()
	missing := make(map[common.EAddr]bool)
	for _, a := range b.Missing() {
		missing[a] = true
	}

	accounts := make([]AccountReport, len(touched))
	for i, a := range touched {
		accounts[i] = AccountReport{Address: a, Missing: missing[a]}
	}

	return Report{
		Accounts:   accounts,
		Result:     "0x" + hex.EncodeToString(exit.ReturnData),
		ExitStatus: exit.String(),
	}
}
