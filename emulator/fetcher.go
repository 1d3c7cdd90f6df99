// Package emulator implements C7: a dry-run Backend that answers reads by
// fetching accounts from a live host RPC endpoint on demand, tracks every
// address it had to touch or couldn't find, and renders a JSON report a
// caller uses to assemble the real account list for an on-chain retry.
package emulator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pandora-chain/evm-loader/common"
)

// AccountInfo is one account snapshot as returned by a Fetcher.
type AccountInfo struct {
	Exists   bool
	Lamports uint64
	Owner    common.HKey
	Data     []byte
}

// Fetcher is the out-of-process collaborator that resolves an E-addr to the
// live host account behind it. The host RPC node owns the E-addr-to-H-key
// PDA derivation (it already validates curve membership when accounts are
// created); the emulator only ever asks "what does this E-addr's account
// currently look like".
type Fetcher interface {
	FetchAccount(ctx context.Context, addr common.EAddr) (*AccountInfo, error)
}

// RPCFetcher is a Fetcher backed by a JSON-RPC endpoint exposing a
// getAccountInfoByEtherAddress method — the host-side bridge between
// Ethereum-style addressing and the Solana-shaped account model, in the
// same spirit as Solana's own getAccountInfo but keyed by E-addr instead of
// a base58 pubkey.
type RPCFetcher struct {
	endpoint  string
	programID common.HKey
	client    *http.Client
}

// NewRPCFetcher wraps endpoint, scoped to accounts owned by programID.
func NewRPCFetcher(endpoint string, programID common.HKey) *RPCFetcher {
	return &RPCFetcher{endpoint: endpoint, programID: programID, client: http.DefaultClient}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcAccountResult struct {
	Exists   bool     `json:"exists"`
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"` // [base64, "base64"], matching Solana's own getAccountInfo shape
}

type rpcResponse struct {
	Result *rpcAccountResult `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchAccount POSTs a getAccountInfoByEtherAddress request and decodes the
// result. A not-found account is reported as AccountInfo{Exists: false},
// not an error.
func (f *RPCFetcher) FetchAccount(ctx context.Context, addr common.EAddr) (*AccountInfo, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfoByEtherAddress",
		Params:  []interface{}{addr.String(), base58HKey(f.programID)},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "emulator: encode rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(err, "emulator: build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "emulator: rpc request failed")
	}
	defer resp.Body.Close()

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "emulator: decode rpc response")
	}
	if parsed.Error != nil {
		return nil, errors.Errorf("emulator: rpc error: %s", parsed.Error.Message)
	}
	if parsed.Result == nil || !parsed.Result.Exists {
		return &AccountInfo{Exists: false}, nil
	}

	owner, err := hkeyFromBase58(parsed.Result.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "emulator: decode owner key")
	}
	var data []byte
	if len(parsed.Result.Data) > 0 {
		data, err = base64.StdEncoding.DecodeString(parsed.Result.Data[0])
		if err != nil {
			return nil, errors.Wrap(err, "emulator: decode account data")
		}
	}
	return &AccountInfo{
		Exists:   true,
		Lamports: parsed.Result.Lamports,
		Owner:    owner,
		Data:     data,
	}, nil
}
