package emulator

import (
	"github.com/mr-tron/base58"

	"github.com/pandora-chain/evm-loader/common"
)

func base58HKey(k common.HKey) string {
	return base58.Encode(k[:])
}

func hkeyFromBase58(s string) (common.HKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return common.HKey{}, err
	}
	return common.BytesToHKey(b), nil
}
