package common

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// DeriveSeededKey reproduces the host SDK's "create-with-seed" derivation:
// H-key = sha256(base || seed || owner). Other accounts' H-keys are derived
// this way, seeded with the bs58-encoded E-addr. The caller is expected to
// pass the bs58 string of the E-addr as seed — see SeedForEAddr.
//
// Unlike DeriveContractKey, this derivation has no curve-validity
// requirement, so it is fully and exactly implementable here (no host SDK
// collaborator needed).
func DeriveSeededKey(base HKey, seed string, owner HKey) HKey {
	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte(seed))
	h.Write(owner[:])
	return BytesToHKey(h.Sum(nil))
}

// SeedForEAddr renders an E-addr as a bs58 string, the seed material
// DeriveSeededKey expects.
func SeedForEAddr(addr EAddr) string {
	return base58.Encode(addr[:])
}

// DeriveContractKey is a deterministic stand-in for the host SDK's
// program-derived-address (PDA) construction: given a program id, a
// contract's E-addr as seed, and the bump nonce already chosen and stored in
// AccountLayout.nonce, it reproduces the same 32-byte key
// every time.
//
// Real PDA derivation additionally requires proving the resulting point is
// off the ed25519 curve, which is the host SDK's job. This function assumes `bump` was
// already validated by that collaborator at account-creation time; it only
// needs to be reproducible, not to perform the off-curve search itself.
func DeriveContractKey(programID HKey, eaddr EAddr, bump byte) HKey {
	h := sha256.New()
	h.Write(eaddr[:])
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))
	return BytesToHKey(h.Sum(nil))
}
