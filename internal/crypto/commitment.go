// Package crypto provides commit-reveal hashing for the settlement protocol
// and HMAC authentication plus secret management for the chain gateway.
package crypto

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ResolutionCommitment computes the keccak256 commitment a proposer must
// publish before revealing an outcome. Binding the caller into the preimage
// stops a front-runner from replaying someone else's reveal.
func ResolutionCommitment(
	marketID string,
	outcome uint8,
	evidenceURI string,
	evidenceHash common.Hash,
	salt [32]byte,
	caller common.Address,
) common.Hash {
	h := ethcrypto.Keccak256(
		[]byte(marketID),
		[]byte{outcome},
		[]byte(evidenceURI),
		evidenceHash.Bytes(),
		salt[:],
		caller.Bytes(),
	)
	return common.BytesToHash(h)
}

// VoteCommitment computes the keccak256 commitment for a delegate's hidden
// vote on a market's resolution.
func VoteCommitment(
	marketID string,
	support bool,
	salt [32]byte,
	delegate common.Address,
) common.Hash {
	var b byte
	if support {
		b = 1
	}
	h := ethcrypto.Keccak256(
		[]byte(marketID),
		[]byte{b},
		salt[:],
		delegate.Bytes(),
	)
	return common.BytesToHash(h)
}

// EvidenceDigest hashes an inline evidence document so it can be matched
// against the evidence hash named in a proposal and used as its archive key.
func EvidenceDigest(doc []byte) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(doc))
}

// Salt32 packs an arbitrary byte slice into the fixed 32-byte salt used by
// the commitment functions, left-truncating or zero-padding as needed.
func Salt32(b []byte) [32]byte {
	var s [32]byte
	copy(s[:], b)
	return s
}

// Uint64Salt derives a salt from a numeric nonce; handy in tests.
func Uint64Salt(n uint64) [32]byte {
	var s [32]byte
	binary.BigEndian.PutUint64(s[24:], n)
	return s
}
