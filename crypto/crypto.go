// Package crypto wraps the cryptographic primitives spec §4.4/§6 name for
// the Crypto effect family: BLAKE3 content hashing, Ed25519 signing, and
// threshold (FROST-style) signature aggregation. Grounded on the teacher's
// crypto/keys.go key-management shape, adapted from secp256k1/bech32
// addresses to the Ed25519 authority/device keys spec §6 specifies.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sort"

	"github.com/hxrts/aura/internal/ids"
	"lukechampine.com/blake3"
)

// Blake3 returns the 32-byte BLAKE3 hash of b (spec §3 Hash32, §6 Crypto
// effect "blake3(bytes) -> [u8;32]").
func Blake3(b []byte) ids.Hash32 {
	sum := blake3.Sum256(b)
	h, _ := ids.Hash32FromBytes(sum[:])
	return h
}

// MerkleRoot computes a BLAKE3 Merkle root over leaves in the order given.
// An empty input yields the hash of the empty string, matching the
// "empty journal reduces to the identity state" boundary (spec §8).
func MerkleRoot(leaves []ids.Hash32) ids.Hash32 {
	if len(leaves) == 0 {
		return Blake3(nil)
	}
	level := make([][]byte, len(leaves))
	for i, l := range leaves {
		level[i] = l.Bytes()
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, concatHash(level[i], level[i+1]))
			} else {
				next = append(next, concatHash(level[i], level[i]))
			}
		}
		level = next
	}
	h, _ := ids.Hash32FromBytes(level[0])
	return h
}

func concatHash(a, b []byte) []byte {
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	buf = append(buf, b...)
	sum := blake3.Sum256(buf)
	return sum[:]
}

// KeyPair is an Ed25519 authority/device key pair.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 key pair using the OS random
// source. Protocol code should prefer the Random effect's deterministic
// handler in Testing/Simulation mode; this helper exists for production
// bootstrap paths (first device enrollment, CLI key generation).
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate ed25519 key: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// Sign signs msg with the key pair's private key.
func (kp *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.Private, msg)
}

// Verify checks an Ed25519 signature against a public key.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// ThresholdGroup models a k-of-n FROST-style signer set for aggregate
// signature verification. Aura does not implement the interactive FROST
// nonce-commitment rounds at the crypto-primitive layer (those live in the
// ceremony runtime's signing state machine, see internal/ceremony); this
// type provides the aggregate-verification primitive the ratchet tree and
// guard chain consume: an AttestedOp's aggregate_signature verifies if a
// quorum of named signers each produced a valid individual signature over
// the same message (a simplified, quorum-checked analogue of BLS/FROST
// aggregation suitable for an Ed25519-only deployment).
type ThresholdGroup struct {
	Signers   []ed25519.PublicKey
	Threshold int
}

// AggregateSignature bundles the per-signer signatures backing one
// AttestedOp or ceremony commit.
type AggregateSignature struct {
	SignerBitmap []bool
	Signatures   [][]byte
}

// VerifyAggregate reports whether at least Threshold named signers produced
// a valid signature over msg, per the SignerBitmap.
func (g ThresholdGroup) VerifyAggregate(msg []byte, agg AggregateSignature) bool {
	if len(agg.SignerBitmap) != len(g.Signers) || len(agg.Signatures) != len(g.Signers) {
		return false
	}
	valid := 0
	for i, present := range agg.SignerBitmap {
		if !present {
			continue
		}
		if Verify(g.Signers[i], msg, agg.Signatures[i]) {
			valid++
		}
	}
	return valid >= g.Threshold
}

// SortSigners orders a signer list deterministically for canonical bitmap
// indexing, matching spec §9's "sort participants, assign indices
// positionally" resolution.
func SortSigners(signers []ed25519.PublicKey) {
	sort.Slice(signers, func(i, j int) bool {
		return string(signers[i]) < string(signers[j])
	})
}
