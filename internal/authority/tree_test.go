package authority

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	aecrypto "github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/ids"
)

func signedOp(t *testing.T, tree *RatchetTree, signers []ed25519.PrivateKey, op TreeOp) (aecrypto.ThresholdGroup, AttestedOp) {
	t.Helper()
	pre := tree.Commitment()
	msg := op.encode()

	var pubs []ed25519.PublicKey
	var sigs [][]byte
	bitmap := make([]bool, len(signers))
	for i, sk := range signers {
		pubs = append(pubs, sk.Public().(ed25519.PublicKey))
		sigs = append(sigs, ed25519.Sign(sk, msg))
		bitmap[i] = true
	}
	group := aecrypto.ThresholdGroup{Signers: pubs, Threshold: len(signers)}

	scratch := tree.Clone()
	require.NoError(t, scratch.apply(op))
	newCommit := scratch.Commitment()

	return group, AttestedOp{
		PreCommit: pre,
		Op:        op,
		NewCommit: newCommit,
		Aggregate: aecrypto.AggregateSignature{SignerBitmap: bitmap, Signatures: sigs},
	}
}

func TestApplyAttestedOpAddsDeviceAndAdvancesEpoch(t *testing.T) {
	tree := NewRatchetTree(1, 1)
	_, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	device := ids.DeviceId{1}
	op := AddLeaf(device, sk.Public().(ed25519.PublicKey), 0)
	group, attested := signedOp(t, tree, []ed25519.PrivateKey{sk}, op)

	newCommit, err := tree.ApplyAttestedOp(group, attested)
	require.NoError(t, err)
	require.Equal(t, tree.Commitment(), newCommit)
	require.Equal(t, uint64(1), tree.Epoch)
	require.Contains(t, tree.ActiveDevices(), device)
}

func TestApplyAttestedOpRejectsStalePreCommit(t *testing.T) {
	tree := NewRatchetTree(1, 1)
	_, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	op := AddLeaf(ids.DeviceId{1}, sk.Public().(ed25519.PublicKey), 0)
	group, attested := signedOp(t, tree, []ed25519.PrivateKey{sk}, op)

	// Mutate the tree out from under the attested op so its PreCommit is stale.
	require.NoError(t, tree.apply(ChangePolicy(0, Policy{Threshold: 2, Total: 2})))

	_, err = tree.ApplyAttestedOp(group, attested)
	require.Error(t, err)
	var mismatch interface{ PreStateMismatch() bool }
	require.ErrorAs(t, err, &mismatch)
}

func TestApplyAttestedOpRejectsBelowThresholdSignatures(t *testing.T) {
	tree := NewRatchetTree(2, 2)
	_, sk1, _ := ed25519.GenerateKey(nil)
	_, sk2, _ := ed25519.GenerateKey(nil)

	op := AddLeaf(ids.DeviceId{1}, sk1.Public().(ed25519.PublicKey), 0)
	group, attested := signedOp(t, tree, []ed25519.PrivateKey{sk1, sk2}, op)
	group.Threshold = 2

	// Drop the second signature so only one of two required signers remains.
	attested.Aggregate.SignerBitmap[1] = false

	_, err := tree.ApplyAttestedOp(group, attested)
	require.Error(t, err)
}

func TestRedundantRemoveLeafDuringReduceIsLogicalNoop(t *testing.T) {
	tree := NewRatchetTree(1, 1)
	device := ids.DeviceId{1}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)

	require.NoError(t, tree.apply(AddLeaf(device, pub, 0)))
	require.NoError(t, tree.apply(RemoveLeaf(device, 0)))

	// applyForReduce must not error on a redundant remove during reduction.
	tree.applyForReduce(RemoveLeaf(device, 0))
	require.NotContains(t, tree.ActiveDevices(), device)
}

func TestCloneIsIndependent(t *testing.T) {
	tree := NewRatchetTree(1, 1)
	clone := tree.Clone()

	require.NoError(t, clone.apply(ChangePolicy(0, Policy{Threshold: 2, Total: 3})))
	require.NotEqual(t, tree.RootPolicy(), clone.RootPolicy())
}
