package authority

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/ids"
)

func sampleAggregate(n int) crypto.AggregateSignature {
	agg := crypto.AggregateSignature{SignerBitmap: make([]bool, n), Signatures: make([][]byte, n)}
	for i := 0; i < n; i++ {
		agg.SignerBitmap[i] = i%2 == 0
		if agg.SignerBitmap[i] {
			agg.Signatures[i] = make([]byte, ed25519.SignatureSize)
			agg.Signatures[i][0] = byte(i + 1)
		} else {
			agg.Signatures[i] = []byte{}
		}
	}
	return agg
}

func TestAttestedOpRoundTripsEachOpKind(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	devA, err := ids.DeviceIdFromBytes(make([]byte, 16))
	require.NoError(t, err)
	devBBytes := make([]byte, 16)
	devBBytes[0] = 7
	devB, err := ids.DeviceIdFromBytes(devBBytes)
	require.NoError(t, err)

	pre, err := ids.Hash32FromBytes(make([]byte, 32))
	require.NoError(t, err)
	newCommitBytes := make([]byte, 32)
	newCommitBytes[0] = 9
	newCommit, err := ids.Hash32FromBytes(newCommitBytes)
	require.NoError(t, err)

	cases := map[string]AttestedOp{
		"add_leaf":      {PreCommit: pre, Op: AddLeaf(devA, pub, 0), NewCommit: newCommit, Aggregate: sampleAggregate(2)},
		"remove_leaf":   {PreCommit: pre, Op: RemoveLeaf(devB, 3), NewCommit: newCommit, Aggregate: sampleAggregate(1)},
		"change_policy": {PreCommit: pre, Op: ChangePolicy(2, Policy{Threshold: 2, Total: 3}), NewCommit: newCommit, Aggregate: sampleAggregate(3)},
		"rotate_epoch":  {PreCommit: pre, Op: RotateEpoch([]NodeIndex{0, 1, 2}), NewCommit: newCommit, Aggregate: sampleAggregate(0)},
	}

	for name, op := range cases {
		t.Run(name, func(t *testing.T) {
			encoded := EncodeAttestedOp(op)
			decoded, err := DecodeAttestedOp(encoded)
			require.NoError(t, err)

			require.Equal(t, op.PreCommit, decoded.PreCommit)
			require.Equal(t, op.NewCommit, decoded.NewCommit)
			require.Equal(t, op.Op.Kind, decoded.Op.Kind)
			require.Equal(t, op.Aggregate, decoded.Aggregate)

			switch op.Op.Kind {
			case OpAddLeaf:
				require.Equal(t, op.Op.DeviceID, decoded.Op.DeviceID)
				require.True(t, op.Op.DevicePubKey.Equal(decoded.Op.DevicePubKey))
			case OpRemoveLeaf:
				require.Equal(t, op.Op.LeafID, decoded.Op.LeafID)
				require.Equal(t, op.Op.ReasonCode, decoded.Op.ReasonCode)
			case OpChangePolicy:
				require.Equal(t, op.Op.NodeIdx, decoded.Op.NodeIdx)
				require.Equal(t, op.Op.NewPolicy, decoded.Op.NewPolicy)
			case OpRotateEpoch:
				require.Equal(t, op.Op.AffectedNodes, decoded.Op.AffectedNodes)
			}
		})
	}
}

func TestDecodeAttestedOpRejectsUnknownOpKind(t *testing.T) {
	pre := make([]byte, 32)
	_, err := DecodeAttestedOp(append(pre, 0xFF))
	require.Error(t, err)
}

func TestDecodeAttestedOpRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeAttestedOp([]byte{1, 2, 3})
	require.Error(t, err)
}
