// Package authority implements the authority & ratchet tree (spec §4.2,
// component C2): cryptographic membership of an authority and the epoch
// contract governing its mutation. The tree is stored as an arena of nodes
// indexed by typed NodeIndex values rather than pointer-linked nodes (spec
// §9: "cyclic graphs -> arenas + indices").
package authority

import (
	"crypto/ed25519"
	"fmt"

	"github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/ids"
)

// NodeIndex addresses a node within a RatchetTree's arena.
type NodeIndex int

// NodeKind distinguishes leaf (device) nodes from branch (policy) nodes.
type NodeKind uint8

const (
	NodeLeaf NodeKind = iota + 1
	NodeBranch
)

// Policy is the aggregated policy carried by a branch node: the threshold
// parameters governing operations rooted at that branch.
type Policy struct {
	Threshold int
	Total     int
}

// Node is one arena entry.
type Node struct {
	Kind     NodeKind
	Parent   NodeIndex // -1 for the root
	DeviceID ids.DeviceId
	PubKey   ed25519.PublicKey // leaf only
	Removed  bool
	Policy   Policy // branch only
}

// RatchetTree is the epoch-versioned binary tree of devices under an
// authority (spec §3, §4.2).
type RatchetTree struct {
	Epoch uint64
	Nodes []Node
}

// NewRatchetTree returns a tree with a single root branch node at epoch 0,
// holding the authority's initial threshold policy.
func NewRatchetTree(initialThreshold, initialTotal int) *RatchetTree {
	return &RatchetTree{
		Epoch: 0,
		Nodes: []Node{{
			Kind:   NodeBranch,
			Parent: -1,
			Policy: Policy{Threshold: initialThreshold, Total: initialTotal},
		}},
	}
}

// Commitment is a BLAKE3 fingerprint over the tree's canonical encoding,
// used as an AttestedOp's pre/post state commitment.
func (t *RatchetTree) Commitment() ids.Hash32 {
	return crypto.Blake3(t.encode())
}

func (t *RatchetTree) encode() []byte {
	buf := make([]byte, 0, 64*len(t.Nodes)+8)
	var epochBuf [8]byte
	for i := 0; i < 8; i++ {
		epochBuf[i] = byte(t.Epoch >> (56 - 8*i))
	}
	buf = append(buf, epochBuf[:]...)
	for _, n := range t.Nodes {
		buf = append(buf, byte(n.Kind))
		if n.Removed {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, n.DeviceID.Bytes()...)
		buf = append(buf, n.PubKey...)
	}
	return buf
}

// Clone returns a deep copy of the tree.
func (t *RatchetTree) Clone() *RatchetTree {
	out := &RatchetTree{Epoch: t.Epoch, Nodes: make([]Node, len(t.Nodes))}
	copy(out.Nodes, t.Nodes)
	return out
}

// ActiveDevices returns the device IDs of non-removed leaf nodes.
func (t *RatchetTree) ActiveDevices() []ids.DeviceId {
	var out []ids.DeviceId
	for _, n := range t.Nodes {
		if n.Kind == NodeLeaf && !n.Removed {
			out = append(out, n.DeviceID)
		}
	}
	return out
}

// RootPolicy returns the policy held by the root branch node (index 0).
func (t *RatchetTree) RootPolicy() Policy {
	if len(t.Nodes) == 0 {
		return Policy{}
	}
	return t.Nodes[0].Policy
}

// --- TreeOp variants (spec §4.2) ---

type OpKind uint8

const (
	OpAddLeaf OpKind = iota + 1
	OpRemoveLeaf
	OpChangePolicy
	OpRotateEpoch
)

// TreeOp is the unapplied mutation request; AttestedOp wraps it with the
// commitments and signature once the threshold group has attested to it.
type TreeOp struct {
	Kind OpKind

	// AddLeaf
	DeviceID     ids.DeviceId
	DevicePubKey ed25519.PublicKey
	ParentIndex  NodeIndex

	// RemoveLeaf
	LeafID     ids.DeviceId
	ReasonCode uint32

	// ChangePolicy
	NodeIdx   NodeIndex
	NewPolicy Policy

	// RotateEpoch
	AffectedNodes []NodeIndex
}

func (op TreeOp) encode() []byte {
	buf := []byte{byte(op.Kind)}
	switch op.Kind {
	case OpAddLeaf:
		buf = append(buf, op.DeviceID.Bytes()...)
		buf = append(buf, op.DevicePubKey...)
	case OpRemoveLeaf:
		buf = append(buf, op.LeafID.Bytes()...)
		var r [4]byte
		r[0], r[1], r[2], r[3] = byte(op.ReasonCode>>24), byte(op.ReasonCode>>16), byte(op.ReasonCode>>8), byte(op.ReasonCode)
		buf = append(buf, r[:]...)
	case OpChangePolicy:
		buf = append(buf, byte(op.NodeIdx), byte(op.NewPolicy.Threshold), byte(op.NewPolicy.Total))
	case OpRotateEpoch:
		buf = append(buf, byte(len(op.AffectedNodes)))
		for _, n := range op.AffectedNodes {
			buf = append(buf, byte(n))
		}
	}
	return buf
}

// AttestedOp carries the pre-state commitment, the op, the post-state
// commitment, and a threshold aggregate signature (spec §3, §4.2, §6).
type AttestedOp struct {
	PreCommit   ids.Hash32
	Op          TreeOp
	NewCommit   ids.Hash32
	Aggregate   crypto.AggregateSignature
}

// AddLeaf builds the unattested AddLeaf TreeOp.
func AddLeaf(device ids.DeviceId, pubKey ed25519.PublicKey, parent NodeIndex) TreeOp {
	return TreeOp{Kind: OpAddLeaf, DeviceID: device, DevicePubKey: pubKey, ParentIndex: parent}
}

// RemoveLeaf builds the unattested RemoveLeaf TreeOp.
func RemoveLeaf(leaf ids.DeviceId, reason uint32) TreeOp {
	return TreeOp{Kind: OpRemoveLeaf, LeafID: leaf, ReasonCode: reason}
}

// ChangePolicy builds the unattested ChangePolicy TreeOp.
func ChangePolicy(node NodeIndex, policy Policy) TreeOp {
	return TreeOp{Kind: OpChangePolicy, NodeIdx: node, NewPolicy: policy}
}

// RotateEpoch builds the unattested RotateEpoch TreeOp.
func RotateEpoch(affected []NodeIndex) TreeOp {
	return TreeOp{Kind: OpRotateEpoch, AffectedNodes: affected}
}

// apply mutates the tree in place according to op, incrementing the epoch
// (spec §4.2 "every add/remove/policy change increments the authority
// epoch").
func (t *RatchetTree) apply(op TreeOp) error {
	switch op.Kind {
	case OpAddLeaf:
		for _, n := range t.Nodes {
			if n.Kind == NodeLeaf && !n.Removed && n.DeviceID == op.DeviceID {
				return fmt.Errorf("authority: device %s already present", op.DeviceID)
			}
		}
		t.Nodes = append(t.Nodes, Node{
			Kind: NodeLeaf, Parent: op.ParentIndex, DeviceID: op.DeviceID, PubKey: op.DevicePubKey,
		})
	case OpRemoveLeaf:
		found := false
		for i, n := range t.Nodes {
			if n.Kind == NodeLeaf && !n.Removed && n.DeviceID == op.LeafID {
				t.Nodes[i].Removed = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("authority: device %s not present", op.LeafID)
		}
	case OpChangePolicy:
		if int(op.NodeIdx) < 0 || int(op.NodeIdx) >= len(t.Nodes) {
			return fmt.Errorf("authority: node index %d out of range", op.NodeIdx)
		}
		if t.Nodes[op.NodeIdx].Kind != NodeBranch {
			return fmt.Errorf("authority: node index %d is not a branch", op.NodeIdx)
		}
		t.Nodes[op.NodeIdx].Policy = op.NewPolicy
	case OpRotateEpoch:
		// Rotation touches no node payload; it exists purely to force the
		// epoch increment and commitment change below.
	default:
		return fmt.Errorf("authority: unknown op kind %d", op.Kind)
	}
	t.Epoch++
	return nil
}

// applyForReduce is the lenient counterpart of apply used during pure
// reduction (see reduce.go): concurrent replicas may each independently
// accept an add/remove that, replayed in canonical fact order against the
// other's result, targets a device that is already present/absent. Spec
// §4.1's tie-break rule ("conflicting device adds/removes resolve by
// highest epoch, then by fact order") is realized by canonical fact
// ordering plus treating a structurally-redundant mutation as a logical
// no-op rather than a hard error — the mutation is still historically
// accepted (the epoch still advances) but it has nothing left to change.
func (t *RatchetTree) applyForReduce(op TreeOp) {
	switch op.Kind {
	case OpAddLeaf:
		exists := false
		for _, n := range t.Nodes {
			if n.Kind == NodeLeaf && !n.Removed && n.DeviceID == op.DeviceID {
				exists = true
				break
			}
		}
		if !exists {
			t.Nodes = append(t.Nodes, Node{
				Kind: NodeLeaf, Parent: op.ParentIndex, DeviceID: op.DeviceID, PubKey: op.DevicePubKey,
			})
		}
	case OpRemoveLeaf:
		for i, n := range t.Nodes {
			if n.Kind == NodeLeaf && !n.Removed && n.DeviceID == op.LeafID {
				t.Nodes[i].Removed = true
				break
			}
		}
	case OpChangePolicy:
		if int(op.NodeIdx) >= 0 && int(op.NodeIdx) < len(t.Nodes) && t.Nodes[op.NodeIdx].Kind == NodeBranch {
			t.Nodes[op.NodeIdx].Policy = op.NewPolicy
		}
	case OpRotateEpoch:
		// no node payload change
	}
	t.Epoch++
}

// ApplyAttestedOp validates pre-state, verifies the aggregate signature
// against the group, applies the op, and returns the post-state
// commitment (spec §4.2). Fails with a pre-state-mismatch-shaped error if
// op.PreCommit doesn't match the tree's current commitment, or a
// signature-invalid-shaped error if verification fails; callers translate
// these into aeerrors.Kind at the call site (kept out of this package to
// avoid a dependency from authority -> aeerrors for what is otherwise a
// pure data-structure operation testable in isolation).
func (t *RatchetTree) ApplyAttestedOp(group crypto.ThresholdGroup, op AttestedOp) (ids.Hash32, error) {
	current := t.Commitment()
	if current.Compare(op.PreCommit) != 0 {
		return ids.Hash32{}, errPreStateMismatch{current: current, want: op.PreCommit}
	}
	if !group.VerifyAggregate(op.Op.encode(), op.Aggregate) {
		return ids.Hash32{}, errSignatureInvalid{}
	}
	if err := t.apply(op.Op); err != nil {
		return ids.Hash32{}, err
	}
	newCommit := t.Commitment()
	if newCommit.Compare(op.NewCommit) != 0 {
		return ids.Hash32{}, fmt.Errorf("authority: computed commitment does not match attested new_commit")
	}
	return newCommit, nil
}

type errPreStateMismatch struct{ current, want ids.Hash32 }

func (e errPreStateMismatch) Error() string {
	return fmt.Sprintf("authority: pre-state mismatch: have %s want %s", e.current, e.want)
}

func (errPreStateMismatch) PreStateMismatch() bool { return true }

type errSignatureInvalid struct{}

func (errSignatureInvalid) Error() string      { return "authority: aggregate signature invalid" }
func (errSignatureInvalid) SignatureInvalid() bool { return true }
