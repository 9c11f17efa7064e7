// Package fact defines the immutable, order-stamped Fact record (spec §3)
// and its canonical binary encoding (spec §6), which is the content hashed
// to derive an OrderTime tie-break and used for wire/disk round-tripping.
package fact

import (
	"fmt"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/ids"
)

// NamespaceKind distinguishes the two journal namespace families.
type NamespaceKind uint8

const (
	NamespaceAuthority NamespaceKind = iota + 1
	NamespaceContext
)

// NS identifies which journal a fact (or a whole journal) belongs to:
// namespace ∈ { Authority(id), Context(id) } per spec §3. Authority IDs are
// 256-bit and Context IDs are 128-bit, so the two cases carry distinct
// identifier fields rather than sharing one.
type NS struct {
	Kind    NamespaceKind
	Authority ids.AuthorityId
	Context   ids.ContextId
}

func AuthorityNamespace(id ids.AuthorityId) NS { return NS{Kind: NamespaceAuthority, Authority: id} }
func ContextNamespace(id ids.ContextId) NS     { return NS{Kind: NamespaceContext, Context: id} }

func (n NS) Equal(other NS) bool {
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case NamespaceAuthority:
		return n.Authority.Compare(other.Authority) == 0
	case NamespaceContext:
		return n.Context.Compare(other.Context) == 0
	default:
		return false
	}
}

func (n NS) String() string {
	switch n.Kind {
	case NamespaceAuthority:
		return fmt.Sprintf("authority(%s)", n.Authority)
	case NamespaceContext:
		return fmt.Sprintf("context(%s)", n.Context)
	default:
		return "namespace(invalid)"
	}
}

// ContentKind tags the FactContent union's active variant.
type ContentKind uint8

const (
	ContentSnapshot ContentKind = iota + 1
	ContentRelational
	ContentDomainGeneric
)

// SnapshotContent is a checkpoint fact: a compacted view of prior state,
// carried so late-joining replicas can skip replaying the full history.
type SnapshotContent struct {
	OfNamespace NS
	StateHash   ids.Hash32
	SummaryCBOR []byte
}

// RelationalContent is a bilateral/n-ary binding scoped to a fixed
// participant set, living in a Context namespace (spec §3, §4.6).
type RelationalContent struct {
	Participants []ids.AuthorityId
	BindingType  string
	BindingData  []byte
}

// DomainGenericContent is a typed opaque payload addressed by a fact-type ID
// string (spec §3, §9): the mechanism that lets higher layers extend the
// fact space without modifying the core.
type DomainGenericContent struct {
	Namespace NS
	TypeID    string
	Payload   []byte
}

// Content is the tagged union over the three FactContent variants. Exactly
// one of the typed fields is populated, selected by Kind.
type Content struct {
	Kind       ContentKind
	Snapshot   *SnapshotContent
	Relational *RelationalContent
	Generic    *DomainGenericContent
}

// Namespace returns the namespace this content's fact belongs to.
func (c Content) Namespace() (NS, error) {
	switch c.Kind {
	case ContentSnapshot:
		if c.Snapshot == nil {
			return NS{}, fmt.Errorf("fact: snapshot content missing body")
		}
		return c.Snapshot.OfNamespace, nil
	case ContentRelational:
		// Relational facts don't carry an explicit namespace; the hosting
		// Journal supplies it. Callers must attach it externally.
		return NS{}, fmt.Errorf("fact: relational content has no intrinsic namespace")
	case ContentDomainGeneric:
		if c.Generic == nil {
			return NS{}, fmt.Errorf("fact: generic content missing body")
		}
		return c.Generic.Namespace, nil
	default:
		return NS{}, fmt.Errorf("fact: unknown content kind %d", c.Kind)
	}
}

// Fact is the immutable record of a single state transition (spec §3).
type Fact struct {
	Order     clock.OrderTime
	Timestamp clock.TimeStamp
	Content   Content
}

// Equal implements spec §3's equality rule: two facts are equal iff their
// order bytes are equal.
func (f Fact) Equal(other Fact) bool {
	return f.Order.Compare(other.Order) == 0
}
