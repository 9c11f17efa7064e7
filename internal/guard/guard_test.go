package guard

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/capability"
	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/flowbudget"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
)

type fixedKeyLookup struct {
	authority ids.AuthorityId
	epoch     uint64
	pub       ed25519.PublicKey
}

func (f fixedKeyLookup) GroupPublicKeyAt(authority ids.AuthorityId, epoch uint64) (ed25519.PublicKey, error) {
	if authority != f.authority || epoch != f.epoch {
		return nil, require.AnError
	}
	return f.pub, nil
}

func signedToken(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, root ids.AuthorityId, epoch uint64, actions capability.Set) capability.Token {
	t.Helper()
	token := capability.Token{
		Resource: "ctx/test",
		Actions:  actions,
		Chain:    capability.Chain{Root: root},
		Epoch:    epoch,
	}
	token.Signature = ed25519.Sign(priv, token.SigningBytes())
	return token
}

func newFixture(t *testing.T) (*Chain, *journal.Journal, ids.ContextId, ids.AuthorityId, ids.AuthorityId, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	root := ids.AuthorityId{1}
	local := ids.AuthorityId{2}
	peer := ids.AuthorityId{3}
	ctxID := ids.ContextId{4}

	verifier := capability.NewVerifier(fixedKeyLookup{authority: root, epoch: 1, pub: pub}, 4)
	budgets := flowbudget.NewStore()
	budgets.Set(ctxID, peer, flowbudget.Budget{Limit: 100, Spent: 0, Epoch: 1})

	chain := New(verifier, budgets)
	j := journal.New(fact.ContextNamespace(ctxID))
	return chain, j, ctxID, local, peer, pub, priv
}

func appendFact(ctxID ids.ContextId) func(capability.Result, flowbudget.Receipt) (fact.Fact, error) {
	seq := uint64(0)
	return func(authz capability.Result, receipt flowbudget.Receipt) (fact.Fact, error) {
		seq++
		order := clock.NewOrderTime(seq, receipt.LocalAuthority, receipt.Fingerprint)
		return fact.Fact{
			Order:     order,
			Timestamp: clock.TimeStamp{Order: order},
			Content: fact.Content{
				Kind: fact.ContentDomainGeneric,
				Generic: &fact.DomainGenericContent{
					Namespace: fact.ContextNamespace(ctxID),
					TypeID:    "test.guarded_op",
					Payload:   receipt.Encode(),
				},
			},
		}, nil
	}
}

func TestGuardChainSucceedsAndAppendsFact(t *testing.T) {
	chain, j, ctxID, local, peer, pub, priv := newFixture(t)
	root := ids.AuthorityId{1}
	token := signedToken(t, pub, priv, root, 1, capability.NewSet(capability.Write("ctx/test")))

	outcome, err := chain.Evaluate(Request{
		Token:      token,
		Want:       capability.Write("ctx/test"),
		Context:    ctxID,
		Local:      local,
		Peer:       peer,
		Epoch:      1,
		Cost:       10,
		Journal:    j,
		AppendFact: appendFact(ctxID),
	})
	require.NoError(t, err)
	require.True(t, outcome.Authorization.Authorized)
	require.Equal(t, 1, j.Len())
}

func TestGuardChainShortCircuitsOnCapabilityDenial(t *testing.T) {
	chain, j, ctxID, local, peer, pub, priv := newFixture(t)
	root := ids.AuthorityId{1}
	token := signedToken(t, pub, priv, root, 1, capability.NewSet(capability.Read("ctx/test")))

	_, err := chain.Evaluate(Request{
		Token:      token,
		Want:       capability.Write("ctx/test"),
		Context:    ctxID,
		Local:      local,
		Peer:       peer,
		Epoch:      1,
		Cost:       10,
		Journal:    j,
		AppendFact: appendFact(ctxID),
	})
	require.Error(t, err)
	require.Zero(t, j.Len(), "a denied capability check must charge nothing and append nothing")
}

func TestGuardChainRefundsChargeWhenAppendFactFails(t *testing.T) {
	chain, j, ctxID, local, peer, pub, priv := newFixture(t)
	root := ids.AuthorityId{1}
	token := signedToken(t, pub, priv, root, 1, capability.NewSet(capability.Write("ctx/test")))

	failingAppend := func(capability.Result, flowbudget.Receipt) (fact.Fact, error) {
		return fact.Fact{}, require.AnError
	}

	before := chain.Budgets.Get(ctxID, peer)

	_, err := chain.Evaluate(Request{
		Token:      token,
		Want:       capability.Write("ctx/test"),
		Context:    ctxID,
		Local:      local,
		Peer:       peer,
		Epoch:      1,
		Cost:       10,
		Journal:    j,
		AppendFact: failingAppend,
	})
	require.Error(t, err)
	require.Zero(t, j.Len(), "an append failure must never land a fact")

	after := chain.Budgets.Get(ctxID, peer)
	require.Equal(t, before.Spent, after.Spent, "a failed append must refund the charge already committed")
}

func TestGuardChainRefundsChargeWhenAddFactRejectsTheNamespace(t *testing.T) {
	chain, j, ctxID, local, peer, pub, priv := newFixture(t)
	root := ids.AuthorityId{1}
	token := signedToken(t, pub, priv, root, 1, capability.NewSet(capability.Write("ctx/test")))

	otherNamespace := fact.ContextNamespace(ids.ContextId{99})
	appendWrongNamespace := func(authz capability.Result, receipt flowbudget.Receipt) (fact.Fact, error) {
		order := clock.NewOrderTime(1, receipt.LocalAuthority, receipt.Fingerprint)
		return fact.Fact{
			Order:     order,
			Timestamp: clock.TimeStamp{Order: order},
			Content: fact.Content{
				Kind: fact.ContentDomainGeneric,
				Generic: &fact.DomainGenericContent{
					Namespace: otherNamespace,
					TypeID:    "test.guarded_op",
					Payload:   receipt.Encode(),
				},
			},
		}, nil
	}

	before := chain.Budgets.Get(ctxID, peer)

	_, err := chain.Evaluate(Request{
		Token:      token,
		Want:       capability.Write("ctx/test"),
		Context:    ctxID,
		Local:      local,
		Peer:       peer,
		Epoch:      1,
		Cost:       10,
		Journal:    j,
		AppendFact: appendWrongNamespace,
	})
	require.Error(t, err)
	require.Zero(t, j.Len(), "a namespace-mismatched fact must never land in the journal")

	after := chain.Budgets.Get(ctxID, peer)
	require.Equal(t, before.Spent, after.Spent, "a rejected AddFact must refund the charge already committed")
}

func TestGuardChainShortCircuitsOnBudgetExhaustion(t *testing.T) {
	chain, j, ctxID, local, peer, pub, priv := newFixture(t)
	root := ids.AuthorityId{1}
	token := signedToken(t, pub, priv, root, 1, capability.NewSet(capability.Write("ctx/test")))

	_, err := chain.Evaluate(Request{
		Token:      token,
		Want:       capability.Write("ctx/test"),
		Context:    ctxID,
		Local:      local,
		Peer:       peer,
		Epoch:      1,
		Cost:       1000,
		Journal:    j,
		AppendFact: appendFact(ctxID),
	})
	require.Error(t, err)
	require.Zero(t, j.Len(), "a budget-exceeded charge must never reach JournalAppend")
}
