// Package guard implements the guard chain of spec §4.3 (component C3):
// CapabilityCheck -> FlowBudget -> JournalAppend, a total order with
// short-circuit on failure. All three succeed, or the chain refunds any
// charge already committed and the operation fails with the first
// failure's error; no intermediate state (partial charge, orphan
// capability decision) is ever exposed (spec §4.3, §7).
package guard

import (
	"fmt"

	"github.com/hxrts/aura/internal/aeerrors"
	"github.com/hxrts/aura/internal/capability"
	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/flowbudget"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
)

// Chain wires the three guard steps against their backing stores.
type Chain struct {
	Verifier *capability.Verifier
	Budgets  *flowbudget.Store
}

// New constructs a guard Chain.
func New(verifier *capability.Verifier, budgets *flowbudget.Store) *Chain {
	return &Chain{Verifier: verifier, Budgets: budgets}
}

// Request bundles everything one guarded operation needs across the three
// steps.
type Request struct {
	Token   capability.Token
	Want    capability.Capability
	Now     clock.PhysicalTime
	Context ids.ContextId
	Local   ids.AuthorityId
	Peer    ids.AuthorityId
	Epoch   uint64
	Cost    uint32
	Nonce   [8]byte
	Signer  func([]byte) []byte

	Journal *journal.Journal
	AppendFact func(authorized capability.Result, receipt flowbudget.Receipt) (fact.Fact, error)
}

// Outcome is returned when every step succeeds.
type Outcome struct {
	Authorization capability.Result
	Receipt       flowbudget.Receipt
	Appended      fact.Fact
}

// Evaluate runs the guard chain in order, short-circuiting on the first
// failure (spec §4.3). If the journal append (step 3) fails after the
// flow-budget charge (step 2) has already been committed, the charge is
// reversed via Budgets.Refund before returning, so no partial progress
// (charge without a corresponding appended fact) is ever observable
// (spec §4.3, §7).
func (c *Chain) Evaluate(req Request) (Outcome, error) {
	// Step 1: CapabilityCheck.
	authz := c.Verifier.Verify(req.Token, req.Want, req.Now)
	if !authz.Authorized {
		return Outcome{}, aeerrors.New(aeerrors.PermissionDenied, authz.Reason)
	}

	// Step 2: FlowBudget.
	receipt, err := c.Budgets.Charge(req.Context, req.Local, req.Peer, req.Epoch, req.Cost, req.Nonce, req.Signer)
	if err != nil {
		return Outcome{}, err
	}

	// Step 3: JournalAppend. Any failure past this point must undo the
	// charge above.
	if req.AppendFact == nil || req.Journal == nil {
		c.Budgets.Refund(req.Context, req.Peer, req.Epoch, req.Cost)
		return Outcome{}, aeerrors.New(aeerrors.Internal, "guard: missing journal append step")
	}
	f, err := req.AppendFact(authz, receipt)
	if err != nil {
		c.Budgets.Refund(req.Context, req.Peer, req.Epoch, req.Cost)
		return Outcome{}, fmt.Errorf("guard: journal append: %w", err)
	}
	if err := req.Journal.AddFact(f); err != nil {
		c.Budgets.Refund(req.Context, req.Peer, req.Epoch, req.Cost)
		return Outcome{}, fmt.Errorf("guard: journal append: %w", err)
	}

	return Outcome{Authorization: authz, Receipt: receipt, Appended: f}, nil
}
