// Package relctx implements the Relational Context (spec §4.6, component
// C6): a journal scoped to a fixed, bounded participant set, hosting
// bilateral or n-ary facts (guardian bindings, chat channels, invitations)
// whose domain semantics stay outside the core via the domain-generic
// binding mechanism (spec §3, §9).
package relctx

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
)

// Context is a Journal with namespace = Context(id) plus an in-memory,
// immutable participant set (spec §4.6). Participants are fixed at
// construction: growing or shrinking membership is itself a ceremony
// (guardian/invitation), not a Context operation.
type Context struct {
	id           ids.ContextId
	journal      *journal.Journal
	participants map[ids.AuthorityId]struct{}
	registry     *fact.Registry

	mu          sync.RWMutex
	subscribers []Subscriber
}

// Subscriber receives domain deltas fanned out by the reactive pipeline
// whenever a relational fact reduces to one or more DomainDeltas.
type Subscriber func(ctx ids.ContextId, deltas []fact.DomainDelta)

// New constructs a Context over a fixed participant set. reg is the
// process-wide fact-type registry (sealed by the time any fact is added, per
// spec §5 "No global mutable state").
func New(id ids.ContextId, participants []ids.AuthorityId, reg *fact.Registry) *Context {
	set := make(map[ids.AuthorityId]struct{}, len(participants))
	for _, p := range participants {
		set[p] = struct{}{}
	}
	return &Context{
		id:           id,
		journal:      journal.New(fact.ContextNamespace(id)),
		participants: set,
		registry:     reg,
	}
}

// ID returns the context's identifier.
func (c *Context) ID() ids.ContextId { return c.id }

// Participants returns the sorted participant list.
func (c *Context) Participants() []ids.AuthorityId {
	out := make([]ids.AuthorityId, 0, len(c.participants))
	for p := range c.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// HasParticipant reports whether id is a member of this context.
func (c *Context) HasParticipant(id ids.AuthorityId) bool {
	_, ok := c.participants[id]
	return ok
}

// Subscribe registers a subscriber to receive domain deltas from future
// AddFact calls. Not retroactive: call before AddFact if replay is needed.
func (c *Context) Subscribe(sub Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, sub)
}

// AddFact appends a relational fact, rejecting it if any named participant
// falls outside the context's participant set (spec §4.6). On success, the
// binding is reduced via the process-wide type registry and the resulting
// deltas are fanned out to subscribers.
func (c *Context) AddFact(f fact.Fact) error {
	if f.Content.Kind != fact.ContentRelational {
		return fmt.Errorf("relctx: fact is not relational (kind %d)", f.Content.Kind)
	}
	rel := f.Content.Relational
	if rel == nil {
		return fmt.Errorf("relctx: relational fact missing body")
	}
	for _, p := range rel.Participants {
		if !c.HasParticipant(p) {
			return fmt.Errorf("relctx: participant %s is not a member of context %s", p, c.id)
		}
	}

	if err := c.journal.AddFact(f); err != nil {
		return err
	}

	if c.registry == nil {
		return nil
	}
	deltas, err := c.registry.Reduce(rel.BindingType, rel.BindingData)
	if err != nil {
		return fmt.Errorf("relctx: reduce binding %q: %w", rel.BindingType, err)
	}
	if len(deltas) == 0 {
		return nil
	}
	c.mu.RLock()
	subs := append([]Subscriber(nil), c.subscribers...)
	c.mu.RUnlock()
	for _, sub := range subs {
		sub(c.id, deltas)
	}
	return nil
}

// JournalCommitment returns a Merkle-root fingerprint of the reduced state,
// for inclusion in a ceremony Prestate (spec §4.6 "journal_commitment").
func (c *Context) JournalCommitment() ids.Hash32 {
	return c.journal.Commitment()
}

// Journal exposes the underlying Journal for merge/effect-layer wiring.
func (c *Context) Journal() *journal.Journal { return c.journal }

// Facts returns the canonically sorted relational fact set.
func (c *Context) Facts() []fact.Fact { return c.journal.Facts() }

// NewRelationalFact builds a relational fact ready to pass to AddFact.
func NewRelationalFact(order clock.OrderTime, ts clock.TimeStamp, participants []ids.AuthorityId, bindingType string, bindingData []byte) fact.Fact {
	return fact.Fact{
		Order:     order,
		Timestamp: ts,
		Content: fact.Content{
			Kind: fact.ContentRelational,
			Relational: &fact.RelationalContent{
				Participants: participants,
				BindingType:  bindingType,
				BindingData:  bindingData,
			},
		},
	}
}
