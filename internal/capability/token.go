package capability

import (
	"crypto/ed25519"
	"fmt"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/ids"
)

// SubjectKind distinguishes what a token's subject addresses.
type SubjectKind int

const (
	SubjectDevice SubjectKind = iota + 1
	SubjectSession
	SubjectThresholdGroup
)

// Subject identifies who a CapabilityToken is bound to.
type Subject struct {
	Kind      SubjectKind
	DeviceID  ids.DeviceId
	SessionID ids.SessionId
	GroupID   ids.AuthorityId
}

// Delegation is one hop in a token's delegation chain: authorityFrom
// delegates a (possibly narrowed) capability set to authorityTo, attested
// by a signature from authorityFrom's current signing key.
type Delegation struct {
	From        ids.AuthorityId
	To          ids.AuthorityId
	Constrained Set
	Signature   []byte
}

// Chain is a CapabilityToken's delegation chain: {root, [delegation...]}
// (spec §3).
type Chain struct {
	Root        ids.AuthorityId
	Delegations []Delegation
}

// Depth returns the delegation chain's length (the root grant itself is
// depth 0; each hop adds one).
func (c Chain) Depth() int { return len(c.Delegations) }

// Token binds a subject to a resource and action list under a threshold
// signature, optionally expiring (spec §3 "CapabilityToken").
type Token struct {
	Subject  Subject
	Resource string
	Actions  Set
	Chain    Chain
	Epoch    uint64 // authority epoch this token was issued/signed under
	NotBefore *uint64 // millis, optional
	Expiry    *uint64 // millis, optional
	Signature []byte
}

// GroupKeyLookup resolves the group public key an authority used to sign at
// a given epoch (old epochs remain queryable, spec §4.2's epoch contract).
// Implemented in production by cmd/aurad's authorityKeyRegistry; tests
// supply a fixed map.
type GroupKeyLookup interface {
	GroupPublicKeyAt(authority ids.AuthorityId, epoch uint64) (ed25519.PublicKey, error)
}

// SigningBytes returns the canonical bytes a token's signature covers, so
// an issuer can produce Signature with its own signing key without this
// package needing to know how that key is held (device key, threshold
// group, ceremony-issued session key, ...).
func (t Token) SigningBytes() []byte { return t.signingBytes() }

func (t Token) signingBytes() []byte {
	buf := []byte(t.Resource)
	buf = append(buf, byte(t.Subject.Kind))
	for _, a := range t.Actions.List() {
		buf = append(buf, []byte(a.key())...)
	}
	buf = append(buf, t.Chain.Root.Bytes()...)
	return buf
}

// SigningBytes returns the canonical bytes a delegation hop's signature
// covers.
func (d Delegation) SigningBytes() []byte { return d.signingBytes() }

func (d Delegation) signingBytes() []byte {
	buf := append([]byte(nil), d.From.Bytes()...)
	buf = append(buf, d.To.Bytes()...)
	for _, c := range d.Constrained.List() {
		buf = append(buf, []byte(c.key())...)
	}
	return buf
}

// Result is the verifier's output (spec §4.3 "AuthorizationResult").
type Result struct {
	Authorized     bool
	DelegationDepth int
	Reason         string
}

// Verifier evaluates tokens against the guard chain's CapabilityCheck step
// (spec §4.3).
type Verifier struct {
	Keys       GroupKeyLookup
	MaxDepth   int
}

// NewVerifier constructs a Verifier with the given maximum delegation
// depth (a policy the caller's authority/context configuration fixes).
func NewVerifier(keys GroupKeyLookup, maxDepth int) *Verifier {
	return &Verifier{Keys: keys, MaxDepth: maxDepth}
}

// Verify checks the token's signature chain against the authority's root
// public key at the relevant epoch, the requested capability against the
// token's scope, and any time constraints, returning an AuthorizationResult
// (spec §4.3).
func (v *Verifier) Verify(token Token, want Capability, now clock.PhysicalTime) Result {
	if token.Chain.Depth() > v.MaxDepth {
		return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "delegation depth exceeds policy maximum"}
	}
	if !token.Actions.Contains(want) {
		return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "requested capability not in token scope"}
	}
	if token.NotBefore != nil && now.Millis < *token.NotBefore {
		return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "token not yet valid"}
	}
	if token.Expiry != nil && now.Millis >= *token.Expiry {
		return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "token expired"}
	}

	rootKey, err := v.Keys.GroupPublicKeyAt(token.Chain.Root, token.Epoch)
	if err != nil {
		return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: fmt.Sprintf("resolve root key: %v", err)}
	}
	signer := rootKey
	for i, d := range token.Chain.Delegations {
		if i == 0 && d.From != token.Chain.Root {
			return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "delegation chain does not start at root"}
		}
		if !ed25519.Verify(signer, d.signingBytes(), d.Signature) {
			return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "delegation signature invalid"}
		}
		next, err := v.Keys.GroupPublicKeyAt(d.To, token.Epoch)
		if err != nil {
			return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: fmt.Sprintf("resolve delegate key: %v", err)}
		}
		signer = next
	}
	if !ed25519.Verify(signer, token.signingBytes(), token.Signature) {
		return Result{Authorized: false, DelegationDepth: token.Chain.Depth(), Reason: "token signature invalid"}
	}

	return Result{Authorized: true, DelegationDepth: token.Chain.Depth()}
}
