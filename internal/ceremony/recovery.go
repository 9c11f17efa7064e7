package ceremony

import (
	"fmt"

	"github.com/hxrts/aura/internal/ids"
)

// RecoveryProposal is the account-side request to recover authority Account
// via its bound guardians (spec §4.5 "Recovery ceremony").
type RecoveryProposal struct {
	Account       ids.AuthorityId
	NewDevicePub  []byte // the replacement device key being installed
	Guardians     []ids.AuthorityId
	Threshold     int
	CooldownMs    uint64 // time a recovery grant must wait before it can be exercised
	ExpiryMs      uint64 // absolute deadline after which the grant is void, 0 = no expiry
}

func (p RecoveryProposal) validate() error {
	if p.Threshold == 0 || p.Threshold > len(p.Guardians) {
		return fmt.Errorf("ceremony: recovery threshold %d invalid for %d guardians", p.Threshold, len(p.Guardians))
	}
	if len(p.NewDevicePub) == 0 {
		return fmt.Errorf("ceremony: recovery proposal missing replacement device key")
	}
	return nil
}

// Grant is the result of a committed recovery ceremony: authorization to
// install NewDevicePub once CooldownUntilMs has passed, void after
// ExpiryMs (spec §4.5 "cooldowns and expirations enforced by the
// physical-time effect").
type Grant struct {
	Account          ids.AuthorityId
	NewDevicePub     []byte
	CooldownUntilMs  uint64
	ExpiryMs         uint64
	AuthorizedBy     []ids.AuthorityId
}

// FinalizeRecoveryCeremony builds the Grant once the ceremony's Record has
// reached threshold guardian authorizations. nowMs anchors the cooldown
// window to the moment of commitment.
func FinalizeRecoveryCeremony(proposal RecoveryProposal, record *Record, nowMs uint64) (Grant, error) {
	if err := proposal.validate(); err != nil {
		return Grant{}, err
	}
	if !record.ThresholdReached() {
		return Grant{}, fmt.Errorf("ceremony: recovery ceremony %s has not reached threshold", record.ID)
	}
	responses := record.Responses()
	var authorizedBy []ids.AuthorityId
	for _, g := range proposal.Guardians {
		if resp, ok := responses[g]; ok && resp.Accept {
			authorizedBy = append(authorizedBy, g)
		}
	}
	if len(authorizedBy) < proposal.Threshold {
		return Grant{}, fmt.Errorf("ceremony: recovery ceremony %s authorized by fewer guardians than threshold", record.ID)
	}

	expiry := proposal.ExpiryMs
	if expiry == 0 && proposal.CooldownMs > 0 {
		expiry = nowMs + proposal.CooldownMs*2 // default window: twice the cooldown, if the caller didn't pin an absolute expiry
	}

	return Grant{
		Account:         proposal.Account,
		NewDevicePub:    proposal.NewDevicePub,
		CooldownUntilMs: nowMs + proposal.CooldownMs,
		ExpiryMs:        expiry,
		AuthorizedBy:    authorizedBy,
	}, nil
}

// Exercisable reports whether g may be redeemed at nowMs: past its cooldown
// and, if it has an expiry, not yet past it.
func (g Grant) Exercisable(nowMs uint64) bool {
	if nowMs < g.CooldownUntilMs {
		return false
	}
	if g.ExpiryMs != 0 && nowMs >= g.ExpiryMs {
		return false
	}
	return true
}

// TypeIDRecoveryGrantFact is the fact-type ID a committed recovery grant is
// recorded under in the account's authority journal.
const TypeIDRecoveryGrantFact = "ceremony.recovery_grant"
