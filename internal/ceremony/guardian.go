package ceremony

import (
	"fmt"

	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/relctx"
)

// GuardianProposal is the initiator's request for n guardians (spec §4.5).
type GuardianProposal struct {
	Principal ids.AuthorityId
	Guardians []ids.AuthorityId
	Threshold int
}

func (p GuardianProposal) validate() error {
	if p.Threshold == 0 || p.Threshold > len(p.Guardians) {
		return fmt.Errorf("ceremony: guardian threshold %d invalid for %d guardians", p.Threshold, len(p.Guardians))
	}
	return nil
}

// FinalizeGuardianCeremony builds the GuardianBinding fact committed once
// the ceremony's Record has reached threshold accept responses. Call after
// Record.ThresholdReached() returns true.
func FinalizeGuardianCeremony(proposal GuardianProposal, record *Record) ([]relctx.GuardianBinding, error) {
	if err := proposal.validate(); err != nil {
		return nil, err
	}
	if !record.ThresholdReached() {
		return nil, fmt.Errorf("ceremony: guardian ceremony %s has not reached threshold", record.ID)
	}
	responses := record.Responses()
	var bindings []relctx.GuardianBinding
	for _, g := range proposal.Guardians {
		resp, ok := responses[g]
		if !ok || !resp.Accept {
			continue
		}
		bindings = append(bindings, relctx.GuardianBinding{
			Principal: proposal.Principal,
			Guardian:  g,
			Threshold: proposal.Threshold,
		})
	}
	if len(bindings) < proposal.Threshold {
		return nil, fmt.Errorf("ceremony: guardian ceremony %s accepted fewer guardians than threshold", record.ID)
	}
	return bindings, nil
}
