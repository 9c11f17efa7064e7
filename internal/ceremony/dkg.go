package ceremony

import (
	"crypto/ed25519"
	"fmt"

	"github.com/hxrts/aura/internal/ids"
)

// DealerPackage is one dealer's contribution to a DKG transcript: an
// encrypted share for every participant (spec §4.5 "dealer packages").
// Grounded on the original DKG ceremony's dealer/participant share-map
// shape (aura-consensus/dkg/ceremony.rs's validate_packages).
type DealerPackage struct {
	Dealer          ids.AuthorityId
	EncryptedShares map[ids.AuthorityId][]byte
	Commitment      ids.Hash32 // commitment to the dealer's polynomial, checked by every recipient
}

// DKGConfig parameterizes a DKG ceremony.
type DKGConfig struct {
	Participants []ids.AuthorityId
	Threshold    int
	MaxSigners   int
}

func (c DKGConfig) validate() error {
	if len(c.Participants) == 0 {
		return fmt.Errorf("ceremony: dkg config requires explicit participants")
	}
	if c.Threshold == 0 {
		return fmt.Errorf("ceremony: dkg threshold must be non-zero")
	}
	if c.Threshold > len(c.Participants) {
		return fmt.Errorf("ceremony: dkg threshold exceeds participant count")
	}
	if c.MaxSigners > len(c.Participants) {
		return fmt.Errorf("ceremony: dkg max_signers exceeds participant count")
	}
	return nil
}

func validateDealerPackages(config DKGConfig, packages []DealerPackage) error {
	if len(packages) < config.Threshold {
		return fmt.Errorf("ceremony: dkg ceremony requires at least threshold packages")
	}
	if config.MaxSigners > 0 && len(packages) > config.MaxSigners {
		return fmt.Errorf("ceremony: dkg ceremony exceeds max_signers package count")
	}
	seen := make(map[ids.AuthorityId]struct{}, len(packages))
	for _, pkg := range packages {
		if _, dup := seen[pkg.Dealer]; dup {
			return fmt.Errorf("ceremony: duplicate dealer package from %s", pkg.Dealer)
		}
		seen[pkg.Dealer] = struct{}{}
		for _, p := range config.Participants {
			if _, ok := pkg.EncryptedShares[p]; !ok {
				return fmt.Errorf("ceremony: dealer %s package missing share for participant %s", pkg.Dealer, p)
			}
		}
	}
	return nil
}

// Transcript is the finalized DKG output: the verified-share transcript
// that a consensus commit turns into a group public-key fact.
type Transcript struct {
	Participants []ids.AuthorityId
	Threshold    int
	GroupKey     ed25519.PublicKey
	Packages     []DealerPackage
}

// RunDKG validates config and the dealer packages, then finalizes a
// transcript. groupKeyFn derives the aggregate group public key from the
// accepted packages — left as a caller-supplied function because the real
// polynomial-interpolation math is a FROST-specific concern the spec places
// out of scope (§1 Non-goals: "full FROST protocol implementation"); this
// models the ceremony's orchestration and validation contract around that
// boundary, not the cryptographic derivation itself.
func RunDKG(config DKGConfig, packages []DealerPackage, groupKeyFn func([]DealerPackage) (ed25519.PublicKey, error)) (Transcript, error) {
	if err := config.validate(); err != nil {
		return Transcript{}, err
	}
	if err := validateDealerPackages(config, packages); err != nil {
		return Transcript{}, err
	}
	groupKey, err := groupKeyFn(packages)
	if err != nil {
		return Transcript{}, fmt.Errorf("ceremony: derive dkg group key: %w", err)
	}
	return Transcript{
		Participants: config.Participants,
		Threshold:    config.Threshold,
		GroupKey:     groupKey,
		Packages:     packages,
	}, nil
}

// TypeIDGroupKeyFact is the fact-type ID a committed DKG transcript is
// recorded under in the authority journal.
const TypeIDGroupKeyFact = "ceremony.dkg_group_key"

// EncodeGroupKeyFact serializes the transcript's group key and threshold
// for inclusion as a domain-generic fact payload.
func EncodeGroupKeyFact(t Transcript) []byte {
	out := append([]byte(nil), t.GroupKey...)
	out = append(out, byte(t.Threshold))
	return out
}
