package ceremony

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxrts/aura/internal/ids"
)

func guardianRecord(guardians []ids.AuthorityId, threshold int) *Record {
	participants := make([]Participant, len(guardians))
	for i, g := range guardians {
		participants[i] = Participant{Authority: g}
	}
	return New(ids.CeremonyId{1}, KindGuardian, participants, threshold, Prestate{}, 0)
}

func TestFinalizeGuardianCeremonyBuildsBindingsForAcceptingGuardians(t *testing.T) {
	principal := ids.AuthorityId{1}
	guardians := []ids.AuthorityId{{2}, {3}, {4}}
	proposal := GuardianProposal{Principal: principal, Guardians: guardians, Threshold: 2}

	r := guardianRecord(guardians, 2)
	require.NoError(t, r.BeginAwaitingEpoch())
	_, err := r.RecordResponse(guardians[0], Response{Accept: true})
	require.NoError(t, err)
	_, err = r.RecordResponse(guardians[1], Response{Accept: true})
	require.NoError(t, err)

	bindings, err := FinalizeGuardianCeremony(proposal, r)
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	for _, b := range bindings {
		require.Equal(t, principal, b.Principal)
		require.Equal(t, 2, b.Threshold)
	}
}

func TestFinalizeGuardianCeremonyRejectsBeforeThresholdReached(t *testing.T) {
	principal := ids.AuthorityId{1}
	guardians := []ids.AuthorityId{{2}, {3}, {4}}
	proposal := GuardianProposal{Principal: principal, Guardians: guardians, Threshold: 2}

	r := guardianRecord(guardians, 2)
	require.NoError(t, r.BeginAwaitingEpoch())
	_, err := r.RecordResponse(guardians[0], Response{Accept: true})
	require.NoError(t, err)

	_, err = FinalizeGuardianCeremony(proposal, r)
	require.Error(t, err)
}

func TestFinalizeGuardianCeremonyRejectsInvalidThreshold(t *testing.T) {
	proposal := GuardianProposal{Principal: ids.AuthorityId{1}, Guardians: []ids.AuthorityId{{2}}, Threshold: 0}
	_, err := FinalizeGuardianCeremony(proposal, guardianRecord([]ids.AuthorityId{{2}}, 1))
	require.Error(t, err)
}

func TestFinalizeGuardianCeremonyRejectsFewerAcceptsThanThreshold(t *testing.T) {
	principal := ids.AuthorityId{1}
	guardians := []ids.AuthorityId{{2}, {3}, {4}}
	proposal := GuardianProposal{Principal: principal, Guardians: guardians, Threshold: 2}

	r := guardianRecord(guardians, 2)
	require.NoError(t, r.BeginAwaitingEpoch())
	_, err := r.RecordResponse(guardians[0], Response{Accept: true})
	require.NoError(t, err)
	// Declines do not count toward the record's threshold, so with one
	// accept out of two required FinalizeGuardianCeremony rejects.
	_, err = r.RecordResponse(guardians[1], Response{Accept: false})
	require.NoError(t, err)
	_, err = r.RecordResponse(guardians[2], Response{Accept: false})
	require.NoError(t, err)

	_, err = FinalizeGuardianCeremony(proposal, r)
	require.Error(t, err)
}
