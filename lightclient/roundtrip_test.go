package lightclient_test

import (
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"

	"github.com/informalsystems/ethlc-relay/lightclient"
)

func pubkey(b byte) phase0.BLSPubKey {
	var pk phase0.BLSPubKey
	pk[0] = b
	return pk
}

func validCommittee(size int) lightclient.SyncCommittee {
	sc := lightclient.SyncCommittee{
		Pubkeys:         make([]phase0.BLSPubKey, size),
		AggregatePubkey: pubkey(0xff),
	}
	for i := range sc.Pubkeys {
		sc.Pubkeys[i] = pubkey(byte(i) + 1)
	}
	return sc
}

func TestRoundTripSyncCommittee_Valid(t *testing.T) {
	sc := validCommittee(32)
	decoded, err := lightclient.RoundTripSyncCommittee(sc, 32)
	require.NoError(t, err)
	require.Equal(t, sc, decoded)
}

func TestRoundTripSyncCommittee_WrongCardinality(t *testing.T) {
	sc := validCommittee(32)
	_, err := lightclient.RoundTripSyncCommittee(sc, 512)
	require.Error(t, err)
}

func TestRoundTripSyncCommittee_ZeroAggregatePubkey(t *testing.T) {
	sc := validCommittee(32)
	sc.AggregatePubkey = phase0.BLSPubKey{}
	_, err := lightclient.RoundTripSyncCommittee(sc, 32)
	require.Error(t, err)
}

func TestRoundTripSyncCommittee_ZeroMemberPubkey(t *testing.T) {
	sc := validCommittee(32)
	sc.Pubkeys[5] = phase0.BLSPubKey{}
	_, err := lightclient.RoundTripSyncCommittee(sc, 32)
	require.Error(t, err)
}

func TestSyncCommitteeValidate(t *testing.T) {
	sc := validCommittee(32)
	require.NoError(t, sc.Validate(32))
	require.Error(t, sc.Validate(16))
}
