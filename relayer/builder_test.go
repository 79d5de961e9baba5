package relayer_test

import (
	"context"
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/informalsystems/ethlc-relay/config"
	"github.com/informalsystems/ethlc-relay/internal/beacon"
	"github.com/informalsystems/ethlc-relay/internal/execution"
	"github.com/informalsystems/ethlc-relay/lightclient"
	"github.com/informalsystems/ethlc-relay/relayer"
)

// fakeBeacon is a hand-rolled beacon.Client double: each field is a
// canned response (or a function of the request), set up per test.
type fakeBeacon struct {
	genesis  beacon.Genesis
	spec     beacon.Spec
	headers  map[beacon.BlockID]beacon.SignedBeaconBlockHeader
	bootstrap map[phase0.Root]beacon.LightClientBootstrap
	finality beacon.LightClientFinalityUpdate
	updates  map[uint64][]lightclient.LightClientUpdate // keyed by startPeriod
	execHeights map[beacon.BlockID]uint64
}

func (f *fakeBeacon) Genesis(context.Context) (beacon.Genesis, error) { return f.genesis, nil }
func (f *fakeBeacon) Spec(context.Context) (beacon.Spec, error)       { return f.spec, nil }

func (f *fakeBeacon) Header(_ context.Context, id beacon.BlockID) (beacon.SignedBeaconBlockHeader, error) {
	h, ok := f.headers[id]
	if !ok {
		return beacon.SignedBeaconBlockHeader{}, &beacon.NotFoundError{Op: "header"}
	}
	return h, nil
}

func (f *fakeBeacon) Bootstrap(_ context.Context, root phase0.Root) (beacon.LightClientBootstrap, error) {
	b, ok := f.bootstrap[root]
	if !ok {
		return beacon.LightClientBootstrap{}, &beacon.NotFoundError{Op: "bootstrap"}
	}
	return b, nil
}

func (f *fakeBeacon) FinalityUpdate(context.Context) (beacon.LightClientFinalityUpdate, error) {
	return f.finality, nil
}

func (f *fakeBeacon) LightClientUpdates(_ context.Context, startPeriod, _ uint64) ([]lightclient.LightClientUpdate, error) {
	return f.updates[startPeriod], nil
}

func (f *fakeBeacon) ExecutionHeight(_ context.Context, id beacon.BlockID) (uint64, error) {
	return f.execHeights[id], nil
}

// fakeExecution is a hand-rolled execution.Client double.
type fakeExecution struct {
	chainID     uint64
	storageHash common.Hash
	accountProof [][]byte
}

func (f *fakeExecution) ChainID(context.Context) (uint64, error) { return f.chainID, nil }

func (f *fakeExecution) GetProof(_ context.Context, _ common.Address, keys []common.Hash, _ execution.BlockHeight) (execution.ProofResult, error) {
	proof := make([]execution.StorageProofEntry, len(keys))
	for i, k := range keys {
		proof[i] = execution.StorageProofEntry{
			Key:   new(uint256.Int).SetBytes(k[:]),
			Value: new(uint256.Int).SetUint64(uint64(i) + 1),
			Proof: [][]byte{[]byte("node")},
		}
	}
	return execution.ProofResult{
		StorageHash:  f.storageHash,
		AccountProof: f.accountProof,
		StorageProof: proof,
	}, nil
}

func pubkey(b byte) phase0.BLSPubKey {
	var pk phase0.BLSPubKey
	pk[0] = b
	return pk
}

func committee(seed byte, size int) lightclient.SyncCommittee {
	sc := lightclient.SyncCommittee{
		Pubkeys:         make([]phase0.BLSPubKey, size),
		AggregatePubkey: pubkey(seed),
	}
	for i := range sc.Pubkeys {
		sc.Pubkeys[i] = pubkey(seed + 1 + byte(i))
	}
	return sc
}

const minimalPeriod = 64 // EpochsPerSyncCommitteePeriod(8) * SlotsPerEpoch(8)

func minimalSpec() beacon.Spec {
	return beacon.Spec{SecondsPerSlot: 12, SlotsPerEpoch: 8, EpochsPerSyncCommitteePeriod: 8}
}

func testConfig() config.Config {
	return config.Config{
		IBCHandlerAddress: common.HexToAddress("0x00000000000000000000000000000000000abc"),
		Preset:            config.Minimal,
	}
}

// S1: initialize(slot=64) with a next-committee update at the same slot
// yields a Next cursor and a populated next_sync_committee.
func TestBuilderInitialize_S1(t *testing.T) {
	root := phase0.Root{0x01}
	cc0 := committee(0x10, 32)
	sc1 := committee(0x20, 32)

	fb := &fakeBeacon{
		genesis: beacon.Genesis{GenesisTime: 1700000000, GenesisValidatorsRoot: phase0.Root{0xaa}},
		spec:    minimalSpec(),
		headers: map[beacon.BlockID]beacon.SignedBeaconBlockHeader{
			beacon.Slot(64): {Root: root, Header: lightclient.BeaconBlockHeader{Slot: 64}},
		},
		bootstrap: map[phase0.Root]beacon.LightClientBootstrap{
			root: {
				Header: lightclient.LightClientHeader{
					Beacon:    lightclient.BeaconBlockHeader{Slot: 64},
					Execution: lightclient.ExecutionPayloadHeader{StateRoot: [32]byte{0x02}, BlockNumber: 1000, Timestamp: 1700000768},
				},
				CurrentSyncCommittee: cc0,
			},
		},
		updates: map[uint64][]lightclient.LightClientUpdate{
			1: {{
				FinalizedHeader:   lightclient.LightClientHeader{Beacon: lightclient.BeaconBlockHeader{Slot: 64}},
				NextSyncCommittee: &sc1,
			}},
		},
		execHeights: map[beacon.BlockID]uint64{
			beacon.Slot(64): 1000,
		},
	}
	fe := &fakeExecution{chainID: 1337, storageHash: common.Hash{0x03}}

	b := relayer.NewBuilder(testConfig(), fb, fe)
	clientState, consensusState, cursor, err := b.Initialize(context.Background(), 64)
	require.NoError(t, err)

	require.Equal(t, uint64(64), clientState.LatestSlot)
	require.Equal(t, uint64(1700000768*1_000_000_000), consensusState.Timestamp)
	require.NotNil(t, consensusState.NextSyncCommittee)
	require.Equal(t, sc1.AggregatePubkey, *consensusState.NextSyncCommittee)

	require.Equal(t, lightclient.Next, cursor.SyncCommittee.Kind)
	require.Equal(t, uint64(64), cursor.TrustedHeight.RevisionHeight)
	require.Equal(t, sc1.AggregatePubkey, cursor.SyncCommittee.Committee.AggregatePubkey)
}

// S4: a bootstrap whose header slot disagrees with the requested slot is
// a beacon-node inconsistency.
func TestBuilderInitialize_S4_BootstrapSlotMismatch(t *testing.T) {
	root := phase0.Root{0x01}
	fb := &fakeBeacon{
		genesis: beacon.Genesis{},
		spec:    minimalSpec(),
		headers: map[beacon.BlockID]beacon.SignedBeaconBlockHeader{
			beacon.Slot(64): {Root: root, Header: lightclient.BeaconBlockHeader{Slot: 64}},
		},
		bootstrap: map[phase0.Root]beacon.LightClientBootstrap{
			root: {
				Header: lightclient.LightClientHeader{Beacon: lightclient.BeaconBlockHeader{Slot: 65}},
			},
		},
	}
	fe := &fakeExecution{chainID: 1337}

	b := relayer.NewBuilder(testConfig(), fb, fe)
	_, _, _, err := b.Initialize(context.Background(), 64)

	var mismatch *relayer.BootstrapSlotMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, uint64(64), mismatch.Requested)
	require.Equal(t, uint64(65), mismatch.Got)
}

// S2-shaped: one interim update carrying no next committee, followed by a
// synthetic tail header that completes finality progress to target_slot.
// Numbers are chosen (unlike the spec's illustrative 64/128/200 triple) to
// satisfy the builder's own gap invariants: target_slot - last update's
// slot must stay under one period.
func TestBuilderHeader_InterimPlusSyntheticTail(t *testing.T) {
	cc := committee(0x10, 32)
	trusted := lightclient.TrustedSyncCommittee{
		TrustedHeight: lightclient.Height{RevisionHeight: 64},
		SyncCommittee: lightclient.ActiveSyncCommittee{Kind: lightclient.Next, Committee: cc},
	}

	interim := lightclient.LightClientUpdate{
		FinalizedHeader: lightclient.LightClientHeader{Beacon: lightclient.BeaconBlockHeader{Slot: 100}},
	}
	latest := beacon.LightClientFinalityUpdate{
		FinalizedHeader: lightclient.LightClientHeader{Beacon: lightclient.BeaconBlockHeader{Slot: 150}},
	}

	fb := &fakeBeacon{
		spec:     minimalSpec(),
		finality: latest,
		updates: map[uint64][]lightclient.LightClientUpdate{
			1: {interim},
		},
		execHeights: map[beacon.BlockID]uint64{
			beacon.Slot(100): 2000,
			beacon.Slot(150): 2050,
		},
	}
	fe := &fakeExecution{chainID: 1337, storageHash: common.Hash{0x04}}

	b := relayer.NewBuilder(testConfig(), fb, fe)
	headers, cursor, err := b.Header(context.Background(), trusted)
	require.NoError(t, err)

	require.Len(t, headers, 2)
	require.Equal(t, uint64(100), headers[0].ConsensusUpdate.FinalizedHeader.Beacon.Slot)
	require.Equal(t, uint64(64), headers[0].TrustedSyncCommittee.TrustedHeight.RevisionHeight)
	require.Equal(t, uint64(150), headers[1].ConsensusUpdate.FinalizedHeader.Beacon.Slot)
	require.Equal(t, uint64(100), headers[1].TrustedSyncCommittee.TrustedHeight.RevisionHeight)

	require.Equal(t, uint64(150), cursor.TrustedHeight.RevisionHeight)
	require.Equal(t, lightclient.Current, cursor.SyncCommittee.Kind)
	// carry-over: the interim update had no next committee, so the
	// committee threaded through is still cc.
	require.Equal(t, cc.AggregatePubkey, cursor.SyncCommittee.Committee.AggregatePubkey)
}

// S3: no finality progress past the cursor is a caller-retryable error,
// not a beacon-node inconsistency.
func TestBuilderHeader_S3_TargetNotAhead(t *testing.T) {
	trusted := lightclient.TrustedSyncCommittee{
		TrustedHeight: lightclient.Height{RevisionHeight: 64},
		SyncCommittee: lightclient.ActiveSyncCommittee{Kind: lightclient.Current, Committee: committee(0x10, 32)},
	}
	fb := &fakeBeacon{
		spec:     minimalSpec(),
		finality: beacon.LightClientFinalityUpdate{FinalizedHeader: lightclient.LightClientHeader{Beacon: lightclient.BeaconBlockHeader{Slot: 64}}},
	}
	fe := &fakeExecution{chainID: 1337}

	b := relayer.NewBuilder(testConfig(), fb, fe)
	headers, cursor, err := b.Header(context.Background(), trusted)

	var notAhead *relayer.TargetNotAheadError
	require.ErrorAs(t, err, &notAhead)
	require.Nil(t, headers)
	require.Equal(t, trusted, cursor)
}

// S5: no light_client_updates fall in the window, target within one
// period of trusted — exactly one synthetic tail header, committee
// carried over unchanged.
func TestBuilderHeader_S5_SyntheticTailOnly(t *testing.T) {
	cc := committee(0x30, 32)
	trusted := lightclient.TrustedSyncCommittee{
		TrustedHeight: lightclient.Height{RevisionHeight: 64},
		SyncCommittee: lightclient.ActiveSyncCommittee{Kind: lightclient.Current, Committee: cc},
	}
	latest := beacon.LightClientFinalityUpdate{FinalizedHeader: lightclient.LightClientHeader{Beacon: lightclient.BeaconBlockHeader{Slot: 100}}}

	fb := &fakeBeacon{
		spec:     minimalSpec(),
		finality: latest,
		updates:  map[uint64][]lightclient.LightClientUpdate{1: nil},
		execHeights: map[beacon.BlockID]uint64{
			beacon.Slot(100): 3000,
		},
	}
	fe := &fakeExecution{chainID: 1337, storageHash: common.Hash{0x05}}

	b := relayer.NewBuilder(testConfig(), fb, fe)
	headers, cursor, err := b.Header(context.Background(), trusted)
	require.NoError(t, err)

	require.Len(t, headers, 1)
	require.Equal(t, uint64(100), headers[0].ConsensusUpdate.FinalizedHeader.Beacon.Slot)
	require.Equal(t, uint64(64), headers[0].TrustedSyncCommittee.TrustedHeight.RevisionHeight)
	require.Equal(t, lightclient.Current, cursor.SyncCommittee.Kind)
	require.Equal(t, cc.AggregatePubkey, cursor.SyncCommittee.Committee.AggregatePubkey)
}

func TestBuilderMisbehaviour_Unimplemented(t *testing.T) {
	fb := &fakeBeacon{}
	fe := &fakeExecution{}
	b := relayer.NewBuilder(testConfig(), fb, fe)

	_, err := b.Misbehaviour(context.Background())
	var unimpl *relayer.UnimplementedError
	require.ErrorAs(t, err, &unimpl)
}
