// Package relayer is the relay builder: the stateful component that turns
// a trusted slot into an IBC light-client ClientState/ConsensusState pair
// (Initialize), and a trusted sync-committee cursor into the ordered
// sequence of Header messages that advance it (Header). See spec.md §4.D.
package relayer

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"

	"github.com/informalsystems/ethlc-relay/config"
	"github.com/informalsystems/ethlc-relay/internal/beacon"
	"github.com/informalsystems/ethlc-relay/internal/execution"
	"github.com/informalsystems/ethlc-relay/lightclient"
	"github.com/informalsystems/ethlc-relay/proof"
)

// Builder orchestrates the beacon, execution, and proof capabilities to
// produce the light-client messages a relayer submits on-chain. It holds
// no state of its own between calls — the caller threads the
// TrustedSyncCommittee cursor through successive Header calls, and
// persists each emitted Header/ConsensusState itself.
type Builder struct {
	Beacon    beacon.Client
	Execution execution.Client
	Assembler *proof.Assembler
	Preset    config.Preset

	ibcHandlerAddr common.Address
}

// NewBuilder wires a Builder from its dependencies and the static
// configuration (contract address, preset) that does not vary per call.
func NewBuilder(cfg config.Config, beaconClient beacon.Client, executionClient execution.Client) *Builder {
	assembler := &proof.Assembler{
		Beacon:          beaconClient,
		Execution:       executionClient,
		IBCHandlerAddr:  cfg.IBCHandlerAddress,
		CommitmentsSlot: config.IBCHandlerCommitmentsSlot,
	}
	return &Builder{
		Beacon:         beaconClient,
		Execution:      executionClient,
		Assembler:      assembler,
		Preset:         cfg.Preset,
		ibcHandlerAddr: cfg.IBCHandlerAddress,
	}
}

// committeeSize returns the active preset's sync-committee cardinality.
func (b *Builder) committeeSize() (int, error) {
	size, _, err := b.Preset.Sizes()
	return size, err
}

// accountUpdate fetches the IBC handler's account proof at the execution
// height matching slot, with no storage keys — Header/Initialize only ever
// need the account's storage root, not any particular commitment value
// (see original relayer.account_update, which always passes an empty key
// list).
func (b *Builder) accountUpdate(ctx context.Context, slot uint64) (lightclient.AccountUpdate, error) {
	accountProof, storageProofs, err := b.Assembler.AccountProof(ctx, slot, nil)
	if err != nil {
		return lightclient.AccountUpdate{}, fmt.Errorf("relayer: account update at slot %d: %w", slot, err)
	}
	return lightclient.AccountUpdate{AccountProof: accountProof, StorageProofs: storageProofs}, nil
}

// Initialize builds the ClientState/ConsensusState pair a counterparty
// chain would be bootstrapped with, trusting the beacon header at
// trustedSlot. It takes trustedSlot exactly as given — see SPEC_FULL.md
// §4.D for why no "-1 slack" adjustment happens here.
func (b *Builder) Initialize(ctx context.Context, trustedSlot uint64) (lightclient.ClientState, lightclient.ConsensusState, lightclient.TrustedSyncCommittee, error) {
	committeeSize, err := b.committeeSize()
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, err
	}

	chainID, err := b.Execution.ChainID(ctx)
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: %w", err)
	}

	genesis, err := b.Beacon.Genesis(ctx)
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: %w", err)
	}

	spec, err := b.Beacon.Spec(ctx)
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: %w", err)
	}

	trustedHeader, err := b.Beacon.Header(ctx, beacon.Slot(trustedSlot))
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: %w", err)
	}

	bootstrap, err := b.Beacon.Bootstrap(ctx, trustedHeader.Root)
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: %w", err)
	}
	if bootstrap.Header.Beacon.Slot != trustedSlot {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, &BootstrapSlotMismatchError{Requested: trustedSlot, Got: bootstrap.Header.Beacon.Slot}
	}

	period := spec.Period()
	currentPeriod := trustedSlot / period

	updates, err := b.Beacon.LightClientUpdates(ctx, currentPeriod, 1)
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: %w", err)
	}
	if len(updates) != 1 {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, &UnexpectedUpdateArityError{Period: currentPeriod, Got: len(updates)}
	}
	update := updates[0]

	if update.FinalizedHeader.Beacon.Slot > trustedSlot {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, &PeriodWindowError{Msg: fmt.Sprintf("period update finalized slot %d is ahead of trusted slot %d", update.FinalizedHeader.Beacon.Slot, trustedSlot)}
	}
	if trustedSlot-update.FinalizedHeader.Beacon.Slot >= period {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, &PeriodWindowError{Msg: fmt.Sprintf("period update finalized slot %d is one period or more behind trusted slot %d", update.FinalizedHeader.Beacon.Slot, trustedSlot)}
	}

	account, err := b.accountUpdate(ctx, bootstrap.Header.Beacon.Slot)
	if err != nil {
		return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, err
	}

	clientState := lightclient.ClientState{
		ChainID:                      fmt.Sprintf("%d", chainID),
		GenesisValidatorsRoot:        genesis.GenesisValidatorsRoot,
		GenesisTime:                  genesis.GenesisTime,
		ForkParameters:               spec.Fork,
		SecondsPerSlot:               spec.SecondsPerSlot,
		SlotsPerEpoch:                spec.SlotsPerEpoch,
		EpochsPerSyncCommitteePeriod: spec.EpochsPerSyncCommitteePeriod,
		LatestSlot:                   trustedSlot,
		MinSyncCommitteeParticipants: 0,
		FrozenHeight:                 lightclient.ZeroHeight,
		IBCCommitmentSlot:            config.IBCHandlerCommitmentsSlot,
		IBCContractAddress:           b.ibcHandlerAddr,
	}

	var nextSyncCommitteePubkey *phase0.BLSPubKey
	var activeCommittee lightclient.ActiveSyncCommittee

	if update.NextSyncCommittee != nil {
		validated, err := lightclient.RoundTripSyncCommittee(*update.NextSyncCommittee, committeeSize)
		if err != nil {
			return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: next sync committee: %w", err)
		}
		pk := validated.AggregatePubkey
		nextSyncCommitteePubkey = &pk
		activeCommittee = lightclient.ActiveSyncCommittee{Kind: lightclient.Next, Committee: validated}
	} else {
		validated, err := lightclient.RoundTripSyncCommittee(bootstrap.CurrentSyncCommittee, committeeSize)
		if err != nil {
			return lightclient.ClientState{}, lightclient.ConsensusState{}, lightclient.TrustedSyncCommittee{}, fmt.Errorf("relayer: initialize: current sync committee: %w", err)
		}
		activeCommittee = lightclient.ActiveSyncCommittee{Kind: lightclient.Current, Committee: validated}
	}

	consensusState := lightclient.ConsensusState{
		Slot:                 bootstrap.Header.Beacon.Slot,
		StateRoot:            bootstrap.Header.Execution.StateRoot,
		StorageRoot:          account.AccountProof.StorageRoot,
		Timestamp:            bootstrap.Header.Execution.Timestamp * 1_000_000_000,
		CurrentSyncCommittee: bootstrap.CurrentSyncCommittee.AggregatePubkey,
		NextSyncCommittee:    nextSyncCommitteePubkey,
	}

	trustedSyncCommittee := lightclient.TrustedSyncCommittee{
		TrustedHeight: lightclient.Height{RevisionNumber: 0, RevisionHeight: trustedSlot},
		SyncCommittee: activeCommittee,
	}

	return clientState, consensusState, trustedSyncCommittee, nil
}

// Header advances a trusted cursor to the chain's current finalized slot,
// returning the ordered sequence of Header messages a counterparty chain
// would apply one by one, plus the cursor's new value. If the chain has
// made no finality progress past the cursor, it returns TargetNotAheadError
// and the cursor is unchanged (Go values are copied, so the caller's own
// variable was never mutated regardless).
func (b *Builder) Header(ctx context.Context, trusted lightclient.TrustedSyncCommittee) ([]lightclient.Header, lightclient.TrustedSyncCommittee, error) {
	committeeSize, err := b.committeeSize()
	if err != nil {
		return nil, trusted, err
	}

	spec, err := b.Beacon.Spec(ctx)
	if err != nil {
		return nil, trusted, fmt.Errorf("relayer: header: %w", err)
	}
	period := spec.Period()

	trustedSlot := trusted.TrustedHeight.RevisionHeight

	latest, err := b.Beacon.FinalityUpdate(ctx)
	if err != nil {
		return nil, trusted, fmt.Errorf("relayer: header: %w", err)
	}
	targetSlot := latest.FinalizedHeader.Beacon.Slot

	if !(trustedSlot < targetSlot) {
		return nil, trusted, &TargetNotAheadError{Trusted: trustedSlot, Target: targetSlot}
	}

	trustedPeriod := trustedSlot / period
	targetPeriod := targetSlot / period

	rawUpdates, err := b.Beacon.LightClientUpdates(ctx, trustedPeriod, targetPeriod-trustedPeriod+1)
	if err != nil {
		return nil, trusted, fmt.Errorf("relayer: header: %w", err)
	}

	updates := make([]lightclient.LightClientUpdate, 0, len(rawUpdates))
	for _, u := range rawUpdates {
		if trustedSlot < u.FinalizedHeader.Beacon.Slot && u.FinalizedHeader.Beacon.Slot <= targetSlot {
			updates = append(updates, u)
		}
	}

	cursor := trusted
	headers := make([]lightclient.Header, 0, len(updates)+1)

	if len(updates) > 0 {
		first := updates[0].FinalizedHeader.Beacon.Slot
		last := updates[len(updates)-1].FinalizedHeader.Beacon.Slot

		if first-trustedSlot > period {
			return nil, trusted, &PeriodWindowError{Msg: fmt.Sprintf("first update's finalized slot %d is more than one period ahead of trusted slot %d", first, trustedSlot)}
		}
		if targetSlot-last >= period {
			return nil, trusted, &PeriodWindowError{Msg: fmt.Sprintf("target slot %d is one period or more ahead of last update's finalized slot %d", targetSlot, last)}
		}

		for _, update := range updates {
			var newCommittee lightclient.ActiveSyncCommittee
			if update.NextSyncCommittee != nil {
				validated, err := lightclient.RoundTripSyncCommittee(*update.NextSyncCommittee, committeeSize)
				if err != nil {
					return nil, trusted, fmt.Errorf("relayer: header: next sync committee at slot %d: %w", update.FinalizedHeader.Beacon.Slot, err)
				}
				newCommittee = lightclient.ActiveSyncCommittee{Kind: lightclient.Next, Committee: validated}
			} else {
				newCommittee = lightclient.ActiveSyncCommittee{Kind: lightclient.Current, Committee: cursor.SyncCommittee.Committee}
			}

			account, err := b.accountUpdate(ctx, update.FinalizedHeader.Beacon.Slot)
			if err != nil {
				return nil, trusted, err
			}

			headers = append(headers, lightclient.Header{
				TrustedSyncCommittee: cursor,
				ConsensusUpdate:      update,
				AccountUpdate:        account,
			})

			cursor = lightclient.TrustedSyncCommittee{
				TrustedHeight: lightclient.Height{RevisionNumber: 0, RevisionHeight: update.FinalizedHeader.Beacon.Slot},
				SyncCommittee: newCommittee,
			}
		}
	}

	reachedTarget := len(headers) > 0 && headers[len(headers)-1].ConsensusUpdate.FinalizedHeader.Beacon.Slot == targetSlot
	if !reachedTarget {
		tailUpdate := lightclient.LightClientUpdate{
			AttestedHeader:  latest.AttestedHeader,
			FinalizedHeader: latest.FinalizedHeader,
			FinalityBranch:  latest.FinalityBranch,
			SyncAggregate:   latest.SyncAggregate,
			SignatureSlot:   latest.SignatureSlot,
		}

		account, err := b.accountUpdate(ctx, targetSlot)
		if err != nil {
			return nil, trusted, err
		}

		headers = append(headers, lightclient.Header{
			TrustedSyncCommittee: cursor,
			ConsensusUpdate:      tailUpdate,
			AccountUpdate:        account,
		})

		cursor = lightclient.TrustedSyncCommittee{
			TrustedHeight: lightclient.Height{RevisionNumber: 0, RevisionHeight: targetSlot},
			SyncCommittee: lightclient.ActiveSyncCommittee{Kind: lightclient.Current, Committee: cursor.SyncCommittee.Committee},
		}
	}

	return headers, cursor, nil
}

// Misbehaviour would assemble a dual-attestation equivocation proof from
// the beacon node's attester_slashings pool. Not implemented — see
// SPEC_FULL.md §1.
func (b *Builder) Misbehaviour(ctx context.Context) (lightclient.Misbehaviour, error) {
	return lightclient.Misbehaviour{}, &UnimplementedError{Op: "misbehaviour"}
}
