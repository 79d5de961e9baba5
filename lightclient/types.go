// Package lightclient holds the data model the relay builder emits: the
// union.ibc.lightclients.ethereum.v1 message shapes (ClientState,
// ConsensusState, Header, LightClientUpdate, SyncCommittee, ...), carried
// as plain Go structs. Wire-level protobuf byte layout is out of scope
// here (see DESIGN.md) — what matters to callers is field shape and the
// invariants in Validate.
package lightclient

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// Height is (revision_number, revision_height); the core always pins
// revision_number to 0 and uses revision_height as a beacon slot.
type Height struct {
	RevisionNumber uint64
	RevisionHeight uint64
}

// ZeroHeight is the "not frozen" sentinel value.
var ZeroHeight = Height{}

func (h Height) String() string {
	return fmt.Sprintf("%d-%d", h.RevisionNumber, h.RevisionHeight)
}

// Less reports whether h occurs strictly before o within the same revision.
func (h Height) Less(o Height) bool {
	return h.RevisionNumber == o.RevisionNumber && h.RevisionHeight < o.RevisionHeight
}

// Fork is one entry of the fork schedule (version + activation epoch).
type Fork struct {
	Version [4]byte
	Epoch   uint64
}

// ForkParameters is the beacon spec's fork schedule, Altair through Deneb.
type ForkParameters struct {
	GenesisForkVersion [4]byte
	GenesisSlot        uint64
	Altair             Fork
	Bellatrix          Fork
	Capella            Fork
	Deneb              Fork
}

// ClientState is emitted once, at Builder.Initialize, and never mutated
// afterwards by this module.
type ClientState struct {
	ChainID                      string
	GenesisValidatorsRoot        phase0.Root
	GenesisTime                  uint64
	ForkParameters               ForkParameters
	SecondsPerSlot               uint64
	SlotsPerEpoch                uint64
	EpochsPerSyncCommitteePeriod uint64
	LatestSlot                   uint64
	MinSyncCommitteeParticipants uint64
	FrozenHeight                 Height
	IBCCommitmentSlot            uint64
	IBCContractAddress           [20]byte
}

// Period is P, the sync-committee period length in slots.
func (c ClientState) Period() uint64 {
	return c.EpochsPerSyncCommitteePeriod * c.SlotsPerEpoch
}

// ConsensusState is emitted at initialize, and again (conceptually, by the
// caller persisting each Header) once per finalized slot thereafter.
type ConsensusState struct {
	Slot                uint64
	StateRoot           phase0.Root
	StorageRoot         [32]byte
	Timestamp           uint64 // nanoseconds, always execution.timestamp * 1e9
	CurrentSyncCommittee phase0.BLSPubKey
	NextSyncCommittee    *phase0.BLSPubKey
}

// SyncCommittee is the full committee of SyncCommitteeSize validators.
// Pubkeys is sized by the active preset (32 for Minimal, 512 for Mainnet);
// see config.Preset.
type SyncCommittee struct {
	Pubkeys         []phase0.BLSPubKey
	AggregatePubkey phase0.BLSPubKey
}

// Validate checks committee cardinality and BLS point form (48-byte
// compressed points, non-zero). It does not verify the points are valid
// curve elements — no crypto happens in this module (see spec.md §9).
func (sc SyncCommittee) Validate(expectedSize int) error {
	if len(sc.Pubkeys) != expectedSize {
		return fmt.Errorf("lightclient: sync committee has %d pubkeys, want %d", len(sc.Pubkeys), expectedSize)
	}
	if isZeroBLSPubKey(sc.AggregatePubkey) {
		return fmt.Errorf("lightclient: sync committee aggregate pubkey is all-zero")
	}
	for i, pk := range sc.Pubkeys {
		if isZeroBLSPubKey(pk) {
			return fmt.Errorf("lightclient: sync committee pubkey %d is all-zero", i)
		}
	}
	return nil
}

func isZeroBLSPubKey(pk phase0.BLSPubKey) bool {
	for _, b := range pk {
		if b != 0 {
			return false
		}
	}
	return true
}

// ActiveSyncCommitteeKind distinguishes whether a TrustedSyncCommittee's
// committee is the slot's current committee, or a next committee that a
// prior update already rotated in.
type ActiveSyncCommitteeKind int

const (
	Current ActiveSyncCommitteeKind = iota
	Next
)

func (k ActiveSyncCommitteeKind) String() string {
	if k == Next {
		return "next"
	}
	return "current"
}

// ActiveSyncCommittee is the Go rendering of the source's
// ActiveSyncCommittee<C> enum (Current(C) | Next(C)).
type ActiveSyncCommittee struct {
	Kind      ActiveSyncCommitteeKind
	Committee SyncCommittee
}

// TrustedSyncCommittee is the cursor the relay builder advances across
// Header calls.
type TrustedSyncCommittee struct {
	TrustedHeight Height
	SyncCommittee ActiveSyncCommittee
}

// BeaconBlockHeader is the SSZ BeaconBlockHeader as carried in a
// LightClientHeader.
type BeaconBlockHeader struct {
	Slot          uint64
	ProposerIndex uint64
	ParentRoot    phase0.Root
	StateRoot     phase0.Root
	BodyRoot      phase0.Root
}

// ExecutionPayloadHeader is the execution-layer portion of a
// LightClientHeader (post-Capella fields included; pre-Capella updates
// leave WithdrawalsRoot zeroed).
type ExecutionPayloadHeader struct {
	ParentHash       [32]byte
	FeeRecipient     [20]byte
	StateRoot        [32]byte
	ReceiptsRoot     [32]byte
	LogsBloom        []byte // as returned by the beacon node; length not checked against the preset
	PrevRandao       [32]byte
	BlockNumber      uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64 // seconds, NOT yet normalized to nanos
	ExtraData        []byte
	BaseFeePerGas    [32]byte // big-endian U256
	BlockHash        [32]byte
	TransactionsRoot phase0.Root
	WithdrawalsRoot  phase0.Root
	BlobGasUsed      uint64
	ExcessBlobGas    uint64
}

// LightClientHeader pairs a beacon header with its execution payload and
// the Merkle branch proving the payload is committed to by the beacon
// block body.
type LightClientHeader struct {
	Beacon          BeaconBlockHeader
	Execution       ExecutionPayloadHeader
	ExecutionBranch [][]byte
}

// SyncAggregate is the aggregate BLS signature over an attested header by
// (a subset of) the current sync committee.
type SyncAggregate struct {
	SyncCommitteeBits      []byte
	SyncCommitteeSignature []byte // 96 bytes, BLS G2
}

// LightClientUpdate is a per-period (or finality) update message: an
// attested header, an optional next-committee rotation, the finalized
// header it actually proves, and the signature attesting to it.
type LightClientUpdate struct {
	AttestedHeader          LightClientHeader
	NextSyncCommittee       *SyncCommittee
	NextSyncCommitteeBranch [][]byte
	FinalizedHeader         LightClientHeader
	FinalityBranch          [][]byte
	SyncAggregate           SyncAggregate
	SignatureSlot           uint64
}

// AccountProof is a Merkle-Patricia proof of the IBC handler contract's
// account state (in particular its storage root) at a given execution
// block.
type AccountProof struct {
	StorageRoot [32]byte
	Proof       [][]byte
}

// StorageProof proves a single storage slot's value within that account.
type StorageProof struct {
	Key   [32]byte
	Value [32]byte
	Proof [][]byte
}

// AccountUpdate bundles the account proof with zero or more storage
// proofs gathered at the same execution height.
type AccountUpdate struct {
	AccountProof  AccountProof
	StorageProofs []StorageProof
}

// Misbehaviour would carry two conflicting LightClientUpdates attesting
// different finalized headers for the same trusted committee, proving a
// sync-committee equivocation. Field-shape only; Builder.Misbehaviour is
// not implemented (see SPEC_FULL.md §1), so nothing in this module
// constructs one today.
type Misbehaviour struct {
	TrustedSyncCommittee TrustedSyncCommittee
	Update1              LightClientUpdate
	Update2              LightClientUpdate
}

// Header is one update message in the sequence Builder.Header emits: the
// trusted committee it was built against, the consensus update that
// advances finality/committee state, and the execution-layer account
// proof anchoring commitment values at the new finalized slot.
type Header struct {
	TrustedSyncCommittee TrustedSyncCommittee
	ConsensusUpdate      LightClientUpdate
	AccountUpdate        AccountUpdate
}
