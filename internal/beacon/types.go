package beacon

import (
	"math/big"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"

	"github.com/informalsystems/ethlc-relay/lightclient"
)

// BlockID identifies a beacon block either by slot or by root, mirroring
// the beacon API's {slot|root} path parameter.
type BlockID struct {
	isRoot bool
	slot   uint64
	root   phase0.Root
}

// Slot addresses a block by its beacon slot number.
func Slot(s uint64) BlockID { return BlockID{slot: s} }

// Root addresses a block by its block root.
func Root(r phase0.Root) BlockID { return BlockID{isRoot: true, root: r} }

func (b BlockID) pathParam() string {
	if b.isRoot {
		return b.root.String()
	}
	return uintToString(b.slot)
}

// Genesis is the beacon chain's genesis record.
type Genesis struct {
	GenesisTime           uint64
	GenesisValidatorsRoot phase0.Root
}

// Spec is the subset of the beacon node's live config this module depends
// on: slot/period arithmetic and the fork schedule.
type Spec struct {
	SecondsPerSlot               uint64
	SlotsPerEpoch                uint64
	EpochsPerSyncCommitteePeriod uint64
	Fork                         lightclient.ForkParameters
}

// Period is P, the sync-committee period length in slots.
func (s Spec) Period() uint64 {
	return s.EpochsPerSyncCommitteePeriod * s.SlotsPerEpoch
}

// SignedBeaconBlockHeader is a beacon block header plus the root it
// hashes to (used to key a bootstrap request).
type SignedBeaconBlockHeader struct {
	Root   phase0.Root
	Header lightclient.BeaconBlockHeader
}

// LightClientBootstrap is a beacon-chain snapshot keyed by a finalized
// header root, carrying the current sync committee.
type LightClientBootstrap struct {
	Header                     lightclient.LightClientHeader
	CurrentSyncCommittee       lightclient.SyncCommittee
	CurrentSyncCommitteeBranch [][]byte
}

// LightClientFinalityUpdate is the latest beacon message attesting a
// finalized header.
type LightClientFinalityUpdate struct {
	AttestedHeader  lightclient.LightClientHeader
	FinalizedHeader lightclient.LightClientHeader
	FinalityBranch  [][]byte
	SyncAggregate   lightclient.SyncAggregate
	SignatureSlot   uint64
}

// specJSON mirrors ethereum/beaconapi.go's Spec struct: the beacon node's
// /eth/v1/config/spec response, keyed by the all-caps field names the
// consensus-spec YAML uses.
type specJSON struct {
	SecondsPerSlot               uint64 `json:"SECONDS_PER_SLOT,string"`
	SlotsPerEpoch                uint64 `json:"SLOTS_PER_EPOCH,string"`
	EpochsPerSyncCommitteePeriod uint64 `json:"EPOCHS_PER_SYNC_COMMITTEE_PERIOD,string"`

	GenesisForkVersion   string `json:"GENESIS_FORK_VERSION"`
	GenesisSlot          uint64 `json:"GENESIS_SLOT,string"`
	AltairForkVersion    string `json:"ALTAIR_FORK_VERSION"`
	AltairForkEpoch      uint64 `json:"ALTAIR_FORK_EPOCH,string"`
	BellatrixForkVersion string `json:"BELLATRIX_FORK_VERSION"`
	BellatrixForkEpoch   uint64 `json:"BELLATRIX_FORK_EPOCH,string"`
	CapellaForkVersion   string `json:"CAPELLA_FORK_VERSION"`
	CapellaForkEpoch     uint64 `json:"CAPELLA_FORK_EPOCH,string"`
	DenebForkVersion     string `json:"DENEB_FORK_VERSION"`
	DenebForkEpoch       uint64 `json:"DENEB_FORK_EPOCH,string"`
}

func (s specJSON) toDomain() Spec {
	fork := lightclient.ForkParameters{
		GenesisSlot: s.GenesisSlot,
		Altair:      lightclient.Fork{Epoch: s.AltairForkEpoch},
		Bellatrix:   lightclient.Fork{Epoch: s.BellatrixForkEpoch},
		Capella:     lightclient.Fork{Epoch: s.CapellaForkEpoch},
		Deneb:       lightclient.Fork{Epoch: s.DenebForkEpoch},
	}
	copy(fork.GenesisForkVersion[:], common.FromHex(s.GenesisForkVersion))
	copy(fork.Altair.Version[:], common.FromHex(s.AltairForkVersion))
	copy(fork.Bellatrix.Version[:], common.FromHex(s.BellatrixForkVersion))
	copy(fork.Capella.Version[:], common.FromHex(s.CapellaForkVersion))
	copy(fork.Deneb.Version[:], common.FromHex(s.DenebForkVersion))

	return Spec{
		SecondsPerSlot:               s.SecondsPerSlot,
		SlotsPerEpoch:                s.SlotsPerEpoch,
		EpochsPerSyncCommitteePeriod: s.EpochsPerSyncCommitteePeriod,
		Fork:                         fork,
	}
}

// --- wire JSON shapes, following ethereum/types.go's BeaconJSON/ExecutionJSON ---

type beaconHeaderJSON struct {
	Slot          uint64 `json:"slot,string"`
	ProposerIndex uint64 `json:"proposer_index,string"`
	ParentRoot    string `json:"parent_root"`
	StateRoot     string `json:"state_root"`
	BodyRoot      string `json:"body_root"`
}

func (b beaconHeaderJSON) toDomain() lightclient.BeaconBlockHeader {
	return lightclient.BeaconBlockHeader{
		Slot:          b.Slot,
		ProposerIndex: b.ProposerIndex,
		ParentRoot:    common.HexToHash(b.ParentRoot),
		StateRoot:     common.HexToHash(b.StateRoot),
		BodyRoot:      common.HexToHash(b.BodyRoot),
	}
}

type executionPayloadJSON struct {
	ParentHash       string `json:"parent_hash"`
	FeeRecipient     string `json:"fee_recipient"`
	StateRoot        string `json:"state_root"`
	ReceiptsRoot     string `json:"receipts_root"`
	LogsBloom        string `json:"logs_bloom"`
	PrevRandao       string `json:"prev_randao"`
	BlockNumber      uint64 `json:"block_number,string"`
	GasLimit         uint64 `json:"gas_limit,string"`
	GasUsed          uint64 `json:"gas_used,string"`
	Timestamp        uint64 `json:"timestamp,string"`
	ExtraData        string `json:"extra_data"`
	BaseFeePerGas    string `json:"base_fee_per_gas"`
	BlockHash        string `json:"block_hash"`
	TransactionsRoot string `json:"transactions_root"`
	WithdrawalsRoot  string `json:"withdrawals_root"`
	BlobGasUsed      uint64 `json:"blob_gas_used,string"`
	ExcessBlobGas    uint64 `json:"excess_blob_gas,string"`
}

func (e executionPayloadJSON) toDomain() lightclient.ExecutionPayloadHeader {
	baseFee, _ := new(big.Int).SetString(e.BaseFeePerGas, 10)
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	var baseFeeBE [32]byte
	baseFee.FillBytes(baseFeeBE[:])

	return lightclient.ExecutionPayloadHeader{
		ParentHash:       common.HexToHash(e.ParentHash),
		FeeRecipient:     common.HexToAddress(e.FeeRecipient),
		StateRoot:        common.HexToHash(e.StateRoot),
		ReceiptsRoot:     common.HexToHash(e.ReceiptsRoot),
		LogsBloom:        common.FromHex(e.LogsBloom),
		PrevRandao:       common.HexToHash(e.PrevRandao),
		BlockNumber:      e.BlockNumber,
		GasLimit:         e.GasLimit,
		GasUsed:          e.GasUsed,
		Timestamp:        e.Timestamp,
		ExtraData:        common.FromHex(e.ExtraData),
		BaseFeePerGas:    baseFeeBE,
		BlockHash:        common.HexToHash(e.BlockHash),
		TransactionsRoot: common.HexToHash(e.TransactionsRoot),
		WithdrawalsRoot:  common.HexToHash(e.WithdrawalsRoot),
		BlobGasUsed:      e.BlobGasUsed,
		ExcessBlobGas:    e.ExcessBlobGas,
	}
}

type lightClientHeaderJSON struct {
	Beacon          beaconHeaderJSON     `json:"beacon"`
	Execution       executionPayloadJSON `json:"execution"`
	ExecutionBranch []string             `json:"execution_branch"`
}

func (l lightClientHeaderJSON) toDomain() lightclient.LightClientHeader {
	return lightclient.LightClientHeader{
		Beacon:          l.Beacon.toDomain(),
		Execution:       l.Execution.toDomain(),
		ExecutionBranch: hexSliceToBytes(l.ExecutionBranch),
	}
}

type syncCommitteeJSON struct {
	Pubkeys         []string `json:"pubkeys"`
	AggregatePubkey string   `json:"aggregate_pubkey"`
}

func (s syncCommitteeJSON) toDomain() (lightclient.SyncCommittee, error) {
	sc := lightclient.SyncCommittee{
		Pubkeys: make([]phase0.BLSPubKey, len(s.Pubkeys)),
	}
	for i, pk := range s.Pubkeys {
		copy(sc.Pubkeys[i][:], common.FromHex(pk))
	}
	copy(sc.AggregatePubkey[:], common.FromHex(s.AggregatePubkey))
	return sc, nil
}

type syncAggregateJSON struct {
	SyncCommitteeBits      string `json:"sync_committee_bits"`
	SyncCommitteeSignature string `json:"sync_committee_signature"`
}

func (s syncAggregateJSON) toDomain() lightclient.SyncAggregate {
	return lightclient.SyncAggregate{
		SyncCommitteeBits:      common.FromHex(s.SyncCommitteeBits),
		SyncCommitteeSignature: common.FromHex(s.SyncCommitteeSignature),
	}
}

type bootstrapJSON struct {
	Data struct {
		Header                     lightClientHeaderJSON `json:"header"`
		CurrentSyncCommittee       syncCommitteeJSON      `json:"current_sync_committee"`
		CurrentSyncCommitteeBranch []string                `json:"current_sync_committee_branch"`
	} `json:"data"`
}

type finalityUpdateJSON struct {
	Data struct {
		AttestedHeader  lightClientHeaderJSON `json:"attested_header"`
		FinalizedHeader lightClientHeaderJSON `json:"finalized_header"`
		FinalityBranch  []string              `json:"finality_branch"`
		SyncAggregate   syncAggregateJSON      `json:"sync_aggregate"`
		SignatureSlot   uint64                 `json:"signature_slot,string"`
	} `json:"data"`
}

type lightClientUpdateJSON struct {
	Data struct {
		AttestedHeader          lightClientHeaderJSON `json:"attested_header"`
		NextSyncCommittee       *syncCommitteeJSON     `json:"next_sync_committee"`
		NextSyncCommitteeBranch []string               `json:"next_sync_committee_branch"`
		FinalizedHeader         lightClientHeaderJSON `json:"finalized_header"`
		FinalityBranch          []string               `json:"finality_branch"`
		SyncAggregate           syncAggregateJSON      `json:"sync_aggregate"`
		SignatureSlot           uint64                 `json:"signature_slot,string"`
	} `json:"data"`
}

func (l lightClientUpdateJSON) toDomain() (lightclient.LightClientUpdate, error) {
	var nextSC *lightclient.SyncCommittee
	var nextBranch [][]byte
	if l.Data.NextSyncCommittee != nil {
		sc, err := l.Data.NextSyncCommittee.toDomain()
		if err != nil {
			return lightclient.LightClientUpdate{}, err
		}
		nextSC = &sc
		nextBranch = hexSliceToBytes(l.Data.NextSyncCommitteeBranch)
	}

	return lightclient.LightClientUpdate{
		AttestedHeader:          l.Data.AttestedHeader.toDomain(),
		NextSyncCommittee:       nextSC,
		NextSyncCommitteeBranch: nextBranch,
		FinalizedHeader:         l.Data.FinalizedHeader.toDomain(),
		FinalityBranch:          hexSliceToBytes(l.Data.FinalityBranch),
		SyncAggregate:           l.Data.SyncAggregate.toDomain(),
		SignatureSlot:           l.Data.SignatureSlot,
	}, nil
}

type lightClientUpdatesResponseJSON []lightClientUpdateJSON

func hexSliceToBytes(hexes []string) [][]byte {
	if hexes == nil {
		return nil
	}
	out := make([][]byte, len(hexes))
	for i, h := range hexes {
		out[i] = common.FromHex(h)
	}
	return out
}

func uintToString(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}
