// Package proof assembles execution-layer account and storage proofs for
// the fixed IBC handler contract, rooted at the execution block matching
// a given beacon slot. See spec.md §4.C.
package proof

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/informalsystems/ethlc-relay/internal/beacon"
	"github.com/informalsystems/ethlc-relay/internal/execution"
	"github.com/informalsystems/ethlc-relay/lightclient"
)

// CommitmentPath is an abstract commitment key as the spec describes it:
// a Merkle path of which only the first element is actually used to
// derive a storage slot. Callers that already hold a bare 32-byte key
// should wrap it as CommitmentPath{key}.
type CommitmentPath [][]byte

// first returns path[0], or EmptyKeyPathError if the path has no
// elements (spec.md §4.C step 2).
func (p CommitmentPath) first(index int) ([]byte, error) {
	if len(p) == 0 {
		return nil, &EmptyKeyPathError{Index: index}
	}
	return p[0], nil
}

// Assembler is the proof-assembler component: given a beacon slot and a
// set of abstract commitment keys, it produces an AccountProof plus one
// StorageProof per key, rooted at the execution block matching that
// beacon slot.
type Assembler struct {
	Beacon          beacon.Client
	Execution       execution.Client
	IBCHandlerAddr  common.Address
	CommitmentsSlot uint64
}

// AccountProof runs the algorithm in spec.md §4.C: resolve slot to its
// execution height, derive one contract storage slot per commitment key,
// fetch eth_getProof at that height, and map the result back onto the
// spec's AccountProof/StorageProof shapes.
func (a *Assembler) AccountProof(ctx context.Context, slot uint64, keys []CommitmentPath) (lightclient.AccountProof, []lightclient.StorageProof, error) {
	executionHeight, err := a.Beacon.ExecutionHeight(ctx, beacon.Slot(slot))
	if err != nil {
		return lightclient.AccountProof{}, nil, fmt.Errorf("proof: resolving execution height for slot %d: %w", slot, err)
	}

	storageSlots := make([]common.Hash, len(keys))
	for i, key := range keys {
		first, err := key.first(i)
		if err != nil {
			return lightclient.AccountProof{}, nil, err
		}
		storageSlots[i] = a.deriveStorageSlot(first)
	}

	result, err := a.Execution.GetProof(ctx, a.IBCHandlerAddr, storageSlots, execution.BlockHeight(executionHeight))
	if err != nil {
		return lightclient.AccountProof{}, nil, fmt.Errorf("proof: get_proof at execution height %d: %w", executionHeight, err)
	}
	if len(result.StorageProof) != len(keys) {
		return lightclient.AccountProof{}, nil, &ProofArityError{Requested: len(keys), Got: len(result.StorageProof)}
	}

	accountProof := lightclient.AccountProof{
		StorageRoot: result.StorageHash,
		Proof:       result.AccountProof,
	}

	storageProofs := make([]lightclient.StorageProof, len(result.StorageProof))
	for i, sp := range result.StorageProof {
		storageProofs[i] = lightclient.StorageProof{
			Key:   sp.Key.Bytes32(),
			Value: sp.Value.Bytes32(),
			Proof: sp.Proof,
		}
	}

	return accountProof, storageProofs, nil
}

// deriveStorageSlot maps an abstract commitment key to the contract's
// storage slot using the standard Solidity mapping-slot derivation
// against the fixed commitments slot: keccak256(pad32(key) || pad32(slot)).
// See spec.md §4.C step 2 and §6 "Commitment-key derivation (bit-exact)".
func (a *Assembler) deriveStorageSlot(key []byte) common.Hash {
	paddedKey := common.LeftPadBytes(key, 32)
	paddedSlot := common.LeftPadBytes(new(big.Int).SetUint64(a.CommitmentsSlot).Bytes(), 32)
	return crypto.Keccak256Hash(paddedKey, paddedSlot)
}
