package proof_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/informalsystems/ethlc-relay/internal/beacon"
	"github.com/informalsystems/ethlc-relay/internal/execution"
	"github.com/informalsystems/ethlc-relay/lightclient"
	"github.com/informalsystems/ethlc-relay/proof"
)

// stubBeacon only implements ExecutionHeight; every other method is
// unreachable from the assembler and panics if called.
type stubBeacon struct {
	height uint64
}

func (s *stubBeacon) Genesis(context.Context) (beacon.Genesis, error) { panic("not used") }
func (s *stubBeacon) Spec(context.Context) (beacon.Spec, error)       { panic("not used") }
func (s *stubBeacon) Header(context.Context, beacon.BlockID) (beacon.SignedBeaconBlockHeader, error) {
	panic("not used")
}
func (s *stubBeacon) Bootstrap(context.Context, phase0.Root) (beacon.LightClientBootstrap, error) {
	panic("not used")
}
func (s *stubBeacon) FinalityUpdate(context.Context) (beacon.LightClientFinalityUpdate, error) {
	panic("not used")
}
func (s *stubBeacon) LightClientUpdates(context.Context, uint64, uint64) ([]lightclient.LightClientUpdate, error) {
	panic("not used")
}
func (s *stubBeacon) ExecutionHeight(context.Context, beacon.BlockID) (uint64, error) {
	return s.height, nil
}

// stubExecution records the keys it was asked to prove and returns one
// proof entry per key, echoing the key back as the storage key.
type stubExecution struct {
	storageHash common.Hash
	gotKeys     []common.Hash
	gotHeight   execution.BlockHeight
}

func (s *stubExecution) ChainID(context.Context) (uint64, error) { panic("not used") }

func (s *stubExecution) GetProof(_ context.Context, _ common.Address, keys []common.Hash, at execution.BlockHeight) (execution.ProofResult, error) {
	s.gotKeys = keys
	s.gotHeight = at
	proofs := make([]execution.StorageProofEntry, len(keys))
	for i, k := range keys {
		proofs[i] = execution.StorageProofEntry{
			Key:   new(uint256.Int).SetBytes(k[:]),
			Value: new(uint256.Int).SetUint64(uint64(i) + 1),
			Proof: [][]byte{[]byte("node-" + k.Hex())},
		}
	}
	return execution.ProofResult{
		StorageHash:  s.storageHash,
		AccountProof: [][]byte{[]byte("account-node")},
		StorageProof: proofs,
	}, nil
}

const commitmentsSlot = 0

func expectedStorageSlot(key []byte) common.Hash {
	paddedKey := common.LeftPadBytes(key, 32)
	paddedSlot := common.LeftPadBytes(new(big.Int).SetUint64(commitmentsSlot).Bytes(), 32)
	return crypto.Keccak256Hash(paddedKey, paddedSlot)
}

func TestAssemblerAccountProof(t *testing.T) {
	ibcHandler := common.HexToAddress("0x00000000000000000000000000000000000abc")
	sb := &stubBeacon{height: 12345}
	se := &stubExecution{storageHash: common.Hash{0x01, 0x02}}

	a := &proof.Assembler{
		Beacon:          sb,
		Execution:       se,
		IBCHandlerAddr:  ibcHandler,
		CommitmentsSlot: commitmentsSlot,
	}

	key1 := append(make([]byte, 31), 0x01) // 32 bytes, value 1
	key2 := append(make([]byte, 31), 0x02)

	accountProof, storageProofs, err := a.AccountProof(context.Background(), 64, []proof.CommitmentPath{
		{key1},
		{key2},
	})
	require.NoError(t, err)

	require.Equal(t, se.storageHash, common.Hash(accountProof.StorageRoot))
	require.Equal(t, execution.BlockHeight(12345), se.gotHeight)
	require.Len(t, storageProofs, 2)

	require.Equal(t, expectedStorageSlot(key1), common.Hash(storageProofs[0].Key))
	require.Equal(t, expectedStorageSlot(key2), common.Hash(storageProofs[1].Key))
}

func TestAssemblerAccountProof_EmptyKeyPath(t *testing.T) {
	sb := &stubBeacon{height: 1}
	se := &stubExecution{}
	a := &proof.Assembler{Beacon: sb, Execution: se}

	_, _, err := a.AccountProof(context.Background(), 64, []proof.CommitmentPath{{}})

	var emptyPath *proof.EmptyKeyPathError
	require.ErrorAs(t, err, &emptyPath)
	require.Equal(t, 0, emptyPath.Index)
}

func TestAssemblerAccountProof_ProofArityMismatch(t *testing.T) {
	sb := &stubBeacon{height: 1}
	se := &arityMismatchExecution{}
	a := &proof.Assembler{Beacon: sb, Execution: se}

	_, _, err := a.AccountProof(context.Background(), 64, []proof.CommitmentPath{{[]byte{0x01}}})

	var arityErr *proof.ProofArityError
	require.ErrorAs(t, err, &arityErr)
}

// arityMismatchExecution always returns zero storage proofs regardless of
// how many keys were requested.
type arityMismatchExecution struct{}

func (a *arityMismatchExecution) ChainID(context.Context) (uint64, error) { panic("not used") }

func (a *arityMismatchExecution) GetProof(context.Context, common.Address, []common.Hash, execution.BlockHeight) (execution.ProofResult, error) {
	return execution.ProofResult{}, nil
}
