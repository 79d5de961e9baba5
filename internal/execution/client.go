// Package execution is the read-only view of an execution node the relay
// builder depends on: chain id and eth_getProof at a specific block
// height. See spec.md §4.B.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	retry "github.com/avast/retry-go/v4"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// BlockHeight addresses a specific execution block by number. The relay
// builder always derives this from beacon.Client.ExecutionHeight — proofs
// must never be taken at a raw beacon slot (spec.md §9).
type BlockHeight uint64

func (b BlockHeight) hex() string { return hexutil.EncodeUint64(uint64(b)) }

// StorageProofEntry is one entry of eth_getProof's storage_proof array.
type StorageProofEntry struct {
	Key   *uint256.Int
	Value *uint256.Int
	Proof [][]byte
}

// ProofResult is the decoded eth_getProof response.
type ProofResult struct {
	StorageHash  common.Hash
	AccountProof [][]byte
	StorageProof []StorageProofEntry
}

// Client is the execution capability.
type Client interface {
	ChainID(ctx context.Context) (uint64, error)
	GetProof(ctx context.Context, address common.Address, keys []common.Hash, at BlockHeight) (ProofResult, error)
}

// RPCClient is the production Client: go-ethereum's ethclient for
// chain-id/dialing, and a raw eth_getProof JSON-RPC call, following
// ethereum/ethapi.go.
type RPCClient struct {
	client  *ethclient.Client
	log     zerolog.Logger
	retries uint
}

// Dial connects to an execution node's JSON-RPC endpoint.
func Dial(ctx context.Context, rpc string, log zerolog.Logger) (*RPCClient, error) {
	client, err := ethclient.DialContext(ctx, rpc)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return &RPCClient{client: client, log: log, retries: 5}, nil
}

func (c *RPCClient) retryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(200 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Uint("attempt", n).Err(err).Msg("execution request retrying")
		}),
	}
}

func (c *RPCClient) ChainID(ctx context.Context) (uint64, error) {
	id, err := retry.DoWithData(func() (uint64, error) {
		id, err := c.client.ChainID(ctx)
		if err != nil {
			return 0, err
		}
		return id.Uint64(), nil
	}, c.retryOpts(ctx)...)
	if err != nil {
		return 0, &TransportError{Op: "chain_id", Err: err}
	}
	return id, nil
}

type getProofResponseJSON struct {
	StorageHash  string `json:"storageHash"`
	AccountProof []string `json:"accountProof"`
	StorageProof []struct {
		Key   string   `json:"key"`
		Value string   `json:"value"`
		Proof []string `json:"proof"`
	} `json:"storageProof"`
}

func (c *RPCClient) GetProof(ctx context.Context, address common.Address, keys []common.Hash, at BlockHeight) (ProofResult, error) {
	keyStrings := make([]string, len(keys))
	for i, k := range keys {
		keyStrings[i] = k.Hex()
	}

	raw, err := retry.DoWithData(func() (getProofResponseJSON, error) {
		var out getProofResponseJSON
		if err := c.client.Client().CallContext(ctx, &out, "eth_getProof", address, keyStrings, at.hex()); err != nil {
			return getProofResponseJSON{}, err
		}
		return out, nil
	}, c.retryOpts(ctx)...)
	if err != nil {
		return ProofResult{}, &TransportError{Op: "get_proof", Err: err}
	}

	if len(raw.StorageProof) != len(keys) {
		return ProofResult{}, &KeyMismatchError{Requested: len(keys), Got: len(raw.StorageProof)}
	}

	result := ProofResult{
		StorageHash:  common.HexToHash(raw.StorageHash),
		AccountProof: hexSliceToBytes(raw.AccountProof),
		StorageProof: make([]StorageProofEntry, len(raw.StorageProof)),
	}

	for i, sp := range raw.StorageProof {
		key, err := parseU256(sp.Key)
		if err != nil {
			return ProofResult{}, &DecodeError{Op: "get_proof", Err: fmt.Errorf("storage_proof[%d].key: %w", i, err)}
		}
		value, err := parseU256(sp.Value)
		if err != nil {
			return ProofResult{}, &DecodeError{Op: "get_proof", Err: fmt.Errorf("storage_proof[%d].value: %w", i, err)}
		}
		result.StorageProof[i] = StorageProofEntry{
			Key:   key,
			Value: value,
			Proof: hexSliceToBytes(sp.Proof),
		}
	}

	return result, nil
}

func parseU256(hex string) (*uint256.Int, error) {
	v, err := uint256.FromHex(hex)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func hexSliceToBytes(hexes []string) [][]byte {
	out := make([][]byte, len(hexes))
	for i, h := range hexes {
		out[i] = common.FromHex(h)
	}
	return out
}
