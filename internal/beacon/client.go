// Package beacon is the read-only view of a beacon node the relay builder
// depends on: genesis, spec, a block header by slot or root, the
// light-client bootstrap/finality-update/updates-by-period endpoints, and
// the beacon-slot-to-execution-height lookup. See spec.md §4.A.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	ethttp "github.com/attestantio/go-eth2-client/http"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/informalsystems/ethlc-relay/lightclient"
)

// Client is the beacon capability. Every method fails with a
// *TransportError, *NotFoundError, or *DecodeError.
type Client interface {
	Genesis(ctx context.Context) (Genesis, error)
	Spec(ctx context.Context) (Spec, error)
	Header(ctx context.Context, id BlockID) (SignedBeaconBlockHeader, error)
	Bootstrap(ctx context.Context, root phase0.Root) (LightClientBootstrap, error)
	FinalityUpdate(ctx context.Context) (LightClientFinalityUpdate, error)
	LightClientUpdates(ctx context.Context, startPeriod, count uint64) ([]lightclient.LightClientUpdate, error)
	// ExecutionHeight resolves a beacon block to its execution block
	// number. Mixing this up with the beacon slot itself is the single
	// most common bug class in this domain (spec.md §9) — every proof
	// must be taken at the returned height, never at id's slot directly.
	ExecutionHeight(ctx context.Context, id BlockID) (uint64, error)
}

// HTTPClient is the production Client: the attestantio library for
// genesis/spec/header, and hand-rolled requests for the light-client
// endpoints it doesn't expose, following ethereum/beaconapi.go.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	service eth2client.Service
	log     zerolog.Logger
	retries uint
}

// NewHTTPClient dials a beacon node at baseURL (e.g. "http://localhost:5052").
func NewHTTPClient(ctx context.Context, baseURL string, log zerolog.Logger) (*HTTPClient, error) {
	service, err := ethttp.New(ctx,
		ethttp.WithAddress(baseURL),
		ethttp.WithLogLevel(zerolog.WarnLevel),
	)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		service: service,
		log:     log,
		retries: 5,
	}, nil
}

func (c *HTTPClient) retryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(200 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Uint("attempt", n).Err(err).Msg("beacon request retrying")
		}),
	}
}

func (c *HTTPClient) Genesis(ctx context.Context) (Genesis, error) {
	provider, ok := c.service.(eth2client.GenesisProvider)
	if !ok {
		return Genesis{}, &TransportError{Op: "genesis", Err: fmt.Errorf("client does not support genesis")}
	}

	resp, err := retry.DoWithData(func() (*api.Response[*apiv1.Genesis], error) {
		return provider.Genesis(ctx, &api.GenesisOpts{})
	}, c.retryOpts(ctx)...)
	if err != nil {
		return Genesis{}, &TransportError{Op: "genesis", Err: err}
	}

	return Genesis{
		GenesisTime:           uint64(resp.Data.GenesisTime.Unix()),
		GenesisValidatorsRoot: resp.Data.GenesisValidatorsRoot,
	}, nil
}

func (c *HTTPClient) Spec(ctx context.Context) (Spec, error) {
	provider, ok := c.service.(eth2client.SpecProvider)
	if !ok {
		return Spec{}, &TransportError{Op: "spec", Err: fmt.Errorf("client does not support spec")}
	}

	resp, err := retry.DoWithData(func() (*api.Response[map[string]any], error) {
		return provider.Spec(ctx, &api.SpecOpts{})
	}, c.retryOpts(ctx)...)
	if err != nil {
		return Spec{}, &TransportError{Op: "spec", Err: err}
	}

	bz, err := json.Marshal(resp.Data)
	if err != nil {
		return Spec{}, &DecodeError{Op: "spec", Err: err}
	}

	var raw specJSON
	if err := json.Unmarshal(bz, &raw); err != nil {
		return Spec{}, &DecodeError{Op: "spec", Err: err}
	}

	return raw.toDomain(), nil
}

func (c *HTTPClient) Header(ctx context.Context, id BlockID) (SignedBeaconBlockHeader, error) {
	provider, ok := c.service.(eth2client.BeaconBlockHeadersProvider)
	if !ok {
		return SignedBeaconBlockHeader{}, &TransportError{Op: "header", Err: fmt.Errorf("client does not support beacon block headers")}
	}

	resp, err := retry.DoWithData(func() (*api.Response[*apiv1.BeaconBlockHeader], error) {
		return provider.BeaconBlockHeader(ctx, &api.BeaconBlockHeaderOpts{Block: id.pathParam()})
	}, c.retryOpts(ctx)...)
	if err != nil {
		return SignedBeaconBlockHeader{}, &TransportError{Op: "header", Err: err}
	}
	if resp == nil || resp.Data == nil {
		return SignedBeaconBlockHeader{}, &NotFoundError{Op: "header"}
	}

	msg := resp.Data.Header.Message
	return SignedBeaconBlockHeader{
		Root: resp.Data.Root,
		Header: lightclient.BeaconBlockHeader{
			Slot:          uint64(msg.Slot),
			ProposerIndex: uint64(msg.ProposerIndex),
			ParentRoot:    msg.ParentRoot,
			StateRoot:     msg.StateRoot,
			BodyRoot:      msg.BodyRoot,
		},
	}, nil
}

func (c *HTTPClient) Bootstrap(ctx context.Context, root phase0.Root) (LightClientBootstrap, error) {
	var out bootstrapJSON
	if err := c.getJSON(ctx, fmt.Sprintf("/eth/v1/beacon/light_client/bootstrap/%s", root.String()), "bootstrap", &out); err != nil {
		return LightClientBootstrap{}, err
	}

	committee, err := out.Data.CurrentSyncCommittee.toDomain()
	if err != nil {
		return LightClientBootstrap{}, &DecodeError{Op: "bootstrap", Err: err}
	}

	return LightClientBootstrap{
		Header:                     out.Data.Header.toDomain(),
		CurrentSyncCommittee:       committee,
		CurrentSyncCommitteeBranch: hexSliceToBytes(out.Data.CurrentSyncCommitteeBranch),
	}, nil
}

func (c *HTTPClient) FinalityUpdate(ctx context.Context) (LightClientFinalityUpdate, error) {
	var out finalityUpdateJSON
	if err := c.getJSON(ctx, "/eth/v1/beacon/light_client/finality_update", "finality_update", &out); err != nil {
		return LightClientFinalityUpdate{}, err
	}

	return LightClientFinalityUpdate{
		AttestedHeader:  out.Data.AttestedHeader.toDomain(),
		FinalizedHeader: out.Data.FinalizedHeader.toDomain(),
		FinalityBranch:  hexSliceToBytes(out.Data.FinalityBranch),
		SyncAggregate:   out.Data.SyncAggregate.toDomain(),
		SignatureSlot:   out.Data.SignatureSlot,
	}, nil
}

func (c *HTTPClient) LightClientUpdates(ctx context.Context, startPeriod, count uint64) ([]lightclient.LightClientUpdate, error) {
	var out lightClientUpdatesResponseJSON
	path := fmt.Sprintf("/eth/v1/beacon/light_client/updates?start_period=%d&count=%d", startPeriod, count)
	if err := c.getJSON(ctx, path, "light_client_updates", &out); err != nil {
		return nil, err
	}

	updates := make([]lightclient.LightClientUpdate, len(out))
	for i, u := range out {
		d, err := u.toDomain()
		if err != nil {
			return nil, &DecodeError{Op: "light_client_updates", Err: err}
		}
		updates[i] = d
	}
	return updates, nil
}

func (c *HTTPClient) ExecutionHeight(ctx context.Context, id BlockID) (uint64, error) {
	var out struct {
		Data struct {
			Message struct {
				Body struct {
					ExecutionPayload struct {
						BlockNumber uint64 `json:"block_number,string"`
					} `json:"execution_payload"`
				} `json:"body"`
			} `json:"message"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/eth/v1/beacon/blocks/%s", id.pathParam()), "execution_height", &out); err != nil {
		return 0, err
	}
	return out.Data.Message.Body.ExecutionPayload.BlockNumber, nil
}

// getJSON issues a retried GET against the beacon node's REST API for the
// endpoints attestantio/go-eth2-client does not expose as typed calls
// (bootstrap, finality_update, updates, block-by-id), following the raw
// net/http pattern in ethereum/beaconapi.go.
func (c *HTTPClient) getJSON(ctx context.Context, path, op string, out any) error {
	body, status, err := retry.DoWithData(func() ([]byte, int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, 0, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, err
		}
		return b, resp.StatusCode, nil
	}, c.retryOpts(ctx)...)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if status == http.StatusNotFound {
		return &NotFoundError{Op: op}
	}
	if status != http.StatusOK {
		return &TransportError{Op: op, Err: fmt.Errorf("status %d: %s", status, body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}
