// Package config loads the relay builder's runtime configuration.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// ErrIBCHandlerAddressMissing is returned by Load when neither the config
// file nor the env var supplied an address (Load reads no flags). Callers that
// layer their own flag handling on top of Load use this to distinguish
// "nothing to fall back to yet" from a genuine configuration error.
var ErrIBCHandlerAddressMissing = errors.New("config: ibc-handler-address is required")

// Preset selects the sync-committee-size and logs-bloom-size parameters
// that in the source implementation are carried as a compile-time type
// parameter. Everything else (seconds per slot, fork schedule, ...) comes
// from the live beacon spec, so a preset only ever gates these two sizes.
type Preset string

const (
	Mainnet Preset = "mainnet"
	Minimal Preset = "minimal"
)

// Sizes returns the SSZ-merkleization-relevant constants for the preset.
func (p Preset) Sizes() (syncCommitteeSize, bytesPerLogsBloom int, err error) {
	switch p {
	case Mainnet:
		return 512, 256, nil
	case Minimal:
		return 32, 256, nil
	default:
		return 0, 0, fmt.Errorf("config: unknown preset %q", p)
	}
}

// IBCHandlerCommitmentsSlot is the fixed storage-slot index where the IBC
// handler contract's commitment mapping lives. It is a protocol constant,
// not something read from chain, and is referenced verbatim both in
// ClientState.IBCCommitmentSlot and in the commitment-key-to-storage-slot
// derivation (see package proof).
const IBCHandlerCommitmentsSlot uint64 = 0

// Config is the external configuration surface for the relay builder:
// which contract to track, and which beacon/execution endpoints back it.
type Config struct {
	IBCHandlerAddress common.Address
	CLEndpoint        string
	ELEndpoint        string
	Preset            Preset
}

// Load reads configuration from environment variables (prefixed RELAY_) and
// an optional config file, following the precedence env > file > default
// that viper applies by convention.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("preset", string(Minimal))
	v.SetDefault("cl-endpoint", "127.0.0.1:5052")
	v.SetDefault("el-endpoint", "127.0.0.1:8545")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	addrHex := v.GetString("ibc-handler-address")
	if addrHex == "" {
		return Config{}, ErrIBCHandlerAddressMissing
	}
	if !common.IsHexAddress(addrHex) {
		return Config{}, fmt.Errorf("config: ibc-handler-address %q is not a hex address", addrHex)
	}

	preset := Preset(v.GetString("preset"))
	if _, _, err := preset.Sizes(); err != nil {
		return Config{}, err
	}

	return Config{
		IBCHandlerAddress: common.HexToAddress(addrHex),
		CLEndpoint:        v.GetString("cl-endpoint"),
		ELEndpoint:        v.GetString("el-endpoint"),
		Preset:            preset,
	}, nil
}
