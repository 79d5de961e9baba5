package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/informalsystems/ethlc-relay/config"
	"github.com/informalsystems/ethlc-relay/internal/beacon"
	"github.com/informalsystems/ethlc-relay/internal/execution"
	"github.com/informalsystems/ethlc-relay/relayer"
)

// newLogger builds the CLI's zerolog writer: human-readable console output
// on a terminal, matching the teacher's own logging choice.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// resolveConfig loads config.Load(file) as a base (env vars, config file,
// defaults) and then applies any flag the operator explicitly set on top —
// flags win over the file, the file wins over defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	configFile, _ := cmd.Flags().GetString(FlagConfigFile)

	cfg, err := config.Load(configFile)
	if errors.Is(err, config.ErrIBCHandlerAddressMissing) {
		// Nothing supplied the address via file/env yet — fall back to an
		// empty base so the CLI flag handling below gets a chance to
		// supply it (and reports its own error if it doesn't).
		cfg = config.Config{}
	} else if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed(FlagCLEndpoint) {
		cfg.CLEndpoint, _ = cmd.Flags().GetString(FlagCLEndpoint)
	} else if cfg.CLEndpoint == "" {
		cfg.CLEndpoint, _ = cmd.Flags().GetString(FlagCLEndpoint)
	}

	if cmd.Flags().Changed(FlagELEndpoint) {
		cfg.ELEndpoint, _ = cmd.Flags().GetString(FlagELEndpoint)
	} else if cfg.ELEndpoint == "" {
		cfg.ELEndpoint, _ = cmd.Flags().GetString(FlagELEndpoint)
	}

	if cmd.Flags().Changed(FlagIBCHandlerAddress) {
		addrHex, _ := cmd.Flags().GetString(FlagIBCHandlerAddress)
		if !common.IsHexAddress(addrHex) {
			return config.Config{}, fmt.Errorf("%s is not a hex address: %q", FlagIBCHandlerAddress, addrHex)
		}
		cfg.IBCHandlerAddress = common.HexToAddress(addrHex)
	}
	if cfg.IBCHandlerAddress == (common.Address{}) {
		return config.Config{}, fmt.Errorf("%s is required (flag, config file, or RELAY_IBC_HANDLER_ADDRESS)", FlagIBCHandlerAddress)
	}

	if cmd.Flags().Changed(FlagPreset) || cfg.Preset == "" {
		presetStr, _ := cmd.Flags().GetString(FlagPreset)
		cfg.Preset = config.Preset(presetStr)
	}
	if _, _, err := cfg.Preset.Sizes(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// buildRelayer dials the beacon and execution nodes and wires a
// relayer.Builder from the resolved configuration.
func buildRelayer(ctx context.Context, cmd *cobra.Command) (*relayer.Builder, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := newLogger()

	beaconClient, err := beacon.NewHTTPClient(ctx, "http://"+cfg.CLEndpoint, log)
	if err != nil {
		return nil, fmt.Errorf("dialing beacon node: %w", err)
	}

	executionClient, err := execution.Dial(ctx, "http://"+cfg.ELEndpoint, log)
	if err != nil {
		return nil, fmt.Errorf("dialing execution node: %w", err)
	}

	return relayer.NewBuilder(cfg, beaconClient, executionClient), nil
}
