// Command relay is the ethlc-relay CLI: it wires the beacon/execution
// capabilities and the relay builder together for operators to bootstrap
// and advance an IBC Ethereum light client from a shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	FlagCLEndpoint    = "cl-endpoint"
	DefaultCLEndpoint = "127.0.0.1:5052"

	FlagELEndpoint    = "el-endpoint"
	DefaultELEndpoint = "127.0.0.1:8545"

	FlagIBCHandlerAddress = "ibc-handler-address"

	FlagPreset    = "preset"
	DefaultPreset = "minimal"

	FlagConfigFile = "config"
)

func main() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "ethlc-relay: an Ethereum IBC light-client relay builder",
	}

	rootCmd.AddCommand(InitCmd())
	rootCmd.AddCommand(HeaderCmd())
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(MisbehaviourCmd())

	return rootCmd
}

// AddBuilderFlags registers the flags every subcommand that constructs a
// relayer.Builder needs: which chains to talk to and which contract to
// track.
func AddBuilderFlags(cmd *cobra.Command) {
	cmd.Flags().String(FlagCLEndpoint, DefaultCLEndpoint, "beacon node host:port (http:// is prepended)")
	cmd.Flags().String(FlagELEndpoint, DefaultELEndpoint, "execution node JSON-RPC host:port (http:// is prepended)")
	cmd.Flags().String(FlagIBCHandlerAddress, "", "IBC handler contract address (0x...)")
	cmd.Flags().String(FlagPreset, DefaultPreset, "beacon preset: minimal or mainnet")
	cmd.Flags().String(FlagConfigFile, "", "optional config file (overridden by flags and RELAY_* env vars)")
}
