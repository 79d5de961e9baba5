package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

const FlagTrustedSlot = "trusted-slot"

// InitCmd bootstraps a fresh light client from a trusted beacon slot,
// printing the ClientState/ConsensusState/TrustedSyncCommittee triple as
// JSON for the caller to submit on-chain.
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a light client from a trusted beacon slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			trustedSlot, err := cmd.Flags().GetUint64(FlagTrustedSlot)
			if err != nil {
				return err
			}

			builder, err := buildRelayer(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			clientState, consensusState, trusted, err := builder.Initialize(cmd.Context(), trustedSlot)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}

			return printJSON(cmd, map[string]any{
				"client_state":           clientState,
				"consensus_state":        consensusState,
				"trusted_sync_committee": trusted,
			})
		},
	}

	AddBuilderFlags(cmd)
	cmd.Flags().Uint64(FlagTrustedSlot, 0, "beacon slot to trust at bootstrap")
	_ = cmd.MarkFlagRequired(FlagTrustedSlot)

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
