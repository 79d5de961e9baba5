package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MisbehaviourCmd exposes the builder's misbehaviour stub on the CLI so
// its Unimplemented error is visible to operators rather than only to
// library callers.
func MisbehaviourCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "misbehaviour",
		Short: "Detect sync-committee equivocation (not yet implemented)",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := buildRelayer(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			_, err = builder.Misbehaviour(cmd.Context())
			if err != nil {
				return fmt.Errorf("misbehaviour: %w", err)
			}
			return nil
		},
	}

	AddBuilderFlags(cmd)

	return cmd
}
