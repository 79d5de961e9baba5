package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/informalsystems/ethlc-relay/lightclient"
)

const FlagTrustedJSON = "trusted"

// HeaderCmd advances a trusted cursor to the chain's current finalized
// slot. The cursor is read as JSON, either inline via --trusted or from
// stdin when --trusted is "-" or unset. The emitted headers and the new
// cursor are printed to stdout as one JSON object (keys "headers" and
// "new_cursor"); a one-line summary goes to stderr so stdout stays pure
// JSON.
func HeaderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "header",
		Short: "Advance a trusted sync-committee cursor to the chain's latest finalized slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString(FlagTrustedJSON)
			if raw == "" || raw == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading trusted cursor from stdin: %w", err)
				}
				raw = string(b)
			}

			var trusted lightclient.TrustedSyncCommittee
			if err := json.Unmarshal([]byte(raw), &trusted); err != nil {
				return fmt.Errorf("decoding trusted cursor: %w", err)
			}

			builder, err := buildRelayer(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			headers, newCursor, err := builder.Header(cmd.Context(), trusted)
			if err != nil {
				return fmt.Errorf("header: %w", err)
			}

			if err := printJSON(cmd, map[string]any{
				"headers":    headers,
				"new_cursor": newCursor,
			}); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "emitted %d header(s), cursor now at slot %d\n", len(headers), newCursor.TrustedHeight.RevisionHeight)
			return nil
		},
	}

	AddBuilderFlags(cmd)
	cmd.Flags().String(FlagTrustedJSON, "", "trusted cursor as JSON, or \"-\"/omitted to read from stdin")

	return cmd
}
