package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/informalsystems/ethlc-relay/lightclient"
	"github.com/informalsystems/ethlc-relay/relayer"
)

const (
	FlagPollInterval    = "poll-interval"
	DefaultPollInterval = 30 * time.Second

	FlagCursorFile = "cursor-file"
)

// ServeCmd runs the builder as a long-lived process: it bootstraps once
// from --trusted-slot (or resumes from --cursor-file), then polls
// header() on an interval, persisting the advancing cursor to
// --cursor-file so a restart resumes where it left off. The core itself
// persists nothing (spec.md §5) — this is purely an operational
// convenience at the CLI layer.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Continuously advance a light client's trusted cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := cmd.Flags().GetDuration(FlagPollInterval)
			if err != nil {
				return err
			}
			cursorFile, _ := cmd.Flags().GetString(FlagCursorFile)

			builder, err := buildRelayer(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			cursor, err := loadOrInitCursor(cmd, builder, cursorFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-ticker.C:
						headers, newCursor, err := builder.Header(ctx, cursor)
						if err != nil {
							fmt.Fprintf(os.Stderr, "header: %v\n", err)
							continue
						}
						cursor = newCursor
						fmt.Fprintf(os.Stderr, "emitted %d header(s), cursor now at slot %d\n", len(headers), cursor.TrustedHeight.RevisionHeight)
						if cursorFile != "" {
							if err := saveCursor(cursorFile, cursor); err != nil {
								fmt.Fprintf(os.Stderr, "persisting cursor: %v\n", err)
							}
						}
					}
				}
			})

			err = g.Wait()
			if err != nil && ctx.Err() != nil {
				return nil // clean shutdown on signal
			}
			return err
		},
	}

	AddBuilderFlags(cmd)
	cmd.Flags().Uint64(FlagTrustedSlot, 0, "beacon slot to trust at bootstrap (ignored if --cursor-file already has state)")
	cmd.Flags().Duration(FlagPollInterval, DefaultPollInterval, "how often to poll for new finality")
	cmd.Flags().String(FlagCursorFile, "", "file to persist the trusted cursor across restarts")

	return cmd
}

func loadOrInitCursor(cmd *cobra.Command, builder *relayer.Builder, cursorFile string) (lightclient.TrustedSyncCommittee, error) {
	if cursorFile != "" {
		if b, err := os.ReadFile(cursorFile); err == nil {
			var cursor lightclient.TrustedSyncCommittee
			if err := json.Unmarshal(b, &cursor); err == nil {
				return cursor, nil
			}
		}
	}

	trustedSlot, err := cmd.Flags().GetUint64(FlagTrustedSlot)
	if err != nil {
		return lightclient.TrustedSyncCommittee{}, err
	}
	if trustedSlot == 0 {
		return lightclient.TrustedSyncCommittee{}, fmt.Errorf("no cursor file to resume from and --%s was not set", FlagTrustedSlot)
	}

	_, _, cursor, err := builder.Initialize(cmd.Context(), trustedSlot)
	if err != nil {
		return lightclient.TrustedSyncCommittee{}, fmt.Errorf("initialize: %w", err)
	}
	return cursor, nil
}

func saveCursor(path string, cursor lightclient.TrustedSyncCommittee) error {
	b, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
