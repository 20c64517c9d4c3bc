package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosuda/kanbansync/internal/client"
	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime"
	"github.com/gosuda/kanbansync/internal/realtime/event"
)

const dialTimeout = 10 * time.Second

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <board-id>",
		Short: "Join a board and print remote events as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				return printError("missing token", "pass --token or set KBWATCH_TOKEN")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return watch(ctx, opts, args[0])
		},
	}
}

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <board-id>",
		Short: "Print the canonical board snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				return printError("missing token", "pass --token or set KBWATCH_TOKEN")
			}
			snap, err := client.FetchBoard(cmd.Context(), opts.server, args[0], opts.token)
			if err != nil {
				return printError("fetch failed", err.Error())
			}
			renderSnapshot(os.Stdout, snap)
			return nil
		},
	}
}

func watch(ctx context.Context, opts *globalOptions, boardID string) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := client.Dial(dialCtx, opts.server, boardID, opts.token)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return printError("unauthorized", "the token was rejected by "+opts.server)
		}
		return printError("dial failed", err.Error())
	}
	defer conn.Close()

	// Refresh requests are coalesced: one pending refetch covers any number
	// of structural events received meanwhile.
	refresh := make(chan struct{}, 1)

	s, err := realtime.Join(ctx, conn, realtime.Participant{
		BoardID:      boardID,
		ConnectionID: conn.ConnectionID(),
		User:         domain.UserRef{ID: conn.UserID()},
	},
		realtime.WithObserver(func(e event.Event, o realtime.Outcome) {
			fmt.Fprintln(os.Stdout, describe(e, o))
		}),
		realtime.WithBoardUpdate(func() {
			select {
			case refresh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return printError("join failed", err.Error())
	}
	defer s.Close()

	printInfo("watching board %s as %s (connection %s)", boardID, conn.UserID(), conn.ConnectionID())
	for _, p := range s.OtherUsers() {
		printInfo("present: %s", describePresence(p))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return printError("connection closed", "the server ended the session")
		case <-refresh:
			mark := s.OverlayMark()
			snap, fetchErr := client.FetchBoard(ctx, opts.server, boardID, opts.token)
			if fetchErr != nil {
				printWarning("refetch failed: %v", fetchErr)
				continue
			}
			s.CanonicalRefreshed(mark)
			renderSnapshot(os.Stdout, snap)
		}
	}
}
