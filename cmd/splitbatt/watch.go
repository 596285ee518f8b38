package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/splitbatt/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	var lastID int64

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Follow battery events published by the daemon",
		Long:    `Follow battery events published by the daemon until interrupted.`,
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return apiClient.Stream(ctx, lastID, func(m events.Message) error {
				cmd.Println(formatMessage(m))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&lastID, "since", 0, "Replay buffered events after this event ID")

	return cmd
}

func formatMessage(m events.Message) string {
	switch m.Name {
	case events.BatteryLevel, events.BatteryReport:
		l, err := events.DecodeAs[events.LevelMessage](m)
		if err != nil {
			break
		}
		return bold("[%d] %s", m.ID, m.Name) + " " + stamp(l.Ts) + " " +
			l.Source + " " + levelText(l.StateOfCharge, l.Valid, 0)
	case events.BatteryLow:
		l, err := events.DecodeAs[events.BatteryLowMessage](m)
		if err != nil {
			break
		}
		return bold("[%d] %s", m.ID, m.Name) + " " + stamp(l.Ts) + " " +
			l.Source + " " + levelText(l.StateOfCharge, true, int(l.Threshold)+1) +
			" below " + bold("%d%%", l.Threshold)
	}
	return bold("[%d] %s", m.ID, m.Name) + " " + string(m.Data)
}

func stamp(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Format(time.Kitchen)
}
