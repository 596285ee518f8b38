package main

import (
	"time"

	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"sch", "sched"},
		Short:   "Show when the daemon next runs its scheduled tasks",
		Long: `Show when the daemon next runs its scheduled tasks.

The report task publishes both battery levels to watchers. The local poll task reads
the battery of this machine and raises it as the central battery level.
Schedules are changed with 'splitbatt set', or in the config file followed by SIGHUP.`,
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := apiClient.GetSchedule()
			if err != nil {
				return err
			}

			cmd.Println(bold("Scheduled tasks:"))
			cmd.Printf("  Report: %s\n", nextRunText(s.Report))
			cmd.Printf("  Local poll: %s\n", nextRunText(s.LocalPoll))
			return nil
		},
	}

	cmd.AddCommand(newScheduleSkipCommand())

	return cmd
}

func newScheduleSkipCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "skip <report|local-poll>",
		Short:     "Skip the next run of a scheduled task",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"report", "local-poll"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cobra.OnlyValidArgs(cmd, args); err != nil {
				return err
			}

			next, err := apiClient.SkipSchedule(args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Skipped the next %s run. Next run: %s\n", args[0], nextRunText(next))
			return nil
		},
	}
}

func nextRunText(t time.Time) string {
	if t.IsZero() {
		return "disabled"
	}
	return bold("%s", t.Local().Format(time.RFC1123)) + " (in " + time.Until(t).Round(time.Second).String() + ")"
}
