package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change daemon settings",
		Long: `Change daemon settings.

The daemon applies the change right away and saves it to its config file.`,
		GroupID: gAdvanced,
	}

	cmd.AddCommand(
		newSetValueCommand(
			"threshold <percent>",
			"Set the level below which a low battery warning is published",
			func(arg string) (string, error) {
				t, err := strconv.Atoi(arg)
				if err != nil {
					return "", fmt.Errorf("invalid threshold: %v", err)
				}
				if t < 0 || t > 100 {
					return "", fmt.Errorf("threshold must be between 0 and 100, got %d", t)
				}
				return apiClient.SetLowBatteryThreshold(t)
			},
		),
		newSetValueCommand(
			"report-schedule <cron-expression>",
			"Set how often both levels are published to watchers",
			func(arg string) (string, error) {
				return apiClient.SetReportSchedule(arg)
			},
		),
		newSetValueCommand(
			"local-poll-schedule <cron-expression|disable>",
			"Set how often the local battery is read",
			func(arg string) (string, error) {
				if arg == "disable" {
					arg = ""
				}
				return apiClient.SetLocalPollSchedule(arg)
			},
		),
		newSetValueCommand(
			"non-root-access <true|false>",
			"Allow non-root users to access the daemon after its next start",
			func(arg string) (string, error) {
				b, err := strconv.ParseBool(arg)
				if err != nil {
					return "", fmt.Errorf("invalid value: %v", err)
				}
				return apiClient.SetAllowNonRootAccess(b)
			},
		),
	)

	return cmd
}

func newSetValueCommand(use, short string, setFunc func(string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ret, err := setFunc(args[0])
			if err != nil {
				return err
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}
