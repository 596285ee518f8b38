package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewLevelCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "level",
		Aliases: []string{"charge"},
		Short:   "Print the last reported peripheral state of charge",
		Long: `Print the last reported peripheral state of charge.

Prints 0 if the peripheral has not reported yet. Use 'splitbatt status' to tell the two apart.`,
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			charge, err := apiClient.GetPeripheralCharge()
			if err != nil {
				return err
			}
			cmd.Println(charge)
			return nil
		},
	}
}

func NewRaiseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "raise <peripheral|central|kind> <state-of-charge>",
		Short: "Raise a battery state changed event in the daemon",
		Long: `Raise a battery state changed event in the daemon.

This is what a transport forwarding peripheral reports would do. The value is a raw byte (0-255).`,
		Example: `  splitbatt raise peripheral 73
  splitbatt raise battery_state_changed 90`,
		GroupID: gAdvanced,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}
			soc, err := parseLevelArg(args[1])
			if err != nil {
				return err
			}

			result, err := apiClient.Raise(kind, soc)
			if err != nil {
				return fmt.Errorf("failed to raise event: %w", err)
			}

			logrus.WithFields(logrus.Fields{
				"kind":          kind,
				"stateOfCharge": soc,
			}).Infof("daemon responded: %s", result)
			return nil
		},
	}
}
