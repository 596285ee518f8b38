package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charlie0129/splitbatt/pkg/client"
	"github.com/charlie0129/splitbatt/pkg/config"
)

type statusData struct {
	peripheral *client.Level
	central    *client.Level
	config     *config.RawFileConfig
}

type statusJSON struct {
	Peripheral    *client.Level         `json:"peripheral"`
	Central       *client.Level         `json:"central"`
	Configuration *config.RawFileConfig `json:"configuration"`
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	peripheral, err := apiClient.GetPeripheralBattery()
	if err != nil {
		return nil, fmt.Errorf("failed to get peripheral battery: %w", err)
	}

	central, err := apiClient.GetCentralCharge()
	if err != nil {
		return nil, fmt.Errorf("failed to get central battery: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		peripheral: peripheral,
		central:    central,
		config:     conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of splitbatt",
		Long:    `Get both battery levels and the daemon configuration.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(statusJSON{
					Peripheral:    data.peripheral,
					Central:       data.central,
					Configuration: data.config,
				}, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			conf := config.NewFileFromConfig(data.config, "")
			threshold := conf.LowBatteryThreshold()

			cmd.Println(bold("Battery status:"))
			cmd.Printf("  Peripheral: %s\n", levelText(data.peripheral.StateOfCharge, data.peripheral.Valid, threshold))
			if !data.peripheral.Valid {
				cmd.Println("    The peripheral has not reported a level since the daemon started.")
			}
			cmd.Printf("  Central: %s\n", levelText(data.central.StateOfCharge, data.central.Valid, threshold))

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Low battery threshold: %s\n", bold("%d%%", threshold))
			cmd.Printf("  Report schedule: %s\n", bold("%s", scheduleText(conf.ReportSchedule())))
			cmd.Printf("  Local poll schedule: %s\n", bold("%s", scheduleText(conf.LocalPollSchedule())))
			cmd.Printf("  Event rate limit: %s\n", bold("%.1f/s (burst %d)", conf.EventRateLimit(), conf.EventRateBurst()))
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")

	return cmd
}

func scheduleText(expr string) string {
	if expr == "" {
		return "disabled"
	}
	return expr
}
