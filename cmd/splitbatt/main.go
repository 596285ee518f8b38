package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/charlie0129/splitbatt/pkg/client"
	"github.com/charlie0129/splitbatt/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/splitbatt.sock"
	configPath     = "/etc/splitbatt.json"
)

var apiClient = client.NewClient(unixSocketPath)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: splitbatt daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Start it with 'splitbatt daemon'.")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or start the daemon with '--always-allow-non-root-access'")
	case errors.Is(err, client.ErrRateLimited):
		fmt.Fprintln(os.Stderr, "\nError: the daemon is refusing events, slow down and try again")
	}
}

func main() {
	// splitbatt does not need to use much.
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(2)
	}

	// Values in .env act like environment variables but never override
	// ones that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("splitbatt")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "splitbatt",
		Short: "splitbatt mirrors the battery level of a split keyboard peripheral",
		Long: `splitbatt mirrors the battery level reported by the peripheral half of a split keyboard.

The daemon keeps the last reported state of charge and serves it over a unix socket.
Every other command talks to the daemon.`,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			// Flags win over SPLITBATT_* environment variables, which win
			// over the built-in defaults.
			logLevel = v.GetString("log-level")
			configPath = v.GetString("config")
			unixSocketPath = v.GetString("daemon-socket")
			apiClient = client.NewClient(unixSocketPath)

			err := setupLogger()
			if err != nil {
				return err
			}

			if c.Name() == "daemon" {
				return nil
			}

			if daemonVersion, err := apiClient.GetVersion(); err == nil {
				if daemonVersion != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. splitbatt may not work as expected.")
				}
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringP("log-level", "l", logLevel, "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.String("config", configPath, "config file path (.json, .yaml or .yml)")
	globalFlags.String("daemon-socket", unixSocketPath, "splitbatt daemon unix socket path")
	if err := v.BindPFlags(globalFlags); err != nil {
		panic(err)
	}

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewLevelCommand(),
		NewStatusCommand(),
		NewRaiseCommand(),
		NewWatchCommand(),
		NewScheduleCommand(),
		NewSetCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
