package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/splitbatt/pkg/config"
	daemonutils "github.com/charlie0129/splitbatt/pkg/utils/daemon"
)

var gInstallation = "Installation:"

func init() {
	commandGroups = append(commandGroups, gInstallation)
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install splitbatt daemon as a systemd service",
		GroupID: gInstallation,
		Long: `Install splitbatt daemon as a systemd service (system-wide).

This makes splitbatt run in the background and automatically start on boot. You must run this command as root.

By default, only root user is allowed to access the splitbatt daemon. Use --allow-non-root-access to let other users query it without sudo.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the splitbatt daemon.")
			} else {
				logrus.Info("only root user is allowed to access the splitbatt daemon.")
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			err = daemonutils.Install(daemonutils.Options{
				ConfigPath:         configPath,
				SocketPath:         unixSocketPath,
				AllowNonRootAccess: allowNonRootAccess,
			})
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("systemd will use the current binary (%s) at startup so please make sure you do not move this binary. Once it is moved or deleted, run 'splitbatt install' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access splitbatt daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall splitbatt systemd service",
		GroupID: gInstallation,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := daemonutils.Uninstall(); err != nil {
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("uninstallation succeeded")
			return nil
		},
	}
}
