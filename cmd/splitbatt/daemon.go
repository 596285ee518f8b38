package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/charlie0129/splitbatt/pkg/daemon"
	"github.com/charlie0129/splitbatt/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the splitbatt daemon.
	alwaysAllowNonRootAccess = false
	logFile                  = ""
	logFileMaxSizeMB         = 10
	logFileMaxBackups        = 3
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run splitbatt daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			if logFile != "" {
				logrus.SetOutput(&lumberjack.Logger{
					Filename:   logFile,
					MaxSize:    logFileMaxSizeMB,
					MaxBackups: logFileMaxBackups,
					Compress:   true,
				})
			}

			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("splitbatt daemon starting")
			return daemon.Run(configPath, unixSocketPath, alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.StringVar(&logFile, "log-file", logFile,
		"Write logs to this file with size based rotation instead of stderr.")
	f.IntVar(&logFileMaxSizeMB, "log-file-max-size", logFileMaxSizeMB,
		"Size in megabytes at which the log file is rotated.")
	f.IntVar(&logFileMaxBackups, "log-file-max-backups", logFileMaxBackups,
		"Number of rotated log files to keep.")

	return cmd
}
