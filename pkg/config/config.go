package config

import "github.com/sirupsen/logrus"

type Config interface {
	LowBatteryThreshold() int
	ReportSchedule() string
	LocalPollSchedule() string
	EventRateLimit() float64
	EventRateBurst() int
	EventBacklog() int
	AllowNonRootAccess() bool

	SetLowBatteryThreshold(int) error
	SetReportSchedule(string) error
	SetLocalPollSchedule(string) error
	SetAllowNonRootAccess(bool)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
