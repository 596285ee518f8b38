package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/splitbatt/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		LowBatteryThreshold: ptr.To(20),
		ReportSchedule:      ptr.To("@every 5m"),
		// Hosts without a battery just log a warning per poll, so polling
		// stays on by default.
		LocalPollSchedule:  ptr.To("@every 1m"),
		EventRateLimit:     ptr.To(10.0),
		EventRateBurst:     ptr.To(20),
		EventBacklog:       ptr.To(64),
		AllowNonRootAccess: ptr.To(false),
	}

	// ScheduleParser accepts the same expressions as the daemon scheduler.
	ScheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	LowBatteryThreshold *int     `json:"lowBatteryThreshold,omitempty" yaml:"lowBatteryThreshold,omitempty"`
	ReportSchedule      *string  `json:"reportSchedule,omitempty" yaml:"reportSchedule,omitempty"`
	LocalPollSchedule   *string  `json:"localPollSchedule,omitempty" yaml:"localPollSchedule,omitempty"`
	EventRateLimit      *float64 `json:"eventRateLimit,omitempty" yaml:"eventRateLimit,omitempty"`
	EventRateBurst      *int     `json:"eventRateBurst,omitempty" yaml:"eventRateBurst,omitempty"`
	EventBacklog        *int     `json:"eventBacklog,omitempty" yaml:"eventBacklog,omitempty"`
	AllowNonRootAccess  *bool    `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
}

// Validate checks the fields that are set against the same rules the
// setters apply. Unset fields fall back to defaults, which are valid.
func (c *RawFileConfig) Validate() error {
	if c.LowBatteryThreshold != nil {
		if err := validateThreshold(*c.LowBatteryThreshold); err != nil {
			return err
		}
	}
	if c.ReportSchedule != nil {
		if err := validateReportSchedule(*c.ReportSchedule); err != nil {
			return err
		}
	}
	if c.LocalPollSchedule != nil {
		if err := validateLocalPollSchedule(*c.LocalPollSchedule); err != nil {
			return err
		}
	}
	if c.EventRateBurst != nil && *c.EventRateBurst < 0 {
		return pkgerrors.Errorf("event rate burst must not be negative, got %d", *c.EventRateBurst)
	}
	// A finite rate with no burst would refuse every event.
	rateLimit := ptr.Deref(c.EventRateLimit, *defaultFileConfig.EventRateLimit)
	burst := ptr.Deref(c.EventRateBurst, *defaultFileConfig.EventRateBurst)
	if rateLimit > 0 && burst == 0 {
		return pkgerrors.Errorf("event rate burst must be positive when event rate limit is %v", rateLimit)
	}
	if c.EventBacklog != nil && *c.EventBacklog < 0 {
		return pkgerrors.Errorf("event backlog must not be negative, got %d", *c.EventBacklog)
	}
	return nil
}

func validateThreshold(i int) error {
	if i < 0 || i > 100 {
		return pkgerrors.Errorf("low battery threshold must be between 0 and 100, got %d", i)
	}
	return nil
}

func validateReportSchedule(s string) error {
	if _, err := ScheduleParser.Parse(s); err != nil {
		return pkgerrors.Wrapf(err, "invalid report schedule %q", s)
	}
	return nil
}

// validateLocalPollSchedule accepts an empty schedule, which disables polling.
func validateLocalPollSchedule(s string) error {
	if s == "" {
		return nil
	}
	if _, err := ScheduleParser.Parse(s); err != nil {
		return pkgerrors.Wrapf(err, "invalid local poll schedule %q", s)
	}
	return nil
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		LowBatteryThreshold: ptr.To(c.LowBatteryThreshold()),
		ReportSchedule:      ptr.To(c.ReportSchedule()),
		LocalPollSchedule:   ptr.To(c.LocalPollSchedule()),
		EventRateLimit:      ptr.To(c.EventRateLimit()),
		EventRateBurst:      ptr.To(c.EventRateBurst()),
		EventBacklog:        ptr.To(c.EventBacklog()),
		AllowNonRootAccess:  ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

func (f *File) LowBatteryThreshold() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.LowBatteryThreshold, *defaultFileConfig.LowBatteryThreshold)
}

func (f *File) ReportSchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.ReportSchedule, *defaultFileConfig.ReportSchedule)
}

// LocalPollSchedule returns the host battery poll schedule. An empty string
// disables polling.
func (f *File) LocalPollSchedule() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.LocalPollSchedule, *defaultFileConfig.LocalPollSchedule)
}

func (f *File) EventRateLimit() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.EventRateLimit, *defaultFileConfig.EventRateLimit)
}

func (f *File) EventRateBurst() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.EventRateBurst, *defaultFileConfig.EventRateBurst)
}

func (f *File) EventBacklog() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.EventBacklog, *defaultFileConfig.EventBacklog)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetLowBatteryThreshold(i int) error {
	if f.c == nil {
		panic("config is nil")
	}

	if err := validateThreshold(i); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.LowBatteryThreshold = &i

	return nil
}

func (f *File) SetReportSchedule(s string) error {
	if f.c == nil {
		panic("config is nil")
	}

	if err := validateReportSchedule(s); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.ReportSchedule = &s

	return nil
}

func (f *File) SetLocalPollSchedule(s string) error {
	if f.c == nil {
		panic("config is nil")
	}

	if err := validateLocalPollSchedule(s); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.LocalPollSchedule = &s

	return nil
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.AllowNonRootAccess = &b
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.filepath)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if len(bytes.TrimSpace(b)) == 0 {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if f.isYAML() {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		err = enc.Encode(f.c)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(fp)
		enc.SetIndent("", "  ")
		err = enc.Encode(f.c)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"lowBatteryThreshold": f.LowBatteryThreshold(),
		"reportSchedule":      f.ReportSchedule(),
		"localPollSchedule":   f.LocalPollSchedule(),
		"eventRateLimit":      f.EventRateLimit(),
		"eventRateBurst":      f.EventRateBurst(),
		"eventBacklog":        f.EventBacklog(),
		"allowNonRootAccess":  f.AllowNonRootAccess(),
	}
}
