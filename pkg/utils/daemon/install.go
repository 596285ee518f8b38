package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var (
	unitName = "splitbatt.service"
	unitDir  = "/etc/systemd/system"

	systemctl = func(args ...string) error {
		out, err := exec.Command("systemctl", args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl %v: %w: %s", args, err, out)
		}
		return nil
	}
)

// Options are the values written into the service unit.
type Options struct {
	// ExePath defaults to the running executable.
	ExePath            string
	ConfigPath         string
	SocketPath         string
	AllowNonRootAccess bool
}

func unitPath() string {
	return filepath.Join(unitDir, unitName)
}

func Install(o Options) error {
	if o.ExePath == "" {
		// Get the path to the current executable
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get the path to the current executable: %w", err)
		}
		o.ExePath = exePath
	}
	exePath, err := filepath.Abs(o.ExePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the executable: %w", err)
	}
	o.ExePath = exePath

	logrus.Infof("executable path: %s", exePath)

	// mkdir -p
	err = os.MkdirAll(unitDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", unitDir, err)
	}

	p := unitPath()

	// warn if the file already exists
	if _, err := os.Stat(p); err == nil {
		logrus.Warnf("%s already exists, overwriting", p)
	}

	logrus.Infof("writing systemd unit to %s", p)
	err = os.WriteFile(p, []byte(RenderUnit(o)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}

	logrus.Infof("starting splitbatt")

	if err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	if err := systemctl("enable", "--now", unitName); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unitName, err)
	}

	return nil
}
