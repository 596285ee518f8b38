package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func Uninstall() error {
	p := unitPath()

	// if the file doesn't exist, there is nothing to stop or remove
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("%s does not exist, nothing to uninstall", p)
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}

	logrus.Infof("stopping splitbatt")

	if err := systemctl("disable", "--now", unitName); err != nil {
		return fmt.Errorf("failed to disable %s: %w. Are you root?", unitName, err)
	}

	logrus.Infof("removing systemd unit")

	if err := os.Remove(p); err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", p, err)
	}

	return systemctl("daemon-reload")
}
