package daemon

import (
	"strings"
)

// UnitTemplate is the systemd service unit for the splitbatt daemon.
// /path/to/splitbatt and the trailing flag placeholder are filled in by Install.
const UnitTemplate = `[Unit]
Description=splitbatt split keyboard battery mirror
After=network.target

[Service]
Type=simple
ExecStart=/path/to/splitbatt daemon --config /path/to/config --daemon-socket /path/to/socket{{flags}}
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// RenderUnit fills in the unit template.
func RenderUnit(o Options) string {
	flags := ""
	if o.AllowNonRootAccess {
		flags = " --always-allow-non-root-access"
	}
	return strings.NewReplacer(
		"/path/to/splitbatt", o.ExePath,
		"/path/to/config", o.ConfigPath,
		"/path/to/socket", o.SocketPath,
		"{{flags}}", flags,
	).Replace(UnitTemplate)
}
