package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"

	"github.com/charlie0129/splitbatt/pkg/events"
)

// kindAliases are the short names accepted on the command line.
var kindAliases = map[string]events.Kind{
	"peripheral": events.KindPeripheralBatteryStateChanged,
	"central":    events.KindBatteryStateChanged,
}

func parseKindArg(arg string) (events.Kind, error) {
	if k, ok := kindAliases[arg]; ok {
		return k, nil
	}
	switch k := events.Kind(arg); k {
	case events.KindPeripheralBatteryStateChanged, events.KindBatteryStateChanged:
		return k, nil
	}
	return "", fmt.Errorf("unknown event kind %q (use peripheral, central or a full kind name)", arg)
}

func parseLevelArg(arg string) (int, error) {
	value, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid state of charge: %v", err)
	}
	if value < 0 || value > 255 {
		return 0, fmt.Errorf("state of charge must be within 0-255, got %d", value)
	}
	return value, nil
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// levelText colors a known level against the low battery threshold.
func levelText(soc uint8, valid bool, threshold int) string {
	if !valid {
		return color.New(color.Faint).Sprint("unknown")
	}
	if int(soc) < threshold {
		return color.New(color.Bold, color.FgRed).Sprintf("%d%%", soc)
	}
	return color.New(color.Bold, color.FgGreen).Sprintf("%d%%", soc)
}
