package battery

import (
	"math"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/splitbatt/pkg/events"
)

// ErrNoBattery is returned when the host reports no usable battery.
var ErrNoBattery = pkgerrors.New("no batteries found")

// Raiser delivers events to listeners.
type Raiser interface {
	Raise(ev events.Event) events.Result
}

// LocalSource polls the host battery and raises BatteryStateChanged for the
// central.
type LocalSource struct {
	em Raiser

	// readAll is a test seam; defaults to battery.GetAll.
	readAll func() ([]*battery.Battery, error)
}

func NewLocalSource(em Raiser) *LocalSource {
	return &LocalSource{em: em, readAll: battery.GetAll}
}

// Read returns the host state of charge in percent.
func (s *LocalSource) Read() (uint8, error) {
	bats, err := s.readAll()
	if err != nil && len(bats) == 0 {
		return 0, pkgerrors.Wrap(err, "failed to read host battery")
	}

	for _, b := range bats {
		if b == nil || b.Full <= 0 {
			continue
		}
		pct := math.Round(b.Current / b.Full * 100)
		pct = math.Max(0, math.Min(100, pct))
		return uint8(pct), nil
	}

	return 0, ErrNoBattery
}

// Poll reads the host battery once and raises the result.
func (s *LocalSource) Poll() error {
	level, err := s.Read()
	if err != nil {
		return err
	}

	r := s.em.Raise(events.BatteryStateChanged{StateOfCharge: level})
	logrus.WithFields(logrus.Fields{
		"stateOfCharge": level,
		"result":        r,
	}).Trace("polled host battery")

	return nil
}
