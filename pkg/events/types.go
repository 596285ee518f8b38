package events

import "encoding/json"

// Kind identifies an event variant.
type Kind string

// Event kinds raised on the Manager.
const (
	KindPeripheralBatteryStateChanged Kind = "peripheral_battery_state_changed"
	KindBatteryStateChanged           Kind = "battery_state_changed"
)

// Hub message names published to SSE subscribers.
const (
	BatteryLevel  = "battery.level"
	BatteryLow    = "battery.low"
	BatteryReport = "battery.report"
)

// Event is implemented by every event variant.
type Event interface {
	Kind() Kind
}

// PeripheralBatteryStateChanged is raised when the peripheral half reports
// its state of charge.
type PeripheralBatteryStateChanged struct {
	StateOfCharge uint8 `json:"stateOfCharge"`
}

func (PeripheralBatteryStateChanged) Kind() Kind { return KindPeripheralBatteryStateChanged }

// BatteryStateChanged is raised when the central's own battery changes.
type BatteryStateChanged struct {
	StateOfCharge uint8 `json:"stateOfCharge"`
}

func (BatteryStateChanged) Kind() Kind { return KindBatteryStateChanged }

// BatteryLowMessage is the typed payload for battery.low.
type BatteryLowMessage struct {
	Source        string `json:"source"`
	StateOfCharge uint8  `json:"stateOfCharge"`
	Threshold     uint8  `json:"threshold"`
	Ts            int64  `json:"ts"`
}

// As reports whether ev is of variant T and returns it if so.
func As[T Event](ev Event) (T, bool) {
	t, ok := ev.(T)
	return t, ok
}

// Result is returned by listeners to steer propagation.
type Result int

const (
	// Bubble means the listener did not act on the event.
	Bubble Result = iota
	// Handled means the listener acted on the event. Propagation continues.
	Handled
	// Captured means the listener consumed the event. Propagation stops.
	Captured
)

func (r Result) String() string {
	switch r {
	case Bubble:
		return "bubble"
	case Handled:
		return "handled"
	case Captured:
		return "captured"
	default:
		return "unknown"
	}
}

// Listener receives events it subscribed to.
type Listener interface {
	OnEvent(ev Event) Result
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ev Event) Result

func (f ListenerFunc) OnEvent(ev Event) Result { return f(ev) }

// Message is a generic SSE event from daemon.
type Message struct {
	ID   int64           // Monotonic message ID
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// LevelMessage is the typed payload for battery.level and battery.report.
type LevelMessage struct {
	Source        string `json:"source"`
	StateOfCharge uint8  `json:"stateOfCharge"`
	Valid         bool   `json:"valid"`
	Ts            int64  `json:"ts"`
}

// DecodeAs decodes the message payload into the caller-specified generic type T.
// It ignores the message name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.LevelMessage](msg)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Source, payload.StateOfCharge)
func DecodeAs[T any](m Message) (T, error) {
	var zero T
	if len(m.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(m.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
