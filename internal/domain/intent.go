package domain

type Action string

const (
	ActionTurnOn  Action = "turn_on"
	ActionTurnOff Action = "turn_off"

	// ActionNone marks a resolved command that requires no state change,
	// e.g. a declined offer. ActionError marks a failed resolution.
	ActionNone  Action = "none"
	ActionError Action = "error"
)

// Actionable reports whether the action mutates device state.
func (a Action) Actionable() bool {
	return a == ActionTurnOn || a == ActionTurnOff
}

// State returns the on/off state a device ends up in after the action.
func (a Action) State() State {
	if a == ActionTurnOn {
		return StateOn
	}
	return StateOff
}

// Intent is the result of resolving one command, immutable after creation.
// DeviceType is a plain string because the fallback resolver's output is
// unchecked; the hub validates it against the canonical set before any
// state mutation. JSON field names match the wire contract of the
// /command endpoint.
type Intent struct {
	Action       Action `json:"action"`
	DeviceType   string `json:"device_type"`
	Location     string `json:"location"`
	ResponseText string `json:"response_text"`
}
