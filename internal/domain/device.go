package domain

import (
	"strings"
	"time"
)

type DeviceType string

const (
	DeviceTypeLight        DeviceType = "light"
	DeviceTypeFan          DeviceType = "fan"
	DeviceTypeKitchenLight DeviceType = "kitchen light"
	DeviceTypeRefrigerator DeviceType = "refrigerator"
	DeviceTypeTV           DeviceType = "tv"
	DeviceTypeHomeTheater  DeviceType = "hometheater"

	// DeviceTypeAll is the virtual target that expands to every canonical device.
	DeviceTypeAll DeviceType = "all"
)

type State string

const (
	StateOn  State = "on"
	StateOff State = "off"
)

// CanonicalDevices returns every real device the hub tracks, in the order
// used for snapshot replay and "all" expansion. The spelling matches the
// wire format the firmware pin map expects.
func CanonicalDevices() []DeviceType {
	return []DeviceType{
		DeviceTypeLight,
		DeviceTypeFan,
		DeviceTypeKitchenLight,
		DeviceTypeRefrigerator,
		DeviceTypeTV,
		DeviceTypeHomeTheater,
	}
}

var synonyms = map[string]DeviceType{
	"light":         DeviceTypeLight,
	"fan":           DeviceTypeFan,
	"kitchen light": DeviceTypeKitchenLight,
	"kitchen-light": DeviceTypeKitchenLight,
	"kitchen_light": DeviceTypeKitchenLight,
	"refrigerator":  DeviceTypeRefrigerator,
	"fridge":        DeviceTypeRefrigerator,
	"tv":            DeviceTypeTV,
	"hometheater":   DeviceTypeHomeTheater,
	"home theater":  DeviceTypeHomeTheater,
	"home-theater":  DeviceTypeHomeTheater,
	"all":           DeviceTypeAll,
	"everything":    DeviceTypeAll,
}

// NormalizeDevice maps a raw device name (including synonyms like "fridge")
// to its canonical DeviceType. ok is false for names outside the canonical
// set; callers must not mutate state for those.
func NormalizeDevice(name string) (DeviceType, bool) {
	d, ok := synonyms[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// digitDevices maps the spoken shortcuts "number 1" .. "number 6".
var digitDevices = map[string]DeviceType{
	"1": DeviceTypeLight,
	"2": DeviceTypeFan,
	"3": DeviceTypeKitchenLight,
	"4": DeviceTypeRefrigerator,
	"5": DeviceTypeTV,
	"6": DeviceTypeHomeTheater,
}

func DeviceForDigit(digit string) (DeviceType, bool) {
	d, ok := digitDevices[digit]
	return d, ok
}

// AllTargets expands the virtual "all" device into concrete targets.
// The refrigerator is skipped on turn_off: a batch "turn off everything"
// must never power down the fridge. Every code path that expands "all"
// goes through here.
func AllTargets(action Action) []DeviceType {
	targets := make([]DeviceType, 0, 6)
	for _, d := range CanonicalDevices() {
		if d == DeviceTypeRefrigerator && action == ActionTurnOff {
			continue
		}
		targets = append(targets, d)
	}
	return targets
}

// Device is a registration record for a physical actuator endpoint
// (e.g. "esp32-01"). Registration is a convenience for operators; the hub
// never uses these records for fan-out or authorization.
type Device struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Status    bool       `json:"status"`
	Pin       int        `json:"pin"`
	IPAddress string     `json:"ip_address,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}
