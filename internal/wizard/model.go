package wizard

import (
	"fmt"
	"time"
)

// Step is the closed set of wizard positions. The zero-value string is
// never stored; every session is created in StepSelectingDevices.
type Step string

const (
	StepSelectingDevices Step = "selecting_devices"
	StepSelectingExpiry  Step = "selecting_expiry"
	StepConfirming       Step = "confirming"
)

// ParseStep validates a stored step value.
func ParseStep(s string) (Step, error) {
	switch Step(s) {
	case StepSelectingDevices, StepSelectingExpiry, StepConfirming:
		return Step(s), nil
	default:
		return "", fmt.Errorf("unknown wizard step %q", s)
	}
}

// DeviceChoices are the device limits the wizard offers; 0 is unlimited.
var DeviceChoices = []int{1, 2, 3, 5, 10, 0}

// ExpiryChoices are the grant durations in days; 0 means no expiry.
var ExpiryChoices = []int{7, 30, 90, 365, 0}

// ValidDeviceChoice reports whether the limit is one the wizard offers.
func ValidDeviceChoice(n int) bool {
	for _, c := range DeviceChoices {
		if c == n {
			return true
		}
	}
	return false
}

// ValidExpiryChoice reports whether the duration is one the wizard offers.
func ValidExpiryChoice(d int) bool {
	for _, c := range ExpiryChoices {
		if c == d {
			return true
		}
	}
	return false
}

// Session is the durable working state of one granting wizard, keyed 1:1
// by request id. It exists only while the wizard is in progress and is
// last-write-wins: a later start for the same request overwrites it.
type Session struct {
	RequestID   string
	OperatorID  int64
	DeviceLimit int
	ExpiresDays int
	Step        Step
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
