package cluster

import "fmt"

// Status is an interaction model status code returned for a read, write
// or invoke.
type Status uint8

const (
	StatusSuccess              Status = 0x00
	StatusFailure              Status = 0x01
	StatusUnsupportedEndpoint  Status = 0x7F
	StatusUnsupportedCommand   Status = 0x81
	StatusUnsupportedAttribute Status = 0x86
	StatusConstraintError      Status = 0x87
	StatusUnsupportedWrite     Status = 0x88
	StatusUnsupportedCluster   Status = 0xC3
	StatusInvalidInState       Status = 0xCB
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusUnsupportedEndpoint:
		return "UnsupportedEndpoint"
	case StatusUnsupportedCommand:
		return "UnsupportedCommand"
	case StatusUnsupportedAttribute:
		return "UnsupportedAttribute"
	case StatusConstraintError:
		return "ConstraintError"
	case StatusUnsupportedWrite:
		return "UnsupportedWrite"
	case StatusUnsupportedCluster:
		return "UnsupportedCluster"
	case StatusInvalidInState:
		return "InvalidInState"
	default:
		return fmt.Sprintf("Status(0x%02X)", uint8(s))
	}
}

// ModeStatus is the Status field of a ChangeToModeResponse. The common
// codes are shared by every mode-base derived cluster.
type ModeStatus uint8

const (
	ModeStatusSuccess         ModeStatus = 0x00
	ModeStatusUnsupportedMode ModeStatus = 0x01
	ModeStatusGenericFailure  ModeStatus = 0x02
)

// String returns the mode status name.
func (s ModeStatus) String() string {
	switch s {
	case ModeStatusSuccess:
		return "Success"
	case ModeStatusUnsupportedMode:
		return "UnsupportedMode"
	case ModeStatusGenericFailure:
		return "GenericFailure"
	default:
		// 0x40-0x7F are cluster specific, 0x80+ manufacturer specific
		return fmt.Sprintf("ModeStatus(0x%02X)", uint8(s))
	}
}
