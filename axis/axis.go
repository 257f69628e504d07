// Package axis implements the per-axis stepper drivers. Two variants
// exist behind the Driver interface: a TMC5240-backed driver talking to a
// register bus and a kinematic simulator. The motion orchestrator owns
// one Driver per configured slot and shares a State struct with it.
package axis

import (
	"time"
)

// Status vector indices. The wire protocol addresses these by the
// four-character IDs in StatusIDs.
const (
	StatXACT = iota // actual position
	StatXTAR        // target position
	StatXENC        // encoder position
	StatVELO        // velocity
	StatACCE        // acceleration
	StatENAB        // driver enabled
	StatTEMP        // driver temperature, degC
	StatPULL        // closed-loop pull-in count of the last move
)

// StatusIDs lists the wire IDs of the status vector entries, in index order.
var StatusIDs = [...]string{
	"XACT", "XTAR", "XENC", "VELO", "ACCE", "ENAB", "TEMP", "PULL",
}

// StatusIndex resolves a status vector ID to its index.
func StatusIndex(id string) (int, bool) {
	for i, s := range StatusIDs {
		if s == id {
			return i, true
		}
	}
	return 0, false
}

// Status flag bits reported by Driver.StatusFlags.
const (
	FlagStopL           int32 = 1 << 0  // left limit switch active
	FlagStopR           int32 = 1 << 1  // right limit switch active
	FlagVirtStopL       int32 = 1 << 2  // left virtual limit active
	FlagVirtStopR       int32 = 1 << 3  // right virtual limit active
	FlagStallStatus     int32 = 1 << 4  // stallguard load status
	FlagStallEvent      int32 = 1 << 5  // stallguard stop event
	FlagEncDeviation    int32 = 1 << 6  // encoder deviation warning
	FlagLatchL          int32 = 1 << 7  // left position latch armed result
	FlagLatchR          int32 = 1 << 8  // right position latch armed result
	FlagMoving          int32 = 1 << 9  // velocity nonzero
	FlagPositionReached int32 = 1 << 10 // ramp at target position
	FlagEnabled         int32 = 1 << 11 // driver enabled
)

// State is the per-axis motion bookkeeping shared between a Driver and
// the orchestrator. Drivers flip Enabled and Homing; the orchestrator
// owns the rest.
type State struct {
	Enabled          bool
	Moving           bool
	Homing           bool
	Searching        bool
	RemoteControlled bool

	// Closed-loop bookkeeping, managed by the orchestrator.
	Target         int32
	Setpoint       int32
	IterationsLeft int32
}

// ClosedLoop carries the closed-loop parameters a driver captured at its
// last Configure. The orchestrator reads them on every move.
type ClosedLoop struct {
	EncConst      int32
	MaxIterations int32
	Tolerance     int32
	ResetAfter    bool
}

// Driver is the capability surface of one axis. CheckStatus and
// CheckError are polled from the control loop; both may disable the
// motor and report a fault. All calls are single-threaded.
type Driver interface {
	// Configure applies the parameter set to the hardware. Leaves the
	// motor disabled and all motion flags cleared.
	Configure() error
	// MoveToPosition targets pos in position ramp mode. With setVelocity
	// the set-velocity parameter is (re)loaded first.
	MoveToPosition(pos int32, setVelocity bool) error
	// MoveAtVelocity runs the motor at a signed velocity.
	MoveAtVelocity(vel int32) error
	// StartHoming begins the homing search.
	StartHoming(now time.Time) error
	// CancelHoming aborts a homing search and restores limit config.
	CancelHoming() error
	// SetEnabled energizes or de-energizes the motor. Disabling during a
	// homing search cancels it.
	SetEnabled(on bool) error
	// Position returns the actual position.
	Position() (int32, error)
	// EncoderPosition returns the encoder position.
	EncoderPosition() (int32, error)
	// SetActualPosition rewrites actual and target position without
	// causing a move.
	SetActualPosition(pos int32) error
	// StatusValue / SetStatusValue access the status vector. PULL is
	// computed by the orchestrator and never reaches the driver.
	StatusValue(index int) (int32, error)
	SetStatusValue(index int, value int32) error
	// RegisterValue / SetRegisterValue are the raw register passthrough.
	RegisterValue(addr uint8) (int32, error)
	SetRegisterValue(addr uint8, value int32) error
	// ClearStatusFaults clears the latched hardware status registers.
	ClearStatusFaults() error
	// CheckError polls the driver fault state.
	CheckError() error
	// CheckStatus polls the motion state; done reports target reached.
	CheckStatus(now time.Time) (done bool, err error)
	// StatusFlags packs the Flag* bits.
	StatusFlags() (int32, error)
	// ClosedLoop returns the captured closed-loop parameters.
	ClosedLoop() ClosedLoop
}

// Homing timing. The standstill deadline bounds the wait for the ramp to
// stop after the home latch triggered; the settle deadline bounds the
// follow-up move back to the new origin.
const (
	HomingStandstillTimeout = 1000 * time.Millisecond
	HomingSettleTimeout     = 1000 * time.Millisecond
)
