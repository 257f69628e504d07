// Package motion coordinates the axis drivers: per-axis motion flags,
// the closed-loop pull-in algorithm and the periodic error/status polls
// driven from the control loop.
package motion

import (
	"strings"
	"time"

	"github.com/MCFLab/PicoStageDriver/axis"
	"github.com/MCFLab/PicoStageDriver/fault"
	"github.com/MCFLab/PicoStageDriver/params"
)

// Poll cadences of Tick.
const (
	ErrorCheckInterval  = 50 * time.Millisecond
	StatusCheckInterval = 10 * time.Millisecond
)

// DriverFactory builds the driver for a slot. Called on every
// reconfigure, so a device-type change takes effect without a reboot.
// Returns nil for slots without a device.
type DriverFactory func(axisIndex int, dev params.DeviceType, p []int32, st *axis.State, report func(string)) axis.Driver

// Orchestrator owns the axis drivers and their motion flags.
type Orchestrator struct {
	store   *params.Store
	factory DriverFactory

	drivers [params.MaxAxes]axis.Driver
	states  [params.MaxAxes]axis.State

	general fault.Latch
	board   [params.MaxAxes]fault.Latch
	faulted bool

	lastErrorCheck  time.Time
	lastStatusCheck time.Time
}

// New creates an orchestrator over the parameter store. Drivers are
// built lazily by ConfigureAxis.
func New(store *params.Store, factory DriverFactory) *Orchestrator {
	return &Orchestrator{store: store, factory: factory}
}

func (o *Orchestrator) report(source string, axisIndex int, msg string) {
	if axisIndex == -1 {
		o.general.Setf("%s error: %s", source, msg)
	} else {
		o.board[axisIndex].Setf("%s error in board %d: %s", source, axisIndex, msg)
	}
	o.faulted = true
}

func (o *Orchestrator) fail(axisIndex int, msg string) error {
	o.report("Board", axisIndex, msg)
	return fault.Coded(fault.CodeMotion, msg)
}

func (o *Orchestrator) active(axisIndex int, raiseFault bool) bool {
	return o.store.ActiveAxis(axisIndex, raiseFault) && o.drivers[axisIndex] != nil
}

// ConfigureAxis (re)builds and configures the driver of one slot, or of
// every active slot with axisIndex -1.
func (o *Orchestrator) ConfigureAxis(axisIndex int) error {
	if axisIndex == -1 {
		for z := 0; z < params.MaxAxes; z++ {
			if !o.store.ActiveAxis(z, false) {
				o.drivers[z] = nil
				continue
			}
			if err := o.configureOne(z); err != nil {
				return o.fail(z, "Could not configure board")
			}
		}
		return nil
	}
	if !o.store.ActiveAxis(axisIndex, true) {
		return o.fail(-1, "Invalid motor number")
	}
	if err := o.configureOne(axisIndex); err != nil {
		return o.fail(axisIndex, "Could not configure board")
	}
	return nil
}

func (o *Orchestrator) configureOne(z int) error {
	st := &o.states[z]
	report := func(msg string) { o.report("TMC", z, msg) }
	o.drivers[z] = o.factory(z, o.store.Device[z], o.store.Axis[z][:], st, report)
	if o.drivers[z] == nil {
		return fault.Coded(fault.CodeMotion, "no driver for slot")
	}
	return o.drivers[z].Configure()
}

// Tick runs the periodic polls: driver fault checks on the slow cadence,
// motion status and the closed-loop pull-in on the fast one.
func (o *Orchestrator) Tick(now time.Time) {
	if now.Sub(o.lastErrorCheck) > ErrorCheckInterval {
		for z := 0; z < params.MaxAxes; z++ {
			if !o.active(z, false) {
				continue
			}
			o.drivers[z].CheckError()
		}
		o.lastErrorCheck = now
	}

	if now.Sub(o.lastStatusCheck) > StatusCheckInterval {
		for z := 0; z < params.MaxAxes; z++ {
			if !o.active(z, false) || !o.states[z].Enabled {
				continue
			}
			o.tickAxis(z, now)
		}
		o.lastStatusCheck = now
	}
}

func (o *Orchestrator) tickAxis(z int, now time.Time) {
	st := &o.states[z]
	drv := o.drivers[z]

	switch {
	case st.Homing:
		done, err := drv.CheckStatus(now)
		if done || err != nil {
			st.Moving = false
		}

	case st.Searching:
		done, err := drv.CheckStatus(now)
		if err != nil {
			st.Moving = false
			st.Searching = false
			o.report("Board", z, "Error during closed loop mode")
			return
		}
		if !done {
			return
		}
		st.Moving = false
		enc, err := drv.EncoderPosition()
		if err != nil {
			st.Searching = false
			return
		}
		cl := drv.ClosedLoop()
		deviation := enc - st.Target
		if abs32(deviation) > cl.Tolerance {
			if st.IterationsLeft == -1 || st.IterationsLeft > 0 {
				if cl.MaxIterations > 1 {
					st.IterationsLeft--
				}
				st.Moving = true
				// Re-issue the move shifted by the measured error; the
				// velocity stays whatever the first issue loaded.
				st.Setpoint -= deviation
				drv.MoveToPosition(st.Setpoint, false)
			} else {
				o.report("Board", z, "Closed loop motion did not converge")
				st.Searching = false
			}
		} else {
			// Within tolerance. An unlimited search keeps servoing.
			if st.IterationsLeft != -1 {
				st.Searching = false
			}
			if cl.ResetAfter {
				drv.SetActualPosition(enc)
			}
		}

	case st.Moving:
		done, err := drv.CheckStatus(now)
		if done || err != nil {
			st.Moving = false
		}
	}
}

func (o *Orchestrator) checkMovable(axisIndex int) error {
	if !o.active(axisIndex, true) {
		return fault.Coded(fault.CodeMotion, "inactive board")
	}
	if !o.states[axisIndex].Enabled {
		return o.fail(axisIndex, "Driver is not enabled")
	}
	if o.states[axisIndex].Homing {
		return o.fail(axisIndex, "Motor is homing")
	}
	return nil
}

// MoveToPosition starts a position move. With an encoder configured and
// maxIterations 0 or above 1 the move runs closed loop: the target is
// remembered and Tick pulls the axis in until the encoder reading is
// within tolerance.
func (o *Orchestrator) MoveToPosition(axisIndex int, pos int32, setVelocity bool) error {
	if err := o.checkMovable(axisIndex); err != nil {
		return err
	}
	st := &o.states[axisIndex]
	drv := o.drivers[axisIndex]
	cl := drv.ClosedLoop()

	var err error
	if cl.EncConst != 0 && (cl.MaxIterations == 0 || cl.MaxIterations > 1) {
		st.Target = pos
		// maxIterations 0 means unlimited: IterationsLeft stays -1 and
		// is never decremented.
		st.IterationsLeft = cl.MaxIterations - 1
		st.Moving = true
		st.Searching = true
		st.Setpoint = pos
		err = drv.MoveToPosition(pos, setVelocity)
	} else {
		st.IterationsLeft = 0
		st.Moving = true
		st.Searching = false
		err = drv.MoveToPosition(pos, setVelocity)
	}
	if err != nil {
		st.Moving = false
		return o.fail(axisIndex, "Error setting position target")
	}
	return nil
}

// MoveAtVelocity starts or stops a velocity move.
func (o *Orchestrator) MoveAtVelocity(axisIndex int, vel int32) error {
	if err := o.checkMovable(axisIndex); err != nil {
		return err
	}
	st := &o.states[axisIndex]
	err := o.drivers[axisIndex].MoveAtVelocity(vel)
	st.Moving = vel != 0
	if err != nil {
		st.Moving = false
		return o.fail(axisIndex, "Error setting velocity mode")
	}
	return nil
}

// StartHoming begins the homing search of one axis.
func (o *Orchestrator) StartHoming(axisIndex int, now time.Time) error {
	if !o.active(axisIndex, true) {
		return fault.Coded(fault.CodeMotion, "inactive board")
	}
	if !o.states[axisIndex].Enabled {
		return o.fail(axisIndex, "Driver is not enabled")
	}
	return o.drivers[axisIndex].StartHoming(now)
}

// Position returns the actual position of one axis.
func (o *Orchestrator) Position(axisIndex int) (int32, error) {
	if !o.active(axisIndex, true) {
		return 0, fault.Coded(fault.CodeMotion, "inactive board")
	}
	return o.drivers[axisIndex].Position()
}

// SetRemoteControlled hands an axis (or all, with -1) to or back from
// the remote. A remote-controlled axis rejects host motion commands.
func (o *Orchestrator) SetRemoteControlled(axisIndex int, on bool) {
	if axisIndex == -1 {
		for z := 0; z < params.MaxAxes; z++ {
			if o.active(z, false) {
				o.states[z].RemoteControlled = on
			}
		}
		return
	}
	if o.active(axisIndex, false) {
		o.states[axisIndex].RemoteControlled = on
	}
}

// RemoteControlled reports whether the axis is owned by the remote.
func (o *Orchestrator) RemoteControlled(axisIndex int) bool {
	return o.active(axisIndex, false) && o.states[axisIndex].RemoteControlled
}

// ClearStatusFaults clears the latched hardware status of one axis or,
// with -1, of every active axis.
func (o *Orchestrator) ClearStatusFaults(axisIndex int) error {
	if axisIndex == -1 {
		for z := 0; z < params.MaxAxes; z++ {
			if o.active(z, false) {
				o.drivers[z].ClearStatusFaults()
			}
		}
		return nil
	}
	if !o.active(axisIndex, true) {
		return fault.Coded(fault.CodeMotion, "inactive board")
	}
	return o.drivers[axisIndex].ClearStatusFaults()
}

// SetStatusValue writes a status vector entry. ENAB accepts axis -1 to
// enable or disable every active axis at once.
func (o *Orchestrator) SetStatusValue(axisIndex, index int, value int32) error {
	if index == axis.StatENAB && axisIndex == -1 {
		for z := 0; z < params.MaxAxes; z++ {
			if !o.active(z, false) {
				continue
			}
			if err := o.drivers[z].SetStatusValue(index, value); err != nil {
				o.report("Board", z, "Error enabling/disabling the motor")
				return err
			}
		}
		return nil
	}
	if !o.active(axisIndex, true) {
		return fault.Coded(fault.CodeMotion, "inactive board")
	}
	return o.drivers[axisIndex].SetStatusValue(index, value)
}

// StatusValue reads a status vector entry. PULL is derived from the
// iteration bookkeeping of the last closed-loop move.
func (o *Orchestrator) StatusValue(axisIndex, index int) (int32, error) {
	if !o.active(axisIndex, true) {
		return 0, fault.Coded(fault.CodeMotion, "inactive board")
	}
	if index == axis.StatPULL {
		return o.store.Axis[axisIndex][params.EMAX] - o.states[axisIndex].IterationsLeft, nil
	}
	return o.drivers[axisIndex].StatusValue(index)
}

// SetRegisterValue writes a raw driver register.
func (o *Orchestrator) SetRegisterValue(axisIndex int, addr uint8, value int32) error {
	if !o.active(axisIndex, true) {
		return fault.Coded(fault.CodeMotion, "inactive board")
	}
	return o.drivers[axisIndex].SetRegisterValue(addr, value)
}

// RegisterValue reads a raw driver register.
func (o *Orchestrator) RegisterValue(axisIndex int, addr uint8) (int32, error) {
	if !o.active(axisIndex, true) {
		return 0, fault.Coded(fault.CodeMotion, "inactive board")
	}
	return o.drivers[axisIndex].RegisterValue(addr)
}

// StatusFlags returns the packed status bits of one axis.
func (o *Orchestrator) StatusFlags(axisIndex int) (int32, error) {
	if !o.active(axisIndex, true) {
		return 0, fault.Coded(fault.CodeMotion, "inactive board")
	}
	return o.drivers[axisIndex].StatusFlags()
}

// MotionDone reports whether the axis (or, with -1, every active axis)
// has finished moving and searching.
func (o *Orchestrator) MotionDone(axisIndex int) (int32, error) {
	if axisIndex == -1 {
		for z := 0; z < params.MaxAxes; z++ {
			if !o.active(z, false) {
				continue
			}
			if o.states[z].Moving || o.states[z].Searching {
				return 0, nil
			}
		}
		return 1, nil
	}
	if !o.active(axisIndex, true) {
		return 0, fault.Coded(fault.CodeMotion, "inactive board")
	}
	if o.states[axisIndex].Moving || o.states[axisIndex].Searching {
		return 0, nil
	}
	return 1, nil
}

// FaultPending reports whether any motion fault is latched.
func (o *Orchestrator) FaultPending() bool { return o.faulted }

// ReadFault drains the latched fault messages, general first, joined
// with "; ". The latches clear on read.
func (o *Orchestrator) ReadFault() (string, bool) {
	if !o.faulted {
		return "", false
	}
	var parts []string
	if msg, ok := o.general.Read(); ok {
		parts = append(parts, msg)
	}
	for z := 0; z < params.MaxAxes; z++ {
		if msg, ok := o.board[z].Read(); ok {
			parts = append(parts, msg)
		}
	}
	o.faulted = false
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "; "), true
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
