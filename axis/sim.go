package axis

import (
	"math"
	"time"

	"github.com/MCFLab/PicoStageDriver/fault"
	"github.com/MCFLab/PicoStageDriver/params"
)

// SimDriver is a kinematic axis model: position moves land instantly,
// velocity moves integrate over the poll interval and clamp at the
// virtual limits. It reports no encoder, so moves are always open loop.
type SimDriver struct {
	p      []int32
	state  *State
	report func(string)
	cl     ClosedLoop

	xmin, xmax int32
	xact, xenc int32
	xtar       int32
	vel        int32
	velSince   time.Time
}

// NewSimDriver wires a simulated driver to its parameter slice and the
// shared motion state.
func NewSimDriver(p []int32, st *State, report func(string)) *SimDriver {
	return &SimDriver{p: p, state: st, report: report}
}

func (d *SimDriver) fail(msg string) error {
	d.report(msg)
	return fault.Coded(fault.CodeDriver, msg)
}

// Configure resets the model. The virtual limit parameters bound the
// travel; a disabled limit leaves that side unbounded.
func (d *SimDriver) Configure() error {
	d.cl = ClosedLoop{MaxIterations: 1}
	if d.p[params.LLEN] != 0 {
		d.xmin = d.p[params.LLPS]
	} else {
		d.xmin = math.MinInt32
	}
	if d.p[params.LREN] != 0 {
		d.xmax = d.p[params.LRPS]
	} else {
		d.xmax = math.MaxInt32
	}
	d.xact, d.xenc, d.xtar, d.vel = 0, 0, 0, 0

	d.state.Enabled = false
	d.state.Moving = false
	d.state.Homing = false
	d.state.Searching = false
	return nil
}

func (d *SimDriver) clamp(pos int32) int32 {
	if pos < d.xmin {
		return d.xmin
	}
	if pos > d.xmax {
		return d.xmax
	}
	return pos
}

func (d *SimDriver) MoveToPosition(pos int32, setVelocity bool) error {
	d.vel = 0
	pos = d.clamp(pos)
	d.xact, d.xenc = pos, pos
	return nil
}

func (d *SimDriver) MoveAtVelocity(vel int32) error {
	rmxv := d.p[params.RMXV]
	if vel < -rmxv || vel > rmxv {
		return d.fail("Value VEL out of range")
	}
	d.vel = vel
	d.velSince = time.Time{}
	return nil
}

// StartHoming validates the homing parameters like the hardware driver,
// then homes instantly by zeroing the model.
func (d *SimDriver) StartHoming(now time.Time) error {
	mode := d.p[params.HMOD]
	if mode < 0 || mode > 2 {
		return d.fail("Parameter HMOD out of range")
	}
	if mode == 0 {
		return d.fail("Homing disabled by config setting")
	}
	dir := d.p[params.HDIR]
	if dir != 1 && dir != -1 {
		return d.fail("Homing direction undefined (needs -1 or 1)")
	}
	if mode == 1 {
		sw := params.SLEN
		if dir == 1 {
			sw = params.SREN
		}
		if d.p[sw] != 1 {
			return d.fail("Homing only allowed if switch is enabled")
		}
	}
	d.xact, d.xenc, d.vel = 0, 0, 0
	d.state.Homing = false
	return nil
}

func (d *SimDriver) CancelHoming() error {
	d.state.Homing = false
	return nil
}

func (d *SimDriver) SetEnabled(on bool) error {
	d.state.Enabled = on
	if !on {
		d.vel = 0
	}
	return nil
}

func (d *SimDriver) Position() (int32, error)        { return d.xact, nil }
func (d *SimDriver) EncoderPosition() (int32, error) { return d.xact, nil }

func (d *SimDriver) SetActualPosition(pos int32) error {
	d.vel = 0
	d.xact, d.xtar = pos, pos
	return nil
}

func (d *SimDriver) StatusValue(index int) (int32, error) {
	switch index {
	case StatXACT, StatXTAR:
		return d.xact, nil
	case StatXENC:
		return d.xenc, nil
	case StatVELO:
		return d.vel, nil
	case StatENAB:
		if d.state.Enabled {
			return 1, nil
		}
	}
	return 0, nil
}

func (d *SimDriver) SetStatusValue(index int, value int32) error {
	if index == StatENAB {
		return d.SetEnabled(value != 0)
	}
	if d.state.RemoteControlled {
		msg := "Motor is under remote control"
		d.report(msg)
		return fault.Coded(fault.CodeMotion, msg)
	}
	switch index {
	case StatXACT, StatXTAR:
		d.xact = value
	case StatXENC:
		d.xenc = value
	case StatVELO:
		d.vel = value
		d.velSince = time.Time{}
	}
	return nil
}

func (d *SimDriver) RegisterValue(addr uint8) (int32, error)      { return 0, nil }
func (d *SimDriver) SetRegisterValue(addr uint8, value int32) error { return nil }
func (d *SimDriver) ClearStatusFaults() error                     { return nil }
func (d *SimDriver) CheckError() error                            { return nil }

// CheckStatus integrates a velocity move since the previous poll and
// clamps at the limits. A move that just clamped reports done on the
// next poll, once the velocity reads zero.
func (d *SimDriver) CheckStatus(now time.Time) (bool, error) {
	done := d.vel == 0
	if !done {
		if !d.velSince.IsZero() {
			dt := now.Sub(d.velSince).Milliseconds()
			d.xact += int32(dt * int64(d.vel) / 1000)
		}
		d.velSince = now
	}
	if d.xact < d.xmin {
		d.xact = d.xmin
		d.vel = 0
	}
	if d.xact > d.xmax {
		d.xact = d.xmax
		d.vel = 0
	}
	d.xenc = d.xact
	return done, nil
}

func (d *SimDriver) StatusFlags() (int32, error) {
	var flags int32
	if d.state.Enabled {
		flags |= FlagEnabled
	}
	if d.vel != 0 {
		flags |= FlagMoving
	}
	if d.xact >= d.xmax {
		flags |= FlagVirtStopR
	}
	if d.xact <= d.xmin {
		flags |= FlagVirtStopL
	}
	return flags, nil
}

func (d *SimDriver) ClosedLoop() ClosedLoop { return d.cl }
