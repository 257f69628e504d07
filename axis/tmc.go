package axis

import (
	"fmt"
	"time"

	"github.com/MCFLab/PicoStageDriver/fault"
	"github.com/MCFLab/PicoStageDriver/params"
	"github.com/MCFLab/PicoStageDriver/tmc5240"
)

type homingPhase int8

const (
	homingIdle     homingPhase = iota
	homingSearch               // running towards the switch or index mark
	homingStopWait             // latch triggered, waiting for standstill
	homingSettle               // origin rewritten, moving to the new zero
)

// TMCDriver drives one TMC5240 through a register bus. The homing finish
// sequence is spread over CheckStatus ticks with deadlines instead of
// blocking waits, so the control loop keeps servicing the other axes.
type TMCDriver struct {
	bus    tmc5240.Bus
	p      []int32 // axis parameter slice from the store
	state  *State
	report func(string)
	cl     ClosedLoop

	phase    homingPhase
	deadline time.Time
}

// NewTMCDriver wires a driver to its bus, its parameter slice and the
// shared motion state. report latches a fault message for the axis.
func NewTMCDriver(bus tmc5240.Bus, p []int32, st *State, report func(string)) *TMCDriver {
	return &TMCDriver{bus: bus, p: p, state: st, report: report}
}

func (d *TMCDriver) fail(msg string) error {
	d.report(msg)
	return fault.Coded(fault.CodeDriver, msg)
}

func (d *TMCDriver) paramInRange(index int, min, max int32) error {
	if v := d.p[index]; v < min || v > max {
		return d.fail(fmt.Sprintf("Parameter %s out of range (%d)", params.AxisParamIDs[index], v))
	}
	return nil
}

func (d *TMCDriver) valueInRange(v int32, name string, min, max int32) error {
	if v < min || v > max {
		return d.fail(fmt.Sprintf("Value %s out of range (%d)", name, v))
	}
	return nil
}

// regOps batches register accesses with a sticky first error, so the
// multi-write sequences stay readable.
type regOps struct {
	d   *TMCDriver
	err error
}

func (o *regOps) write(addr uint8, v int32) {
	if o.err != nil {
		return
	}
	if err := o.d.bus.WriteRegister(addr, v); err != nil {
		o.err = o.d.fail("Register bus failure: " + err.Error())
	}
}

func (o *regOps) read(addr uint8) int32 {
	if o.err != nil {
		return 0
	}
	v, err := o.d.bus.ReadRegister(addr)
	if err != nil {
		o.err = o.d.fail("Register bus failure: " + err.Error())
		return 0
	}
	return v
}

func (o *regOps) writeField(f tmc5240.Field, v int32) {
	if o.err != nil {
		return
	}
	if err := tmc5240.WriteField(o.d.bus, f, v); err != nil {
		o.err = o.d.fail("Register bus failure: " + err.Error())
	}
}

func (o *regOps) readField(f tmc5240.Field) int32 {
	if o.err != nil {
		return 0
	}
	v, err := tmc5240.ReadField(o.d.bus, f)
	if err != nil {
		o.err = o.d.fail("Register bus failure: " + err.Error())
		return 0
	}
	return v
}

// Configure validates the parameter set and programs the driver. The
// motor ends up disabled in position mode with the target equal to the
// current position, so configuring never causes a move.
func (d *TMCDriver) Configure() error {
	if err := d.CheckError(); err != nil {
		return err
	}

	type rangeCheck struct{ index int; min, max int32 }
	checks := []rangeCheck{
		{params.CSCA, 32, 255},
		{params.CRAN, 0, 3},
		{params.CRUN, 0, 31},
		{params.CHOL, 0, 31},
		{params.MMIC, 0, 8},
		{params.MINV, 0, 1},
		{params.MTOF, 0, 10},
		{params.MSGE, 0, 1},
		{params.MSGT, -64, 63},
		{params.MTCT, 0, 100000000},
		{params.RSEA, 0, d.p[params.RMXA]},
		{params.EDEV, 0, 1000000000},
		{params.SLEN, 0, 1},
		{params.SREN, 0, 1},
		{params.SLPO, 0, 1},
		{params.SRPO, 0, 1},
		{params.SSWP, 0, 1},
		{params.LENC, 0, 1},
		{params.LLEN, 0, 1},
		{params.LREN, 0, 1},
	}
	for _, c := range checks {
		if err := d.paramInRange(c.index, c.min, c.max); err != nil {
			return err
		}
	}

	d.cl = ClosedLoop{
		EncConst:      d.p[params.ECON],
		MaxIterations: d.p[params.EMAX],
		Tolerance:     d.p[params.ETOL],
		ResetAfter:    d.p[params.ERST] != 0,
	}

	o := &regOps{d: d}
	// current
	o.write(tmc5240.RegGlobalScaler, d.p[params.CSCA])
	o.writeField(tmc5240.FieldCurrentRange, d.p[params.CRAN])
	o.writeField(tmc5240.FieldIRun, d.p[params.CRUN])
	o.writeField(tmc5240.FieldIHold, d.p[params.CHOL])
	// mode; TOFF stays 0 so the motor does not start until enabled
	o.writeField(tmc5240.FieldMRes, d.p[params.MMIC])
	o.writeField(tmc5240.FieldShaft, d.p[params.MINV])
	o.writeField(tmc5240.FieldTOff, 0)
	o.writeField(tmc5240.FieldSGStop, d.p[params.MSGE])
	o.writeField(tmc5240.FieldSGT, d.p[params.MSGT])
	o.write(tmc5240.RegTCoolThrs, d.p[params.MTCT])
	// rates; set velocity is loaded per move
	o.write(tmc5240.RegAMax, d.p[params.RSEA])
	o.write(tmc5240.RegDMax, d.p[params.RSEA])
	// encoder
	o.writeField(tmc5240.FieldEncDecimal, 1)
	o.write(tmc5240.RegEncConst, d.p[params.ECON])
	o.write(tmc5240.RegEncDeviation, d.p[params.EDEV])
	// switches
	o.writeField(tmc5240.FieldStopLEnable, d.p[params.SLEN])
	o.writeField(tmc5240.FieldStopREnable, d.p[params.SREN])
	o.writeField(tmc5240.FieldPolarityL, d.p[params.SLPO])
	o.writeField(tmc5240.FieldPolarityR, d.p[params.SRPO])
	o.writeField(tmc5240.FieldSwapLR, d.p[params.SSWP])
	// virtual limits
	o.writeField(tmc5240.FieldVirtStopEnc, d.p[params.LENC])
	o.writeField(tmc5240.FieldVirtStopLEn, d.p[params.LLEN])
	o.writeField(tmc5240.FieldVirtStopREn, d.p[params.LREN])
	o.write(tmc5240.RegVirtualStopL, d.p[params.LLPS])
	o.write(tmc5240.RegVirtualStopR, d.p[params.LRPS])
	// overtemperature pre-warning threshold
	o.writeField(tmc5240.FieldOTWVth, tmc5240.OvertempPrewarnADC)

	// Align target with the current position; with an encoder both come
	// from the encoder count.
	var pos int32
	if d.cl.EncConst != 0 {
		pos = o.read(tmc5240.RegXEnc)
		o.write(tmc5240.RegXActual, pos)
	} else {
		pos = o.read(tmc5240.RegXActual)
	}
	o.write(tmc5240.RegXTarget, pos)
	o.write(tmc5240.RegRampMode, tmc5240.RampModePosition)
	o.write(tmc5240.RegEncStatus, -1)
	o.write(tmc5240.RegRampStat, -1)
	if o.err != nil {
		return o.err
	}

	d.state.Enabled = false
	d.state.Moving = false
	d.state.Homing = false
	d.state.Searching = false
	d.phase = homingIdle
	return nil
}

// ClearStatusFaults clears the latched status registers.
func (d *TMCDriver) ClearStatusFaults() error {
	o := &regOps{d: d}
	o.write(tmc5240.RegGSTAT, -1)
	o.write(tmc5240.RegEncStatus, -1)
	o.write(tmc5240.RegRampStat, -1)
	return o.err
}

func (d *TMCDriver) MoveAtVelocity(vel int32) error {
	rmxv := d.p[params.RMXV]
	if err := d.valueInRange(vel, "VEL", -rmxv, rmxv); err != nil {
		return err
	}
	o := &regOps{d: d}
	if vel > 0 {
		o.write(tmc5240.RegRampMode, tmc5240.RampModeVelPos)
	} else {
		o.write(tmc5240.RegRampMode, tmc5240.RampModeVelNeg)
	}
	o.write(tmc5240.RegVMax, abs32(vel))
	if o.err != nil {
		return o.err
	}
	return d.CheckError()
}

func (d *TMCDriver) MoveToPosition(pos int32, setVelocity bool) error {
	o := &regOps{d: d}
	o.write(tmc5240.RegRampStat, tmc5240.RampStatEventPosDone) // clear the event
	o.write(tmc5240.RegRampMode, tmc5240.RampModePosition)
	if setVelocity {
		o.write(tmc5240.RegVMax, d.p[params.RSEV])
	}
	o.write(tmc5240.RegXTarget, pos)
	if o.err != nil {
		return o.err
	}
	return d.CheckError()
}

// SetActualPosition rewrites the position registers without a move. The
// velocity is parked at zero while target and actual are inconsistent.
func (d *TMCDriver) SetActualPosition(pos int32) error {
	o := &regOps{d: d}
	vel := o.read(tmc5240.RegVMax)
	o.write(tmc5240.RegVMax, 0)
	o.write(tmc5240.RegXTarget, pos)
	o.write(tmc5240.RegXActual, pos)
	o.write(tmc5240.RegVMax, vel)
	return o.err
}

func (d *TMCDriver) Position() (int32, error) {
	o := &regOps{d: d}
	v := o.read(tmc5240.RegXActual)
	return v, o.err
}

func (d *TMCDriver) EncoderPosition() (int32, error) {
	o := &regOps{d: d}
	v := o.read(tmc5240.RegXEnc)
	return v, o.err
}

func (d *TMCDriver) SetEnabled(on bool) error {
	if on {
		if err := d.setEnableRaw(true); err != nil {
			return err
		}
		return nil
	}
	if err := d.setEnableRaw(false); err != nil {
		return err
	}
	if d.state.Homing {
		return d.CancelHoming()
	}
	return nil
}

// setEnableRaw flips the driver power stage without touching a running
// homing sequence; the homing finish uses it to rewrite positions.
func (d *TMCDriver) setEnableRaw(on bool) error {
	o := &regOps{d: d}
	if on {
		o.writeField(tmc5240.FieldTOff, d.p[params.MTOF])
	} else {
		// Park the ramp first, otherwise XACTUAL keeps counting.
		o.write(tmc5240.RegRampMode, tmc5240.RampModeVelPos)
		o.write(tmc5240.RegVMax, 0)
		o.writeField(tmc5240.FieldTOff, 0)
	}
	if o.err != nil {
		return o.err
	}
	d.state.Enabled = on
	return nil
}

func (d *TMCDriver) StartHoming(now time.Time) error {
	if err := d.paramInRange(params.HSST, 0, 1); err != nil {
		return err
	}
	if err := d.paramInRange(params.HMOD, 0, 2); err != nil {
		return err
	}
	mode := d.p[params.HMOD]
	if mode == 0 {
		return d.fail("Homing disabled by config setting")
	}
	dir := d.p[params.HDIR]
	if dir != 1 && dir != -1 {
		return d.fail("Homing direction undefined (needs -1 or 1)")
	}

	o := &regOps{d: d}
	if mode == 1 { // limit switch homing
		sw := params.SLEN
		if dir == 1 {
			sw = params.SREN
		}
		if d.p[sw] != 1 {
			return d.fail("Homing only allowed if switch is enabled")
		}
		o.write(tmc5240.RegRampStat, tmc5240.RampStatLatchL|tmc5240.RampStatLatchR)
	} else { // encoder index homing
		indexMode := d.p[params.HNEV]
		if indexMode < 0 || indexMode > 3 {
			return d.fail("Invalid index homing mode (needs 0..3)")
		}
		o.writeField(tmc5240.FieldEncIgnoreAB, 1)
		o.writeField(tmc5240.FieldEncClrCont, 1)
		o.writeField(tmc5240.FieldEncNEdge, indexMode)
		o.write(tmc5240.RegEncStatus, tmc5240.EncStatusNEvent)
	}

	d.state.Homing = true
	d.phase = homingSearch

	o.writeField(tmc5240.FieldSoftStop, d.p[params.HSST])
	if dir == -1 {
		o.writeField(tmc5240.FieldVirtStopLEn, 0)
		if mode == 1 {
			o.writeField(tmc5240.FieldLatchLActive, 1)
		} else {
			o.writeField(tmc5240.FieldEncLatchXAct, 1)
		}
		o.write(tmc5240.RegRampMode, tmc5240.RampModeVelNeg)
	} else {
		o.writeField(tmc5240.FieldVirtStopREn, 0)
		if mode == 1 {
			o.writeField(tmc5240.FieldLatchRActive, 1)
		} else {
			o.writeField(tmc5240.FieldEncLatchXAct, 1)
		}
		o.write(tmc5240.RegRampMode, tmc5240.RampModeVelPos)
	}
	if err := d.valueInRange(d.p[params.HVEL], "HVEL", 0, d.p[params.RMXV]); err != nil {
		d.CancelHoming()
		return err
	}
	o.write(tmc5240.RegVMax, d.p[params.HVEL])
	if o.err != nil {
		return o.err
	}
	return d.CheckError()
}

func (d *TMCDriver) CancelHoming() error {
	if !d.state.Homing {
		return nil
	}
	o := &regOps{d: d}
	o.writeField(tmc5240.FieldVirtStopLEn, d.p[params.LLEN])
	o.writeField(tmc5240.FieldVirtStopREn, d.p[params.LREN])
	o.writeField(tmc5240.FieldLatchLActive, 0)
	o.writeField(tmc5240.FieldLatchRActive, 0)
	o.writeField(tmc5240.FieldEncLatchXAct, 0)
	o.write(tmc5240.RegRampStat, tmc5240.RampStatLatchL|tmc5240.RampStatLatchR)
	o.write(tmc5240.RegEncStatus, tmc5240.EncStatusNEvent)
	d.state.Homing = false
	d.phase = homingIdle
	return o.err
}

// CheckError reads the global fault state. Any latched GSTAT bit
// disables the motor; the driver error bit is refined with DRV_STATUS.
func (d *TMCDriver) CheckError() error {
	v, err := d.bus.ReadRegister(tmc5240.RegGSTAT)
	if err != nil {
		return d.fail("Register bus failure: " + err.Error())
	}
	if v == 0 {
		return nil
	}
	d.SetEnabled(false)
	msg := "GSTAT error bits set"
	switch {
	case v&tmc5240.GStatReset != 0:
		msg = "GSTAT: reset error bit set"
	case v&tmc5240.GStatUVCP != 0:
		msg = "GSTAT: undervoltage warning bit set"
	case v&tmc5240.GStatRegisterReset != 0:
		msg = "GSTAT: register reset error bit set"
	case v&tmc5240.GStatVMUVLO != 0:
		msg = "GSTAT: undervoltage since last reset bit set"
	case v&tmc5240.GStatDrvErr != 0:
		msg = "GSTAT: driver error bit set"
		if ds, derr := d.bus.ReadRegister(tmc5240.RegDrvStatus); derr == nil {
			msg = drvStatusMessage(ds, msg)
		}
	}
	return d.fail(msg)
}

func drvStatusMessage(ds int32, fallback string) string {
	switch {
	case ds&tmc5240.DrvStatusS2VSA != 0:
		return "DRVSTATUS: short to supply indicator phase A error bit set"
	case ds&tmc5240.DrvStatusS2VSB != 0:
		return "DRVSTATUS: short to supply indicator phase B error bit set"
	case ds&tmc5240.DrvStatusS2GA != 0:
		return "DRVSTATUS: short to ground indicator phase A error bit set"
	case ds&tmc5240.DrvStatusS2GB != 0:
		return "DRVSTATUS: short to ground indicator phase B error bit set"
	case ds&tmc5240.DrvStatusOLA != 0:
		return "DRVSTATUS: open load indicator phase A error bit set"
	case ds&tmc5240.DrvStatusOLB != 0:
		return "DRVSTATUS: open load indicator phase B error bit set"
	case ds&tmc5240.DrvStatusStallGuard != 0:
		return "DRVSTATUS: StallGuard error bit set"
	case ds&tmc5240.DrvStatusOT != 0:
		return "DRVSTATUS: overtemperature flag set"
	case ds&tmc5240.DrvStatusOTPW != 0:
		return "DRVSTATUS: overtemperature pre-warning flag set"
	}
	return fallback
}

// CheckStatus polls the motion state. During a homing finish the call
// advances the re-entrant sequence instead.
func (d *TMCDriver) CheckStatus(now time.Time) (bool, error) {
	if d.phase == homingStopWait || d.phase == homingSettle {
		return d.tickEndHoming(now)
	}

	warn, err := tmc5240.ReadField(d.bus, tmc5240.FieldEncDeviationWarn)
	if err != nil {
		return false, d.fail("Register bus failure: " + err.Error())
	}
	if warn != 0 {
		d.SetEnabled(false)
		return false, d.fail("Following error")
	}

	flags, err := d.bus.ReadRegister(tmc5240.RegRampStat)
	if err != nil {
		return false, d.fail("Register bus failure: " + err.Error())
	}
	done := flags&(tmc5240.RampStatEventPosDone|tmc5240.RampStatPosReached) != 0

	if flags&tmc5240.RampStatEventStopSG != 0 {
		err := d.fail("Stall guard2 tripped")
		d.SetEnabled(false)
		return false, err
	}
	if d.state.Homing && d.phase == homingSearch &&
		flags&(tmc5240.RampStatLatchL|tmc5240.RampStatLatchR) != 0 {
		d.phase = homingStopWait
		d.deadline = now.Add(HomingStandstillTimeout)
		return d.tickEndHoming(now)
	}
	if flags&tmc5240.RampStatEventStopL != 0 {
		switch {
		case flags&tmc5240.RampStatStopL != 0:
			err = d.fail("Left limit switch reached")
			d.SetEnabled(false)
		case flags&tmc5240.RampStatVirtStopL != 0:
			// virtual stops do not de-energize the motor
			err = d.fail("Left virtual limit switch reached")
		default:
			err = d.fail("Unknown left stop condition")
			d.SetEnabled(false)
		}
		return false, err
	}
	if flags&tmc5240.RampStatEventStopR != 0 {
		switch {
		case flags&tmc5240.RampStatStopR != 0:
			err = d.fail("Right limit switch reached")
			d.SetEnabled(false)
		case flags&tmc5240.RampStatVirtStopR != 0:
			err = d.fail("Right virtual limit switch reached")
		default:
			err = d.fail("Unknown right stop condition")
			d.SetEnabled(false)
		}
		return false, err
	}
	return done, nil
}

// tickEndHoming runs the homing finish: wait for standstill, shift the
// position registers by the latched offset, then settle on the new zero.
func (d *TMCDriver) tickEndHoming(now time.Time) (bool, error) {
	switch d.phase {
	case homingStopWait:
		ds, err := d.bus.ReadRegister(tmc5240.RegDrvStatus)
		if err != nil {
			return false, d.fail("Register bus failure: " + err.Error())
		}
		if ds&tmc5240.DrvStatusStandstill == 0 {
			if now.After(d.deadline) {
				ferr := d.fail("Motor hasn't stopped after homing position reached")
				d.SetEnabled(false) // cancels homing and restores limits
				return false, ferr
			}
			return false, nil
		}

		// Standstill: rewrite the origin with the motor de-energized.
		if err := d.setEnableRaw(false); err != nil {
			return false, err
		}
		o := &regOps{d: d}
		xact := o.read(tmc5240.RegXActual)
		xlatch := o.read(tmc5240.RegXLatch)
		o.write(tmc5240.RegXActual, xact-xlatch)
		if o.err != nil {
			return false, o.err
		}
		if err := d.setEnableRaw(true); err != nil {
			return false, err
		}
		if d.cl.EncConst != 0 {
			o.write(tmc5240.RegXEnc, xact-xlatch)
			o.write(tmc5240.RegEncStatus, -1)
		}
		o.writeField(tmc5240.FieldVirtStopLEn, d.p[params.LLEN])
		o.writeField(tmc5240.FieldVirtStopREn, d.p[params.LREN])
		o.writeField(tmc5240.FieldLatchLActive, 0)
		o.writeField(tmc5240.FieldLatchRActive, 0)
		o.writeField(tmc5240.FieldEncLatchXAct, 0)
		o.write(tmc5240.RegRampStat, tmc5240.RampStatLatchL|tmc5240.RampStatLatchR)
		o.write(tmc5240.RegEncStatus, tmc5240.EncStatusNEvent)
		if o.err != nil {
			return false, o.err
		}
		if err := d.MoveToPosition(0, true); err != nil {
			return false, err
		}
		d.phase = homingSettle
		d.deadline = now.Add(HomingSettleTimeout)
		return false, nil

	case homingSettle:
		flags, err := d.bus.ReadRegister(tmc5240.RegRampStat)
		if err != nil {
			return false, d.fail("Register bus failure: " + err.Error())
		}
		// The settle move is best effort; the deadline just stops the
		// wait, it is not a fault.
		if flags&tmc5240.RampStatPosReached == 0 && !now.After(d.deadline) {
			return false, nil
		}
		if d.cl.EncConst != 0 {
			if err := d.bus.WriteRegister(tmc5240.RegXEnc, 0); err != nil {
				return false, d.fail("Register bus failure: " + err.Error())
			}
		}
		d.state.Homing = false
		d.phase = homingIdle
		return true, nil
	}
	return false, nil
}

func (d *TMCDriver) StatusValue(index int) (int32, error) {
	o := &regOps{d: d}
	var v int32
	switch index {
	case StatXACT:
		v = o.read(tmc5240.RegXActual)
	case StatXTAR:
		v = o.read(tmc5240.RegXTarget)
	case StatXENC:
		v = o.read(tmc5240.RegXEnc)
	case StatVELO:
		v = o.read(tmc5240.RegVMax)
	case StatACCE:
		v = o.read(tmc5240.RegAMax)
	case StatENAB:
		if d.state.Enabled {
			v = 1
		}
	case StatTEMP:
		v = tmc5240.TemperatureC(o.readField(tmc5240.FieldADCTemp))
	}
	return v, o.err
}

func (d *TMCDriver) SetStatusValue(index int, value int32) error {
	if index == StatENAB {
		return d.SetEnabled(value != 0)
	}
	if d.state.RemoteControlled {
		msg := "Motor is under remote control"
		d.report(msg)
		return fault.Coded(fault.CodeMotion, msg)
	}
	o := &regOps{d: d}
	switch index {
	case StatXACT:
		o.write(tmc5240.RegXActual, value)
	case StatXTAR:
		o.write(tmc5240.RegXTarget, value)
	case StatXENC:
		o.write(tmc5240.RegXEnc, value)
		o.write(tmc5240.RegEncStatus, -1)
	case StatVELO:
		rmxv := d.p[params.RMXV]
		if err := d.valueInRange(value, "VELO", -rmxv, rmxv); err != nil {
			return err
		}
		o.write(tmc5240.RegVMax, value)
	case StatACCE:
		if err := d.valueInRange(value, "ACCE", 0, d.p[params.RMXA]); err != nil {
			return err
		}
		o.write(tmc5240.RegAMax, value)
		o.write(tmc5240.RegDMax, value)
	}
	return o.err
}

func (d *TMCDriver) RegisterValue(addr uint8) (int32, error) {
	o := &regOps{d: d}
	v := o.read(addr)
	return v, o.err
}

func (d *TMCDriver) SetRegisterValue(addr uint8, value int32) error {
	o := &regOps{d: d}
	o.write(addr, value)
	return o.err
}

// StatusFlags packs the ramp and encoder status into the Flag bits.
func (d *TMCDriver) StatusFlags() (int32, error) {
	o := &regOps{d: d}
	ramp := o.read(tmc5240.RegRampStat)
	enc := o.read(tmc5240.RegEncStatus)
	if o.err != nil {
		return 0, o.err
	}
	var flags int32
	if d.state.Enabled {
		flags |= FlagEnabled
	}
	if ramp&tmc5240.RampStatPosReached != 0 {
		flags |= FlagPositionReached
	}
	if ramp&tmc5240.RampStatVZero == 0 {
		flags |= FlagMoving
	}
	if ramp&tmc5240.RampStatLatchR != 0 {
		flags |= FlagLatchR
	}
	if ramp&tmc5240.RampStatLatchL != 0 {
		flags |= FlagLatchL
	}
	if ramp&tmc5240.RampStatEventStopSG != 0 {
		flags |= FlagStallEvent
	}
	if ramp&tmc5240.RampStatStatusSG != 0 {
		flags |= FlagStallStatus
	}
	if ramp&tmc5240.RampStatVirtStopR != 0 {
		flags |= FlagVirtStopR
	}
	if ramp&tmc5240.RampStatVirtStopL != 0 {
		flags |= FlagVirtStopL
	}
	if ramp&tmc5240.RampStatStopR != 0 {
		flags |= FlagStopR
	}
	if ramp&tmc5240.RampStatStopL != 0 {
		flags |= FlagStopL
	}
	if enc&tmc5240.EncStatusDeviationWarn != 0 {
		flags |= FlagEncDeviation
	}
	return flags, nil
}

func (d *TMCDriver) ClosedLoop() ClosedLoop { return d.cl }

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
