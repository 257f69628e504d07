package serialcmd

import (
	"strconv"
	"strings"
	"time"

	"github.com/MCFLab/PicoStageDriver/fault"
	"github.com/MCFLab/PicoStageDriver/motion"
	"github.com/MCFLab/PicoStageDriver/params"
	"github.com/MCFLab/PicoStageDriver/storage"
)

// SerialCheckInterval is the poll cadence of the command channel.
const SerialCheckInterval = 20 * time.Millisecond

// Identity is the *IDN? reply.
const Identity = "Stage Driver Pico"

// Port is the line transport the dispatcher polls. ReadLine is
// non-blocking and reports false until a complete line is buffered.
type Port interface {
	ReadLine() (string, bool)
	WriteLine(s string)
}

// RemoteSync is the slice of the remote relay the dispatcher drives:
// configuration push on SMC_CONF, parameter forwarding on SRP_ and the
// fault section of the error report.
type RemoteSync interface {
	Config(axisIndex int) error
	SendRemoteCommand(index, axisIndex int, value int32) error
	ReadFault() (string, bool)
}

// Dispatcher executes decoded commands against the store, the motion
// orchestrator and the remote relay, and formats the wire replies.
type Dispatcher struct {
	store  *params.Store
	motors *motion.Orchestrator
	remote RemoteSync
	flash  storage.Flash
	port   Port

	latch     fault.Latch
	lastCheck time.Time
}

func NewDispatcher(store *params.Store, motors *motion.Orchestrator, remote RemoteSync, flash storage.Flash, port Port) *Dispatcher {
	return &Dispatcher{store: store, motors: motors, remote: remote, flash: flash, port: port}
}

// Poll reads and executes at most one pending line per cadence tick.
func (d *Dispatcher) Poll(now time.Time) {
	if now.Sub(d.lastCheck) < SerialCheckInterval {
		return
	}
	d.lastCheck = now
	line, ok := d.port.ReadLine()
	if !ok {
		return
	}
	d.port.WriteLine(d.Execute(now, line))
}

func errorReply(err error) string {
	return "ERROR=" + strconv.Itoa(int(fault.CodeOf(err)))
}

func valueReply(name string, axisIndex int, v int32) string {
	return name + strconv.Itoa(axisIndex) + "=" + strconv.Itoa(int(v))
}

func (d *Dispatcher) lockErr(axisIndex int) error {
	if !d.motors.RemoteControlled(axisIndex) {
		return nil
	}
	err := fault.Coded(fault.CodeSerial, "Motor is under remote control")
	d.latch.Set(err.Error())
	return err
}

// Execute runs one command line and returns the reply line.
func (d *Dispatcher) Execute(now time.Time, line string) string {
	cmd, err := Parse(line)
	if err != nil {
		d.latch.Set(err.Error())
		return errorReply(err)
	}

	get := func(name string, v int32, err error) string {
		if err != nil {
			return errorReply(err)
		}
		return valueReply(name, cmd.Axis, v)
	}

	switch cmd.Kind {
	case KindMovePosition:
		if err := d.lockErr(cmd.Axis); err != nil {
			return errorReply(err)
		}
		return errorReply(d.motors.MoveToPosition(cmd.Axis, cmd.Value, true))

	case KindMoveVelocity:
		if err := d.lockErr(cmd.Axis); err != nil {
			return errorReply(err)
		}
		return errorReply(d.motors.MoveAtVelocity(cmd.Axis, cmd.Value))

	case KindHome:
		if err := d.lockErr(cmd.Axis); err != nil {
			return errorReply(err)
		}
		return errorReply(d.motors.StartHoming(cmd.Axis, now))

	case KindConfigure:
		if err := d.motors.ConfigureAxis(cmd.Axis); err != nil {
			return errorReply(err)
		}
		return errorReply(d.remote.Config(cmd.Axis))

	case KindClearStatus:
		return errorReply(d.motors.ClearStatusFaults(cmd.Axis))

	case KindSetRegister:
		return errorReply(d.motors.SetRegisterValue(cmd.Axis, cmd.Register, cmd.Value))
	case KindGetRegister:
		v, err := d.motors.RegisterValue(cmd.Axis, cmd.Register)
		return get("MC_DREG", v, err)

	case KindGetStatusFlags:
		v, err := d.motors.StatusFlags(cmd.Axis)
		return get("MC_STAT", v, err)
	case KindGetMotionDone:
		v, err := d.motors.MotionDone(cmd.Axis)
		return get("MC_POSR", v, err)

	case KindSetStatus:
		return errorReply(d.motors.SetStatusValue(cmd.Axis, cmd.Index, cmd.Value))
	case KindGetStatus:
		v, err := d.motors.StatusValue(cmd.Axis, cmd.Index)
		return get("MS_"+cmd.ID, v, err)

	case KindSetDeviceType:
		return errorReply(d.store.SetDeviceType(cmd.Axis, cmd.Value))
	case KindGetDeviceType:
		v, err := d.store.DeviceTypeValue(cmd.Axis)
		return get("MP_TDEV", v, err)

	case KindSetAxisRole:
		return errorReply(d.store.SetAxisRole(cmd.Axis, cmd.Value))
	case KindGetAxisRole:
		v, err := d.store.AxisRoleValue(cmd.Axis)
		return get("MP_TAXI", v, err)

	case KindSetAxisParam:
		return errorReply(d.store.SetAxisParam(cmd.Axis, cmd.Index, cmd.Value))
	case KindGetAxisParam:
		v, err := d.store.AxisParam(cmd.Axis, cmd.Index)
		return get("MP_"+cmd.ID, v, err)

	case KindSetRemoteParam:
		// the joystick unit acknowledges first; the store copy only
		// changes once the remote accepted the new value
		if err := d.remote.SendRemoteCommand(cmd.Index, cmd.Axis, cmd.Value); err != nil {
			return errorReply(err)
		}
		return errorReply(d.store.SetRemoteParam(cmd.Axis, cmd.Index, cmd.Value))
	case KindGetRemoteParam:
		v, err := d.store.RemoteParam(cmd.Axis, cmd.Index)
		return get("RP_"+cmd.ID, v, err)

	case KindIdentify:
		return Identity
	case KindDeviceCount:
		return "PC_NDEV=" + strconv.Itoa(params.MaxAxes)
	case KindVersion:
		return "PC_VERS=" + strconv.Itoa(params.Version)
	case KindErrorReport:
		return "PC_EMSG=" + d.errorReport()
	case KindSaveToFlash:
		return errorReply(d.store.SaveToFlash(d.flash))
	}
	return errorReply(fault.Coded(fault.CodeSerial, "Unrecognized command"))
}

// errorReport drains every fault latch into one labeled summary.
func (d *Dispatcher) errorReport() string {
	var sections []string
	if msg, ok := d.latch.Read(); ok {
		sections = append(sections, "Serial: "+msg)
	}
	if msg, ok := d.store.Fault.Read(); ok {
		sections = append(sections, "Params: "+msg)
	}
	if msg, ok := d.motors.ReadFault(); ok {
		sections = append(sections, "Motors: "+msg)
	}
	if msg, ok := d.remote.ReadFault(); ok {
		sections = append(sections, "Remote: "+msg)
	}
	if len(sections) == 0 {
		return "No error"
	}
	return strings.Join(sections, "; ")
}

// FaultPending reports whether any subsystem holds an unread fault.
func (d *Dispatcher) FaultPending() bool {
	return d.latch.Pending() || d.store.Fault.Pending() || d.motors.FaultPending()
}
