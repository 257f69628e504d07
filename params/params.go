// Package params holds the controller's configuration state: per-axis
// driver parameters, remote-control parameters and the hardware table
// (device type, chip select, axis role per slot). Parameter writes are
// deliberately not range checked here; validation happens when a value
// is consumed (ConfigureAxis, StartHoming, motion commands), so a rejected
// value never leaves the store in a half-applied state.
package params

import (
	"github.com/MCFLab/PicoStageDriver/fault"
)

const (
	// MaxAxes is the number of driver slots on the board.
	MaxAxes = 4
	// Version tags the persisted parameter image.
	Version = 1

	NumAxisParams   = 34
	NumRemoteParams = 5
)

// DeviceType selects the driver variant attached to a slot.
type DeviceType int32

const (
	DeviceNone DeviceType = 0
	DeviceSim  DeviceType = 1
	DeviceTMC  DeviceType = 2
)

// AxisRole identifies the stage axis a slot drives. Host software uses it
// to map slots to X/Y/Z stage axes.
type AxisRole int32

const (
	RoleUndef AxisRole = 0
	RoleX     AxisRole = 1
	RoleY     AxisRole = 2
	RoleZ     AxisRole = 3
	RoleAux   AxisRole = 4
)

// Axis parameter indices. The wire protocol addresses parameters by the
// four-character IDs in AxisParamIDs; the index order is also the order of
// the persisted image.
const (
	// current
	CSCA = iota // global current scale factor (0 for full scale, or 32..255)
	CRAN        // current range: 0->1A, 1->2A, 2..3->3A
	CRUN        // run current scale (0..31)
	CHOL        // hold current scale (0..31)
	// mode
	MMIC // microstep resolution, step size 2^MMIC microsteps (0->native 256, 8->full step)
	MINV // invert axis direction (shaft bit)
	MTOF // chopper off time (0 disables the driver, 5 typical)
	MSGE // stallguard enable
	MSGT // stallguard threshold (-64..63)
	MTCT // coolstep/stallguard lower velocity threshold
	// homing
	HMOD // homing mode: 0->disabled, 1->limit switch, 2->encoder index
	HDIR // homing direction (-1 or 1)
	HVEL // homing velocity
	HSST // use soft stop while homing
	HNEV // index event: 0->during N, 1->rising, 2->falling, 3->any edge
	// rates
	RSEV // set velocity (internal units, ~4/3 microsteps/s)
	RMXV // max velocity
	RSEA // set acceleration (internal units)
	RMXA // max acceleration
	// encoder
	ECON // encoder constant, sign sets direction, 0 -> no encoder
	EDEV // max encoder deviation before the following-error flag raises
	ETOL // closed-loop tolerance window
	EMAX // max closed-loop pull-in iterations (0 -> unlimited)
	ERST // rewrite actual position from the encoder after a closed-loop move
	// switches
	SLEN // left switch enabled
	SREN // right switch enabled
	SLPO // left switch polarity (1 -> high level stops)
	SRPO // right switch polarity
	SSWP // swap left/right switch roles
	// virtual limits
	LENC // use encoder position instead of actual position for virtual limits
	LLEN // left virtual limit enabled
	LREN // right virtual limit enabled
	LLPS // left limit position
	LRPS // right limit position
)

// Remote parameter indices.
const (
	RemoteENAB = iota // remote control enabled for the axis
	RemoteJDIR        // joystick direction
	RemoteJMAX        // joystick max value
	RemoteEDIR        // encoder wheel direction
	RemoteESTP        // encoder wheel step size
)

// AxisParamIDs lists the wire IDs of the axis parameters, in index order.
var AxisParamIDs = [NumAxisParams]string{
	"CSCA", "CRAN", "CRUN", "CHOL",
	"MMIC", "MINV", "MTOF", "MSGE", "MSGT", "MTCT",
	"HMOD", "HDIR", "HVEL", "HSST", "HNEV",
	"RSEV", "RMXV", "RSEA", "RMXA",
	"ECON", "EDEV", "ETOL", "EMAX", "ERST",
	"SLEN", "SREN", "SLPO", "SRPO", "SSWP",
	"LENC", "LLEN", "LREN", "LLPS", "LRPS",
}

// RemoteParamIDs lists the wire IDs of the remote parameters, in index order.
var RemoteParamIDs = [NumRemoteParams]string{
	"ENAB", "JDIR", "JMAX", "EDIR", "ESTP",
}

var axisParamIndex = map[string]int{}
var remoteParamIndex = map[string]int{}

func init() {
	for i, id := range AxisParamIDs {
		axisParamIndex[id] = i
	}
	for i, id := range RemoteParamIDs {
		remoteParamIndex[id] = i
	}
}

// AxisParamIndex resolves a four-character axis parameter ID to its index.
func AxisParamIndex(id string) (int, bool) {
	i, ok := axisParamIndex[id]
	return i, ok
}

// RemoteParamIndex resolves a four-character remote parameter ID to its index.
func RemoteParamIndex(id string) (int, bool) {
	i, ok := remoteParamIndex[id]
	return i, ok
}

// Store is the parameter state of the controller. Access is not
// synchronized; the controller owns it from a single control loop.
type Store struct {
	Device [MaxAxes]DeviceType
	CS     [MaxAxes]int32
	Role   [MaxAxes]AxisRole
	Axis   [MaxAxes][NumAxisParams]int32
	Remote [MaxAxes][NumRemoteParams]int32

	Fault fault.Latch
}

// New returns a Store with the compiled-in hardware table and zeroed
// parameter arrays. Call LoadDefaults or LoadFromFlash before use.
func New() *Store {
	return &Store{
		Device: DefaultDevices,
		CS:     DefaultCS,
		Role:   DefaultRoles,
	}
}

func (s *Store) fail(msg string) error {
	s.Fault.Set(msg)
	return fault.Coded(fault.CodeParam, msg)
}

// CheckAxis validates an axis index against the slot count.
func (s *Store) CheckAxis(axis int) error {
	if axis < 0 || axis >= MaxAxes {
		return s.fail("Invalid board number")
	}
	return nil
}

// ActiveAxis reports whether the axis index is valid and its slot has a
// device configured. With raiseFault set an inactive axis also latches a
// parameter fault.
func (s *Store) ActiveAxis(axis int, raiseFault bool) bool {
	if axis < 0 || axis >= MaxAxes || s.Device[axis] == DeviceNone {
		if raiseFault {
			s.Fault.Set("Inactive board number")
		}
		return false
	}
	return true
}

// SetDeviceType sets the driver variant for a slot.
func (s *Store) SetDeviceType(axis int, value int32) error {
	if err := s.CheckAxis(axis); err != nil {
		return err
	}
	switch DeviceType(value) {
	case DeviceNone, DeviceSim, DeviceTMC:
		s.Device[axis] = DeviceType(value)
	default:
		return s.fail("Invalid device type (0..2)")
	}
	return nil
}

// DeviceTypeValue returns the driver variant of a slot.
func (s *Store) DeviceTypeValue(axis int) (int32, error) {
	if err := s.CheckAxis(axis); err != nil {
		return 0, err
	}
	return int32(s.Device[axis]), nil
}

// SetAxisRole sets the stage-axis role of a slot.
func (s *Store) SetAxisRole(axis int, value int32) error {
	if err := s.CheckAxis(axis); err != nil {
		return err
	}
	switch AxisRole(value) {
	case RoleUndef, RoleX, RoleY, RoleZ, RoleAux:
		s.Role[axis] = AxisRole(value)
	default:
		return s.fail("Invalid axis type (0..4)")
	}
	return nil
}

// AxisRoleValue returns the stage-axis role of a slot.
func (s *Store) AxisRoleValue(axis int) (int32, error) {
	if err := s.CheckAxis(axis); err != nil {
		return 0, err
	}
	return int32(s.Role[axis]), nil
}

// SetAxisParam stores an axis parameter. No range check: values are
// validated when consumed.
func (s *Store) SetAxisParam(axis, index int, value int32) error {
	if err := s.CheckAxis(axis); err != nil {
		return err
	}
	s.Axis[axis][index] = value
	return nil
}

// AxisParam returns an axis parameter value.
func (s *Store) AxisParam(axis, index int) (int32, error) {
	if err := s.CheckAxis(axis); err != nil {
		return 0, err
	}
	return s.Axis[axis][index], nil
}

// SetRemoteParam stores a remote parameter. RemoteENAB accepts axis -1 to
// address every slot at once; all other parameters need a specific axis.
func (s *Store) SetRemoteParam(axis, index int, value int32) error {
	if index == RemoteENAB && axis == -1 {
		for a := 0; a < MaxAxes; a++ {
			s.Remote[a][index] = value
		}
		return nil
	}
	if err := s.CheckAxis(axis); err != nil {
		return err
	}
	s.Remote[axis][index] = value
	return nil
}

// RemoteParam returns a remote parameter value.
func (s *Store) RemoteParam(axis, index int) (int32, error) {
	if err := s.CheckAxis(axis); err != nil {
		return 0, err
	}
	return s.Remote[axis][index], nil
}
