package params

// Hardware table defaults. Slots 0 and 1 carry simulated drivers so the
// controller is usable without stepper hardware attached.
var (
	DefaultDevices = [MaxAxes]DeviceType{DeviceSim, DeviceSim, DeviceNone, DeviceNone}
	DefaultCS      = [MaxAxes]int32{22, 21, 20, 17}
	DefaultRoles   = [MaxAxes]AxisRole{RoleX, RoleY, RoleZ, RoleAux}
)

// DefaultAxisFull is a working stepper configuration: motion and switches
// enabled, encoder present.
var DefaultAxisFull = [NumAxisParams]int32{
	// current
	128, 1, 12, 8,
	// mode
	3, 0, 5, 1, 0, 145,
	// homing
	1, 1, 4000, 1, 1,
	// rates
	32000, 64000, 4000, 5000,
	// encoder
	71536, 500, 5, 1, 0,
	// switches
	1, 1, 1, 1, 0,
	// virtual limits
	0, 0, 0, -100000, 100000,
}

// DefaultAxisSafe keeps the driver de-energized: zero currents, chopper
// off, homing disabled, velocities zero, narrow virtual limits. Used when
// the stored configuration cannot be trusted.
var DefaultAxisSafe = [NumAxisParams]int32{
	// current
	128, 0, 0, 0,
	// mode
	3, 0, 0, 0, 0, 0,
	// homing
	0, 1, 0, 0, 1,
	// rates
	0, 0, 0, 0,
	// encoder
	0, 0, 1, 1, 0,
	// switches
	0, 0, 1, 1, 0,
	// virtual limits
	0, 1, 1, -1000, 1000,
}

// DefaultRemote disables remote control with benign joystick/encoder scales.
var DefaultRemote = [NumRemoteParams]int32{0, 1, 1000, 1, 10}

// LoadDefaults fills every axis from one of the default tables. The
// hardware table is left as is.
func (s *Store) LoadDefaults(safe bool) {
	table := &DefaultAxisFull
	if safe {
		table = &DefaultAxisSafe
	}
	for a := 0; a < MaxAxes; a++ {
		s.Axis[a] = *table
		s.Remote[a] = DefaultRemote
	}
}
