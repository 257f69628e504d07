// Package serialcmd implements the line-oriented host protocol: a typed
// decode of the command set and the dispatcher that executes commands
// against the parameter store, the motion orchestrator and the remote
// relay. Set-style commands always answer "ERROR=<code>" (0 on
// success); get-style commands answer "<name><axis>=<value>".
package serialcmd

import (
	"strconv"
	"strings"

	"github.com/MCFLab/PicoStageDriver/axis"
	"github.com/MCFLab/PicoStageDriver/fault"
	"github.com/MCFLab/PicoStageDriver/params"
)

// Kind enumerates the command set. Parse returns exactly one of these;
// anything else on the wire is a decode error.
type Kind int8

const (
	KindMovePosition   Kind = iota // SMC_MPOS<axis>,<pos>
	KindMoveVelocity               // SMC_MVEL<axis>,<vel>
	KindHome                       // SMC_HOME<axis>
	KindConfigure                  // SMC_CONF<axis>
	KindClearStatus                // SMC_SCLR<axis>
	KindSetRegister                // SMC_DREG<axis>,<addr>,<value>
	KindGetRegister                // GMC_DREG<axis>,<addr>
	KindGetStatusFlags             // GMC_STAT<axis>
	KindGetMotionDone              // GMC_POSR<axis>
	KindSetStatus                  // SMS_<id><axis>,<value>
	KindGetStatus                  // GMS_<id><axis>
	KindSetDeviceType              // SMP_TDEV<axis>,<value>
	KindGetDeviceType              // GMP_TDEV<axis>
	KindSetAxisRole                // SMP_TAXI<axis>,<value>
	KindGetAxisRole                // GMP_TAXI<axis>
	KindSetAxisParam               // SMP_<id><axis>,<value>
	KindGetAxisParam               // GMP_<id><axis>
	KindSetRemoteParam             // SRP_<id><axis>,<value>
	KindGetRemoteParam             // GRP_<id><axis>
	KindIdentify                   // *IDN?
	KindDeviceCount                // GPC_NDEV
	KindVersion                    // GPC_VERS
	KindErrorReport                // GPC_EMSG
	KindSaveToFlash                // SPC_SAFL
)

// Command is one decoded line. Which fields are meaningful depends on
// Kind; ID is the four-character parameter or status name for the
// table-driven families.
type Command struct {
	Kind     Kind
	Axis     int
	Index    int
	ID       string
	Register uint8
	Value    int32
}

func decodeErr(msg string) error { return fault.Coded(fault.CodeSerial, msg) }

func formatErr(line string) error {
	return decodeErr("Invalid command format: " + line)
}

func cmdFormatErr(name string) error {
	return decodeErr("Invalid " + name + " command format")
}

func parseAxis(s string) (int, bool) {
	v, err := strconv.ParseInt(s, 10, 8)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func parseValue(s string) (int32, bool) {
	// base 0 accepts the 0x forms the register commands use
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func parseAxisValue(rest string) (int, int32, bool) {
	a, b, found := strings.Cut(rest, ",")
	if !found {
		return 0, 0, false
	}
	ax, ok := parseAxis(a)
	if !ok {
		return 0, 0, false
	}
	v, ok := parseValue(b)
	if !ok {
		return 0, 0, false
	}
	return ax, v, true
}

// Parse decodes one command line. The returned error carries the serial
// error code and the message the dispatcher latches.
func Parse(line string) (Command, error) {
	var c Command
	if len(line) < 5 {
		return c, decodeErr("Command <5 chars. Recvd: " + line)
	}
	if strings.HasPrefix(line, "*IDN?") {
		c.Kind = KindIdentify
		return c, nil
	}

	if len(line) >= 8 {
		name, rest := line[:8], line[8:]
		switch name {
		case "SMC_MPOS", "SMC_MVEL":
			ax, v, ok := parseAxisValue(rest)
			if !ok {
				return c, cmdFormatErr(name)
			}
			c.Kind = KindMovePosition
			if name == "SMC_MVEL" {
				c.Kind = KindMoveVelocity
			}
			c.Axis, c.Value = ax, v
			return c, nil

		case "SMC_HOME", "SMC_CONF", "SMC_SCLR", "GMC_STAT", "GMC_POSR":
			ax, ok := parseAxis(rest)
			if !ok {
				return c, cmdFormatErr(name)
			}
			switch name {
			case "SMC_HOME":
				c.Kind = KindHome
			case "SMC_CONF":
				c.Kind = KindConfigure
			case "SMC_SCLR":
				c.Kind = KindClearStatus
			case "GMC_STAT":
				c.Kind = KindGetStatusFlags
			case "GMC_POSR":
				c.Kind = KindGetMotionDone
			}
			c.Axis = ax
			return c, nil

		case "SMC_DREG":
			parts := strings.SplitN(rest, ",", 3)
			if len(parts) != 3 {
				return c, cmdFormatErr(name)
			}
			ax, ok1 := parseAxis(parts[0])
			addr, err := strconv.ParseUint(parts[1], 10, 8)
			v, ok2 := parseValue(parts[2])
			if !ok1 || err != nil || !ok2 {
				return c, cmdFormatErr(name)
			}
			c.Kind = KindSetRegister
			c.Axis, c.Register, c.Value = ax, uint8(addr), v
			return c, nil

		case "GMC_DREG":
			a, b, found := strings.Cut(rest, ",")
			if !found {
				return c, cmdFormatErr(name)
			}
			ax, ok := parseAxis(a)
			addr, err := strconv.ParseUint(b, 10, 8)
			if !ok || err != nil {
				return c, cmdFormatErr(name)
			}
			c.Kind = KindGetRegister
			c.Axis, c.Register = ax, uint8(addr)
			return c, nil

		case "SMP_TDEV", "SMP_TAXI":
			ax, v, ok := parseAxisValue(rest)
			if !ok {
				return c, cmdFormatErr(name)
			}
			c.Kind = KindSetDeviceType
			if name == "SMP_TAXI" {
				c.Kind = KindSetAxisRole
			}
			c.Axis, c.Value = ax, v
			return c, nil

		case "GMP_TDEV", "GMP_TAXI":
			ax, ok := parseAxis(rest)
			if !ok {
				return c, cmdFormatErr(name)
			}
			c.Kind = KindGetDeviceType
			if name == "GMP_TAXI" {
				c.Kind = KindGetAxisRole
			}
			c.Axis = ax
			return c, nil

		case "GPC_NDEV":
			c.Kind = KindDeviceCount
			return c, nil
		case "GPC_VERS":
			c.Kind = KindVersion
			return c, nil
		case "GPC_EMSG":
			c.Kind = KindErrorReport
			return c, nil
		case "SPC_SAFL":
			c.Kind = KindSaveToFlash
			return c, nil
		}
	}

	// table-driven families addressed by a four-character ID
	prefix := line[:4]
	switch prefix {
	case "SMS_", "GMS_":
		id := line[4:]
		if len(id) > 4 {
			id = id[:4]
		}
		idx, ok := axis.StatusIndex(id)
		if !ok {
			return c, decodeErr("Unrecognized " + prefix + " parameter")
		}
		if prefix == "SMS_" {
			ax, v, ok := parseAxisValue(line[8:])
			if !ok {
				return c, formatErr(line)
			}
			c.Kind, c.Axis, c.Index, c.ID, c.Value = KindSetStatus, ax, idx, id, v
			return c, nil
		}
		ax, ok := parseAxis(line[8:])
		if !ok {
			return c, formatErr(line)
		}
		c.Kind, c.Axis, c.Index, c.ID = KindGetStatus, ax, idx, id
		return c, nil

	case "SMP_", "GMP_":
		id := line[4:]
		if len(id) > 4 {
			id = id[:4]
		}
		idx, ok := params.AxisParamIndex(id)
		if !ok {
			return c, decodeErr("Unrecognized parameter  " + line)
		}
		if prefix == "SMP_" {
			ax, v, ok := parseAxisValue(line[8:])
			if !ok {
				return c, formatErr(line)
			}
			c.Kind, c.Axis, c.Index, c.ID, c.Value = KindSetAxisParam, ax, idx, id, v
			return c, nil
		}
		ax, ok := parseAxis(line[8:])
		if !ok {
			return c, formatErr(line)
		}
		c.Kind, c.Axis, c.Index, c.ID = KindGetAxisParam, ax, idx, id
		return c, nil

	case "SRP_", "GRP_":
		id := line[4:]
		if len(id) > 4 {
			id = id[:4]
		}
		idx, ok := params.RemoteParamIndex(id)
		if !ok {
			return c, decodeErr("Unrecognized parameter  " + line)
		}
		if prefix == "SRP_" {
			ax, v, ok := parseAxisValue(line[8:])
			if !ok {
				return c, formatErr(line)
			}
			c.Kind, c.Axis, c.Index, c.ID, c.Value = KindSetRemoteParam, ax, idx, id, v
			return c, nil
		}
		ax, ok := parseAxis(line[8:])
		if !ok {
			return c, formatErr(line)
		}
		c.Kind, c.Axis, c.Index, c.ID = KindGetRemoteParam, ax, idx, id
		return c, nil
	}

	return c, decodeErr("Unrecognized command")
}
