// Package client implements the host side of the controller's line
// protocol: open the port, send one command per line, parse the
// "NAME<axis>=<value>" and "ERROR=<code>" replies.
package client

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MCFLab/PicoStageDriver/host/serial"
)

// ControllerError is a non-zero ERROR=<code> reply, annotated with the
// detail text fetched from the controller's error report.
type ControllerError struct {
	Code   int
	Detail string
}

func (e *ControllerError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("controller error %d", e.Code)
	}
	return fmt.Sprintf("controller error %d: %s", e.Code, e.Detail)
}

// Client is a connection to one controller.
type Client struct {
	port serial.Port
	r    *bufio.Reader
}

// Connect opens the default serial configuration for the device.
func Connect(device string) (*Client, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a custom serial configuration.
func ConnectWithConfig(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	// give a freshly enumerated device a moment
	time.Sleep(100 * time.Millisecond)
	return NewClient(port), nil
}

// NewClient wraps an already opened port.
func NewClient(port serial.Port) *Client {
	return &Client{port: port, r: bufio.NewReader(port)}
}

func (c *Client) Close() error { return c.port.Close() }

// Command sends one line and returns the reply line.
func (c *Client) Command(line string) (string, error) {
	if _, err := c.port.Write([]byte(line + "\n")); err != nil {
		return "", fmt.Errorf("write %q: %w", line, err)
	}
	reply, err := c.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("no reply to %q: %w", line, err)
	}
	return strings.TrimRight(reply, "\r\n"), nil
}

// Exec sends a set-style command and fails on a non-zero error code.
func (c *Client) Exec(line string) error {
	reply, err := c.Command(line)
	if err != nil {
		return err
	}
	code, ok := parseErrorReply(reply)
	if !ok {
		return fmt.Errorf("unexpected reply %q to %q", reply, line)
	}
	if code != 0 {
		return c.controllerError(code)
	}
	return nil
}

// Query sends a get-style command and parses the value out of the
// "<prefix><axis>=<value>" reply.
func (c *Client) Query(line, prefix string) (int32, error) {
	reply, err := c.Command(line)
	if err != nil {
		return 0, err
	}
	if code, ok := parseErrorReply(reply); ok {
		return 0, c.controllerError(code)
	}
	if !strings.HasPrefix(reply, prefix) {
		return 0, fmt.Errorf("unexpected reply %q to %q", reply, line)
	}
	_, valueStr, found := strings.Cut(reply, "=")
	if !found {
		return 0, fmt.Errorf("malformed reply %q to %q", reply, line)
	}
	v, err := strconv.ParseInt(valueStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed reply %q to %q", reply, line)
	}
	return int32(v), nil
}

// controllerError fetches the detail text behind a non-zero reply code.
func (c *Client) controllerError(code int) error {
	detail := ""
	if reply, err := c.Command("GPC_EMSG"); err == nil {
		detail = strings.TrimPrefix(reply, "PC_EMSG=")
		if detail == "No error" {
			detail = ""
		}
	}
	return &ControllerError{Code: code, Detail: detail}
}

func parseErrorReply(reply string) (int, bool) {
	rest, found := strings.CutPrefix(reply, "ERROR=")
	if !found {
		return 0, false
	}
	code, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return code, true
}

func cmd(name string, axis int, values ...int32) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(strconv.Itoa(axis))
	for _, v := range values {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(v)))
	}
	return b.String()
}

// Identify returns the controller's ID string.
func (c *Client) Identify() (string, error) { return c.Command("*IDN?") }

// DeviceCount returns the number of driver slots.
func (c *Client) DeviceCount() (int32, error) { return c.Query("GPC_NDEV", "PC_NDEV") }

// ProtocolVersion returns the controller's parameter image version.
func (c *Client) ProtocolVersion() (int32, error) { return c.Query("GPC_VERS", "PC_VERS") }

// ErrorReport drains the controller's fault latches.
func (c *Client) ErrorReport() (string, error) {
	reply, err := c.Command("GPC_EMSG")
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(reply, "PC_EMSG="), nil
}

// MoveToPosition starts a position move.
func (c *Client) MoveToPosition(axis int, pos int32) error {
	return c.Exec(cmd("SMC_MPOS", axis, pos))
}

// MoveAtVelocity starts a constant-velocity move; 0 stops the axis.
func (c *Client) MoveAtVelocity(axis int, vel int32) error {
	return c.Exec(cmd("SMC_MVEL", axis, vel))
}

// Home starts the configured homing cycle.
func (c *Client) Home(axis int) error { return c.Exec(cmd("SMC_HOME", axis)) }

// Configure applies the stored parameters to the drivers and the
// pendant; axis -1 configures every active slot.
func (c *Client) Configure(axis int) error { return c.Exec(cmd("SMC_CONF", axis)) }

// ClearStatusFaults clears the latched driver status flags.
func (c *Client) ClearStatusFaults(axis int) error { return c.Exec(cmd("SMC_SCLR", axis)) }

// MotionDone reports whether the axis finished its move (-1: all axes).
func (c *Client) MotionDone(axis int) (bool, error) {
	v, err := c.Query(cmd("GMC_POSR", axis), "MC_POSR")
	return v != 0, err
}

// StatusFlags returns the packed driver status bits.
func (c *Client) StatusFlags(axis int) (int32, error) {
	return c.Query(cmd("GMC_STAT", axis), "MC_STAT")
}

// WaitMotionDone polls until the move finishes or the timeout expires.
func (c *Client) WaitMotionDone(axis int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := c.MotionDone(axis)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("axis %d still moving after %v", axis, timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// SetStatus writes a status value (e.g. ENAB, XACT).
func (c *Client) SetStatus(axis int, id string, v int32) error {
	return c.Exec(cmd("SMS_"+id, axis, v))
}

// Status reads a status value.
func (c *Client) Status(axis int, id string) (int32, error) {
	return c.Query(cmd("GMS_"+id, axis), "MS_"+id)
}

// Enable switches the motor driver on or off.
func (c *Client) Enable(axis int, on bool) error {
	v := int32(0)
	if on {
		v = 1
	}
	return c.SetStatus(axis, "ENAB", v)
}

// SetAxisParam writes one stored axis parameter. The value takes effect
// at the next Configure.
func (c *Client) SetAxisParam(axis int, id string, v int32) error {
	return c.Exec(cmd("SMP_"+id, axis, v))
}

// AxisParam reads one stored axis parameter.
func (c *Client) AxisParam(axis int, id string) (int32, error) {
	return c.Query(cmd("GMP_"+id, axis), "MP_"+id)
}

// SetRemoteParam writes one pendant parameter, forwarding it to the
// pendant first.
func (c *Client) SetRemoteParam(axis int, id string, v int32) error {
	return c.Exec(cmd("SRP_"+id, axis, v))
}

// RemoteParam reads one stored pendant parameter.
func (c *Client) RemoteParam(axis int, id string) (int32, error) {
	return c.Query(cmd("GRP_"+id, axis), "RP_"+id)
}

// SetRegister writes a raw driver register.
func (c *Client) SetRegister(axis int, addr uint8, value int32) error {
	return c.Exec(cmd("SMC_DREG", axis, int32(addr), value))
}

// Register reads a raw driver register.
func (c *Client) Register(axis int, addr uint8) (int32, error) {
	return c.Query(cmd("GMC_DREG", axis, int32(addr)), "MC_DREG")
}

// SaveToFlash persists the stored parameters.
func (c *Client) SaveToFlash() error { return c.Exec("SPC_SAFL") }
