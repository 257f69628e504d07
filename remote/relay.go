// Package remote implements the UART link to the joystick pendant. The
// controller pushes per-axis settings and periodic position broadcasts
// to the pendant and accepts jog commands back; frames are
// "<payload|checksum>" with an 8-bit byte-sum checksum and payloads can
// batch several ';'-separated commands.
package remote

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MCFLab/PicoStageDriver/fault"
	"github.com/MCFLab/PicoStageDriver/motion"
	"github.com/MCFLab/PicoStageDriver/params"
)

const (
	// SendInterval is the cadence of outbound position broadcasts.
	SendInterval = 200 * time.Millisecond
	// ReceiveInterval is the inbound poll cadence.
	ReceiveInterval = 10 * time.Millisecond
	// MaxFrameSize bounds one frame; longer garbage is discarded.
	MaxFrameSize = 1024
)

// UART is the byte transport to the pendant.
type UART interface {
	Available() int
	AvailableForWrite() int
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}

// Relay owns the pendant link: configuration push, position broadcast
// and inbound jog command handling.
type Relay struct {
	store  *params.Store
	motors *motion.Orchestrator
	uart   UART

	latch fault.Latch
	wmu   sync.Mutex
	rx    []byte

	// one velocity program per jog burst: the first position command
	// after a mode change programs the ramp, repeats only retarget
	repeatPosSet [params.MaxAxes]bool

	lastSend time.Time
	lastRecv time.Time
}

func NewRelay(store *params.Store, motors *motion.Orchestrator, uart UART) *Relay {
	return &Relay{store: store, motors: motors, uart: uart}
}

func (r *Relay) fail(msg string) error {
	r.latch.Set(msg)
	return fault.Coded(fault.CodeRemote, msg)
}

// FaultPending reports whether an unread fault is latched.
func (r *Relay) FaultPending() bool { return r.latch.Pending() }

// ReadFault returns and clears the latched fault message.
func (r *Relay) ReadFault() (string, bool) { return r.latch.Read() }

// Poll runs the inbound and outbound cadences.
func (r *Relay) Poll(now time.Time) {
	if now.Sub(r.lastRecv) > ReceiveInterval {
		r.checkCommands()
		r.lastRecv = now
	}
	if now.Sub(r.lastSend) > SendInterval {
		r.sendPositionUpdates()
		r.lastSend = now
	}
}

// Config pushes the stored remote parameters for one axis, or for every
// active axis when axisIndex is -1.
func (r *Relay) Config(axisIndex int) error {
	push := func(z int) error {
		for idx := 0; idx < params.NumRemoteParams; idx++ {
			v, err := r.store.RemoteParam(z, idx)
			if err != nil {
				return err
			}
			if err := r.SendRemoteCommand(idx, z, v); err != nil {
				return r.fail("Unable to set remote parameter")
			}
		}
		return nil
	}
	if axisIndex == -1 {
		for z := 0; z < params.MaxAxes; z++ {
			if !r.store.ActiveAxis(z, false) {
				continue
			}
			if err := push(z); err != nil {
				return err
			}
		}
		return nil
	}
	if !r.store.ActiveAxis(axisIndex, true) {
		r.latch.Set("Invalid motor number")
		return fault.Coded(fault.CodeMotion, "Invalid motor number")
	}
	return push(axisIndex)
}

func (r *Relay) valueInRange(value int32, name string, min, max int32) bool {
	if value >= min && value <= max {
		return true
	}
	r.latch.Setf("Value %s out of range (%d)", name, value)
	return false
}

// SendRemoteCommand validates and transmits one remote parameter write.
// ENAB additionally flips motion ownership and accepts axis -1 as a
// broadcast to every active axis.
func (r *Relay) SendRemoteCommand(index, axisIndex int, value int32) error {
	if index < 0 || index >= params.NumRemoteParams {
		return r.fail(fmt.Sprintf("Remote parameter %d not found", index))
	}
	id := params.RemoteParamIDs[index]
	errRange := fault.Coded(fault.CodeRemote, "Remote value out of range")

	if index == params.RemoteENAB {
		if !r.valueInRange(int32(axisIndex), "channel", -1, params.MaxAxes) {
			return errRange
		}
		if !r.valueInRange(value, id, 0, 1) {
			return errRange
		}
	} else {
		if !r.valueInRange(int32(axisIndex), "channel", 0, params.MaxAxes-1) {
			return errRange
		}
	}
	switch index {
	case params.RemoteJDIR, params.RemoteEDIR:
		if !r.valueInRange(abs32(value), id, 1, 1) {
			return errRange
		}
	case params.RemoteJMAX:
		maxVel, err := r.store.AxisParam(axisIndex, params.RMXV)
		if err != nil {
			return err
		}
		if !r.valueInRange(value, id, 0, maxVel) {
			return errRange
		}
	}

	if index == params.RemoteENAB {
		if axisIndex >= params.MaxAxes || (axisIndex >= 0 && r.store.CheckAxis(axisIndex) != nil) {
			return r.fail("Could not set remote enable in motor section")
		}
		r.motors.SetRemoteControlled(axisIndex, value != 0)
		if axisIndex == -1 {
			for z := 0; z < params.MaxAxes; z++ {
				if !r.store.ActiveAxis(z, false) {
					continue
				}
				r.transmit(commandLine(id, z, value))
			}
			return nil
		}
	}
	r.transmit(commandLine(id, axisIndex, value))
	return nil
}

func commandLine(id string, axisIndex int, value int32) string {
	return id + strconv.Itoa(axisIndex) + "=" + strconv.Itoa(int(value))
}

// sendPositionUpdates broadcasts the positions of every active axis in
// one batched frame, "POS0=123;POS1=456".
func (r *Relay) sendPositionUpdates() {
	var parts []string
	for z := 0; z < params.MaxAxes; z++ {
		if !r.store.ActiveAxis(z, false) {
			continue
		}
		pos, err := r.motors.Position(z)
		if err != nil {
			continue
		}
		parts = append(parts, commandLine("POS", z, pos))
	}
	if len(parts) == 0 {
		return
	}
	r.transmit(strings.Join(parts, ";"))
}

// transmit frames the payload and writes it out, chunked to the free
// space the transmit buffer reports.
func (r *Relay) transmit(payload string) {
	frame := []byte("<" + payload + "|" + strconv.Itoa(int(checksum(payload))) + ">")

	r.wmu.Lock()
	defer r.wmu.Unlock()
	for len(frame) > 0 {
		space := r.uart.AvailableForWrite()
		if space <= 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		if space > len(frame) {
			space = len(frame)
		}
		n, err := r.uart.Write(frame[:space])
		if err != nil {
			return
		}
		frame = frame[n:]
	}
}

// checkCommands drains the receive buffer and processes every complete
// frame found in it. Frames with a bad checksum are dropped silently.
func (r *Relay) checkCommands() {
	for r.uart.Available() > 0 {
		buf := make([]byte, r.uart.Available())
		n, err := r.uart.Read(buf)
		if err != nil || n == 0 {
			break
		}
		r.rx = append(r.rx, buf[:n]...)
	}

	for {
		end := bytes.IndexByte(r.rx, '>')
		if end < 0 {
			if len(r.rx) > MaxFrameSize {
				r.rx = r.rx[:0]
			}
			return
		}
		frame := string(r.rx[:end])
		r.rx = r.rx[end+1:]

		if len(frame) < 3 {
			r.latch.Set("Invalid UART command string")
			continue
		}
		payload, ok := validate(frame)
		if !ok {
			continue
		}
		for _, cmd := range strings.Split(payload, ";") {
			r.processCommand(cmd)
		}
	}
}

// validate strips the frame markers and verifies the checksum.
func validate(frame string) (string, bool) {
	frame = strings.TrimPrefix(frame, "<")
	payload, sumStr, found := strings.Cut(frame, "|")
	if !found {
		return "", false
	}
	want, err := strconv.ParseUint(sumStr, 10, 8)
	if err != nil {
		return "", false
	}
	if checksum(payload) != uint8(want) {
		return "", false
	}
	return payload, true
}

// processCommand executes one inbound pendant command. Position and
// velocity jogs are ignored unless the pendant owns the axis.
func (r *Relay) processCommand(cmd string) {
	if board, v, ok := parseAxisEquals(cmd, "POS"); ok {
		if !r.store.ActiveAxis(board, true) || !r.motors.RemoteControlled(board) {
			return
		}
		setVelocity := !r.repeatPosSet[board]
		r.repeatPosSet[board] = true
		if err := r.motors.MoveToPosition(board, v, setVelocity); err != nil {
			r.latch.Set("Could not set motor pos with remote")
		}
		return
	}
	if strings.HasPrefix(cmd, "POS") {
		r.latch.Set("Invalid remote POS command format")
		return
	}

	if board, v, ok := parseAxisEquals(cmd, "VEL"); ok {
		if !r.store.ActiveAxis(board, true) || !r.motors.RemoteControlled(board) {
			return
		}
		r.repeatPosSet[board] = false
		if err := r.motors.MoveAtVelocity(board, v); err != nil {
			r.latch.Set("Could not set motor vel with remote")
		}
		return
	}
	if strings.HasPrefix(cmd, "VEL") {
		r.latch.Set("Invalid remote VEL command format")
		return
	}

	if strings.HasPrefix(cmd, "ACCREQ") {
		board, err := strconv.Atoi(cmd[6:])
		if err != nil {
			r.latch.Set("Invalid remote ACCREQ command format")
			return
		}
		if !r.store.ActiveAxis(board, true) {
			return
		}
		r.repeatPosSet[board] = false
		// grant ownership and echo the enable back to the pendant
		r.SendRemoteCommand(params.RemoteENAB, board, 1)
		r.store.SetRemoteParam(board, params.RemoteENAB, 1)
		return
	}
	// unknown pendant commands are ignored
}

func parseAxisEquals(cmd, name string) (int, int32, bool) {
	if !strings.HasPrefix(cmd, name) {
		return 0, 0, false
	}
	a, b, found := strings.Cut(cmd[len(name):], "=")
	if !found {
		return 0, 0, false
	}
	board, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	v, err := strconv.ParseInt(b, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return board, int32(v), true
}

func checksum(payload string) uint8 {
	var sum uint8
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	return sum
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
