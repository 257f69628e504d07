package remote

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MCFLab/PicoStageDriver/axis"
	"github.com/MCFLab/PicoStageDriver/motion"
	"github.com/MCFLab/PicoStageDriver/params"
)

type fakeUART struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (u *fakeUART) Available() int              { return u.in.Len() }
func (u *fakeUART) AvailableForWrite() int      { return 64 }
func (u *fakeUART) Read(p []byte) (int, error)  { return u.in.Read(p) }
func (u *fakeUART) Write(p []byte) (int, error) { return u.out.Write(p) }
func (u *fakeUART) feed(frame string)           { u.in.WriteString(frame) }

func frame(payload string) string {
	return "<" + payload + "|" + strconv.Itoa(int(checksum(payload))) + ">"
}

type relayFixture struct {
	store *params.Store
	orch  *motion.Orchestrator
	uart  *fakeUART
	relay *Relay
	now   time.Time
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	f := &relayFixture{store: params.New(), uart: &fakeUART{}, now: time.Unix(7000, 0)}
	f.store.LoadDefaults(false)
	factory := func(z int, dev params.DeviceType, p []int32, st *axis.State, report func(string)) axis.Driver {
		if dev != params.DeviceSim {
			return nil
		}
		return axis.NewSimDriver(p, st, report)
	}
	f.orch = motion.New(f.store, factory)
	if err := f.orch.ConfigureAxis(-1); err != nil {
		t.Fatalf("ConfigureAxis: %v", err)
	}
	if err := f.orch.SetStatusValue(-1, axis.StatENAB, 1); err != nil {
		t.Fatal(err)
	}
	f.relay = NewRelay(f.store, f.orch, f.uart)
	// the first poll fires the initial position broadcast; flush it so
	// each test only sees its own traffic
	f.relay.Poll(f.now)
	f.uart.out.Reset()
	return f
}

// poll advances past the receive cadence and runs one poll.
func (f *relayFixture) poll() {
	f.now = f.now.Add(ReceiveInterval + time.Millisecond)
	f.relay.Poll(f.now)
}

func TestChecksumRejection(t *testing.T) {
	f := newRelayFixture(t)
	f.orch.SetRemoteControlled(0, true)

	f.uart.feed("<POS0=500|0>") // wrong sum
	f.poll()
	if pos, _ := f.orch.Position(0); pos != 0 {
		t.Errorf("position = %d after corrupt frame, want 0", pos)
	}
	if f.relay.FaultPending() {
		msg, _ := f.relay.ReadFault()
		t.Errorf("corrupt frame latched %q; should drop silently", msg)
	}

	f.uart.feed(frame("POS0=500"))
	f.poll()
	if pos, _ := f.orch.Position(0); pos != 500 {
		t.Errorf("position = %d after valid frame, want 500", pos)
	}
}

func TestRuntFrameLatchesFault(t *testing.T) {
	f := newRelayFixture(t)
	f.uart.feed("<>")
	f.poll()
	msg, ok := f.relay.ReadFault()
	if !ok || msg != "Invalid UART command string" {
		t.Errorf("fault = %q, %v", msg, ok)
	}
}

func TestJogIgnoredWithoutOwnership(t *testing.T) {
	f := newRelayFixture(t)
	f.uart.feed(frame("POS0=500"))
	f.poll()
	if pos, _ := f.orch.Position(0); pos != 0 {
		t.Errorf("position = %d, pendant moved an axis it does not own", pos)
	}
	if f.relay.FaultPending() {
		t.Error("silent ignore expected, fault latched")
	}
}

func TestBatchedCommands(t *testing.T) {
	f := newRelayFixture(t)
	f.orch.SetRemoteControlled(-1, true)
	f.uart.feed(frame("POS0=100;POS1=200"))
	f.poll()
	if pos, _ := f.orch.Position(0); pos != 100 {
		t.Errorf("axis 0 position = %d, want 100", pos)
	}
	if pos, _ := f.orch.Position(1); pos != 200 {
		t.Errorf("axis 1 position = %d, want 200", pos)
	}
}

func TestAccessRequestGrantsOwnership(t *testing.T) {
	f := newRelayFixture(t)
	f.uart.feed(frame("ACCREQ0"))
	f.poll()
	if !f.orch.RemoteControlled(0) {
		t.Error("ownership not granted")
	}
	if v, _ := f.store.RemoteParam(0, params.RemoteENAB); v != 1 {
		t.Errorf("stored ENAB = %d, want 1", v)
	}
	if got := f.uart.out.String(); got != frame("ENAB0=1") {
		t.Errorf("echo = %q, want %q", got, frame("ENAB0=1"))
	}
}

func TestVelocityJogAndRepeatPosition(t *testing.T) {
	f := newRelayFixture(t)
	f.orch.SetRemoteControlled(0, true)
	f.uart.feed(frame("VEL0=1000"))
	f.poll()
	if v, _ := f.orch.StatusValue(0, axis.StatVELO); v != 1000 {
		t.Errorf("velocity = %d, want 1000", v)
	}
	// position jogs after a velocity jog reprogram the ramp once
	f.uart.feed(frame("POS0=50"))
	f.poll()
	if pos, _ := f.orch.Position(0); pos != 50 {
		t.Errorf("position = %d, want 50", pos)
	}
}

func TestSendRemoteCommandValidation(t *testing.T) {
	f := newRelayFixture(t)
	if err := f.relay.SendRemoteCommand(params.RemoteJDIR, 0, 2); err == nil {
		t.Error("JDIR=2 accepted")
	}
	msg, _ := f.relay.ReadFault()
	if msg != "Value JDIR out of range (2)" {
		t.Errorf("fault = %q", msg)
	}

	if err := f.relay.SendRemoteCommand(params.RemoteJMAX, 0, 90000); err == nil {
		t.Error("JMAX above RMXV accepted")
	}
	msg, _ = f.relay.ReadFault()
	if !strings.Contains(msg, "Value JMAX out of range") {
		t.Errorf("fault = %q", msg)
	}

	if err := f.relay.SendRemoteCommand(params.RemoteENAB, 9, 1); err == nil {
		t.Error("ENAB on channel 9 accepted")
	}
	f.relay.ReadFault()

	f.uart.out.Reset()
	if err := f.relay.SendRemoteCommand(params.RemoteJMAX, 1, 500); err != nil {
		t.Fatal(err)
	}
	if got := f.uart.out.String(); got != frame("JMAX1=500") {
		t.Errorf("wire = %q", got)
	}
}

func TestEnableBroadcast(t *testing.T) {
	f := newRelayFixture(t)
	if err := f.relay.SendRemoteCommand(params.RemoteENAB, -1, 1); err != nil {
		t.Fatal(err)
	}
	if !f.orch.RemoteControlled(0) || !f.orch.RemoteControlled(1) {
		t.Error("broadcast enable missed an axis")
	}
	// one frame per active axis
	got := f.uart.out.String()
	if got != frame("ENAB0=1")+frame("ENAB1=1") {
		t.Errorf("wire = %q", got)
	}
}

func TestConfigPushesAllParams(t *testing.T) {
	f := newRelayFixture(t)
	if err := f.relay.Config(0); err != nil {
		t.Fatal(err)
	}
	got := f.uart.out.String()
	for _, id := range params.RemoteParamIDs {
		if !strings.Contains(got, "<"+id+"0=") {
			t.Errorf("config push missing %s: %q", id, got)
		}
	}

	if err := f.relay.Config(3); err == nil {
		t.Error("config accepted for an inactive slot")
	}
	msg, _ := f.relay.ReadFault()
	if msg != "Invalid motor number" {
		t.Errorf("fault = %q", msg)
	}
}

func TestPositionBroadcast(t *testing.T) {
	f := newRelayFixture(t)
	f.orch.SetRemoteControlled(0, true)
	f.uart.feed(frame("POS0=123"))
	f.poll()
	f.uart.out.Reset()

	f.now = f.now.Add(SendInterval + time.Millisecond)
	f.relay.Poll(f.now)
	want := frame("POS0=123;POS1=0")
	if got := f.uart.out.String(); got != want {
		t.Errorf("broadcast = %q, want %q", got, want)
	}
}
