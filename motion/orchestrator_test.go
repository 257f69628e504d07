package motion

import (
	"strings"
	"testing"
	"time"

	"github.com/MCFLab/PicoStageDriver/axis"
	"github.com/MCFLab/PicoStageDriver/params"
)

// fakeDriver scripts the axis behavior: position moves complete on the
// next status poll and the encoder reads the issued setpoint plus a
// configurable error.
type fakeDriver struct {
	st *axis.State
	cl axis.ClosedLoop

	encAt      func(setpoint int32) int32
	setpoints  []int32
	lastSet    int32
	errChecks  int
	statChecks int
}

func (f *fakeDriver) Configure() error {
	f.st.Moving, f.st.Homing, f.st.Searching = false, false, false
	return nil
}

func (f *fakeDriver) MoveToPosition(pos int32, setVelocity bool) error {
	f.setpoints = append(f.setpoints, pos)
	f.lastSet = pos
	return nil
}

func (f *fakeDriver) MoveAtVelocity(vel int32) error          { return nil }
func (f *fakeDriver) StartHoming(now time.Time) error         { return nil }
func (f *fakeDriver) CancelHoming() error                     { f.st.Homing = false; return nil }
func (f *fakeDriver) SetEnabled(on bool) error                { f.st.Enabled = on; return nil }
func (f *fakeDriver) Position() (int32, error)                { return f.lastSet, nil }
func (f *fakeDriver) EncoderPosition() (int32, error)         { return f.encAt(f.lastSet), nil }
func (f *fakeDriver) SetActualPosition(pos int32) error       { f.lastSet = pos; return nil }
func (f *fakeDriver) StatusValue(index int) (int32, error)    { return 0, nil }
func (f *fakeDriver) SetStatusValue(index int, v int32) error {
	if index == axis.StatENAB {
		f.st.Enabled = v != 0
	}
	return nil
}
func (f *fakeDriver) RegisterValue(addr uint8) (int32, error)        { return 0, nil }
func (f *fakeDriver) SetRegisterValue(addr uint8, value int32) error { return nil }
func (f *fakeDriver) ClearStatusFaults() error                       { return nil }
func (f *fakeDriver) CheckError() error                              { f.errChecks++; return nil }
func (f *fakeDriver) CheckStatus(now time.Time) (bool, error)        { f.statChecks++; return true, nil }
func (f *fakeDriver) StatusFlags() (int32, error)                    { return 0, nil }
func (f *fakeDriver) ClosedLoop() axis.ClosedLoop                    { return f.cl }

type fixture struct {
	store *params.Store
	orch  *Orchestrator
	drv   *fakeDriver
	now   time.Time
}

func newFixture(t *testing.T, cl axis.ClosedLoop, encAt func(int32) int32) *fixture {
	t.Helper()
	f := &fixture{store: params.New(), now: time.Unix(1000, 0)}
	f.store.LoadDefaults(false)
	f.drv = &fakeDriver{cl: cl, encAt: encAt}
	factory := func(z int, dev params.DeviceType, p []int32, st *axis.State, report func(string)) axis.Driver {
		if z != 0 {
			return nil
		}
		f.drv.st = st
		return f.drv
	}
	// only slot 0 carries a driver in these tests
	f.store.Device = [params.MaxAxes]params.DeviceType{params.DeviceSim, params.DeviceNone, params.DeviceNone, params.DeviceNone}
	f.orch = New(f.store, factory)
	if err := f.orch.ConfigureAxis(-1); err != nil {
		t.Fatalf("ConfigureAxis: %v", err)
	}
	if err := f.orch.SetStatusValue(0, axis.StatENAB, 1); err != nil {
		t.Fatal(err)
	}
	return f
}

// tick advances past the status cadence and runs one poll round.
func (f *fixture) tick() {
	f.now = f.now.Add(StatusCheckInterval + time.Millisecond)
	f.orch.Tick(f.now)
}

func TestClosedLoopConvergence(t *testing.T) {
	// Constant mechanical offset of -7 counts; tolerance 2 counts.
	cl := axis.ClosedLoop{EncConst: 71536, MaxIterations: 3, Tolerance: 2}
	f := newFixture(t, cl, func(set int32) int32 { return set - 7 })
	f.store.Axis[0][params.EMAX] = 3

	if err := f.orch.MoveToPosition(0, 1000, true); err != nil {
		t.Fatal(err)
	}
	if !f.drv.st.Searching {
		t.Fatal("closed-loop move did not start searching")
	}

	f.tick() // enc 993, off by -7: re-issue at 1007
	if got := f.drv.lastSet; got != 1007 {
		t.Fatalf("pull-in setpoint = %d, want 1007", got)
	}
	f.tick() // enc 1000, within tolerance
	if f.drv.st.Searching || f.drv.st.Moving {
		t.Error("search not finished after convergence")
	}
	if done, _ := f.orch.MotionDone(0); done != 1 {
		t.Error("MotionDone = 0 after convergence")
	}
	// Two pull-ins consumed one retry: PULL = EMAX - iterationsLeft.
	pull, err := f.orch.StatusValue(0, axis.StatPULL)
	if err != nil {
		t.Fatal(err)
	}
	if pull != 2 {
		t.Errorf("PULL = %d, want 2", pull)
	}
	if msg, ok := f.orch.ReadFault(); ok {
		t.Errorf("unexpected fault %q", msg)
	}
}

func TestClosedLoopNonConvergence(t *testing.T) {
	// The encoder never follows: constant -10 error against tolerance 2.
	cl := axis.ClosedLoop{EncConst: 71536, MaxIterations: 2, Tolerance: 2}
	f := newFixture(t, cl, func(int32) int32 { return 0 }) // stuck axis
	if err := f.orch.MoveToPosition(0, 1000, true); err != nil {
		t.Fatal(err)
	}

	f.tick() // one retry allowed
	if !f.drv.st.Searching {
		t.Fatal("search aborted too early")
	}
	f.tick() // out of retries
	if f.drv.st.Searching || f.drv.st.Moving {
		t.Error("search not stopped after running out of retries")
	}
	msg, ok := f.orch.ReadFault()
	if !ok || !strings.Contains(msg, "Closed loop motion did not converge") {
		t.Errorf("fault = %q, %v", msg, ok)
	}
	if !strings.Contains(msg, "board 0") {
		t.Errorf("fault %q does not name the board", msg)
	}
}

func TestClosedLoopUnlimitedIterations(t *testing.T) {
	// maxIterations 0 searches forever: a stuck axis keeps retrying and
	// never faults, and a converged axis keeps servoing.
	cl := axis.ClosedLoop{EncConst: 71536, MaxIterations: 0, Tolerance: 2}
	f := newFixture(t, cl, func(int32) int32 { return 0 })
	if err := f.orch.MoveToPosition(0, 1000, true); err != nil {
		t.Fatal(err)
	}
	if f.drv.st.IterationsLeft != -1 {
		t.Fatalf("IterationsLeft = %d, want -1", f.drv.st.IterationsLeft)
	}
	for i := 0; i < 20; i++ {
		f.tick()
	}
	if !f.drv.st.Searching {
		t.Error("unlimited search stopped")
	}
	if f.drv.st.IterationsLeft != -1 {
		t.Error("unlimited search consumed iterations")
	}
	if msg, ok := f.orch.ReadFault(); ok {
		t.Errorf("unexpected fault %q", msg)
	}

	// Now let the encoder follow: still searching after convergence.
	f.drv.encAt = func(set int32) int32 { return set }
	f.tick()
	if !f.drv.st.Searching {
		t.Error("unlimited search should keep servoing at the target")
	}
	if f.drv.st.Moving {
		t.Error("axis reported moving while holding position")
	}
}

func TestOpenLoopMove(t *testing.T) {
	cl := axis.ClosedLoop{EncConst: 0, MaxIterations: 3, Tolerance: 2}
	f := newFixture(t, cl, func(set int32) int32 { return set })
	if err := f.orch.MoveToPosition(0, 500, true); err != nil {
		t.Fatal(err)
	}
	if f.drv.st.Searching {
		t.Error("open-loop move marked searching")
	}
	f.tick()
	if f.drv.st.Moving {
		t.Error("open-loop move not finished")
	}
	if len(f.drv.setpoints) != 1 {
		t.Errorf("%d setpoints issued, want 1", len(f.drv.setpoints))
	}
}

func TestSingleIterationIsOpenLoop(t *testing.T) {
	// maxIterations 1 disables the pull-in even with an encoder.
	cl := axis.ClosedLoop{EncConst: 71536, MaxIterations: 1, Tolerance: 2}
	f := newFixture(t, cl, func(int32) int32 { return 0 })
	if err := f.orch.MoveToPosition(0, 500, true); err != nil {
		t.Fatal(err)
	}
	if f.drv.st.Searching {
		t.Error("single-iteration move marked searching")
	}
}

func TestMoveRejections(t *testing.T) {
	cl := axis.ClosedLoop{}
	f := newFixture(t, cl, func(set int32) int32 { return set })

	f.drv.st.Enabled = false
	if err := f.orch.MoveToPosition(0, 100, true); err == nil {
		t.Error("move accepted while disabled")
	}
	msg, _ := f.orch.ReadFault()
	if !strings.Contains(msg, "Driver is not enabled") {
		t.Errorf("fault = %q", msg)
	}

	f.drv.st.Enabled = true
	f.drv.st.Homing = true
	if err := f.orch.MoveAtVelocity(0, 100); err == nil {
		t.Error("velocity move accepted while homing")
	}
	msg, _ = f.orch.ReadFault()
	if !strings.Contains(msg, "Motor is homing") {
		t.Errorf("fault = %q", msg)
	}

	if err := f.orch.MoveToPosition(2, 100, true); err == nil {
		t.Error("move accepted on inactive slot")
	}
}

func TestTickCadences(t *testing.T) {
	cl := axis.ClosedLoop{}
	f := newFixture(t, cl, func(set int32) int32 { return set })

	// Right after the first tick the cadences have not elapsed again.
	f.orch.Tick(f.now)
	errChecks, statChecks := f.drv.errChecks, f.drv.statChecks
	f.orch.Tick(f.now.Add(time.Millisecond))
	if f.drv.errChecks != errChecks {
		t.Error("error poll ran before its interval elapsed")
	}
	f.orch.Tick(f.now.Add(StatusCheckInterval + 2*time.Millisecond))
	if f.drv.errChecks != errChecks {
		t.Error("error poll ran on the status cadence")
	}

	// Status polls only touch enabled axes; the fake is idle so the
	// moving branch never runs, but error polls cover it regardless.
	f.drv.st.Enabled = false
	f.orch.Tick(f.now.Add(ErrorCheckInterval + 10*time.Millisecond))
	if f.drv.errChecks == errChecks {
		t.Error("error poll skipped a disabled axis")
	}
	if f.drv.statChecks != statChecks {
		t.Error("status poll ran for an idle disabled axis")
	}
}

func TestEnableAllAxes(t *testing.T) {
	cl := axis.ClosedLoop{}
	f := newFixture(t, cl, func(set int32) int32 { return set })
	if err := f.orch.SetStatusValue(-1, axis.StatENAB, 0); err != nil {
		t.Fatal(err)
	}
	if f.drv.st.Enabled {
		t.Error("broadcast disable missed the axis")
	}
}

func TestRemoteOwnership(t *testing.T) {
	cl := axis.ClosedLoop{}
	f := newFixture(t, cl, func(set int32) int32 { return set })
	f.orch.SetRemoteControlled(-1, true)
	if !f.orch.RemoteControlled(0) {
		t.Error("remote ownership not set")
	}
	f.orch.SetRemoteControlled(0, false)
	if f.orch.RemoteControlled(0) {
		t.Error("remote ownership not released")
	}
}
