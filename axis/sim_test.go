package axis

import (
	"testing"
	"time"

	"github.com/MCFLab/PicoStageDriver/params"
)

func newSimFixture(prep func(p []int32)) (*SimDriver, *State) {
	table := params.DefaultAxisFull
	if prep != nil {
		prep(table[:])
	}
	st := &State{}
	drv := NewSimDriver(table[:], st, func(string) {})
	return drv, st
}

func TestSimMoveToPositionClamps(t *testing.T) {
	drv, _ := newSimFixture(func(p []int32) {
		p[params.LREN] = 1
		p[params.LRPS] = 500
	})
	if err := drv.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := drv.MoveToPosition(200, true); err != nil {
		t.Fatal(err)
	}
	if pos, _ := drv.Position(); pos != 200 {
		t.Errorf("position = %d, want 200", pos)
	}
	if err := drv.MoveToPosition(900, true); err != nil {
		t.Fatal(err)
	}
	if pos, _ := drv.Position(); pos != 500 {
		t.Errorf("position = %d, want clamp at 500", pos)
	}
	done, err := drv.CheckStatus(time.Now())
	if err != nil || !done {
		t.Errorf("position move not done: %v %v", done, err)
	}
}

func TestSimVelocityIntegration(t *testing.T) {
	drv, _ := newSimFixture(nil)
	if err := drv.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := drv.MoveAtVelocity(70000); err == nil {
		t.Error("velocity above RMXV accepted")
	}
	if err := drv.MoveAtVelocity(1000); err != nil {
		t.Fatal(err)
	}
	t0 := time.Unix(100, 0)
	done, _ := drv.CheckStatus(t0)
	if done {
		t.Error("done while moving")
	}
	drv.CheckStatus(t0.Add(100 * time.Millisecond))
	if pos, _ := drv.Position(); pos != 100 {
		t.Errorf("position = %d after 100ms at 1000/s, want 100", pos)
	}
	if enc, _ := drv.EncoderPosition(); enc != 100 {
		t.Errorf("encoder = %d, want 100", enc)
	}
}

func TestSimVelocityClampStops(t *testing.T) {
	drv, _ := newSimFixture(func(p []int32) {
		p[params.LREN] = 1
		p[params.LRPS] = 50
	})
	if err := drv.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := drv.MoveAtVelocity(1000); err != nil {
		t.Fatal(err)
	}
	t0 := time.Unix(100, 0)
	drv.CheckStatus(t0)
	drv.CheckStatus(t0.Add(time.Second))
	if pos, _ := drv.Position(); pos != 50 {
		t.Errorf("position = %d, want clamp at 50", pos)
	}
	done, _ := drv.CheckStatus(t0.Add(2 * time.Second))
	if !done {
		t.Error("clamped move not done on the next poll")
	}
	flags, _ := drv.StatusFlags()
	if flags&FlagVirtStopR == 0 {
		t.Error("right virtual stop flag not set at the limit")
	}
}

func TestSimHomingValidatesAndZeroes(t *testing.T) {
	drv, st := newSimFixture(func(p []int32) { p[params.HMOD] = 0 })
	if err := drv.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := drv.StartHoming(time.Now()); err == nil {
		t.Error("homing accepted with HMOD=0")
	}

	drv, st = newSimFixture(nil)
	if err := drv.Configure(); err != nil {
		t.Fatal(err)
	}
	if err := drv.SetStatusValue(StatXACT, 777); err != nil {
		t.Fatal(err)
	}
	if err := drv.StartHoming(time.Now()); err != nil {
		t.Fatalf("StartHoming: %v", err)
	}
	if pos, _ := drv.Position(); pos != 0 {
		t.Errorf("position = %d after homing, want 0", pos)
	}
	if st.Homing {
		t.Error("simulated homing should finish immediately")
	}
}

func TestSimDisableStopsMotion(t *testing.T) {
	drv, st := newSimFixture(nil)
	if err := drv.Configure(); err != nil {
		t.Fatal(err)
	}
	drv.SetEnabled(true)
	if err := drv.MoveAtVelocity(1000); err != nil {
		t.Fatal(err)
	}
	drv.SetEnabled(false)
	if st.Enabled {
		t.Error("state still enabled")
	}
	if v, _ := drv.StatusValue(StatVELO); v != 0 {
		t.Errorf("velocity = %d after disable, want 0", v)
	}
}
