package params

import (
	"testing"

	"github.com/MCFLab/PicoStageDriver/storage"
)

func TestParamIDLookup(t *testing.T) {
	for i, id := range AxisParamIDs {
		got, ok := AxisParamIndex(id)
		if !ok || got != i {
			t.Errorf("AxisParamIndex(%q) = %d, %v; want %d, true", id, got, ok, i)
		}
	}
	for i, id := range RemoteParamIDs {
		got, ok := RemoteParamIndex(id)
		if !ok || got != i {
			t.Errorf("RemoteParamIndex(%q) = %d, %v; want %d, true", id, got, ok, i)
		}
	}
	if _, ok := AxisParamIndex("XXXX"); ok {
		t.Error("AxisParamIndex accepted an unknown ID")
	}
}

func TestLoadDefaults(t *testing.T) {
	s := New()
	s.LoadDefaults(false)
	if s.Axis[0][CRUN] != 12 || s.Axis[3][RMXV] != 64000 || s.Axis[1][LLPS] != -100000 {
		t.Errorf("full defaults not applied: CRUN=%d RMXV=%d LLPS=%d",
			s.Axis[0][CRUN], s.Axis[3][RMXV], s.Axis[1][LLPS])
	}
	s.LoadDefaults(true)
	if s.Axis[0][MTOF] != 0 || s.Axis[2][HMOD] != 0 || s.Axis[0][LLEN] != 1 {
		t.Errorf("safe defaults not applied: MTOF=%d HMOD=%d LLEN=%d",
			s.Axis[0][MTOF], s.Axis[2][HMOD], s.Axis[0][LLEN])
	}
	if s.Remote[1][RemoteJMAX] != 1000 {
		t.Errorf("remote defaults not applied: JMAX=%d", s.Remote[1][RemoteJMAX])
	}
	// Hardware table stays at the compiled defaults.
	if s.Device[0] != DeviceSim || s.Device[2] != DeviceNone || s.CS[0] != 22 {
		t.Error("LoadDefaults touched the hardware table")
	}
}

func TestSetAxisParamSkipsRangeCheck(t *testing.T) {
	s := New()
	// 40 is outside the 0..31 run-current range; the store must still
	// accept it. Rejection happens at ConfigureAxis time.
	if err := s.SetAxisParam(2, CRUN, 40); err != nil {
		t.Fatalf("SetAxisParam: %v", err)
	}
	if v, _ := s.AxisParam(2, CRUN); v != 40 {
		t.Errorf("AxisParam = %d, want 40", v)
	}
	if s.Fault.Pending() {
		t.Error("out-of-range write latched a fault")
	}
}

func TestInvalidAxisLatchesFault(t *testing.T) {
	s := New()
	if err := s.SetAxisParam(4, CSCA, 0); err == nil {
		t.Fatal("axis 4 accepted")
	}
	if err := s.SetAxisParam(-1, CSCA, 0); err == nil {
		t.Fatal("axis -1 accepted")
	}
	msg, ok := s.Fault.Read()
	if !ok || msg != "Invalid board number" {
		t.Errorf("fault = %q, %v", msg, ok)
	}
	if _, ok := s.Fault.Read(); ok {
		t.Error("fault not cleared by read")
	}
}

func TestRemoteEnableBroadcast(t *testing.T) {
	s := New()
	if err := s.SetRemoteParam(-1, RemoteENAB, 1); err != nil {
		t.Fatalf("SetRemoteParam(-1, ENAB): %v", err)
	}
	for a := 0; a < MaxAxes; a++ {
		if s.Remote[a][RemoteENAB] != 1 {
			t.Errorf("axis %d ENAB = %d, want 1", a, s.Remote[a][RemoteENAB])
		}
	}
	// Only ENAB broadcasts.
	if err := s.SetRemoteParam(-1, RemoteJDIR, 1); err == nil {
		t.Error("SetRemoteParam(-1, JDIR) accepted")
	}
}

func TestDeviceAndRoleValidation(t *testing.T) {
	s := New()
	if err := s.SetDeviceType(0, 3); err == nil {
		t.Error("device type 3 accepted")
	}
	s.Fault.Read()
	if err := s.SetDeviceType(0, int32(DeviceTMC)); err != nil {
		t.Errorf("SetDeviceType: %v", err)
	}
	if err := s.SetAxisRole(1, 5); err == nil {
		t.Error("axis role 5 accepted")
	}
	s.Fault.Read()
	if err := s.SetAxisRole(1, int32(RoleZ)); err != nil {
		t.Errorf("SetAxisRole: %v", err)
	}
	if !s.ActiveAxis(0, false) || s.ActiveAxis(2, false) {
		t.Error("ActiveAxis wrong for default hardware table")
	}
}

func TestFlashRoundTrip(t *testing.T) {
	f := storage.NewMemFlash(ImageSize)
	s := New()
	s.LoadDefaults(false)
	s.Axis[1][RSEV] = 12345
	s.Remote[3][RemoteESTP] = 77
	s.Device[2] = DeviceTMC
	s.Role[0] = RoleAux
	if err := s.SaveToFlash(f); err != nil {
		t.Fatalf("SaveToFlash: %v", err)
	}

	r := New()
	if err := r.LoadFromFlash(f); err != nil {
		t.Fatalf("LoadFromFlash: %v", err)
	}
	if r.Axis[1][RSEV] != 12345 || r.Remote[3][RemoteESTP] != 77 {
		t.Error("parameters lost in round trip")
	}
	if r.Device[2] != DeviceTMC || r.Role[0] != RoleAux || r.CS[1] != 21 {
		t.Error("hardware table lost in round trip")
	}
}

func TestFlashVersionMismatch(t *testing.T) {
	f := storage.NewMemFlash(ImageSize)
	s := New()
	s.LoadDefaults(false)
	if err := s.SaveToFlash(f); err != nil {
		t.Fatalf("SaveToFlash: %v", err)
	}
	// Corrupt the version word.
	if err := f.Write(0, []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadFromFlash(f); err == nil {
		t.Fatal("mismatched image loaded without error")
	}
	for a := 0; a < MaxAxes; a++ {
		if r.Device[a] != DeviceNone {
			t.Errorf("axis %d device = %d, want none", a, r.Device[a])
		}
	}
	if msg, ok := r.Fault.Read(); !ok || msg != "Version mismatch in flash" {
		t.Errorf("fault = %q, %v", msg, ok)
	}
}
