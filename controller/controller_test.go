package controller

import (
	"strings"
	"testing"
	"time"

	"github.com/MCFLab/PicoStageDriver/params"
	"github.com/MCFLab/PicoStageDriver/storage"
)

type nullPort struct{ replies []string }

func (p *nullPort) ReadLine() (string, bool) { return "", false }
func (p *nullPort) WriteLine(s string)       { p.replies = append(p.replies, s) }

type nullUART struct{}

func (nullUART) Available() int              { return 0 }
func (nullUART) AvailableForWrite() int      { return 1024 }
func (nullUART) Read(p []byte) (int, error)  { return 0, nil }
func (nullUART) Write(p []byte) (int, error) { return len(p), nil }

func newController(flash storage.Flash, safe bool) *Controller {
	return New(Options{
		Port:       &nullPort{},
		RemoteUART: nullUART{},
		Flash:      flash,
		SafeBoot:   func() bool { return safe },
	})
}

func TestBootRestoresFlashImage(t *testing.T) {
	flash := storage.NewMemFlash(params.ImageSize)

	src := params.New()
	src.LoadDefaults(false)
	src.Axis[1][params.CRUN] = 7
	if err := src.SaveToFlash(flash); err != nil {
		t.Fatal(err)
	}

	c := newController(flash, false)
	if err := c.Boot(time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := c.Store.Axis[1][params.CRUN]; got != 7 {
		t.Errorf("CRUN = %d after boot, want 7", got)
	}
	if c.Store.Fault.Pending() {
		msg, _ := c.Store.Fault.Read()
		t.Errorf("unexpected boot fault %q", msg)
	}
}

func TestBootSafeDefaultsSkipFlash(t *testing.T) {
	flash := storage.NewMemFlash(params.ImageSize)
	src := params.New()
	src.LoadDefaults(false)
	src.Axis[0][params.CRUN] = 7
	if err := src.SaveToFlash(flash); err != nil {
		t.Fatal(err)
	}

	c := newController(flash, true)
	if err := c.Boot(time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := c.Store.Axis[0][params.CRUN]; got != params.DefaultAxisSafe[params.CRUN] {
		t.Errorf("CRUN = %d, want safe default %d", got, params.DefaultAxisSafe[params.CRUN])
	}
}

func TestBootVersionMismatchDisablesSlots(t *testing.T) {
	flash := storage.NewMemFlash(params.ImageSize)
	// stamp a stale version over a valid image
	src := params.New()
	src.LoadDefaults(false)
	if err := src.SaveToFlash(flash); err != nil {
		t.Fatal(err)
	}
	if err := flash.Write(0, []byte{99, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	c := newController(flash, false)
	if err := c.Boot(time.Now()); err != nil {
		t.Fatal(err)
	}
	for z := 0; z < params.MaxAxes; z++ {
		if c.Store.Device[z] != params.DeviceNone {
			t.Errorf("slot %d device = %d after stale image, want none", z, c.Store.Device[z])
		}
	}
	msg, ok := c.Store.Fault.Read()
	if !ok || msg != "Version mismatch in flash" {
		t.Errorf("fault = %q, %v", msg, ok)
	}
}

func TestRunOnceServesCommands(t *testing.T) {
	c := newController(storage.NewMemFlash(params.ImageSize), true)
	if err := c.Boot(time.Now()); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	reply := c.Serial.Execute(now, "*IDN?")
	if reply != "Stage Driver Pico" {
		t.Errorf("*IDN? = %q", reply)
	}
	reply = c.Serial.Execute(now, "GPC_EMSG")
	if !strings.HasPrefix(reply, "PC_EMSG=") {
		t.Errorf("GPC_EMSG = %q", reply)
	}
	c.RunOnce(now)
}
