// Package controller assembles the firmware: the parameter store, the
// motion orchestrator, the serial command channel and the pendant
// relay, plus the boot sequence that restores the persisted
// configuration.
package controller

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MCFLab/PicoStageDriver/axis"
	"github.com/MCFLab/PicoStageDriver/motion"
	"github.com/MCFLab/PicoStageDriver/params"
	"github.com/MCFLab/PicoStageDriver/remote"
	"github.com/MCFLab/PicoStageDriver/serialcmd"
	"github.com/MCFLab/PicoStageDriver/storage"
	"github.com/MCFLab/PicoStageDriver/tmc5240"
)

// SerialBaudRate is the host command channel rate.
const SerialBaudRate = 115200

// RemoteBaudRate is the pendant UART rate.
const RemoteBaudRate = 921600

// Options wires the controller to its hardware.
type Options struct {
	// Port carries the host command channel.
	Port serialcmd.Port
	// RemoteUART carries the pendant link.
	RemoteUART remote.UART
	// Flash persists the parameter image.
	Flash storage.Flash
	// BusFor opens the register bus of a driver slot. Only called for
	// slots configured as real drivers; nil restricts the board to
	// simulated axes.
	BusFor func(axisIndex int, chipSelect int32) tmc5240.Bus
	// SafeBoot reads the startup button. When it reports true the boot
	// skips the flash image and loads the safe defaults.
	SafeBoot func() bool
	// Debug receives boot and fault traces; nil discards them.
	Debug io.Writer
}

// Controller owns every subsystem and drives their poll cadences.
type Controller struct {
	Store  *params.Store
	Motors *motion.Orchestrator
	Remote *remote.Relay
	Serial *serialcmd.Dispatcher

	opts  Options
	debug io.Writer
}

func New(opts Options) *Controller {
	c := &Controller{Store: params.New(), opts: opts, debug: opts.Debug}
	if c.debug == nil {
		c.debug = io.Discard
	}
	c.Motors = motion.New(c.Store, c.driverFor)
	c.Remote = remote.NewRelay(c.Store, c.Motors, opts.RemoteUART)
	c.Serial = serialcmd.NewDispatcher(c.Store, c.Motors, c.Remote, opts.Flash, opts.Port)
	return c
}

// driverFor builds the driver for one slot from its configured device
// type.
func (c *Controller) driverFor(axisIndex int, dev params.DeviceType, p []int32, st *axis.State, report func(string)) axis.Driver {
	switch dev {
	case params.DeviceSim:
		return axis.NewSimDriver(p, st, report)
	case params.DeviceTMC:
		if c.opts.BusFor == nil {
			return nil
		}
		bus := c.opts.BusFor(axisIndex, c.Store.CS[axisIndex])
		if bus == nil {
			return nil
		}
		return axis.NewTMCDriver(bus, p, st, report)
	}
	return nil
}

// Boot restores the parameters and brings up every subsystem. The
// startup button forces the safe defaults and skips the flash image; a
// missing or stale image falls back to the full defaults.
func (c *Controller) Boot(now time.Time) error {
	switch {
	case c.opts.SafeBoot != nil && c.opts.SafeBoot():
		fmt.Fprintln(c.debug, "boot: safe defaults requested by startup button")
		c.Store.LoadDefaults(true)
	case c.opts.Flash == nil:
		fmt.Fprintln(c.debug, "boot: no flash, loading defaults")
		c.Store.LoadDefaults(false)
	default:
		// defaults first: a rejected image keeps them, and a version
		// mismatch additionally leaves every slot disabled
		c.Store.LoadDefaults(false)
		if err := c.Store.LoadFromFlash(c.opts.Flash); err != nil {
			fmt.Fprintf(c.debug, "boot: flash image rejected: %v\n", err)
		}
	}

	// drivers come up immediately; the pendant is synced when the host
	// issues its configure command
	if err := c.Motors.ConfigureAxis(-1); err != nil {
		return err
	}
	fmt.Fprintln(c.debug, "boot: controller ready")
	return nil
}

// RunOnce runs one poll round across the subsystems.
func (c *Controller) RunOnce(now time.Time) {
	c.Serial.Poll(now)
	c.Motors.Tick(now)
	c.Remote.Poll(now)
}

// Run polls until the context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			c.RunOnce(now)
		}
	}
}
