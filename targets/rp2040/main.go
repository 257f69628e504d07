//go:build rp2040

// Firmware entry point for the Raspberry Pi Pico carrier board: USB CDC
// command channel, UART1 pendant link, SPI0 to the driver chips and a
// startup button that forces the safe defaults.
package main

import (
	"machine"
	"time"

	"github.com/MCFLab/PicoStageDriver/controller"
	"github.com/MCFLab/PicoStageDriver/params"
	"github.com/MCFLab/PicoStageDriver/tmc5240"
)

const (
	spiFrequency = 4_000_000
	safeBootPin  = machine.GPIO15
)

func main() {
	// give USB CDC a moment to enumerate
	time.Sleep(500 * time.Millisecond)

	machine.UART1.Configure(machine.UARTConfig{
		BaudRate: controller.RemoteBaudRate,
		TX:       machine.UART1_TX_PIN,
		RX:       machine.UART1_RX_PIN,
	})

	spi := machine.SPI0
	spi.Configure(machine.SPIConfig{
		Frequency: spiFrequency,
		Mode:      3,
		SCK:       machine.SPI0_SCK_PIN,
		SDO:       machine.SPI0_SDO_PIN,
		SDI:       machine.SPI0_SDI_PIN,
	})

	safeBootPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	c := controller.New(controller.Options{
		Port:       newSerialPort(),
		RemoteUART: &uartLink{uart: machine.UART1},
		Flash:      newMCUFlash(params.ImageSize),
		BusFor:     busFor(spi),
		// button pulls the pin low
		SafeBoot: func() bool { return !safeBootPin.Get() },
	})
	if err := c.Boot(time.Now()); err != nil {
		// keep serving the command channel so the host can read the fault
		println("boot:", err.Error())
	}

	for {
		c.RunOnce(time.Now())
		time.Sleep(time.Millisecond)
	}
}

// busFor opens one SPI bus per driver slot, keyed by its chip select.
func busFor(spi *machine.SPI) func(axisIndex int, chipSelect int32) tmc5240.Bus {
	return func(axisIndex int, chipSelect int32) tmc5240.Bus {
		if chipSelect < 0 {
			return nil
		}
		pin := machine.Pin(chipSelect)
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.High()
		return tmc5240.NewSPIBus(spi, func(assert bool) {
			if assert {
				pin.Low()
			} else {
				pin.High()
			}
		})
	}
}
