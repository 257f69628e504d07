// stagedriverd runs the stage controller firmware on a host machine:
// simulated axes, a file-backed parameter image and the line protocol
// served over a serial device or stdio. It exists for integration
// testing of host software without a board attached.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MCFLab/PicoStageDriver/controller"
	"github.com/MCFLab/PicoStageDriver/host/serial"
	"github.com/MCFLab/PicoStageDriver/params"
	"github.com/MCFLab/PicoStageDriver/storage"
)

var (
	device    string
	remoteDev string
	flashPath string
	safeBoot  bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "stagedriverd",
	Short: "Stage controller daemon with simulated axes",
	Long: `stagedriverd serves the stage controller's line protocol without any
hardware attached. Axes are simulated, the parameter image persists to a
file, and the command channel runs over a serial device (typically one
end of a pty pair) or over stdio when no device is given.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.Flags().StringVarP(&device, "device", "d", "", "serial device for the command channel (default stdio)")
	rootCmd.Flags().StringVar(&remoteDev, "remote-device", "", "serial device for the pendant link (default none)")
	rootCmd.Flags().StringVarP(&flashPath, "flash", "f", "stagedriver.flash", "parameter image file")
	rootCmd.Flags().BoolVar(&safeBoot, "safe", false, "boot with the safe default parameters, skip the image")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace boot and faults to stderr")
}

// discardUART satisfies the pendant link when none is attached.
type discardUART struct{}

func (discardUART) Available() int              { return 0 }
func (discardUART) AvailableForWrite() int      { return 1024 }
func (discardUART) Read(p []byte) (int, error)  { return 0, nil }
func (discardUART) Write(p []byte) (int, error) { return len(p), nil }

// serialUART adapts an open port to the pendant UART interface. Reads
// rely on the port's short read timeout.
type serialUART struct{ port serial.Port }

func (u serialUART) Available() int              { return 1 }
func (u serialUART) AvailableForWrite() int      { return 1024 }
func (u serialUART) Read(p []byte) (int, error)  { return u.port.Read(p) }
func (u serialUART) Write(p []byte) (int, error) { return u.port.Write(p) }

func run(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if device != "" {
		port, err := serial.Open(serial.DefaultConfig(device))
		if err != nil {
			return err
		}
		defer port.Close()
		in, out = port, port
	}

	flash, err := storage.NewFileFlash(flashPath, params.ImageSize)
	if err != nil {
		return fmt.Errorf("flash image %s: %w", flashPath, err)
	}

	opts := controller.Options{
		Port:       controller.NewLinePort(in, out),
		RemoteUART: discardUART{},
		Flash:      flash,
		SafeBoot:   func() bool { return safeBoot },
	}
	if remoteDev != "" {
		port, err := serial.Open(serial.DefaultConfig(remoteDev))
		if err != nil {
			return err
		}
		defer port.Close()
		opts.RemoteUART = serialUART{port: port}
	}
	if verbose {
		opts.Debug = os.Stderr
	}

	c := controller.New(opts)
	if err := c.Boot(time.Now()); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := c.Run(ctx); err != context.Canceled {
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
