// stagectl is the host CLI for the stage controller: one-shot motion
// and parameter commands, YAML parameter sets and an interactive
// console over the line protocol.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MCFLab/PicoStageDriver/axis"
	"github.com/MCFLab/PicoStageDriver/host/client"
	"github.com/MCFLab/PicoStageDriver/params"
)

var (
	device      string
	waitDone    bool
	waitTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "stagectl",
	Short: "Control a stage driver controller",
	Long: `stagectl talks to a stage driver controller over its serial line
protocol. Parameters are addressed by their four-character IDs (CRUN,
HVEL, RMXV, ...); axes by their slot number 0..3, with -1 addressing
every active axis where a command supports it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "", "serial device of the controller")
	rootCmd.MarkPersistentFlagRequired("device")
}

// connect opens the controller for one command invocation.
func connect() (*client.Client, error) {
	return client.Connect(device)
}

func parseAxisArg(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid axis %q", s)
	}
	return v, nil
}

func parseValueArg(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return int32(v), nil
}

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Print the controller's ID string and version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := c.Identify()
		if err != nil {
			return err
		}
		version, err := c.ProtocolVersion()
		if err != nil {
			return err
		}
		slots, err := c.DeviceCount()
		if err != nil {
			return err
		}
		fmt.Printf("%s (version %d, %d slots)\n", id, version, slots)
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <axis> <position>",
	Short: "Move an axis to an absolute position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		pos, err := parseValueArg(args[1])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.MoveToPosition(ax, pos); err != nil {
			return err
		}
		if waitDone {
			return c.WaitMotionDone(ax, waitTimeout)
		}
		return nil
	},
}

var jogCmd = &cobra.Command{
	Use:   "jog <axis> <velocity>",
	Short: "Move an axis at constant velocity (0 stops)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		vel, err := parseValueArg(args[1])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.MoveAtVelocity(ax, vel)
	},
}

var homeCmd = &cobra.Command{
	Use:   "home <axis>",
	Short: "Run the configured homing cycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Home(ax); err != nil {
			return err
		}
		if waitDone {
			return c.WaitMotionDone(ax, waitTimeout)
		}
		return nil
	},
}

func enableCommand(use, short string, on bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ax, err := parseAxisArg(args[0])
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Enable(ax, on)
		},
	}
}

var configureCmd = &cobra.Command{
	Use:   "configure [axis]",
	Short: "Apply the stored parameters to the drivers and the pendant",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax := -1
		if len(args) == 1 {
			var err error
			if ax, err = parseAxisArg(args[0]); err != nil {
				return err
			}
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.Configure(ax)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <axis> [ID]",
	Short: "Read axis status values (all of them without an ID)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		if len(args) == 2 {
			v, err := c.Status(ax, args[1])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}
		for _, id := range axis.StatusIDs {
			v, err := c.Status(ax, id)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d\n", id, v)
		}
		flags, err := c.StatusFlags(ax)
		if err != nil {
			return err
		}
		fmt.Printf("FLAGS: %#04x\n", flags)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <axis> [ID]",
	Short: "Read stored axis parameters (all of them without an ID)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		if len(args) == 2 {
			v, err := c.AxisParam(ax, args[1])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}
		for _, id := range params.AxisParamIDs {
			v, err := c.AxisParam(ax, id)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d\n", id, v)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <axis> <ID> <value>",
	Short: "Write a stored axis parameter (applied at configure)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		v, err := parseValueArg(args[2])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.SetAxisParam(ax, args[1], v)
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Pendant parameter access",
}

var remoteGetCmd = &cobra.Command{
	Use:   "get <axis> [ID]",
	Short: "Read stored pendant parameters",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		if len(args) == 2 {
			v, err := c.RemoteParam(ax, args[1])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}
		for _, id := range params.RemoteParamIDs {
			v, err := c.RemoteParam(ax, id)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d\n", id, v)
		}
		return nil
	},
}

var remoteSetCmd = &cobra.Command{
	Use:   "set <axis> <ID> <value>",
	Short: "Write a pendant parameter (forwarded to the pendant)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ax, err := parseAxisArg(args[0])
		if err != nil {
			return err
		}
		v, err := parseValueArg(args[2])
		if err != nil {
			return err
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.SetRemoteParam(ax, args[1], v)
	},
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Read and clear the controller's fault report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		report, err := c.ErrorReport()
		if err != nil {
			return err
		}
		fmt.Println(report)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist the stored parameters to flash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		return c.SaveToFlash()
	},
}

func init() {
	moveCmd.Flags().BoolVarP(&waitDone, "wait", "w", false, "wait for the motion to finish")
	moveCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "wait timeout")
	homeCmd.Flags().BoolVarP(&waitDone, "wait", "w", false, "wait for homing to finish")
	homeCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Second, "wait timeout")

	remoteCmd.AddCommand(remoteGetCmd, remoteSetCmd)
	rootCmd.AddCommand(identifyCmd, moveCmd, jogCmd, homeCmd,
		enableCommand("enable <axis>", "Enable a motor driver", true),
		enableCommand("disable <axis>", "Disable a motor driver", false),
		configureCmd, statusCmd, getCmd, setCmd, remoteCmd,
		errorsCmd, saveCmd, pullCmd, pushCmd, consoleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
