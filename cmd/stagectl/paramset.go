package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v2"

	"github.com/MCFLab/PicoStageDriver/host/client"
	"github.com/MCFLab/PicoStageDriver/params"
)

// paramSet is the YAML representation of one axis configuration.
type paramSet struct {
	Axis   int              `yaml:"axis"`
	Device int32            `yaml:"device"`
	Role   int32            `yaml:"role"`
	Params map[string]int32 `yaml:"params"`
	Remote map[string]int32 `yaml:"remote"`
}

var applySet bool

var pullCmd = &cobra.Command{
	Use:   "pull <axis> <file>",
	Short: "Dump an axis configuration to a YAML file",
	Args:  cobra.ExactArgs(2),
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

		set := paramSet{Axis: ax, Params: map[string]int32{}, Remote: map[string]int32{}}
		if set.Device, err = c.Query(fmt.Sprintf("GMP_TDEV%d", ax), "MP_TDEV"); err != nil {
			return err
		}
		if set.Role, err = c.Query(fmt.Sprintf("GMP_TAXI%d", ax), "MP_TAXI"); err != nil {
			return err
		}
		for _, id := range params.AxisParamIDs {
			v, err := c.AxisParam(ax, id)
			if err != nil {
				return err
			}
			set.Params[id] = v
		}
		for _, id := range params.RemoteParamIDs {
			v, err := c.RemoteParam(ax, id)
			if err != nil {
				return err
			}
			set.Remote[id] = v
		}

		data, err := yaml.Marshal(&set)
		if err != nil {
			return err
		}
		return os.WriteFile(args[1], data, 0o644)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Load an axis configuration from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var set paramSet
		if err := yaml.UnmarshalStrict(data, &set); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := pushParamSet(c, &set); err != nil {
			return err
		}
		if applySet {
			return c.Configure(set.Axis)
		}
		return nil
	},
}

func pushParamSet(c *client.Client, set *paramSet) error {
	if err := c.Exec(fmt.Sprintf("SMP_TDEV%d,%d", set.Axis, set.Device)); err != nil {
		return err
	}
	if err := c.Exec(fmt.Sprintf("SMP_TAXI%d,%d", set.Axis, set.Role)); err != nil {
		return err
	}
	// canonical order keeps failures attributable
	for _, id := range params.AxisParamIDs {
		v, ok := set.Params[id]
		if !ok {
			continue
		}
		if err := c.SetAxisParam(set.Axis, id, v); err != nil {
			return fmt.Errorf("param %s: %w", id, err)
		}
	}
	for _, id := range params.RemoteParamIDs {
		v, ok := set.Remote[id]
		if !ok {
			continue
		}
		if err := c.SetRemoteParam(set.Axis, id, v); err != nil {
			return fmt.Errorf("remote param %s: %w", id, err)
		}
	}
	return nil
}

func init() {
	pushCmd.Flags().BoolVar(&applySet, "apply", false, "configure the axis after pushing")
}
