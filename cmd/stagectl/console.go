package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/MCFLab/PicoStageDriver/host/client"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive protocol console",
	Long: `console opens a single connection and reads commands from stdin.
Verbs mirror the one-shot subcommands (move, jog, home, enable, get,
set, ...); "raw <line>" sends a protocol line verbatim. "quit" exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()
		return runConsole(c)
	},
}

func runConsole(c *client.Client) error {
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			fmt.Println()
			return sc.Err()
		}
		words, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" || words[0] == "exit" {
			return nil
		}
		if err := consoleDispatch(c, words); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func consoleDispatch(c *client.Client, words []string) error {
	verb, args := words[0], words[1:]

	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d arguments", verb, n)
		}
		return nil
	}
	axisArg := func() (int, error) { return parseAxisArg(args[0]) }

	switch verb {
	case "help":
		fmt.Println("verbs: idn, move, jog, home, enable, disable, conf, status, get, set, rget, rset, errors, save, raw, quit")
		return nil

	case "idn":
		id, err := c.Identify()
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil

	case "move", "jog":
		if err := need(2); err != nil {
			return err
		}
		ax, err := axisArg()
		if err != nil {
			return err
		}
		v, err := parseValueArg(args[1])
		if err != nil {
			return err
		}
		if verb == "move" {
			return c.MoveToPosition(ax, v)
		}
		return c.MoveAtVelocity(ax, v)

	case "home", "enable", "disable", "conf":
		if err := need(1); err != nil {
			return err
		}
		ax, err := axisArg()
		if err != nil {
			return err
		}
		switch verb {
		case "home":
			return c.Home(ax)
		case "enable":
			return c.Enable(ax, true)
		case "disable":
			return c.Enable(ax, false)
		}
		return c.Configure(ax)

	case "status", "get", "rget":
		if err := need(2); err != nil {
			return err
		}
		ax, err := axisArg()
		if err != nil {
			return err
		}
		var v int32
		switch verb {
		case "status":
			v, err = c.Status(ax, args[1])
		case "get":
			v, err = c.AxisParam(ax, args[1])
		case "rget":
			v, err = c.RemoteParam(ax, args[1])
		}
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil

	case "set", "rset":
		if err := need(3); err != nil {
			return err
		}
		ax, err := axisArg()
		if err != nil {
			return err
		}
		v, err := parseValueArg(args[2])
		if err != nil {
			return err
		}
		if verb == "set" {
			return c.SetAxisParam(ax, args[1], v)
		}
		return c.SetRemoteParam(ax, args[1], v)

	case "errors":
		report, err := c.ErrorReport()
		if err != nil {
			return err
		}
		fmt.Println(report)
		return nil

	case "save":
		return c.SaveToFlash()

	case "raw":
		if len(args) == 0 {
			return fmt.Errorf("raw needs a protocol line")
		}
		reply, err := c.Command(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}
	return fmt.Errorf("unknown verb %q (try help)", verb)
}
