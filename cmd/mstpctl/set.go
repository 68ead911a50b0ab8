package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thelastdreamer/GoMSTP/pkg/ctl"
)

func bridgeCommands() []*cobra.Command {
	cmds := []*cobra.Command{
		{
			Use:   "addbridge <bridge>...",
			Short: "Start managing bridges",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(ctl.CmdAddBridges, ctl.BridgesArgs{Bridges: args}, nil)
			},
		},
		{
			Use:   "delbridge <bridge>...",
			Short: "Stop managing bridges",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(ctl.CmdDelBridges, ctl.BridgesArgs{Bridges: args}, nil)
			},
		},
		{
			Use:   "setmstconfid <bridge> <revision> <name>",
			Short: "Set the MST configuration identifier",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				rev, err := strconv.ParseUint(args[1], 10, 16)
				if err != nil {
					return fmt.Errorf("bad revision %q", args[1])
				}
				return call(ctl.CmdSetMSTConfID, ctl.SetMSTConfIDArgs{
					Bridge: args[0], Revision: uint16(rev), Name: args[2],
				}, nil)
			},
		},
		{
			Use:   "debuglevel <level>",
			Short: "Set the daemon log level",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(ctl.CmdSetDebugLevel, ctl.DebugLevelArgs{Level: args[0]}, nil)
			},
		},
		setTableCmd("setvid2fid", "Set VID-to-FID allocation", 4096, ctl.CmdSetVIDs2FIDs),
		setTableCmd("setfid2mstid", "Set FID-to-MSTID allocation", 4095, ctl.CmdSetFIDs2MSTIDs),
	}

	cmds = append(cmds,
		bridgeU8Cmd("setmaxage", "Set bridge max age", func(a *ctl.SetBridgeConfigArgs, v uint8) { a.MaxAge = &v }),
		bridgeU8Cmd("setfdelay", "Set bridge forward delay", func(a *ctl.SetBridgeConfigArgs, v uint8) { a.ForwardDelay = &v }),
		bridgeU8Cmd("sethello", "Set bridge hello time", func(a *ctl.SetBridgeConfigArgs, v uint8) { a.HelloTime = &v }),
		bridgeU8Cmd("setmaxhops", "Set bridge max hops", func(a *ctl.SetBridgeConfigArgs, v uint8) { a.MaxHops = &v }),
		bridgeU8Cmd("settxholdcount", "Set transmit hold count", func(a *ctl.SetBridgeConfigArgs, v uint8) { a.TxHoldCount = &v }),
	)

	cmds = append(cmds, &cobra.Command{
		Use:   "setageing <bridge> <seconds>",
		Short: "Set FDB ageing time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("bad ageing time %q", args[1])
			}
			ageing := uint32(v)
			return call(ctl.CmdSetCISTBridgeConfig, ctl.SetBridgeConfigArgs{
				Bridge: args[0], AgeingTime: &ageing,
			}, nil)
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "setforcevers <bridge> <stp|rstp|mstp>",
		Short: "Force the running protocol version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vers uint8
			switch strings.ToLower(args[1]) {
			case "stp":
				vers = 0
			case "rstp":
				vers = 2
			case "mstp":
				vers = 3
			default:
				return fmt.Errorf("bad protocol version %q", args[1])
			}
			return call(ctl.CmdSetCISTBridgeConfig, ctl.SetBridgeConfigArgs{
				Bridge: args[0], ForceProtocolVersion: &vers,
			}, nil)
		},
	})

	return cmds
}

// bridgeU8Cmd builds one "<verb> <bridge> <value>" bridge timer
// setter.
func bridgeU8Cmd(use, short string, assign func(*ctl.SetBridgeConfigArgs, uint8)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <bridge> <value>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				return fmt.Errorf("bad value %q", args[1])
			}
			callArgs := ctl.SetBridgeConfigArgs{Bridge: args[0]}
			assign(&callArgs, uint8(v))
			return call(ctl.CmdSetCISTBridgeConfig, callArgs, nil)
		},
	}
}

// setTableCmd parses "fid:vid1,vid2-vid3" style allocation arguments
// into a full table, matching the mstpctl syntax.
func setTableCmd(use, short string, size int, code ctl.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <bridge> <value>:<list>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := make([]uint16, size)
			for _, spec := range args[1:] {
				value, indexes, err := parseAllocation(spec, size)
				if err != nil {
					return err
				}
				for _, idx := range indexes {
					table[idx] = value
				}
			}
			return call(code, ctl.TableArgs{Bridge: args[0], Table: table}, nil)
		},
	}
}

// parseAllocation parses "<target>:<n>,<a>-<b>,..." into the target
// value and the affected indexes.
func parseAllocation(spec string, size int) (uint16, []int, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return 0, nil, fmt.Errorf("bad allocation %q, want value:list", spec)
	}
	target, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, nil, fmt.Errorf("bad allocation target %q", parts[0])
	}
	var indexes []int
	for _, chunk := range strings.Split(parts[1], ",") {
		lo, hi, ok := strings.Cut(chunk, "-")
		start, err := strconv.Atoi(lo)
		if err != nil || start < 0 || start >= size {
			return 0, nil, fmt.Errorf("bad allocation index %q", chunk)
		}
		end := start
		if ok {
			end, err = strconv.Atoi(hi)
			if err != nil || end < start || end >= size {
				return 0, nil, fmt.Errorf("bad allocation range %q", chunk)
			}
		}
		for i := start; i <= end; i++ {
			indexes = append(indexes, i)
		}
	}
	return uint16(target), indexes, nil
}
