package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thelastdreamer/GoMSTP/pkg/ctl"
)

func treeCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "createtree <bridge> <mstid>",
			Short: "Create a spanning tree instance",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				mstid, err := parseMSTID(args[1])
				if err != nil {
					return err
				}
				return call(ctl.CmdCreateMSTI, ctl.TreeArgs{Bridge: args[0], MSTID: mstid}, nil)
			},
		},
		{
			Use:   "deletetree <bridge> <mstid>",
			Short: "Delete a spanning tree instance",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				mstid, err := parseMSTID(args[1])
				if err != nil {
					return err
				}
				return call(ctl.CmdDeleteMSTI, ctl.TreeArgs{Bridge: args[0], MSTID: mstid}, nil)
			},
		},
		{
			Use:   "settreeprio <bridge> <mstid> <priority>",
			Short: "Set the bridge priority for one tree (multiple of 4096)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				mstid, err := parseMSTID(args[1])
				if err != nil {
					return err
				}
				prio, err := strconv.ParseUint(args[2], 0, 16)
				if err != nil {
					return fmt.Errorf("bad priority %q", args[2])
				}
				return call(ctl.CmdSetMSTIBridgeConfig, ctl.SetTreeConfigArgs{
					Bridge: args[0], MSTID: mstid, Priority: uint16(prio),
				}, nil)
			},
		},
		{
			Use:   "settreeportprio <bridge> <port> <mstid> <priority>",
			Short: "Set the port priority for one tree (multiple of 16)",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				mstid, err := parseMSTID(args[2])
				if err != nil {
					return err
				}
				prio, err := strconv.ParseUint(args[3], 0, 8)
				if err != nil {
					return fmt.Errorf("bad priority %q", args[3])
				}
				p := uint8(prio)
				return call(ctl.CmdSetMSTIPortConfig, ctl.SetTreePortConfigArgs{
					Bridge: args[0], Port: args[1], MSTID: mstid, Priority: &p,
				}, nil)
			},
		},
		{
			Use:   "settreeportcost <bridge> <port> <mstid> <cost>",
			Short: "Set the internal port path cost for one tree (0 = auto)",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				mstid, err := parseMSTID(args[2])
				if err != nil {
					return err
				}
				cost64, err := strconv.ParseUint(args[3], 10, 32)
				if err != nil {
					return fmt.Errorf("bad path cost %q", args[3])
				}
				cost := uint32(cost64)
				return call(ctl.CmdSetMSTIPortConfig, ctl.SetTreePortConfigArgs{
					Bridge: args[0], Port: args[1], MSTID: mstid, IntPathCost: &cost,
				}, nil)
			},
		},
	}
}
