package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thelastdreamer/GoMSTP/pkg/ctl"
)

func portCommands() []*cobra.Command {
	cmds := []*cobra.Command{
		portBoolCmd("setportadminedge", "Set port admin edge",
			func(a *ctl.SetPortConfigArgs, v bool) { a.AdminEdge = &v }, false),
		portBoolCmd("setportautoedge", "Set port auto edge detection",
			func(a *ctl.SetPortConfigArgs, v bool) { a.AutoEdge = &v }, false),
		portBoolCmd("setportrestrrole", "Restrict the port from becoming root",
			func(a *ctl.SetPortConfigArgs, v bool) { a.RestrictedRole = &v }, false),
		portBoolCmd("setportrestrtcn", "Restrict topology change propagation",
			func(a *ctl.SetPortConfigArgs, v bool) { a.RestrictedTCN = &v }, false),
		portBoolCmd("setbpduguard", "Error-disable the port on any received BPDU",
			func(a *ctl.SetPortConfigArgs, v bool) { a.BPDUGuard = &v }, false),
		portBoolCmd("setportbpdufilter", "Drop all BPDUs on the port",
			func(a *ctl.SetPortConfigArgs, v bool) { a.BPDUFilter = &v }, false),
		portBoolCmd("setportnetwork", "Set the network port flag",
			func(a *ctl.SetPortConfigArgs, v bool) { a.NetworkPort = &v }, false),
		// Disable/Enable sending BPDU. Debug only, hidden from help.
		portBoolCmd("setportdonttxmt", "Disable BPDU transmission",
			func(a *ctl.SetPortConfigArgs, v bool) { a.DontTxmt = &v }, true),
	}

	cmds = append(cmds, &cobra.Command{
		Use:   "setportp2p <bridge> <port> <yes|no|auto>",
		Short: "Set the admin point-to-point state",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[2] {
			case "yes", "no", "auto":
			default:
				return fmt.Errorf("bad p2p value %q (yes, no or auto)", args[2])
			}
			return call(ctl.CmdSetCISTPortConfig, ctl.SetPortConfigArgs{
				Bridge: args[0], Port: args[1], AdminP2P: &args[2],
			}, nil)
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "setportpathcost <bridge> <port> <cost>",
		Short: "Set the external port path cost (0 = auto)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[2], 10, 32)
			if err != nil {
				return fmt.Errorf("bad path cost %q", args[2])
			}
			cost := uint32(v)
			return call(ctl.CmdSetCISTPortConfig, ctl.SetPortConfigArgs{
				Bridge: args[0], Port: args[1], AdminExtPathCost: &cost,
			}, nil)
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "portmcheck <bridge> <port>",
		Short: "Force protocol re-migration on the port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(ctl.CmdPortMcheck, ctl.PortArgs{Bridge: args[0], Port: args[1]}, nil)
		},
	})

	cmds = append(cmds, &cobra.Command{
		Use:   "clearbpduguarderror <bridge> <port>",
		Short: "Re-enable a port error-disabled by BPDU guard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clear := true
			return call(ctl.CmdSetCISTPortConfig, ctl.SetPortConfigArgs{
				Bridge: args[0], Port: args[1], ClearGuardError: &clear,
			}, nil)
		},
	})

	return cmds
}

// portBoolCmd builds one "<verb> <bridge> <port> <yes|no>" port flag
// setter.
func portBoolCmd(use, short string, assign func(*ctl.SetPortConfigArgs, bool), hidden bool) *cobra.Command {
	return &cobra.Command{
		Use:    use + " <bridge> <port> <yes|no>",
		Short:  short,
		Args:   cobra.ExactArgs(3),
		Hidden: hidden,
		RunE: func(cmd *cobra.Command, args []string) error {
			var v bool
			switch args[2] {
			case "yes":
				v = true
			case "no":
				v = false
			default:
				return fmt.Errorf("bad flag value %q (yes or no)", args[2])
			}
			callArgs := ctl.SetPortConfigArgs{Bridge: args[0], Port: args[1]}
			assign(&callArgs, v)
			return call(ctl.CmdSetCISTPortConfig, callArgs, nil)
		},
	}
}
