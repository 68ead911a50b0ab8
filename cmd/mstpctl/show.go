package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thelastdreamer/GoMSTP/pkg/ctl"
	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

func showCommands() []*cobra.Command {
	return []*cobra.Command{
		showBridgeCmd(),
		showPortCmd(false),
		showPortCmd(true),
		showTreeCmd(),
		showTreePortCmd(),
		showMSTIListCmd(),
		showMSTConfIDCmd(),
		showTableCmd("showvid2fid", "Show VID-to-FID allocation", ctl.CmdGetVIDs2FIDs),
		showTableCmd("showfid2mstid", "Show FID-to-MSTID allocation", ctl.CmdGetFIDs2MSTIDs),
	}
}

func showBridgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "showbridge [bridge]",
		Short: "Show bridge CIST state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				var list ctl.BridgeListResult
				if err := call(ctl.CmdListBridges, nil, &list); err != nil {
					return err
				}
				printResult(list.Bridges, func() {
					for i := range list.Bridges {
						printBridge(&list.Bridges[i])
					}
				})
				return nil
			}
			var st mstp.CISTBridgeStatus
			if err := call(ctl.CmdGetCISTBridgeStatus, ctl.BridgeArgs{Bridge: args[0]}, &st); err != nil {
				return err
			}
			printResult(st, func() { printBridge(&st) })
			return nil
		},
	}
}

func printBridge(st *mstp.CISTBridgeStatus) {
	fmt.Printf("%s CIST info\n", st.Name)
	fmt.Printf("  enabled         %v\n", true)
	fmt.Printf("  bridge id       %s\n", st.BridgeID)
	fmt.Printf("  designated root %s\n", st.DesignatedRoot)
	fmt.Printf("  regional root   %s\n", st.RegionalRoot)
	fmt.Printf("  root port       %s\n", st.RootPort)
	fmt.Printf("  path cost     %-10d internal path cost  %d\n", st.RootPathCost, st.InternalPathCost)
	fmt.Printf("  max age       %-10d bridge max age      %d\n", st.MaxAge, st.MaxAge)
	fmt.Printf("  forward delay %-10d bridge forward delay %d\n", st.ForwardDelay, st.ForwardDelay)
	fmt.Printf("  tx hold count %-10d max hops            %d\n", st.TxHoldCount, st.MaxHops)
	fmt.Printf("  hello time    %-10d ageing time         %d\n", st.HelloTime, st.AgeingTime)
	fmt.Printf("  force protocol version     %s\n", st.ForceProtocolVersion)
	fmt.Printf("  time since topology change %d\n", st.TimeSinceTC)
	fmt.Printf("  topology change count      %d\n", st.TopologyChangeCount)
	fmt.Printf("  topology change port       %d\n", st.TopologyChangePort)
	fmt.Printf("  last topology change port  %d\n", st.LastTCPort)
}

func showPortCmd(detail bool) *cobra.Command {
	use, short := "showport <bridge> <port>", "Show port CIST state"
	if detail {
		use, short = "showportdetail <bridge> <port>", "Show detailed port CIST state"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st mstp.PortStatus
			if err := call(ctl.CmdGetCISTPortStatus, ctl.PortArgs{Bridge: args[0], Port: args[1]}, &st); err != nil {
				return err
			}
			printResult(st, func() {
				if !detail {
					fmt.Printf("%6s %-10s %-10s %s\n", st.PortID, st.Role, st.State, st.Port)
					return
				}
				fmt.Printf("%s:%s CIST info\n", args[0], st.Port)
				fmt.Printf("  enabled            %-6v role               %s\n", st.Enabled, st.Role)
				fmt.Printf("  port id            %-6s state              %s\n", st.PortID, st.State)
				fmt.Printf("  external port cost %-6d internal port cost %d\n", st.ExternalPathCost, st.InternalPathCost)
				fmt.Printf("  designated root    %s\n", st.DesignatedRoot)
				fmt.Printf("  designated bridge  %s\n", st.DesignatedBridge)
				fmt.Printf("  designated port    %s\n", st.DesignatedPort)
				fmt.Printf("  admin edge port    %-6v auto edge port     %v\n", st.Config.AdminEdge, st.Config.AutoEdge)
				fmt.Printf("  oper edge port     %-6v point-to-point     %v\n", st.OperEdge, st.OperP2P)
				fmt.Printf("  restricted role    %-6v restricted TCN     %v\n", st.Config.RestrictedRole, st.Config.RestrictedTCN)
				fmt.Printf("  bpdu guard         %-6v bpdu guard error   %v\n", st.Config.BPDUGuard, st.BPDUGuardError)
				fmt.Printf("  bpdu filter        %-6v network port       %v\n", st.Config.BPDUFilter, st.Config.NetworkPort)
				fmt.Printf("  send RSTP          %-6v disputed           %v\n", st.SendRSTP, st.Disputed)
				fmt.Printf("  rx bpdu %-8d tx bpdu %-8d filtered %d\n",
					st.Counters.NumRxBPDU, st.Counters.NumTxBPDU, st.Counters.NumRxBPDUFiltered)
				fmt.Printf("  rx tcn  %-8d tx tcn  %-8d\n", st.Counters.NumRxTCN, st.Counters.NumTxTCN)
				fmt.Printf("  transitions to forwarding %-6d to blocking %d\n",
					st.Counters.NumTransFwd, st.Counters.NumTransBlk)
			})
			return nil
		},
	}
}

func showTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "showtree <bridge> <mstid>",
		Short: "Show per-MSTI bridge state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mstid, err := parseMSTID(args[1])
			if err != nil {
				return err
			}
			var st mstp.TreeStatus
			if err := call(ctl.CmdGetMSTIBridgeStatus, ctl.TreeArgs{Bridge: args[0], MSTID: mstid}, &st); err != nil {
				return err
			}
			printResult(st, func() {
				fmt.Printf("%s MSTI %d info\n", args[0], st.MSTID)
				fmt.Printf("  bridge id          %s\n", st.BridgeID)
				fmt.Printf("  regional root      %s\n", st.RegionalRoot)
				fmt.Printf("  root port          %s\n", st.RootPort)
				fmt.Printf("  internal path cost %d\n", st.InternalPathCost)
				fmt.Printf("  time since topology change %d\n", st.TimeSinceTC)
				fmt.Printf("  topology change count      %d\n", st.TopologyChangeCount)
			})
			return nil
		},
	}
}

func showTreePortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "showtreeport <bridge> <port> <mstid>",
		Short: "Show per-MSTI port state",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mstid, err := parseMSTID(args[2])
			if err != nil {
				return err
			}
			var st mstp.TreePortStatus
			if err := call(ctl.CmdGetMSTIPortStatus,
				ctl.TreePortArgs{Bridge: args[0], Port: args[1], MSTID: mstid}, &st); err != nil {
				return err
			}
			printResult(st, func() {
				fmt.Printf("%s:%s MSTI %d info\n", args[0], st.Port, st.MSTID)
				fmt.Printf("  port id            %-6s role  %s\n", st.PortID, st.Role)
				fmt.Printf("  state              %-12s disputed %v\n", st.State, st.Disputed)
				fmt.Printf("  designated bridge  %s\n", st.DesignatedBridge)
				fmt.Printf("  designated port    %s\n", st.DesignatedPort)
				fmt.Printf("  internal port cost %d\n", st.InternalPathCost)
			})
			return nil
		},
	}
}

func showMSTIListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "showmstilist <bridge>",
		Short: "List instantiated MSTIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var list ctl.MSTIListResult
			if err := call(ctl.CmdListMSTIs, ctl.BridgeArgs{Bridge: args[0]}, &list); err != nil {
				return err
			}
			printResult(list, func() {
				for _, id := range list.MSTIDs {
					fmt.Printf("%d\n", id)
				}
			})
			return nil
		},
	}
}

func showMSTConfIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "showmstconfid <bridge>",
		Short: "Show the MST configuration identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var conf ctl.MSTConfIDResult
			if err := call(ctl.CmdGetMSTConfID, ctl.BridgeArgs{Bridge: args[0]}, &conf); err != nil {
				return err
			}
			printResult(conf, func() {
				fmt.Printf("Configuration Name:     %s\n", conf.Name)
				fmt.Printf("Revision Level:         %d\n", conf.Revision)
				fmt.Printf("Configuration Digest:   %s\n", conf.Digest)
			})
			return nil
		},
	}
}

func showTableCmd(use, short string, code ctl.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <bridge>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var table ctl.TableArgs
			if err := call(code, ctl.BridgeArgs{Bridge: args[0]}, &table); err != nil {
				return err
			}
			printResult(table, func() {
				// Compress runs of identical values the way mstpctl
				// renders its allocation tables.
				for i := 0; i < len(table.Table); {
					j := i
					for j < len(table.Table) && table.Table[j] == table.Table[i] {
						j++
					}
					if table.Table[i] != 0 {
						if j-i == 1 {
							fmt.Printf("%d -> %d\n", i, table.Table[i])
						} else {
							fmt.Printf("%d-%d -> %d\n", i, j-1, table.Table[i])
						}
					}
					i = j
				}
			})
			return nil
		},
	}
}

func parseMSTID(s string) (protocol.MSTID, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || !protocol.MSTID(v).Valid() {
		return 0, fmt.Errorf("bad mstid %q (must be 0-4094)", s)
	}
	return protocol.MSTID(v), nil
}
