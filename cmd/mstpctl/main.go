// mstpctl inspects and configures the running mstpd daemon over its
// control socket.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thelastdreamer/GoMSTP/pkg/ctl"
)

var (
	socketPath string
	jsonOutput bool
)

func main() {
	root := &cobra.Command{
		Use:           "mstpctl",
		Short:         "Control the gomstp spanning tree daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", ctl.DefaultSocketPath, "daemon control socket")
	root.PersistentFlags().BoolVar(&jsonOutput, "format-json", false, "print results as JSON")

	root.AddCommand(
		showCommands()...,
	)
	root.AddCommand(
		bridgeCommands()...,
	)
	root.AddCommand(
		portCommands()...,
	)
	root.AddCommand(
		treeCommands()...,
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mstpctl: %v\n", err)
		os.Exit(1)
	}
}

// client opens the control connection for one command invocation.
func client() (*ctl.Client, error) {
	c, err := ctl.NewClient(socketPath)
	if err != nil {
		return nil, fmt.Errorf("is mstpd running? %w", err)
	}
	return c, nil
}

// call performs one request and optionally decodes the result.
func call(cmd ctl.Command, args, out any) error {
	c, err := client()
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Call(cmd, args, out)
}

// printResult renders a result either as JSON or through the text
// formatter.
func printResult(v any, text func()) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(v)
		return
	}
	text()
}
