package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a short description of fibd's object model",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(`fibd has no persistent backing store between invocations: each
subcommand builds and tears down its own fib.Switch over a fresh
in-memory mock NPU driver. Run "fibd demo" to see the whole object graph
(VRF, RIFs, neighbors, an ECMP group, a VXLAN tunnel, an encap next hop)
built and printed in one shot.`)
	},
}
