// Command fibd is a noun-group CLI demonstrating the fib core against an
// in-memory mock NPU driver: it builds a small topology (virtual router,
// router interfaces, neighbors, routes, a VXLAN tunnel) from flags or a
// scripted demo, and prints the resulting object graph.
//
//	fibd demo                        # build a canned topology and show it
//	fibd vrf create
//	fibd rif create --port 1 --mac 00:11:22:33:44:55
//	fibd route add --prefix 10.0.0.0/24 --nh-ip 10.0.0.1 --nh-mac aa:bb:cc:dd:ee:01 --port 1
//	fibd show
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "fibd",
	Short:         "In-memory SAI-style FIB core demo CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `fibd drives a fib.Switch backed by an in-memory mock NPU driver.

It exists to exercise the library end to end without real hardware. Each
invocation starts from an empty switch: "vrf create", "rif create" and
"route add" each build the objects they need and print the result, and
"fibd demo" builds a small underlay/overlay topology in one shot. Next
hops, groups, tunnels and hash objects have no subcommands of their own.`,
}

func init() {
	rootCmd.AddCommand(demoCmd, vrfCmd, rifCmd, routeCmd, showCmd)
}
