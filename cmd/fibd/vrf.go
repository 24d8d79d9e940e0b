package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

var vrfCmd = &cobra.Command{
	Use:   "vrf",
	Short: "Virtual router operations",
}

var vrfCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a virtual router and print its handle",
	RunE: func(cmd *cobra.Command, args []string) error {
		sw, _ := newDemoSwitch()
		defer sw.Close()

		h, err := sw.CreateVirtualRouter(attr.List{})
		if err != nil {
			return err
		}
		fmt.Printf("virtual-router created: %s\n", h)
		return nil
	},
}

func init() {
	vrfCmd.AddCommand(vrfCreateCmd)
}
