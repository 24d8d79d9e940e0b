package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfib/fibcore/pkg/fib"
	"github.com/openfib/fibcore/pkg/fib/attr"
)

var (
	rifPort uint32
	rifMAC  string
)

var rifCmd = &cobra.Command{
	Use:   "rif",
	Short: "Router interface operations",
}

var rifCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a virtual router and a port-attached RIF on it",
	RunE: func(cmd *cobra.Command, args []string) error {
		sw, _ := newDemoSwitch()
		defer sw.Close()

		vrfH, err := sw.CreateVirtualRouter(attr.List{})
		if err != nil {
			return fmt.Errorf("vrf create: %w", err)
		}

		rifAttrs := attr.List{
			{ID: fib.RIFAttrVRF, Value: objectID(vrfH)},
			{ID: fib.RIFAttrType, Value: attr.S32Value(int32(fib.RIFAttachPort))},
			{ID: fib.RIFAttrPortID, Value: attr.U32Value(rifPort)},
		}
		if rifMAC != "" {
			rifAttrs = append(rifAttrs, attr.Attribute{ID: fib.RIFAttrMAC, Value: attr.MACValue(mustMAC(rifMAC))})
		}

		rifH, err := sw.CreateRouterInterface(rifAttrs)
		if err != nil {
			return fmt.Errorf("rif create: %w", err)
		}
		fmt.Printf("virtual-router %s, router-interface %s (port %d)\n", vrfH, rifH, rifPort)
		return nil
	},
}

func init() {
	rifCreateCmd.Flags().Uint32Var(&rifPort, "port", 1, "Port id to attach")
	rifCreateCmd.Flags().StringVar(&rifMAC, "mac", "", "Router MAC override")
	rifCmd.AddCommand(rifCreateCmd)
}
