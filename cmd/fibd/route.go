package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfib/fibcore/pkg/fib"
	"github.com/openfib/fibcore/pkg/fib/attr"
)

var (
	routePrefix  string
	routeNHIP    string
	routeNHMAC   string
	routePort    uint32
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route operations",
}

// routeAddCmd builds a one-shot VRF/RIF/neighbor/route chain and adds a
// single route forwarding through a freshly-resolved IP next hop, printing
// the mock driver's programmed RouteView.
var routeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Build a minimal topology and add one route",
	RunE: func(cmd *cobra.Command, args []string) error {
		sw, driver := newDemoSwitch()
		defer sw.Close()

		prefix := mustPrefix(routePrefix)
		nhIP := mustAddr(routeNHIP)
		nhMAC := mustMAC(routeNHMAC)

		vrfH, err := sw.CreateVirtualRouter(attr.List{})
		if err != nil {
			return err
		}
		rifH, err := sw.CreateRouterInterface(attr.List{
			{ID: fib.RIFAttrVRF, Value: objectID(vrfH)},
			{ID: fib.RIFAttrType, Value: attr.S32Value(int32(fib.RIFAttachPort))},
			{ID: fib.RIFAttrPortID, Value: attr.U32Value(routePort)},
		})
		if err != nil {
			return err
		}
		nbH, err := sw.CreateNeighbor(attr.List{
			{ID: fib.NeighborAttrRIF, Value: objectID(rifH)},
			{ID: fib.NeighborAttrIP, Value: attr.IPAddrValue(nhIP)},
			{ID: fib.NeighborAttrMAC, Value: attr.MACValue(nhMAC)},
		})
		if err != nil {
			return fmt.Errorf("neighbor create: %w", err)
		}
		nhH, err := sw.CreateNextHop(attr.List{
			{ID: fib.NHAttrType, Value: attr.S32Value(int32(fib.NextHopTypeIP))},
			{ID: fib.NHAttrRIF, Value: objectID(rifH)},
			{ID: fib.NHAttrIP, Value: attr.IPAddrValue(nhIP)},
		})
		if err != nil {
			return fmt.Errorf("next hop create: %w", err)
		}
		_ = nbH

		if err := sw.CreateRoute(vrfH, prefix, attr.List{
			{ID: fib.RouteAttrForwardObject, Value: objectID(nhH)},
		}); err != nil {
			return fmt.Errorf("route create: %w", err)
		}

		for _, rs := range driver.Routes() {
			if rs.Prefix == prefix {
				fmt.Printf("route %s in vrf %s: fwd_kind=%d fwd_object=%#x\n", rs.Prefix, vrfH, rs.View.FwdKind, rs.View.FwdObject)
			}
		}
		return nil
	},
}

func init() {
	routeAddCmd.Flags().StringVar(&routePrefix, "prefix", "10.0.0.0/24", "Destination prefix")
	routeAddCmd.Flags().StringVar(&routeNHIP, "nh-ip", "10.0.0.1", "Next-hop IP")
	routeAddCmd.Flags().StringVar(&routeNHMAC, "nh-mac", "aa:bb:cc:dd:ee:01", "Next-hop MAC")
	routeAddCmd.Flags().Uint32Var(&routePort, "port", 1, "Port id for the egress RIF")
	routeCmd.AddCommand(routeAddCmd)
}
