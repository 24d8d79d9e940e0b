package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfib/fibcore/pkg/cli"
	"github.com/openfib/fibcore/pkg/fib"
	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/npu/mock"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Build a canned underlay/overlay topology and print it",
	Long: `demo builds:
  - one VRF with two port-attached RIFs and two neighbors (an ECMP pair)
  - an overlay route forwarding over a 2-way ECMP next-hop group
  - a second VRF as the underlay, with a VXLAN tunnel and an encap next hop
    that resolves against an underlay route (the C10 dependency engine)
then prints the resulting driver-programmed state.`,
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	sw, driver := newDemoSwitch()
	defer sw.Close()

	// Overlay VRF: two port RIFs, two neighbors, a 2-way ECMP group.
	overlayVRF, err := sw.CreateVirtualRouter(attr.List{})
	if err != nil {
		return err
	}
	rif1, err := sw.CreateRouterInterface(attr.List{
		{ID: fib.RIFAttrVRF, Value: objectID(overlayVRF)},
		{ID: fib.RIFAttrType, Value: attr.S32Value(int32(fib.RIFAttachPort))},
		{ID: fib.RIFAttrPortID, Value: attr.U32Value(1)},
	})
	if err != nil {
		return err
	}
	rif2, err := sw.CreateRouterInterface(attr.List{
		{ID: fib.RIFAttrVRF, Value: objectID(overlayVRF)},
		{ID: fib.RIFAttrType, Value: attr.S32Value(int32(fib.RIFAttachPort))},
		{ID: fib.RIFAttrPortID, Value: attr.U32Value(2)},
	})
	if err != nil {
		return err
	}

	nh1, err := createIPNextHop(sw, rif1, "10.0.1.1", "aa:bb:cc:00:01:01")
	if err != nil {
		return err
	}
	nh2, err := createIPNextHop(sw, rif2, "10.0.2.1", "aa:bb:cc:00:02:01")
	if err != nil {
		return err
	}

	group, err := sw.CreateNextHopGroup(attr.List{})
	if err != nil {
		return err
	}
	if err := sw.NextHopGroupMemberAdd(group, nh1, 1); err != nil {
		return err
	}
	if err := sw.NextHopGroupMemberAdd(group, nh2, 1); err != nil {
		return err
	}

	overlayPrefix := mustPrefix("192.168.100.0/24")
	if err := sw.CreateRoute(overlayVRF, overlayPrefix, attr.List{
		{ID: fib.RouteAttrForwardObject, Value: objectID(group)},
	}); err != nil {
		return err
	}

	// Underlay VRF: one RIF, one underlay route, a VXLAN tunnel, and an
	// encap next hop resolving against the underlay route (no neighbor yet
	// — exercises the LPM-route fallback path of the dependency engine).
	underlayVRF, err := sw.CreateVirtualRouter(attr.List{})
	if err != nil {
		return err
	}
	underlayRIF, err := sw.CreateRouterInterface(attr.List{
		{ID: fib.RIFAttrVRF, Value: objectID(underlayVRF)},
		{ID: fib.RIFAttrType, Value: attr.S32Value(int32(fib.RIFAttachPort))},
		{ID: fib.RIFAttrPortID, Value: attr.U32Value(3)},
	})
	if err != nil {
		return err
	}
	underlayUnderlayNH, err := createIPNextHop(sw, underlayRIF, "172.16.0.1", "aa:bb:cc:00:03:01")
	if err != nil {
		return err
	}
	underlayPrefix := mustPrefix("172.16.0.0/16")
	if err := sw.CreateRoute(underlayVRF, underlayPrefix, attr.List{
		{ID: fib.RouteAttrForwardObject, Value: objectID(underlayUnderlayNH)},
	}); err != nil {
		return err
	}

	tunnel, err := sw.CreateTunnel(attr.List{
		{ID: fib.TunnelAttrType, Value: attr.S32Value(int32(fib.TunnelTypeVxLAN))},
		{ID: fib.TunnelAttrUnderlayVRF, Value: objectID(underlayVRF)},
		{ID: fib.TunnelAttrSrcIP, Value: attr.IPAddrValue(mustAddr("172.16.0.2"))},
	})
	if err != nil {
		return fmt.Errorf("tunnel create: %w", err)
	}

	encapNH, err := sw.CreateNextHop(attr.List{
		{ID: fib.NHAttrType, Value: attr.S32Value(int32(fib.NextHopTypeEncap))},
		{ID: fib.NHAttrRIF, Value: objectID(underlayRIF)},
		{ID: fib.NHAttrIP, Value: attr.IPAddrValue(mustAddr("172.16.5.5"))},
		{ID: fib.NHAttrTunnelID, Value: objectID(tunnel)},
	})
	if err != nil {
		return fmt.Errorf("encap next hop create: %w", err)
	}

	printSnapshot(driver, map[string]fib.Handle{
		"overlay vrf":  overlayVRF,
		"underlay vrf": underlayVRF,
		"ecmp group":   group,
		"tunnel":       tunnel,
		"encap nh":     encapNH,
	})
	return nil
}

func createIPNextHop(sw *fib.Switch, rif fib.Handle, ip, mac string) (fib.Handle, error) {
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: fib.NeighborAttrRIF, Value: objectID(rif)},
		{ID: fib.NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(ip))},
		{ID: fib.NeighborAttrMAC, Value: attr.MACValue(mustMAC(mac))},
	})
	if err != nil {
		return 0, fmt.Errorf("neighbor create: %w", err)
	}
	_ = nbH
	return sw.CreateNextHop(attr.List{
		{ID: fib.NHAttrType, Value: attr.S32Value(int32(fib.NextHopTypeIP))},
		{ID: fib.NHAttrRIF, Value: objectID(rif)},
		{ID: fib.NHAttrIP, Value: attr.IPAddrValue(mustAddr(ip))},
	})
}

func printSnapshot(driver *mock.Driver, handles map[string]fib.Handle) {
	fmt.Println(cli.Bold("Handles:"))
	for _, name := range []string{"overlay vrf", "underlay vrf", "ecmp group", "tunnel", "encap nh"} {
		fmt.Printf("  %-14s %s\n", name, handles[name])
	}

	routeTable := cli.NewTable("VRF", "PREFIX", "FWD_KIND", "FWD_OBJECT")
	for _, rs := range driver.Routes() {
		routeTable.Row(fmt.Sprintf("%#x", rs.VRF), rs.Prefix.String(), fmt.Sprint(rs.View.FwdKind), fmt.Sprintf("%#x", rs.View.FwdObject))
	}
	fmt.Println()
	fmt.Println(cli.Bold("Routes:"))
	routeTable.Flush()

	nhTable := cli.NewTable("NEXTHOP", "RESOLVED_VIA", "ENCAP_ROUTE", "ENCAP_FWD")
	for _, nh := range driver.NextHops() {
		if nh.ResolvedVia == "" {
			continue
		}
		nhTable.Row(fmt.Sprintf("%#x", nh.Handle), nh.ResolvedVia, nh.EncapRoute.String(), fmt.Sprintf("%#x", nh.EncapFwd))
	}
	fmt.Println()
	fmt.Println(cli.Bold("Encap next hops:"))
	nhTable.Flush()

	members := driver.GroupMembers(uint64(handles["ecmp group"]))
	groupTable := cli.NewTable("MEMBER", "WEIGHT")
	for m, w := range members {
		groupTable.Row(fmt.Sprintf("%#x", m), fmt.Sprint(w))
	}
	fmt.Println()
	fmt.Println(cli.Bold("ECMP group members:"))
	groupTable.Flush()
}
