package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

func createUnderlay(t *testing.T, sw *Switch, port uint32) (vrf, rif Handle) {
	return createPortRIF(t, sw, port)
}

func createVxLANTunnel(t *testing.T, sw *Switch, underlayVRF Handle, srcIP string) Handle {
	t.Helper()
	h, err := sw.CreateTunnel(attr.List{
		{ID: TunnelAttrType, Value: attr.S32Value(int32(TunnelTypeVxLAN))},
		{ID: TunnelAttrUnderlayVRF, Value: objectID(underlayVRF)},
		{ID: TunnelAttrSrcIP, Value: attr.IPAddrValue(mustAddr(t, srcIP))},
	})
	require.NoError(t, err)
	return h
}

// S4: an encap next hop whose remote endpoint has no exact neighbor match
// resolves indirectly via the underlay route's LPM match.
func TestResolveEncapNH_FallsBackToLPMRoute(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	underlayVRF, underlayRIF := createUnderlay(t, sw, 1)
	underlayNH := createIPNH(t, sw, underlayRIF, "10.0.0.254")
	require.NoError(t, sw.CreateRoute(underlayVRF, mustPrefix(t, "10.0.0.0/24"), attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(underlayNH)},
	}))

	tunnel := createVxLANTunnel(t, sw, underlayVRF, "10.0.0.1")
	encapNH, err := sw.CreateNextHop(attr.List{
		{ID: NHAttrType, Value: attr.S32Value(int32(NextHopTypeEncap))},
		{ID: NHAttrRIF, Value: objectID(underlayRIF)},
		{ID: NHAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NHAttrTunnelID, Value: objectID(tunnel)},
	})
	require.NoError(t, err)

	nh := sw.nextHops[encapNH]
	require.True(t, nh.Encap.Resolved)
	require.Equal(t, Handle(0), nh.Encap.Neighbor)
	require.Equal(t, mustPrefix(t, "10.0.0.0/24"), nh.Encap.LPMRoute.Prefix)
	require.GreaterOrEqual(t, driver.CallCount("EncapNHRouteResolve"), 1)
}

// S5: once an underlay neighbor appears at the encap next hop's exact
// remote endpoint, it re-resolves directly at that neighbor.
func TestResolveEncapNH_ReResolvesOnceNeighborAppears(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	underlayVRF, underlayRIF := createUnderlay(t, sw, 1)
	underlayNH := createIPNH(t, sw, underlayRIF, "10.0.0.254")
	require.NoError(t, sw.CreateRoute(underlayVRF, mustPrefix(t, "10.0.0.0/24"), attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(underlayNH)},
	}))

	tunnel := createVxLANTunnel(t, sw, underlayVRF, "10.0.0.1")
	encapNH, err := sw.CreateNextHop(attr.List{
		{ID: NHAttrType, Value: attr.S32Value(int32(NextHopTypeEncap))},
		{ID: NHAttrRIF, Value: objectID(underlayRIF)},
		{ID: NHAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NHAttrTunnelID, Value: objectID(tunnel)},
	})
	require.NoError(t, err)
	require.Zero(t, sw.nextHops[encapNH].Encap.Neighbor)

	neighborMAC := mustMAC(t, "02:00:00:00:00:05")
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: NeighborAttrRIF, Value: objectID(underlayRIF)},
		{ID: NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NeighborAttrMAC, Value: attr.MACValue(neighborMAC)},
	})
	require.NoError(t, err)

	nh := sw.nextHops[encapNH]
	require.True(t, nh.Encap.Resolved)
	require.Equal(t, nbH, nh.Encap.Neighbor)
	require.GreaterOrEqual(t, driver.CallCount("EncapNHNeighborResolve"), 1)
}

// P4: a neighbor MAC change replays exactly once to every encap next hop
// currently resolved directly at it.
func TestReplayEncapDepsOf_OnNeighborMACChange(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	underlayVRF, underlayRIF := createUnderlay(t, sw, 1)
	tunnel := createVxLANTunnel(t, sw, underlayVRF, "10.0.0.1")

	neighborMAC := mustMAC(t, "02:00:00:00:00:05")
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: NeighborAttrRIF, Value: objectID(underlayRIF)},
		{ID: NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NeighborAttrMAC, Value: attr.MACValue(neighborMAC)},
	})
	require.NoError(t, err)

	encapNH, err := sw.CreateNextHop(attr.List{
		{ID: NHAttrType, Value: attr.S32Value(int32(NextHopTypeEncap))},
		{ID: NHAttrRIF, Value: objectID(underlayRIF)},
		{ID: NHAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NHAttrTunnelID, Value: objectID(tunnel)},
	})
	require.NoError(t, err)
	require.Equal(t, nbH, sw.nextHops[encapNH].Encap.Neighbor)

	before := driver.CallCount("EncapNHNeighborAttrSet")
	newMAC := mustMAC(t, "02:00:00:00:00:06")
	require.NoError(t, sw.SetNeighborAttribute(nbH, attr.Attribute{
		ID: NeighborAttrMAC, Value: attr.MACValue(newMAC),
	}))
	require.Equal(t, before+1, driver.CallCount("EncapNHNeighborAttrSet"))
}
