package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

func createIPNH(t *testing.T, sw *Switch, rif Handle, ip string) Handle {
	t.Helper()
	h, err := sw.CreateNextHop(attr.List{
		{ID: NHAttrType, Value: attr.S32Value(int32(NextHopTypeIP))},
		{ID: NHAttrRIF, Value: objectID(rif)},
		{ID: NHAttrIP, Value: attr.IPAddrValue(mustAddr(t, ip))},
	})
	require.NoError(t, err)
	return h
}

func TestCreateNextHop_IP(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")

	require.Equal(t, ObjectTypeNextHop, nh.Type())
	require.Equal(t, 1, driver.CallCount("NextHopCreate"))
	require.True(t, sw.nextHops[nh].Owner.has(ownerNextHop))
	require.Equal(t, 1, sw.rifs[rif].RefCount)
}

// P11: creating an encap next hop without tunnel_id fails with
// MandatoryAttributeMissing and no hardware side effect.
func TestCreateNextHop_EncapRequiresTunnelID(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	before := driver.CallCount("NextHopCreate")

	_, err := sw.CreateNextHop(attr.List{
		{ID: NHAttrType, Value: attr.S32Value(int32(NextHopTypeEncap))},
		{ID: NHAttrRIF, Value: objectID(rif)},
		{ID: NHAttrIP, Value: attr.IPAddrValue(mustAddr(t, "172.16.5.5"))},
	})
	require.Error(t, err)
	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, StatusMandatoryAttributeMissing, ferr.Status)
	require.Equal(t, before, driver.CallCount("NextHopCreate"))
}

// Reusing the same (RIF, IP) node as both a Neighbor and a forwarding
// NextHop shares one arena slot, per the owner-bitmask pattern.
func TestCreateNextHop_SharesNeighborSlot(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: NeighborAttrRIF, Value: objectID(rif)},
		{ID: NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.2"))},
		{ID: NeighborAttrMAC, Value: attr.MACValue(mustMAC(t, "02:00:00:00:00:02"))},
	})
	require.NoError(t, err)

	nhH := createIPNH(t, sw, rif, "10.0.0.2")
	require.Equal(t, nbH, nhH)

	nh := sw.nextHops[nhH]
	require.True(t, nh.Owner.has(ownerNeighbor))
	require.True(t, nh.Owner.has(ownerNextHop))

	// Removing the next-hop role leaves the neighbor role (and the node)
	// alive; only removing both collapses the slot.
	require.NoError(t, sw.RemoveNextHop(nhH))
	require.Contains(t, sw.nextHops, nhH)
	require.NoError(t, sw.RemoveNeighbor(nbH))
	require.NotContains(t, sw.nextHops, nbH)
}

// P1: a NextHop's ref_count is routes-referencing + group-membership weight.
func TestNextHopRefCount(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")

	require.NoError(t, sw.CreateRoute(vrf, mustPrefix(t, "192.0.2.0/24"), attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	}))
	require.Equal(t, 1, sw.nextHops[nh].RefCount)

	require.NoError(t, sw.RemoveRoute(vrf, mustPrefix(t, "192.0.2.0/24")))
	require.Equal(t, 0, sw.nextHops[nh].RefCount)
}
