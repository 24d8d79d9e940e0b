package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

// S1: creating a route with a neighbor's NextHop as forward object programs
// exactly one NPU route entry carrying that forward object.
func TestCreateRoute_WithNextHopForwardObject(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")
	pfx := mustPrefix(t, "192.0.2.0/24")

	require.NoError(t, sw.CreateRoute(vrf, pfx, attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	}))

	var found bool
	for _, rs := range driver.Routes() {
		if rs.Prefix == pfx.Masked() {
			found = true
			require.Equal(t, int32(FwdNextHop), rs.View.FwdKind)
			require.Equal(t, uint64(nh), rs.View.FwdObject)
		}
	}
	require.True(t, found, "expected route %s to be programmed", pfx)
	require.Equal(t, 1, sw.nextHops[nh].RefCount)
}

func TestCreateRoute_DuplicateRejected(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")
	pfx := mustPrefix(t, "192.0.2.0/24")

	require.NoError(t, sw.CreateRoute(vrf, pfx, attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	}))
	err := sw.CreateRoute(vrf, pfx, attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrItemAlreadyExists)
}

// P10: setting a route attribute to its current value is a no-op that never
// reaches the NPU.
func TestSetRouteAttribute_NoOpShortCircuits(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")
	pfx := mustPrefix(t, "192.0.2.0/24")
	require.NoError(t, sw.CreateRoute(vrf, pfx, attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	}))

	before := driver.CallCount("RouteAttrSet")
	require.NoError(t, sw.SetRouteAttribute(vrf, pfx, attr.Attribute{
		ID: RouteAttrForwardObject, Value: objectID(nh),
	}))
	require.Equal(t, before, driver.CallCount("RouteAttrSet"))

	require.NoError(t, sw.SetRouteAttribute(vrf, pfx, attr.Attribute{
		ID: RouteAttrMetadata, Value: attr.U32Value(42),
	}))
	require.Equal(t, before+1, driver.CallCount("RouteAttrSet"))
}

// I7: removing a default route reverts it to Drop rather than unlinking it
// from the tree.
func TestRemoveRoute_DefaultRevertsToDrop(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")
	defaultPfx := mustPrefix(t, "0.0.0.0/0")

	require.NoError(t, sw.CreateRoute(vrf, defaultPfx, attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	}))
	require.NoError(t, sw.RemoveRoute(vrf, defaultPfx))

	vr := sw.vrfs[vrf]
	r, ok := vr.routeTreeV4.get(defaultPfx)
	require.True(t, ok, "default route must remain in the tree")
	require.Equal(t, FwdNone, r.FwdKind)
	require.Equal(t, 0, sw.nextHops[nh].RefCount)
}

func TestRemoveRoute_NonDefaultUnlinksFromTree(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)
	nh := createIPNH(t, sw, rif, "10.0.0.2")
	pfx := mustPrefix(t, "192.0.2.0/24")

	require.NoError(t, sw.CreateRoute(vrf, pfx, attr.List{
		{ID: RouteAttrForwardObject, Value: objectID(nh)},
	}))
	require.NoError(t, sw.RemoveRoute(vrf, pfx))

	vr := sw.vrfs[vrf]
	_, ok := vr.routeTreeV4.get(pfx)
	require.False(t, ok)
	require.Equal(t, 0, sw.nextHops[nh].RefCount)
}
