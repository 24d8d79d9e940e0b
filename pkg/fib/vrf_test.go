package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

func TestCreateVirtualRouter_DefaultRoutes(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)
	require.Equal(t, ObjectTypeVirtualRouter, vrf.Type())
	require.Equal(t, 1, driver.CallCount("RouterCreate"))

	vr := sw.vrfs[vrf]
	require.Equal(t, 1, vr.routeTreeV4.table.Size())
	require.Equal(t, 1, vr.routeTreeV6.table.Size())
}

// P6: VRF destruction with num_rif=0 and only default routes always
// succeeds; with a live RIF it always fails with ObjectInUse and leaves the
// VRF untouched.
func TestRemoveVirtualRouter_ObjectInUseUntilRIFsGone(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 1)

	err := sw.RemoveVirtualRouter(vrf)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrObjectInUse)
	require.Contains(t, sw.vrfs, vrf)

	require.NoError(t, sw.RemoveRouterInterface(rif))
	require.NoError(t, sw.RemoveVirtualRouter(vrf))
	require.NotContains(t, sw.vrfs, vrf)
}

func TestSetVirtualRouterAttribute(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)

	newMAC := mustMAC(t, "02:00:00:00:00:09")
	err = sw.SetVirtualRouterAttribute(vrf, attr.Attribute{ID: VRFAttrSrcMAC, Value: attr.MACValue(newMAC)})
	require.NoError(t, err)
	require.Equal(t, 1, driver.CallCount("RouterAttrSet"))

	got, err := sw.GetVirtualRouterAttribute(vrf, VRFAttrSrcMAC)
	require.NoError(t, err)
	mac, ok := got.MAC()
	require.True(t, ok)
	require.Equal(t, newMAC.String(), mac.String())
}

// P8: create then remove returns the system to its initial state.
func TestCreateRemoveVirtualRouter_RoundTrip(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	before := driver.CallCount("RouterCreate")
	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)
	require.NoError(t, sw.RemoveVirtualRouter(vrf))

	require.NotContains(t, sw.vrfs, vrf)
	require.Equal(t, before+1, driver.CallCount("RouterCreate"))
	require.Equal(t, 1, driver.CallCount("RouterRemove"))
}
