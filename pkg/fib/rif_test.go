package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

func TestCreateRouterInterface_PortAttachment(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	vrf, rif := createPortRIF(t, sw, 3)
	require.Equal(t, ObjectTypeRIF, rif.Type())
	require.Equal(t, 1, driver.CallCount("RIFCreate"))
	require.Equal(t, 1, driver.CallCount("SetPortRoutingMode"))

	r := sw.rifs[rif]
	require.Equal(t, vrf, r.VRF)
	require.Equal(t, uint32(3), r.PortID)
	require.Equal(t, uint32(defaultRIFMTU), r.MTU)
}

func TestCreateRouterInterface_PortTypeRequiresPortID(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)

	_, err = sw.CreateRouterInterface(attr.List{
		{ID: RIFAttrVRF, Value: objectID(vrf)},
		{ID: RIFAttrType, Value: attr.S32Value(int32(RIFAttachPort))},
		// Missing RIFAttrPortID, the attribute MandatoryIf(Port) requires.
	})
	require.Error(t, err)
	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, StatusMandatoryAttributeMissing, ferr.Status)
}

func TestCreateRouterInterface_DuplicateRejected(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)

	attrs := attr.List{
		{ID: RIFAttrVRF, Value: objectID(vrf)},
		{ID: RIFAttrType, Value: attr.S32Value(int32(RIFAttachPort))},
		{ID: RIFAttrPortID, Value: attr.U32Value(5)},
	}
	_, err = sw.CreateRouterInterface(attrs)
	require.NoError(t, err)

	_, err = sw.CreateRouterInterface(attrs)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrItemAlreadyExists)
}

func TestCreateRouterInterface_LAGAttachment(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)

	rif, err := sw.CreateRouterInterface(attr.List{
		{ID: RIFAttrVRF, Value: objectID(vrf)},
		{ID: RIFAttrType, Value: attr.S32Value(int32(RIFAttachPort))},
		{ID: RIFAttrPortID, Value: attr.U32Value(7)}, // LAG id
		{ID: RIFAttrIsLAG, Value: attr.BoolValue(true)},
	})
	require.NoError(t, err)
	require.True(t, sw.rifs[rif].IsLAG)

	sw.OnLAGMembersAdded(7, []uint32{1, 2})
	require.Equal(t, 3, driver.CallCount("SetPortRoutingMode")) // 1 at create + 2 members

	err = sw.RIFAddLAGMembers(rif, []uint32{3})
	require.NoError(t, err)

	err = sw.RIFRemoveLAGMembers(rif, []uint32{1})
	require.NoError(t, err)
}

func TestRIFAddLAGMembers_NonLAGRejected(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	err := sw.RIFAddLAGMembers(rif, []uint32{2})
	require.Error(t, err)
	require.Equal(t, StatusInvalidParameter, errStatus(t, err))
}

func errStatus(t *testing.T, err error) Status {
	t.Helper()
	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	return ferr.Status
}

// A RIF with a live dependent next hop refuses removal.
func TestRemoveRouterInterface_ObjectInUse(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	_, err := sw.CreateNextHop(attr.List{
		{ID: NHAttrType, Value: attr.S32Value(int32(NextHopTypeIP))},
		{ID: NHAttrRIF, Value: objectID(rif)},
		{ID: NHAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.2"))},
	})
	require.NoError(t, err)

	err = sw.RemoveRouterInterface(rif)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrObjectInUse)
}
