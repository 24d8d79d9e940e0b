package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/fibconfig"
	"github.com/openfib/fibcore/pkg/npu/mock"
)

// blockingSTP refuses CanLearn for any port in blocked, permitting
// everything else — used to exercise the invalid-learn flush path.
type blockingSTP struct {
	blocked map[uint32]bool
}

func (s *blockingSTP) CanLearn(vlan uint16, port uint32) bool { return !s.blocked[port] }

func createVlanRIF(t *testing.T, sw *Switch, vlan uint16) (vrf, rif Handle) {
	t.Helper()
	vrf, err := sw.CreateVirtualRouter(attr.List{})
	require.NoError(t, err)
	rif, err = sw.CreateRouterInterface(attr.List{
		{ID: RIFAttrVRF, Value: objectID(vrf)},
		{ID: RIFAttrType, Value: attr.S32Value(int32(RIFAttachVlan))},
		{ID: RIFAttrVlanID, Value: attr.U16Value(vlan)},
	})
	require.NoError(t, err)
	return vrf, rif
}

// An FDB event for a MAC with no dependent neighbor is a silent no-op.
func TestProcessFDBEvents_UnknownMACIsNoOp(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	before := driver.CallCount("NextHopAttrSet")
	sw.ProcessFDBEvents([]FDBEvent{{
		Kind: FDBLearned,
		VLAN: 10,
		MAC:  mustMAC(t, "02:00:00:00:00:99"),
		Port: 7,
	}})
	require.Equal(t, before, driver.CallCount("NextHopAttrSet"))
}

// A Learned event for a VLAN-RIF neighbor's pending MAC resolves its port
// with exactly one NPU port-flag attr-set call.
func TestProcessFDBEvents_LearnedResolvesPendingNeighborPort(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	_, rif := createVlanRIF(t, sw, 10)
	neighborMAC := mustMAC(t, "02:00:00:00:00:05")
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: NeighborAttrRIF, Value: objectID(rif)},
		{ID: NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NeighborAttrMAC, Value: attr.MACValue(neighborMAC)},
	})
	require.NoError(t, err)
	require.True(t, sw.nextHops[nbH].PendingFDBPort)

	before := driver.CallCount("NextHopAttrSet")
	sw.ProcessFDBEvents([]FDBEvent{{
		Kind: FDBLearned,
		VLAN: 10,
		MAC:  neighborMAC,
		Port: 42,
	}})

	nh := sw.nextHops[nbH]
	require.False(t, nh.PendingFDBPort)
	require.Equal(t, uint32(42), nh.PortID)
	require.Equal(t, before+1, driver.CallCount("NextHopAttrSet"))
}

// A Learned event for an STP-blocked port never creates or updates a
// neighbor; the adapter flushes the invalid entry back out instead.
func TestProcessFDBEvents_STPBlockedPortFlushesInsteadOfLearning(t *testing.T) {
	driver := mock.New()
	fdbCollab := newTestCollab()
	stp := &blockingSTP{blocked: map[uint32]bool{7: true}}
	srcMAC := mustMAC(t, "02:00:00:00:00:01")
	sw := NewSwitch(t.Name(), srcMAC, driver, fdbCollab, stp, fibconfig.Default())
	defer sw.Close()

	_, rif := createVlanRIF(t, sw, 10)
	neighborMAC := mustMAC(t, "02:00:00:00:00:05")
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: NeighborAttrRIF, Value: objectID(rif)},
		{ID: NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NeighborAttrMAC, Value: attr.MACValue(neighborMAC)},
	})
	require.NoError(t, err)
	require.True(t, sw.nextHops[nbH].PendingFDBPort)

	before := driver.CallCount("FDBFlush")
	sw.ProcessFDBEvents([]FDBEvent{{
		Kind: FDBLearned,
		VLAN: 10,
		MAC:  neighborMAC,
		Port: 7,
	}})

	nh := sw.nextHops[nbH]
	require.True(t, nh.PendingFDBPort, "blocked learn must not resolve the neighbor")
	require.Equal(t, before+1, driver.CallCount("FDBFlush"))
	require.Equal(t, 0, driver.CallCount("NextHopAttrSet"))
}

// FDBAged puts a resolved neighbor back into PendingFDBPort without
// removing the Neighbor object itself.
func TestProcessFDBEvents_AgedMarksPending(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createVlanRIF(t, sw, 10)
	neighborMAC := mustMAC(t, "02:00:00:00:00:05")
	nbH, err := sw.CreateNeighbor(attr.List{
		{ID: NeighborAttrRIF, Value: objectID(rif)},
		{ID: NeighborAttrIP, Value: attr.IPAddrValue(mustAddr(t, "10.0.0.50"))},
		{ID: NeighborAttrMAC, Value: attr.MACValue(neighborMAC)},
	})
	require.NoError(t, err)
	sw.ProcessFDBEvents([]FDBEvent{{Kind: FDBLearned, VLAN: 10, MAC: neighborMAC, Port: 42}})
	require.False(t, sw.nextHops[nbH].PendingFDBPort)

	sw.ProcessFDBEvents([]FDBEvent{{Kind: FDBAged, VLAN: 10, MAC: neighborMAC}})
	require.True(t, sw.nextHops[nbH].PendingFDBPort)
	require.Contains(t, sw.nextHops, nbH)
}
