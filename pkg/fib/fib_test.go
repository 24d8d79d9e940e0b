package fib

import (
	"net"
	"net/netip"
	"testing"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/fibconfig"
	"github.com/openfib/fibcore/pkg/npu/mock"
)

// testCollab is the simplest collab.FDBQuery/STPQuery fixture: every MAC is
// unresolved on FDB and every learn is permitted, unless overridden via
// ports.
type testCollab struct {
	ports map[string]uint32
}

func newTestCollab() *testCollab { return &testCollab{ports: make(map[string]uint32)} }

func (c *testCollab) key(vlan uint16, mac net.HardwareAddr) string {
	return mac.String()
}

func (c *testCollab) set(vlan uint16, mac net.HardwareAddr, port uint32) {
	c.ports[c.key(vlan, mac)] = port
}

func (c *testCollab) LookupPort(vlan uint16, mac net.HardwareAddr) (uint32, bool) {
	p, ok := c.ports[c.key(vlan, mac)]
	return p, ok
}

func (c *testCollab) CanLearn(vlan uint16, port uint32) bool { return true }

// newTestSwitch returns a Switch over a fresh mock driver, ready for
// mutation in a test body. Callers must defer sw.Close().
func newTestSwitch(t *testing.T) (*Switch, *mock.Driver) {
	t.Helper()
	driver := mock.New()
	collab := newTestCollab()
	srcMAC, err := net.ParseMAC("02:00:00:00:00:01")
	if err != nil {
		t.Fatalf("parse mac: %v", err)
	}
	sw := NewSwitch(t.Name(), srcMAC, driver, collab, collab, fibconfig.Default())
	return sw, driver
}

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("parse mac %q: %v", s, err)
	}
	return mac
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("parse addr %q: %v", s, err)
	}
	return a
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("parse prefix %q: %v", s, err)
	}
	return p
}

func objectID(h Handle) attr.Value { return attr.ObjectIDValue(uint64(h)) }

// createPortRIF is a small helper used by most tests: build a VRF with one
// port-attached RIF.
func createPortRIF(t *testing.T, sw *Switch, port uint32) (vrf, rif Handle) {
	t.Helper()
	vrf, err := sw.CreateVirtualRouter(attr.List{})
	if err != nil {
		t.Fatalf("create vrf: %v", err)
	}
	rif, err = sw.CreateRouterInterface(attr.List{
		{ID: RIFAttrVRF, Value: objectID(vrf)},
		{ID: RIFAttrType, Value: attr.S32Value(int32(RIFAttachPort))},
		{ID: RIFAttrPortID, Value: attr.U32Value(port)},
	})
	if err != nil {
		t.Fatalf("create rif: %v", err)
	}
	return vrf, rif
}
