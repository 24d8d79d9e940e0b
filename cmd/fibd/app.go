package main

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/openfib/fibcore/pkg/collab"
	"github.com/openfib/fibcore/pkg/fib"
	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/fibconfig"
	"github.com/openfib/fibcore/pkg/npu/mock"
)

// staticCollab answers FDB/STP queries from a fixed table, standing in for
// the VLAN/FDB subsystem collab.FDBQuery and collab.STPQuery normally front.
type staticCollab struct {
	ports map[string]uint32 // "<vlan>/<mac>" -> port
}

func newStaticCollab() *staticCollab {
	return &staticCollab{ports: make(map[string]uint32)}
}

func collabKey(vlan uint16, mac net.HardwareAddr) string {
	return fmt.Sprintf("%d/%s", vlan, mac)
}

func (c *staticCollab) learn(vlan uint16, mac net.HardwareAddr, port uint32) {
	c.ports[collabKey(vlan, mac)] = port
}

func (c *staticCollab) LookupPort(vlan uint16, mac net.HardwareAddr) (uint32, bool) {
	p, ok := c.ports[collabKey(vlan, mac)]
	return p, ok
}

func (c *staticCollab) CanLearn(vlan uint16, port uint32) bool {
	return true
}

var _ collab.FDBQuery = (*staticCollab)(nil)
var _ collab.STPQuery = (*staticCollab)(nil)

// newDemoSwitch builds a Switch over a fresh mock.Driver, the way every
// fibd subcommand gets a runnable core to act against.
func newDemoSwitch() (*fib.Switch, *mock.Driver) {
	driver := mock.New()
	cfg := fibconfig.Default()
	srcMAC, _ := net.ParseMAC("02:00:00:00:00:01")
	sw := fib.NewSwitch("fibd", srcMAC, driver, newStaticCollab(), newStaticCollab(), cfg)
	return sw, driver
}

func mustMAC(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func mustPrefix(s string) netip.Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

func objectID(h fib.Handle) attr.Value {
	return attr.ObjectIDValue(uint64(h))
}
