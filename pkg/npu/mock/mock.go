// Package mock is an in-memory fake of npu.Driver for tests and the
// cmd/fibd demo CLI. It keeps a flat map per object family and never fails
// a create or remove call; attr-set, encap-resolve and group-member calls
// fail only when their target handle is unknown (RouteAttrSet instead
// records a route it has not seen). It trades realism for determinism:
// callers exercising error paths (ObjectInUse, InsufficientResources, ...)
// get those from pkg/fib itself, not from this driver.
package mock

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/dgryski/go-rendezvous"

	"github.com/openfib/fibcore/pkg/npu"
)

type routerState struct {
	srcMAC [6]byte
	attrs  map[uint32]uint64
}

type rifState struct {
	vrf        uint64
	portOrVlan uint32
	isVlan     bool
	mac        [6]byte
	mtu        uint32
	routing    bool
	attrs      map[uint32]uint64
}

type nextHopState struct {
	attrs map[uint32]uint64
	// encapResolvedVia is "route" or "neighbor", empty if unresolved.
	encapResolvedVia string
	encapRoute       netip.Prefix
	encapFwd         uint64
	encapMAC         [6]byte
	encapPort        uint32
}

type nhGroupState struct {
	members map[uint64]uint32 // member handle -> weight
	order   []uint64          // insertion order, for deterministic rendezvous candidate set
}

type routeState struct {
	view npu.RouteView
}

type tunnelMapEntryState struct {
	bridgeID uint32
	vni      uint32
}

type hashState struct {
	nativeFields uint32
	algorithm    int32
}

// Driver is the in-memory fake. The zero value is not usable; use New.
type Driver struct {
	mu sync.Mutex

	routers  map[uint64]*routerState
	rifs     map[uint64]*rifState
	nexthops map[uint64]*nextHopState
	groups   map[uint64]*nhGroupState
	routes   map[routeKey]*routeState
	fdb      map[fdbKey]uint32
	tunnels  map[uint64]struct{}
	termEnts map[uint64]struct{}
	tunMaps  map[uint64]struct{}
	mapEnts  map[uint64]*tunnelMapEntryState
	hashes   map[uint64]*hashState

	// calls counts every method invocation by name, for test assertions.
	calls map[string]int
}

type routeKey struct {
	vrf    uint64
	prefix netip.Prefix
}

type fdbKey struct {
	vlan uint16
	mac  [6]byte
}

// New returns an empty Driver ready to back a fib.Switch.
func New() *Driver {
	return &Driver{
		routers:  make(map[uint64]*routerState),
		rifs:     make(map[uint64]*rifState),
		nexthops: make(map[uint64]*nextHopState),
		groups:   make(map[uint64]*nhGroupState),
		routes:   make(map[routeKey]*routeState),
		fdb:      make(map[fdbKey]uint32),
		tunnels:  make(map[uint64]struct{}),
		termEnts: make(map[uint64]struct{}),
		tunMaps:  make(map[uint64]struct{}),
		mapEnts:  make(map[uint64]*tunnelMapEntryState),
		hashes:   make(map[uint64]*hashState),
		calls:    make(map[string]int),
	}
}

func (d *Driver) record(name string) {
	d.calls[name]++
}

// RouteSnapshot is one programmed route entry, for introspection (tests,
// cmd/fibd's "demo" and "route add" commands) the way sonic.AsicDBClient.GetRouteASIC reads
// ASIC_DB state back out.
type RouteSnapshot struct {
	VRF    uint64
	Prefix netip.Prefix
	View   npu.RouteView
}

// Routes returns every route currently programmed, in unspecified order.
func (d *Driver) Routes() []RouteSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RouteSnapshot, 0, len(d.routes))
	for k, v := range d.routes {
		out = append(out, RouteSnapshot{VRF: k.vrf, Prefix: k.prefix, View: v.view})
	}
	return out
}

// NextHopSnapshot is one programmed next hop's encap-resolution state.
type NextHopSnapshot struct {
	Handle       uint64
	ResolvedVia  string // "", "route", or "neighbor"
	EncapRoute   netip.Prefix
	EncapFwd     uint64
	EncapMAC     [6]byte
	EncapPort    uint32
}

// NextHops returns every programmed next hop's current encap-resolution
// state, in unspecified order.
func (d *Driver) NextHops() []NextHopSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]NextHopSnapshot, 0, len(d.nexthops))
	for h, nh := range d.nexthops {
		out = append(out, NextHopSnapshot{
			Handle:      h,
			ResolvedVia: nh.encapResolvedVia,
			EncapRoute:  nh.encapRoute,
			EncapFwd:    nh.encapFwd,
			EncapMAC:    nh.encapMAC,
			EncapPort:   nh.encapPort,
		})
	}
	return out
}

// GroupMembers returns the current member->weight map of group, for
// introspection.
func (d *Driver) GroupMembers(group uint64) map[uint64]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[group]
	if !ok {
		return nil
	}
	out := make(map[uint64]uint32, len(g.members))
	for m, w := range g.members {
		out[m] = w
	}
	return out
}

// CallCount returns how many times method has been invoked, for test
// assertions (e.g. "was RouteAttrSet replayed by the dependency worker").
func (d *Driver) CallCount(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

// --- RouterDriver ---

func (d *Driver) RouterCreate(handle uint64, srcMAC [6]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RouterCreate")
	d.routers[handle] = &routerState{srcMAC: srcMAC, attrs: make(map[uint32]uint64)}
	return nil
}

func (d *Driver) RouterRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RouterRemove")
	delete(d.routers, handle)
	return nil
}

func (d *Driver) RouterAttrSet(handle uint64, attrID uint32, raw uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RouterAttrSet")
	r, ok := d.routers[handle]
	if !ok {
		return fmt.Errorf("mock: router %#x not found", handle)
	}
	r.attrs[attrID] = raw
	return nil
}

// --- RIFDriver ---

func (d *Driver) RIFCreate(handle uint64, vrf uint64, portOrVlan uint32, isVlan bool, mac [6]byte, mtu uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RIFCreate")
	d.rifs[handle] = &rifState{vrf: vrf, portOrVlan: portOrVlan, isVlan: isVlan, mac: mac, mtu: mtu, attrs: make(map[uint32]uint64)}
	return nil
}

func (d *Driver) RIFRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RIFRemove")
	delete(d.rifs, handle)
	return nil
}

func (d *Driver) RIFAttrSet(handle uint64, attrID uint32, raw uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RIFAttrSet")
	rif, ok := d.rifs[handle]
	if !ok {
		return fmt.Errorf("mock: rif %#x not found", handle)
	}
	rif.attrs[attrID] = raw
	return nil
}

func (d *Driver) SetPortRoutingMode(portID uint32, routing bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetPortRoutingMode")
	for _, rif := range d.rifs {
		if !rif.isVlan && rif.portOrVlan == portID {
			rif.routing = routing
		}
	}
	return nil
}

// --- NextHopDriver ---

func (d *Driver) NextHopCreate(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopCreate")
	d.nexthops[handle] = &nextHopState{attrs: make(map[uint32]uint64)}
	return nil
}

func (d *Driver) NextHopRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopRemove")
	delete(d.nexthops, handle)
	return nil
}

func (d *Driver) NextHopAttrSet(handle uint64, attrID uint32, raw uint64, portFlag bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopAttrSet")
	nh, ok := d.nexthops[handle]
	if !ok {
		return fmt.Errorf("mock: next hop %#x not found", handle)
	}
	nh.attrs[attrID] = raw
	return nil
}

func (d *Driver) EncapNHRouteResolve(encap uint64, route netip.Prefix, fwd uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EncapNHRouteResolve")
	nh, ok := d.nexthops[encap]
	if !ok {
		return fmt.Errorf("mock: encap next hop %#x not found", encap)
	}
	nh.encapResolvedVia = "route"
	nh.encapRoute = route
	nh.encapFwd = fwd
	return nil
}

func (d *Driver) EncapNHNeighborResolve(encap uint64, neighborMAC [6]byte, port uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EncapNHNeighborResolve")
	nh, ok := d.nexthops[encap]
	if !ok {
		return fmt.Errorf("mock: encap next hop %#x not found", encap)
	}
	nh.encapResolvedVia = "neighbor"
	nh.encapMAC = neighborMAC
	nh.encapPort = port
	return nil
}

func (d *Driver) EncapNHNeighborAttrSet(encap uint64, neighborMAC [6]byte, port uint32, portFlag bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("EncapNHNeighborAttrSet")
	nh, ok := d.nexthops[encap]
	if !ok {
		return fmt.Errorf("mock: encap next hop %#x not found", encap)
	}
	nh.encapMAC = neighborMAC
	nh.encapPort = port
	return nil
}

// --- NextHopGroupDriver ---

func (d *Driver) NextHopGroupCreate(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopGroupCreate")
	d.groups[handle] = &nhGroupState{members: make(map[uint64]uint32)}
	return nil
}

func (d *Driver) NextHopGroupRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopGroupRemove")
	delete(d.groups, handle)
	return nil
}

func (d *Driver) NextHopGroupMemberAdd(group, member uint64, weight uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopGroupMemberAdd")
	g, ok := d.groups[group]
	if !ok {
		return fmt.Errorf("mock: next-hop-group %#x not found", group)
	}
	if _, exists := g.members[member]; !exists {
		g.order = append(g.order, member)
	}
	g.members[member] = weight
	return nil
}

func (d *Driver) NextHopGroupMemberRemove(group, member uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("NextHopGroupMemberRemove")
	g, ok := d.groups[group]
	if !ok {
		return fmt.Errorf("mock: next-hop-group %#x not found", group)
	}
	delete(g.members, member)
	for i, m := range g.order {
		if m == member {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// SelectGroupMember resolves one ECMP/WCMP member of group for flowKey
// (e.g. a 5-tuple hash) using weighted rendezvous (highest-random-weight)
// hashing: the member whose combined (flowKey, handle) score is greatest
// wins, so membership churn elsewhere in the group only reassigns the
// flows that hashed to the removed/added member, not the whole group.
// This is the ECMP selection behavior a real ASIC's hash-distribution
// table approximates; the fake driver exposes it so tests can assert flow
// stickiness across membership changes.
func (d *Driver) SelectGroupMember(group uint64, flowKey string) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[group]
	if !ok || len(g.order) == 0 {
		return 0, false
	}

	nodes := make([]string, 0, len(g.order))
	for _, m := range g.order {
		for i := uint32(0); i < g.members[m]; i++ {
			nodes = append(nodes, fmt.Sprintf("%d#%d", m, i))
		}
	}
	hasher := rendezvous.New(nodes, hashNode)
	winner := hasher.Lookup(flowKey)
	var member uint64
	fmt.Sscanf(winner, "%d#", &member)
	return member, true
}

func hashNode(s string) uint64 {
	return xxhashString(s)
}

// --- RouteDriver ---

func (d *Driver) RouteCreate(vrf uint64, prefix netip.Prefix, v npu.RouteView) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RouteCreate")
	d.routes[routeKey{vrf, prefix}] = &routeState{view: v}
	return nil
}

func (d *Driver) RouteRemove(vrf uint64, prefix netip.Prefix) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RouteRemove")
	delete(d.routes, routeKey{vrf, prefix})
	return nil
}

func (d *Driver) RouteAttrSet(vrf uint64, prefix netip.Prefix, v npu.RouteView) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("RouteAttrSet")
	rs, ok := d.routes[routeKey{vrf, prefix}]
	if !ok {
		d.routes[routeKey{vrf, prefix}] = &routeState{view: v}
		return nil
	}
	rs.view = v
	return nil
}

// --- FDBDriver ---

func (d *Driver) FDBFlush(vlan uint16, mac [6]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FDBFlush")
	delete(d.fdb, fdbKey{vlan, mac})
	return nil
}

func (d *Driver) FDBRegisterCallback(vlan uint16, mac [6]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FDBRegisterCallback")
	return nil
}

func (d *Driver) FDBWriteEntry(vlan uint16, mac [6]byte, port uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("FDBWriteEntry")
	d.fdb[fdbKey{vlan, mac}] = port
	return nil
}

// --- TunnelDriver ---

func (d *Driver) TunnelCreate(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelCreate")
	d.tunnels[handle] = struct{}{}
	return nil
}

func (d *Driver) TunnelRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelRemove")
	delete(d.tunnels, handle)
	return nil
}

func (d *Driver) TunnelTermEntryCreate(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelTermEntryCreate")
	d.termEnts[handle] = struct{}{}
	return nil
}

func (d *Driver) TunnelTermEntryRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelTermEntryRemove")
	delete(d.termEnts, handle)
	return nil
}

func (d *Driver) TunnelMapCreate(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelMapCreate")
	d.tunMaps[handle] = struct{}{}
	return nil
}

func (d *Driver) TunnelMapRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelMapRemove")
	delete(d.tunMaps, handle)
	return nil
}

func (d *Driver) TunnelMapEntryCreate(handle uint64, bridgeID, vni uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelMapEntryCreate")
	d.mapEnts[handle] = &tunnelMapEntryState{bridgeID: bridgeID, vni: vni}
	return nil
}

func (d *Driver) TunnelMapEntrySet(handle uint64, bridgeID, vni uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelMapEntrySet")
	e, ok := d.mapEnts[handle]
	if !ok {
		return fmt.Errorf("mock: tunnel map entry %#x not found", handle)
	}
	e.bridgeID, e.vni = bridgeID, vni
	return nil
}

func (d *Driver) TunnelMapEntryRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("TunnelMapEntryRemove")
	delete(d.mapEnts, handle)
	return nil
}

// --- HashDriver ---

func (d *Driver) HashCreate(handle uint64, nativeFields uint32, algorithm int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("HashCreate")
	d.hashes[handle] = &hashState{nativeFields: nativeFields, algorithm: algorithm}
	return nil
}

func (d *Driver) HashRemove(handle uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("HashRemove")
	delete(d.hashes, handle)
	return nil
}

func (d *Driver) HashAttrSet(handle uint64, nativeFields uint32, algorithm int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("HashAttrSet")
	h, ok := d.hashes[handle]
	if !ok {
		return fmt.Errorf("mock: hash %#x not found", handle)
	}
	h.nativeFields, h.algorithm = nativeFields, algorithm
	return nil
}

var _ npu.Driver = (*Driver)(nil)
