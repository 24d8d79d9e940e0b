// Package npu defines the south-bound driver surface the fib core requires
// of a vendor NPU: one small interface per object family plus the
// dependency-engine resolution hooks this names explicitly. A
// concrete driver (pkg/npu/mock, pkg/npu/redisshadow) implements Driver;
// pkg/fib never talks to hardware or a shadow store directly.
package npu

import "net/netip"

// RouteView is the subset of route state a driver needs to program
// hardware; pkg/fib's routeDriverView fills it from a fib.Route, so
// pkg/npu never has to import pkg/fib.
type RouteView struct {
	Action       int32
	TrapPriority uint8
	Metadata     uint32
	FwdKind      int32 // 0=none/drop, 1=next hop, 2=next hop group
	FwdObject    uint64
}

// RouterDriver programs VirtualRouter hardware state.
type RouterDriver interface {
	RouterCreate(handle uint64, srcMAC [6]byte) error
	RouterRemove(handle uint64) error
	RouterAttrSet(handle uint64, attrID uint32, raw uint64) error
}

// RIFDriver programs RouterInterface hardware state.
type RIFDriver interface {
	RIFCreate(handle uint64, vrf uint64, portOrVlan uint32, isVlan bool, mac [6]byte, mtu uint32) error
	RIFRemove(handle uint64) error
	RIFAttrSet(handle uint64, attrID uint32, raw uint64) error
	// SetPortRoutingMode toggles a physical port between "routing" and
	// "unknown" forward mode as RIFs are created/removed/its LAG membership
	// changes.
	SetPortRoutingMode(portID uint32, routing bool) error
}

// NextHopDriver programs NextHop hardware state and the encap-resolution
// hooks the dependency engine invokes.
type NextHopDriver interface {
	NextHopCreate(handle uint64) error
	NextHopRemove(handle uint64) error
	NextHopAttrSet(handle uint64, attrID uint32, raw uint64, portFlag bool) error

	// EncapNHRouteResolve reprograms an encap next hop to forward via an
	// underlay route's forwarding object.
	EncapNHRouteResolve(encap uint64, route netip.Prefix, fwd uint64) error
	// EncapNHNeighborResolve reprograms an encap next hop to forward
	// directly at an underlay neighbor.
	EncapNHNeighborResolve(encap uint64, neighborMAC [6]byte, port uint32) error
	// EncapNHNeighborAttrSet pushes a MAC/port change on an already-resolved
	// underlay neighbor down to every encap NH depending on it.
	EncapNHNeighborAttrSet(encap uint64, neighborMAC [6]byte, port uint32, portFlag bool) error
}

// NextHopGroupDriver programs NextHopGroup hardware state.
type NextHopGroupDriver interface {
	NextHopGroupCreate(handle uint64) error
	NextHopGroupRemove(handle uint64) error
	NextHopGroupMemberAdd(group, member uint64, weight uint32) error
	NextHopGroupMemberRemove(group, member uint64) error
}

// RouteDriver programs Route hardware state.
type RouteDriver interface {
	RouteCreate(vrf uint64, prefix netip.Prefix, v RouteView) error
	RouteRemove(vrf uint64, prefix netip.Prefix) error
	RouteAttrSet(vrf uint64, prefix netip.Prefix, v RouteView) error
}

// FDBDriver is the narrow FDB surface the core drives directly (flush and
// the mirror write); VLAN membership and STP state are consumed only
// through pkg/collab.
type FDBDriver interface {
	FDBFlush(vlan uint16, mac [6]byte) error
	FDBRegisterCallback(vlan uint16, mac [6]byte) error
	FDBWriteEntry(vlan uint16, mac [6]byte, port uint32) error
}

// TunnelDriver programs Tunnel/TunnelTerminationEntry/TunnelMap hardware
// state.
type TunnelDriver interface {
	TunnelCreate(handle uint64) error
	TunnelRemove(handle uint64) error
	TunnelTermEntryCreate(handle uint64) error
	TunnelTermEntryRemove(handle uint64) error
	TunnelMapCreate(handle uint64) error
	TunnelMapRemove(handle uint64) error
	TunnelMapEntryCreate(handle uint64, bridgeID, vni uint32) error
	TunnelMapEntrySet(handle uint64, bridgeID, vni uint32) error
	TunnelMapEntryRemove(handle uint64) error
}

// HashDriver programs the switch-scoped hash-configuration objects that
// select ECMP/LAG member tie-break behavior.
type HashDriver interface {
	HashCreate(handle uint64, nativeFields uint32, algorithm int32) error
	HashRemove(handle uint64) error
	HashAttrSet(handle uint64, nativeFields uint32, algorithm int32) error
}

// Driver aggregates every south-bound family surface. A single concrete
// type backs all of them (pkg/npu/mock, pkg/npu/redisshadow) but pkg/fib
// only ever depends on this interface.
type Driver interface {
	RouterDriver
	RIFDriver
	NextHopDriver
	NextHopGroupDriver
	RouteDriver
	FDBDriver
	TunnelDriver
	HashDriver
}
