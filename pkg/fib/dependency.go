package fib

import (
	"net/netip"

	"github.com/openfib/fibcore/pkg/util"
)

// routeOp discriminates which route-table transition triggered a
// dependency-engine pass.
type routeOp int

const (
	routeOpCreate routeOp = iota
	routeOpRemove
)

// resolveEncapNH runs the tunnel-encap resolution algorithm: look up nh's
// remote endpoint (Key.IP) against the underlay VRF's route table; if an
// underlay neighbor exists at that exact address, resolve directly at the
// neighbor (shortest path down to a MAC/port), otherwise resolve indirectly
// via the matched route's own forwarding object. Either way nh.Encap links
// are updated so a later underlay change can find and replay every
// dependent encap NH.
func (s *Switch) resolveEncapNH(vr *VirtualRouter, nh *NextHop) {
	t, ok := s.tunnels[nh.TunnelID]
	if !ok {
		return
	}
	underlay, err := s.lookupVRF(t.UnderlayVRF)
	if err != nil {
		return
	}

	s.unlinkEncapFromCurrentRoute(nh)

	for _, nbH := range underlayNHsAtIP(underlay, nh.Key.IP) {
		nb := s.nextHops[nbH]
		if nb == nil || !nb.Owner.has(ownerNeighbor) {
			continue
		}
		nh.Encap.Neighbor = nbH
		nh.Encap.Resolved = true
		if err := s.driver.EncapNHNeighborResolve(uint64(nh.Handle), macArray(nb.MAC), nb.PortID); err != nil {
			util.WithSwitch(s.name).WithOperation("encap-resolve").WithField("nexthop", nh.Handle).Warn("neighbor resolve failed")
		}
		return
	}

	var route *Route
	var rok bool
	if nh.Key.IP.Is4() {
		route, rok = underlay.routeTreeV4.lookupBest(nh.Key.IP)
	} else {
		route, rok = underlay.routeTreeV6.lookupBest(nh.Key.IP)
	}
	if !rok {
		nh.Encap.Resolved = false
		return
	}

	nh.Encap.Neighbor = 0
	nh.Encap.LPMRoute = route.key()
	nh.Encap.Resolved = true
	route.DepEncapNHs = appendUnique(route.DepEncapNHs, nh.Handle)

	fwdObj := routeFwdObjectHandle(route)
	if err := s.driver.EncapNHRouteResolve(uint64(nh.Handle), route.Prefix, uint64(fwdObj)); err != nil {
		util.WithSwitch(s.name).WithOperation("encap-resolve").WithField("nexthop", nh.Handle).Warn("route resolve failed")
	}
	if route.FwdKind == FwdNextHopGroup {
		if g, ok := s.nhGroups[route.FwdNHG]; ok {
			g.DepEncapNHs = appendUnique(g.DepEncapNHs, nh.Handle)
		}
	}
}

func routeFwdObjectHandle(r *Route) Handle {
	switch r.FwdKind {
	case FwdNextHop:
		return r.FwdNH
	case FwdNextHopGroup:
		return r.FwdNHG
	default:
		return 0
	}
}

// unlinkEncapFromCurrentRoute drops nh from whichever underlay route/group
// dependency list it is currently linked into, in preparation for a fresh
// resolution pass.
func (s *Switch) unlinkEncapFromCurrentRoute(nh *NextHop) {
	if !nh.Encap.Resolved {
		return
	}
	if t, ok := s.tunnels[nh.TunnelID]; ok {
		if underlay, err := s.lookupVRF(t.UnderlayVRF); err == nil {
			tree := routeTreeFor(underlay, nh.Encap.LPMRoute.Prefix)
			if route, ok := tree.get(nh.Encap.LPMRoute.Prefix); ok {
				route.DepEncapNHs = removeHandle(route.DepEncapNHs, nh.Handle)
				if route.FwdKind == FwdNextHopGroup {
					if g, ok := s.nhGroups[route.FwdNHG]; ok {
						g.DepEncapNHs = removeHandle(g.DepEncapNHs, nh.Handle)
					}
				}
			}
		}
	}
	nh.Encap.Neighbor = 0
	nh.Encap.LPMRoute = routeKey{}
	nh.Encap.Resolved = false
}

// teardownEncapNH releases every dependency link an encap NextHop holds
// before it is removed: its underlay route/group membership and the list of
// overlay routes forwarding via it.
func (s *Switch) teardownEncapNH(nh *NextHop) {
	s.unlinkEncapFromCurrentRoute(nh)
	nh.Encap.DepRoutes = nil
}

// linkEncapNHToRoute records that overlay route r now forwards via encap
// next hop nh, the reverse-lookup list a future underlay change on nh would
// need to find every dependent overlay route.
func (s *Switch) linkEncapNHToRoute(nh *NextHop, r *Route) {
	key := r.key()
	for _, k := range nh.Encap.DepRoutes {
		if k == key {
			return
		}
	}
	nh.Encap.DepRoutes = append(nh.Encap.DepRoutes, key)
}

// unlinkEncapNHFromRoute reverses linkEncapNHToRoute for the route key
// previously pointing at nh.
func (s *Switch) unlinkEncapNHFromRoute(nh *NextHop, key routeKey) {
	out := nh.Encap.DepRoutes[:0]
	for _, k := range nh.Encap.DepRoutes {
		if k != key {
			out = append(out, k)
		}
	}
	nh.Encap.DepRoutes = out
}

// routeAffectedEncapNHUpdate implements the route-create/remove propagation
// this describes: a newly-created, more-specific route may steal
// resolution away from a less-specific supernet that one or more encap NHs
// currently depend on (walked via routeTree.supernets); a removed route
// falls its own dependents back to whatever supernet now matches best.
func (s *Switch) routeAffectedEncapNHUpdate(vr *VirtualRouter, r *Route, op routeOp) {
	tree := routeTreeFor(vr, r.Prefix)
	tree.markDirty(r.Prefix)

	switch op {
	case routeOpCreate:
		for _, sup := range tree.supernets(r.Prefix) {
			for _, nhH := range append([]Handle(nil), sup.DepEncapNHs...) {
				nh, ok := s.nextHops[nhH]
				if !ok || !r.Prefix.Contains(nh.Key.IP) {
					continue
				}
				if t, ok := s.tunnels[nh.TunnelID]; ok {
					if tvr, err := s.lookupVRF(t.UnderlayVRF); err == nil {
						s.resolveEncapNH(tvr, nh)
					}
				}
			}
		}
	case routeOpRemove:
		for _, nhH := range append([]Handle(nil), r.DepEncapNHs...) {
			nh, ok := s.nextHops[nhH]
			if !ok {
				continue
			}
			if t, ok := s.tunnels[nh.TunnelID]; ok {
				if tvr, err := s.lookupVRF(t.UnderlayVRF); err == nil {
					s.resolveEncapNH(tvr, nh)
				}
			}
		}
	}
}

// routeAttrSetAffectedEncapNHUpdate implements the attribute-set propagation
// this describes: a route whose forwarding object changed must
// push that change down to every encap NH currently resolved through it.
func (s *Switch) routeAttrSetAffectedEncapNHUpdate(vr *VirtualRouter, r *Route) {
	tree := routeTreeFor(vr, r.Prefix)
	tree.markDirty(r.Prefix)

	fwdObj := routeFwdObjectHandle(r)
	for _, nhH := range r.DepEncapNHs {
		nh, ok := s.nextHops[nhH]
		if !ok {
			continue
		}
		if err := s.driver.EncapNHRouteResolve(uint64(nh.Handle), r.Prefix, uint64(fwdObj)); err != nil {
			util.WithSwitch(s.name).WithOperation("encap-route-attr-replay").WithField("nexthop", nhH).Warn("route resolve replay failed")
		}
	}
}

// underlayNeighborCreated implements the neighbor-create propagation
// this describes: any encap NH whose remote endpoint exactly
// equals the newly-learned neighbor's address can now resolve directly at
// it instead of via the LPM route it previously depended on.
func (s *Switch) underlayNeighborCreated(vr *VirtualRouter, ip netip.Addr) {
	for _, nh := range s.nextHops {
		if nh.Key.Type != NextHopTypeEncap || nh.Key.IP != ip {
			continue
		}
		t, ok := s.tunnels[nh.TunnelID]
		if !ok || t.UnderlayVRF != vr.Handle {
			continue
		}
		s.resolveEncapNH(vr, nh)
	}
}

// underlayNeighborRemoved is the mirror of underlayNeighborCreated: encap
// NHs resolved directly at the departing neighbor fall back to the LPM
// route.
func (s *Switch) underlayNeighborRemoved(vr *VirtualRouter, ip netip.Addr) {
	s.underlayNeighborCreated(vr, ip)
}

// replayEncapDepsOf re-resolves every encap NH currently resolved directly
// at neighbor nh (an attribute change such as a MAC move needs to push a
// fresh EncapNHNeighborAttrSet to each of them).
func (s *Switch) replayEncapDepsOf(neighbor *NextHop) {
	for _, nh := range s.nextHops {
		if nh.Key.Type != NextHopTypeEncap || nh.Encap.Neighbor != neighbor.Handle {
			continue
		}
		if err := s.driver.EncapNHNeighborAttrSet(uint64(nh.Handle), macArray(neighbor.MAC), neighbor.PortID, true); err != nil {
			util.WithSwitch(s.name).WithOperation("encap-neighbor-attr-replay").WithField("nexthop", nh.Handle).Warn("neighbor attr replay failed")
		}
	}
}

// replayEncapDepsOfGroup re-resolves every encap NH currently resolved via
// group g after a membership change, since the group's effective forwarding
// behavior may have shifted.
func (s *Switch) replayEncapDepsOfGroup(g *NextHopGroup) {
	for _, nhH := range append([]Handle(nil), g.DepEncapNHs...) {
		nh, ok := s.nextHops[nhH]
		if !ok {
			continue
		}
		if err := s.driver.EncapNHRouteResolve(uint64(nh.Handle), nh.Encap.LPMRoute.Prefix, uint64(g.Handle)); err != nil {
			util.WithSwitch(s.name).WithOperation("encap-group-replay").WithField("nexthop", nhH).Warn("group resolve replay failed")
		}
	}
}
