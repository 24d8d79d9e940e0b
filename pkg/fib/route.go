package fib

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/npu"
	"github.com/openfib/fibcore/pkg/util"
)

// Route attribute ids.
const (
	RouteAttrPacketAction attr.ID = iota
	RouteAttrTrapPriority
	RouteAttrMetadata
	RouteAttrForwardObject
)

var routeAttrTable = attr.Table{
	{ID: RouteAttrPacketAction, Kind: attr.KindS32, Settable: true},
	// Trap priority passes validation as Settable but setRouteAttrsLocked
	// rejects it with NotImplemented: the underlying NPU has no
	// route-attr-set hook for it, so this core preserves that gap rather
	// than inventing semantics.
	{ID: RouteAttrTrapPriority, Kind: attr.KindU8, Settable: true},
	{ID: RouteAttrMetadata, Kind: attr.KindU32, Settable: true},
	{ID: RouteAttrForwardObject, Kind: attr.KindObjectID, Settable: true},
}

// routeTree is the C7 per-(VRF, address-family) route table: a
// longest-prefix-match trie over Route, backed by github.com/gaissmai/bart's
// Table. The dependency worker needs to know which routes changed since its
// last pass without a per-node version counter (bart.Table doesn't expose
// one), so this tracks an explicit dirty set of route keys instead — an
// append-only set is the simpler fit for a worker that drains-then-clears.
type routeTree struct {
	table *bart.Table[*Route]
	dirty map[netip.Prefix]struct{}
}

func newRouteTree() *routeTree {
	return &routeTree{
		table: new(bart.Table[*Route]),
		dirty: make(map[netip.Prefix]struct{}),
	}
}

func (t *routeTree) get(pfx netip.Prefix) (*Route, bool) {
	return t.table.Get(pfx.Masked())
}

func (t *routeTree) insert(r *Route) {
	t.table.Insert(r.Prefix.Masked(), r)
}

func (t *routeTree) remove(pfx netip.Prefix) {
	t.table.Delete(pfx.Masked())
	delete(t.dirty, pfx.Masked())
}

// lookupBest returns the longest-prefix match for ip. Since the
// VRF-create-time default 0/0 route is never removed, this always succeeds
// for a live VRF.
func (t *routeTree) lookupBest(ip netip.Addr) (*Route, bool) {
	return t.table.Lookup(ip)
}

// supernets yields every route that strictly contains pfx, least specific
// first — used by route-create propagation to find routes whose
// dep_encap_nh_list might now resolve to the newly-inserted, more-specific
// route instead.
func (t *routeTree) supernets(pfx netip.Prefix) func(func(netip.Prefix, *Route) bool) {
	return t.table.Supernets(pfx.Masked())
}

// markDirty adds pfx to the change-list the dependency worker drains.
func (t *routeTree) markDirty(pfx netip.Prefix) {
	t.dirty[pfx.Masked()] = struct{}{}
}

// drainDirty returns every currently-dirty prefix paired with its live Route
// (skipping prefixes removed since being marked) and clears the change-list.
func (t *routeTree) drainDirty() []*Route {
	if len(t.dirty) == 0 {
		return nil
	}
	out := make([]*Route, 0, len(t.dirty))
	for pfx := range t.dirty {
		if r, ok := t.table.Get(pfx); ok {
			out = append(out, r)
		}
		delete(t.dirty, pfx)
	}
	return out
}

// routeTreeFor returns the v4 or v6 route tree of vr for the address family
// of prefix.
func routeTreeFor(vr *VirtualRouter, prefix netip.Prefix) *routeTree {
	if prefix.Addr().Is4() {
		return vr.routeTreeV4
	}
	return vr.routeTreeV6
}

// CreateRoute implements C7 create. The VRF-create-time
// default 0/0 routes are pre-inserted, so creating with the same key as an
// existing default is handled as an attribute-set against that node rather
// than a fresh insert.
func (s *Switch) CreateRoute(vrf Handle, prefix netip.Prefix, attrs attr.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.lookupVRF(vrf)
	if err != nil {
		return err
	}
	if err := attr.Validate(attr.OpCreate, routeAttrTable, attrs); err != nil {
		return wrapValidation(err)
	}

	tree := routeTreeFor(vr, prefix)
	pfx := prefix.Masked()
	if existing, ok := tree.get(pfx); ok && existing.IsDefault {
		return s.setRouteAttrsLocked(vr, existing, attrs)
	}
	if _, ok := tree.get(pfx); ok {
		return newError(StatusItemAlreadyExists, "route %s already exists in vrf %s", pfx, vrf)
	}

	r := &Route{VRF: vrf, Prefix: pfx, Action: PacketActionForward}
	if err := applyRouteAttrs(r, attrs); err != nil {
		return err
	}

	if err := s.driver.RouteCreate(uint64(vrf), pfx, routeDriverView(r)); err != nil {
		return newError(StatusFailure, "npu route create: %s", err)
	}

	s.retainFwdObject(r)
	tree.insert(r)
	s.routeAffectedEncapNHUpdate(vr, r, routeOpCreate)
	s.signalWorker()

	util.WithOperation("route-create").WithField("vrf", vrf).WithField("prefix", pfx).Info("route created")
	return nil
}

// RemoveRoute implements C7 remove. Default routes are reverted to Drop
// rather than unlinked / invariant I7.
func (s *Switch) RemoveRoute(vrf Handle, prefix netip.Prefix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.lookupVRF(vrf)
	if err != nil {
		return err
	}
	tree := routeTreeFor(vr, prefix)
	pfx := prefix.Masked()
	r, ok := tree.get(pfx)
	if !ok {
		return newError(StatusItemNotFound, "route %s not found in vrf %s", pfx, vrf)
	}

	if err := s.driver.RouteRemove(uint64(vrf), pfx); err != nil {
		return newError(StatusFailure, "npu route remove: %s", err)
	}

	s.releaseFwdObjectByRef(r.FwdKind, r.FwdNH, r.FwdNHG, r.key())
	if r.IsDefault {
		r.Action = PacketActionDrop
		r.FwdKind = FwdNone
		r.FwdNH = 0
		r.FwdNHG = 0
		tree.insert(r)
	} else {
		tree.remove(pfx)
	}
	s.routeAffectedEncapNHUpdate(vr, r, routeOpRemove)
	s.signalWorker()

	util.WithOperation("route-remove").WithField("vrf", vrf).WithField("prefix", pfx).Info("route removed")
	return nil
}

// SetRouteAttribute implements C7 attribute-set.
func (s *Switch) SetRouteAttribute(vrf Handle, prefix netip.Prefix, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.lookupVRF(vrf)
	if err != nil {
		return err
	}
	tree := routeTreeFor(vr, prefix)
	pfx := prefix.Masked()
	r, ok := tree.get(pfx)
	if !ok {
		return newError(StatusItemNotFound, "route %s not found in vrf %s", pfx, vrf)
	}
	if a.ID == RouteAttrTrapPriority {
		return newAttrError(StatusNotImplemented, 0, "trap-priority set is not implemented")
	}
	return s.setRouteAttrsLocked(vr, r, attr.List{a})
}

func (s *Switch) setRouteAttrsLocked(vr *VirtualRouter, r *Route, attrs attr.List) error {
	if err := attr.Validate(attr.OpSet, routeAttrTable, attrs); err != nil {
		return wrapValidation(err)
	}

	scratch := *r
	if err := applyRouteAttrs(&scratch, attrs); err != nil {
		return err
	}

	// P10: a no-op set short-circuits before any NPU call. DepEncapNHs is
	// never touched by applyRouteAttrs, so comparing the remaining scalar
	// fields is sufficient to detect "no effective change".
	if scratch.Action == r.Action && scratch.TrapPriority == r.TrapPriority &&
		scratch.Metadata == r.Metadata && scratch.FwdKind == r.FwdKind &&
		scratch.FwdNH == r.FwdNH && scratch.FwdNHG == r.FwdNHG {
		return nil
	}

	if err := s.driver.RouteAttrSet(uint64(r.VRF), r.Prefix, routeDriverView(&scratch)); err != nil {
		return newError(StatusFailure, "npu route attr set: %s", err)
	}

	oldFwdKind, oldNH, oldNHG := r.FwdKind, r.FwdNH, r.FwdNHG
	key := r.key()
	*r = scratch

	if oldFwdKind != r.FwdKind || oldNH != r.FwdNH || oldNHG != r.FwdNHG {
		s.releaseFwdObjectByRef(oldFwdKind, oldNH, oldNHG, key)
		s.retainFwdObject(r)
	}

	tree := routeTreeFor(vr, r.Prefix)
	tree.insert(r)
	s.routeAttrSetAffectedEncapNHUpdate(vr, r)
	s.signalWorker()
	return nil
}

func applyRouteAttrs(r *Route, attrs attr.List) error {
	for _, a := range attrs {
		switch a.ID {
		case RouteAttrPacketAction:
			v, _ := a.Value.S32()
			r.Action = PacketAction(v)
		case RouteAttrTrapPriority:
			v, _ := a.Value.U8()
			r.TrapPriority = v
		case RouteAttrMetadata:
			v, _ := a.Value.U32()
			r.Metadata = v
		case RouteAttrForwardObject:
			oid, _ := a.Value.ObjectID()
			h := Handle(oid)
			switch h.Type() {
			case ObjectTypeNull:
				r.FwdKind = FwdNone
				r.FwdNH, r.FwdNHG = 0, 0
			case ObjectTypeNextHop:
				r.FwdKind = FwdNextHop
				r.FwdNH, r.FwdNHG = h, 0
			case ObjectTypeNextHopGroup:
				r.FwdKind = FwdNextHopGroup
				r.FwdNH, r.FwdNHG = 0, h
			default:
				return newError(StatusInvalidObjectType, "route forwarding object must be a next hop or next hop group")
			}
		}
	}
	return nil
}

func (s *Switch) retainFwdObject(r *Route) {
	switch r.FwdKind {
	case FwdNextHop:
		if nh, ok := s.nextHops[r.FwdNH]; ok {
			nh.RefCount++
			if nh.Key.Type == NextHopTypeEncap {
				s.linkEncapNHToRoute(nh, r)
			}
		}
	case FwdNextHopGroup:
		if g, ok := s.nhGroups[r.FwdNHG]; ok {
			g.RefCount++
		}
	}
}

func (s *Switch) releaseFwdObjectByRef(kind FwdObjectKind, nhH, nhgH Handle, key routeKey) {
	switch kind {
	case FwdNextHop:
		if nh, ok := s.nextHops[nhH]; ok {
			nh.RefCount--
			if nh.Key.Type == NextHopTypeEncap {
				s.unlinkEncapNHFromRoute(nh, key)
			}
		}
	case FwdNextHopGroup:
		if g, ok := s.nhGroups[nhgH]; ok {
			g.RefCount--
		}
	}
}

// routeDriverView converts a Route into the npu.RouteView the south-bound
// driver consumes, so pkg/npu never needs to import pkg/fib's arena types.
func routeDriverView(r *Route) npu.RouteView {
	v := npu.RouteView{Action: int32(r.Action), TrapPriority: r.TrapPriority, Metadata: r.Metadata, FwdKind: int32(r.FwdKind)}
	if r.FwdKind == FwdNextHop {
		v.FwdObject = uint64(r.FwdNH)
	} else if r.FwdKind == FwdNextHopGroup {
		v.FwdObject = uint64(r.FwdNHG)
	}
	return v
}
