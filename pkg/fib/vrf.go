package fib

import (
	"net"
	"net/netip"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// VirtualRouter attribute ids.
const (
	VRFAttrSrcMAC attr.ID = iota
	VRFAttrV4Admin
	VRFAttrV6Admin
	VRFAttrIPOptionsAction
	VRFAttrTTLViolationAction
)

var vrfAttrTable = attr.Table{
	{ID: VRFAttrSrcMAC, Kind: attr.KindMAC, Settable: true},
	{ID: VRFAttrV4Admin, Kind: attr.KindBool, Settable: true},
	{ID: VRFAttrV6Admin, Kind: attr.KindBool, Settable: true},
	{ID: VRFAttrIPOptionsAction, Kind: attr.KindS32, Settable: true},
	{ID: VRFAttrTTLViolationAction, Kind: attr.KindS32, Settable: true},
}

var (
	defaultV4Route = netip.MustParsePrefix("0.0.0.0/0")
	defaultV6Route = netip.MustParsePrefix("::/0")
)

// CreateVirtualRouter implements C3 create: allocates a
// hardware id, instantiates the VRF's nh_tree and route_tree, and inserts
// the default v4/v6 drop routes invariant I7 requires of every live VRF.
func (s *Switch) CreateVirtualRouter(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, vrfAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	h, err := s.allocVRF.Alloc()
	if err != nil {
		return 0, err
	}

	vr := &VirtualRouter{
		Handle:  h,
		SrcMAC:  s.switchSrcMAC,
		V4Admin: AdminUp,
		V6Admin: AdminUp,

		nhByKey:     make(map[nhKey]Handle),
		nhByIP:      make(map[netip.Addr][]Handle),
		routeTreeV4: newRouteTree(),
		routeTreeV6: newRouteTree(),
	}
	if mac, ok := attrs.Get(VRFAttrSrcMAC); ok {
		m, _ := mac.MAC()
		vr.SrcMAC = m
	}
	applyVRFAttrs(vr, attrs)

	if err := s.driver.RouterCreate(uint64(h), macArray(vr.SrcMAC)); err != nil {
		s.allocVRF.Free(h)
		return 0, newError(StatusFailure, "npu router create: %s", err)
	}

	vr.routeTreeV4.insert(&Route{VRF: h, Prefix: defaultV4Route, Action: PacketActionDrop, FwdKind: FwdNone, IsDefault: true})
	vr.routeTreeV6.insert(&Route{VRF: h, Prefix: defaultV6Route, Action: PacketActionDrop, FwdKind: FwdNone, IsDefault: true})

	s.vrfs[h] = vr
	util.WithSwitch(s.name).WithOperation("vrf-create").WithField("vrf", h).Info("virtual router created")
	return h, nil
}

// RemoveVirtualRouter implements C3 remove: refuses with ObjectInUse unless
// num_rif=0 and both trees hold only the default routes (invariant I6),
// then removes the defaults and the hardware object.
func (s *Switch) RemoveVirtualRouter(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.lookupVRF(h)
	if err != nil {
		return err
	}
	if len(vr.RIFs) != 0 {
		return newError(StatusObjectInUse, "virtual-router %s has %d attached RIFs", h, len(vr.RIFs))
	}
	if len(vr.nhByKey) != 0 {
		return newError(StatusObjectInUse, "virtual-router %s has live next hops", h)
	}
	if vr.routeTreeV4.table.Size() > 1 || vr.routeTreeV6.table.Size() > 1 {
		return newError(StatusObjectInUse, "virtual-router %s has non-default routes", h)
	}

	if err := s.driver.RouterRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu router remove: %s", err)
	}

	vr.routeTreeV4.remove(defaultV4Route)
	vr.routeTreeV6.remove(defaultV6Route)
	delete(s.vrfs, h)
	s.allocVRF.Free(h)

	util.WithSwitch(s.name).WithOperation("vrf-remove").WithField("vrf", h).Info("virtual router removed")
	return nil
}

// SetVirtualRouterAttribute implements C3 attribute-set.
func (s *Switch) SetVirtualRouterAttribute(h Handle, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.lookupVRF(h)
	if err != nil {
		return err
	}
	if err := attr.Validate(attr.OpSet, vrfAttrTable, attr.List{a}); err != nil {
		return wrapValidation(err)
	}
	raw, _ := a.Value.U64()
	if err := s.driver.RouterAttrSet(uint64(h), uint32(a.ID), raw); err != nil {
		return newError(StatusFailure, "npu router attr set: %s", err)
	}
	applyVRFAttrs(vr, attr.List{a})
	return nil
}

// GetVirtualRouterAttribute implements C3 get.
func (s *Switch) GetVirtualRouterAttribute(h Handle, id attr.ID) (attr.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vr, err := s.lookupVRF(h)
	if err != nil {
		return attr.Value{}, err
	}
	switch id {
	case VRFAttrSrcMAC:
		return attr.MACValue(vr.SrcMAC), nil
	case VRFAttrV4Admin:
		return attr.BoolValue(bool(vr.V4Admin)), nil
	case VRFAttrV6Admin:
		return attr.BoolValue(bool(vr.V6Admin)), nil
	case VRFAttrIPOptionsAction:
		return attr.S32Value(int32(vr.IPOptionsAction)), nil
	case VRFAttrTTLViolationAction:
		return attr.S32Value(int32(vr.TTLViolationAction)), nil
	default:
		return attr.Value{}, newError(StatusInvalidParameter, "unknown virtual-router attribute %d", id)
	}
}

func applyVRFAttrs(vr *VirtualRouter, attrs attr.List) {
	for _, a := range attrs {
		switch a.ID {
		case VRFAttrSrcMAC:
			mac, _ := a.Value.MAC()
			vr.SrcMAC = mac
		case VRFAttrV4Admin:
			b, _ := a.Value.Bool()
			vr.V4Admin = AdminState(b)
		case VRFAttrV6Admin:
			b, _ := a.Value.Bool()
			vr.V6Admin = AdminState(b)
		case VRFAttrIPOptionsAction:
			v, _ := a.Value.S32()
			vr.IPOptionsAction = PacketAction(v)
		case VRFAttrTTLViolationAction:
			v, _ := a.Value.S32()
			vr.TTLViolationAction = PacketAction(v)
		}
	}
}

func macArray(mac net.HardwareAddr) [6]byte {
	var a [6]byte
	copy(a[:], mac)
	return a
}
