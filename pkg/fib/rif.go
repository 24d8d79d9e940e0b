package fib

import (
	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// RouterInterface attribute ids.
const (
	RIFAttrVRF attr.ID = iota
	RIFAttrType
	RIFAttrPortID
	RIFAttrVlanID
	RIFAttrMAC
	RIFAttrV4Admin
	RIFAttrV6Admin
	RIFAttrMTU
	RIFAttrIPOptionsAction
	RIFAttrIsLAG
)

func rifMandatoryIf(attachType RIFAttachType) func(attr.List) bool {
	return func(attrs attr.List) bool {
		t, ok := attrs.Get(RIFAttrType)
		if !ok {
			return false
		}
		v, _ := t.S32()
		return RIFAttachType(v) == attachType
	}
}

var rifAttrTable = attr.Table{
	{ID: RIFAttrVRF, Kind: attr.KindObjectID, MandatoryOnCreate: true, CreateOnly: true},
	{ID: RIFAttrType, Kind: attr.KindS32, MandatoryOnCreate: true, CreateOnly: true},
	{ID: RIFAttrPortID, Kind: attr.KindU32, CreateOnly: true, MandatoryIf: rifMandatoryIf(RIFAttachPort)},
	{ID: RIFAttrVlanID, Kind: attr.KindU16, CreateOnly: true, MandatoryIf: rifMandatoryIf(RIFAttachVlan)},
	// Only meaningful when RIFAttrType==RIFAttachPort: PortID then names a
	// LAG id rather than a physical port, and LAG-membership-changed
	// callbacks apply to this RIF. Optional and defaults to false, since
	// most port-attached RIFs are single-port.
	{ID: RIFAttrIsLAG, Kind: attr.KindBool, CreateOnly: true},
	{ID: RIFAttrMAC, Kind: attr.KindMAC, Settable: true},
	{ID: RIFAttrV4Admin, Kind: attr.KindBool, Settable: true},
	{ID: RIFAttrV6Admin, Kind: attr.KindBool, Settable: true},
	{ID: RIFAttrMTU, Kind: attr.KindU32, Settable: true},
	{ID: RIFAttrIPOptionsAction, Kind: attr.KindS32, Settable: true},
}

const defaultRIFMTU = 1514

// CreateRouterInterface implements C4 create: requires the attachment id
// matching the RIF type via MandatoryIf and rejects the other one
// (PORT_ID/VLAN_ID mutual exclusion), rejects a duplicate (type,
// attachment, MAC), inherits unset attributes from the owning VRF, issues
// the NPU create, and — when attached to a port or LAG — moves PortID into
// routing forward-mode. A port-attached RIF whose is-lag attribute is set
// treats PortID as a LAG id instead of a physical port, and becomes a
// target of the LAG-membership-changed callbacks; only the LAG id is
// switched at create, and its member ports are switched as those callbacks
// or RIFAddLAGMembers report them.
func (s *Switch) CreateRouterInterface(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, rifAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	vrfOID, _ := attrs.Get(RIFAttrVRF)
	vrfRaw, _ := vrfOID.ObjectID()
	vrf := Handle(vrfRaw)
	vr, err := s.lookupVRF(vrf)
	if err != nil {
		return 0, err
	}

	typeVal, _ := attrs.Get(RIFAttrType)
	typeRaw, _ := typeVal.S32()
	attachType := RIFAttachType(typeRaw)

	rif := &RouterInterface{
		VRF:             vrf,
		AttachType:      attachType,
		MAC:             vr.SrcMAC,
		V4Admin:         vr.V4Admin,
		V6Admin:         vr.V6Admin,
		MTU:             defaultRIFMTU,
		IPOptionsAction: vr.IPOptionsAction,
	}
	switch attachType {
	case RIFAttachPort:
		if _, ok := attrs.Get(RIFAttrVlanID); ok {
			return 0, newError(StatusInvalidParameter, "vlan id is not valid on a port router interface")
		}
		v, _ := attrs.Get(RIFAttrPortID)
		rif.PortID, _ = v.U32()
		if lag, ok := attrs.Get(RIFAttrIsLAG); ok {
			rif.IsLAG, _ = lag.Bool()
		}
	case RIFAttachVlan:
		if _, ok := attrs.Get(RIFAttrPortID); ok {
			return 0, newError(StatusInvalidParameter, "port id is not valid on a vlan router interface")
		}
		v, _ := attrs.Get(RIFAttrVlanID)
		rif.VlanID, _ = v.U16()
	default:
		return 0, newAttrError(StatusInvalidAttrValue0, 1, "unknown rif type %d", attachType)
	}
	applyRIFAttrs(rif, attrs)

	if dup := s.findDuplicateRIF(rif); dup.Valid() {
		return 0, newError(StatusItemAlreadyExists, "router-interface already exists for this (type, attachment, mac)")
	}

	h, err := s.allocRIF.Alloc()
	if err != nil {
		return 0, err
	}
	rif.Handle = h

	isVlan := attachType == RIFAttachVlan
	if err := s.driver.RIFCreate(uint64(h), uint64(vrf), rifPortOrVlan(rif), isVlan, macArray(rif.MAC), rif.MTU); err != nil {
		s.allocRIF.Free(h)
		return 0, newError(StatusFailure, "npu rif create: %s", err)
	}

	if attachType == RIFAttachPort {
		if err := s.setPortsRouting(rif, true); err != nil {
			s.driver.RIFRemove(uint64(h))
			s.allocRIF.Free(h)
			return 0, err
		}
	}

	s.rifs[h] = rif
	vr.RIFs = append(vr.RIFs, h)

	util.WithSwitch(s.name).WithOperation("rif-create").WithField("rif", h).WithField("vrf", vrf).Info("router interface created")
	return h, nil
}

func rifPortOrVlan(rif *RouterInterface) uint32 {
	if rif.AttachType == RIFAttachVlan {
		return uint32(rif.VlanID)
	}
	return rif.PortID
}

func (s *Switch) findDuplicateRIF(rif *RouterInterface) Handle {
	for h, existing := range s.rifs {
		if existing.AttachType != rif.AttachType {
			continue
		}
		if existing.AttachType == RIFAttachPort && existing.PortID != rif.PortID {
			continue
		}
		if existing.AttachType == RIFAttachVlan && existing.VlanID != rif.VlanID {
			continue
		}
		if string(existing.MAC) != string(rif.MAC) {
			continue
		}
		return h
	}
	return 0
}

// setPortsRouting drives the single physical port or LAG id underlying rif
// into ("routing" if up, else "unknown") mode at create/remove time; once a
// LAG-attached RIF exists, its individual member ports are tracked instead
// through RIFAddLAGMembers/RIFRemoveLAGMembers as members join and leave.
func (s *Switch) setPortsRouting(rif *RouterInterface, routing bool) error {
	return s.driver.SetPortRoutingMode(rif.PortID, routing)
}

// RemoveRouterInterface implements C4 remove: refuses with ObjectInUse
// while any NH still references the RIF, then tears down NPU state and
// reverts port forwarding mode.
func (s *Switch) RemoveRouterInterface(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rif, err := s.lookupRIF(h)
	if err != nil {
		return err
	}
	if rif.RefCount != 0 {
		return newError(StatusObjectInUse, "router-interface %s has %d dependent next hops", h, rif.RefCount)
	}

	if err := s.driver.RIFRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu rif remove: %s", err)
	}
	if rif.AttachType == RIFAttachPort {
		if err := s.setPortsRouting(rif, false); err != nil {
			util.WithSwitch(s.name).WithOperation("rif-remove").WithField("rif", h).Warn("reverting port forward mode failed")
		}
	}

	vr, err := s.lookupVRF(rif.VRF)
	if err == nil {
		vr.RIFs = removeHandle(vr.RIFs, h)
	}
	delete(s.rifs, h)
	s.allocRIF.Free(h)

	util.WithSwitch(s.name).WithOperation("rif-remove").WithField("rif", h).Info("router interface removed")
	return nil
}

// SetRouterInterfaceAttribute implements C4 attribute-set.
func (s *Switch) SetRouterInterfaceAttribute(h Handle, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rif, err := s.lookupRIF(h)
	if err != nil {
		return err
	}
	if err := attr.Validate(attr.OpSet, rifAttrTable, attr.List{a}); err != nil {
		return wrapValidation(err)
	}
	raw, _ := a.Value.U64()
	if err := s.driver.RIFAttrSet(uint64(h), uint32(a.ID), raw); err != nil {
		return newError(StatusFailure, "npu rif attr set: %s", err)
	}
	applyRIFAttrs(rif, attr.List{a})
	return nil
}

func applyRIFAttrs(rif *RouterInterface, attrs attr.List) {
	for _, a := range attrs {
		switch a.ID {
		case RIFAttrMAC:
			mac, _ := a.Value.MAC()
			rif.MAC = mac
		case RIFAttrV4Admin:
			b, _ := a.Value.Bool()
			rif.V4Admin = AdminState(b)
		case RIFAttrV6Admin:
			b, _ := a.Value.Bool()
			rif.V6Admin = AdminState(b)
		case RIFAttrMTU:
			v, _ := a.Value.U32()
			rif.MTU = v
		case RIFAttrIPOptionsAction:
			v, _ := a.Value.S32()
			rif.IPOptionsAction = PacketAction(v)
		}
	}
}

// RIFAddLAGMembers implements the LAG-membership callback: newly-added
// ports are moved into routing mode when rif is attached to a LAG.
func (s *Switch) RIFAddLAGMembers(h Handle, ports []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rif, err := s.lookupRIF(h)
	if err != nil {
		return err
	}
	if !rif.IsLAG {
		return newError(StatusInvalidParameter, "router-interface %s is not LAG-attached", h)
	}
	var done []uint32
	for _, p := range ports {
		if err := s.driver.SetPortRoutingMode(p, true); err != nil {
			for _, d := range done {
				s.driver.SetPortRoutingMode(d, false)
			}
			return newError(StatusFailure, "npu port routing mode: %s", err)
		}
		done = append(done, p)
	}
	return nil
}

// RIFRemoveLAGMembers reverses RIFAddLAGMembers for departing members.
func (s *Switch) RIFRemoveLAGMembers(h Handle, ports []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rif, err := s.lookupRIF(h)
	if err != nil {
		return err
	}
	if !rif.IsLAG {
		return newError(StatusInvalidParameter, "router-interface %s is not LAG-attached", h)
	}
	for _, p := range ports {
		if err := s.driver.SetPortRoutingMode(p, false); err != nil {
			util.WithSwitch(s.name).WithOperation("rif-lag-remove").WithField("port", p).Warn("reverting port routing mode failed")
		}
	}
	return nil
}

func removeHandle(list []Handle, h Handle) []Handle {
	out := list[:0]
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}
