package fib

import (
	"net/netip"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// NextHop attribute ids.
const (
	NHAttrType attr.ID = iota
	NHAttrRIF
	NHAttrIP
	NHAttrTunnelID
	NHAttrPacketAction
	NHAttrMetadata
	NHAttrNoHostRoute
)

func nhMandatoryIf(types ...NextHopType) func(attr.List) bool {
	return func(attrs attr.List) bool {
		t, ok := attrs.Get(NHAttrType)
		if !ok {
			return false
		}
		v, _ := t.S32()
		for _, want := range types {
			if NextHopType(v) == want {
				return true
			}
		}
		return false
	}
}

var nhAttrTable = attr.Table{
	{ID: NHAttrType, Kind: attr.KindS32, MandatoryOnCreate: true, CreateOnly: true},
	{ID: NHAttrRIF, Kind: attr.KindObjectID, MandatoryOnCreate: true, CreateOnly: true},
	{ID: NHAttrIP, Kind: attr.KindIPAddr, CreateOnly: true, MandatoryIf: nhMandatoryIf(NextHopTypeIP, NextHopTypeEncap)},
	{ID: NHAttrTunnelID, Kind: attr.KindObjectID, CreateOnly: true, MandatoryIf: nhMandatoryIf(NextHopTypeEncap)},
	{ID: NHAttrPacketAction, Kind: attr.KindS32, Settable: true},
	{ID: NHAttrMetadata, Kind: attr.KindU32, Settable: true},
	{ID: NHAttrNoHostRoute, Kind: attr.KindBool, Settable: true},
}

// CreateNextHop implements the C5 "IP next-hop create" path:
// on a key collision with an existing NextHop owner, fails with
// ItemAlreadyExists; otherwise reuses a Neighbor-only node or mints a fresh
// one. Encap next hops additionally require tunnel_id and run the
// underlay-resolution algorithm once minted.
func (s *Switch) CreateNextHop(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, nhAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	typeVal, _ := attrs.Get(NHAttrType)
	typeRaw, _ := typeVal.S32()
	nhType := NextHopType(typeRaw)

	rifOID, _ := attrs.Get(NHAttrRIF)
	rifRaw, _ := rifOID.ObjectID()
	rifH := Handle(rifRaw)
	rif, err := s.lookupRIF(rifH)
	if err != nil {
		return 0, err
	}
	vr, err := s.lookupVRF(rif.VRF)
	if err != nil {
		return 0, err
	}

	ipVal, _ := attrs.Get(NHAttrIP)
	ip, _ := ipVal.IPAddr()

	var tunnelID Handle
	if nhType == NextHopTypeEncap {
		tVal, ok := attrs.Get(NHAttrTunnelID)
		if !ok {
			return 0, newAttrError(StatusMandatoryAttributeMissing, 3, "tunnel_id is mandatory for encap next hops")
		}
		raw, _ := tVal.ObjectID()
		tunnelID = Handle(raw)
		if _, err := s.lookupTunnel(tunnelID); err != nil {
			return 0, err
		}
	}

	key := nhKey{Type: nhType, RIF: rifH, IP: ip, TunnelType: 0}

	if existingH, ok := vr.nhByKey[key]; ok {
		nh := s.nextHops[existingH]
		if nh.Owner.has(ownerNextHop) {
			return 0, newError(StatusItemAlreadyExists, "next hop already exists for this key")
		}
		if err := s.activateNextHopOwner(nh, attrs); err != nil {
			return 0, err
		}
		return existingH, nil
	}

	h, err := s.allocNextHop.Alloc()
	if err != nil {
		return 0, err
	}
	nh := &NextHop{
		Handle:   h,
		Key:      key,
		VRF:      rif.VRF,
		PortID:   rif.PortID,
		TunnelID: tunnelID,
		Groups:   make(map[Handle]uint32),
	}
	applyNHAttrs(nh, attrs)
	nh.Owner |= ownerNextHop
	rif.RefCount++

	if err := s.driver.NextHopCreate(uint64(h)); err != nil {
		s.allocNextHop.Free(h)
		rif.RefCount--
		return 0, newError(StatusFailure, "npu next-hop create: %s", err)
	}

	vr.nhByKey[key] = h
	vr.nhByIP[ip] = append(vr.nhByIP[ip], h)
	s.nextHops[h] = nh

	if nhType == NextHopTypeEncap {
		s.resolveEncapNH(vr, nh)
		if t, ok := s.tunnels[tunnelID]; ok {
			t.EncapNHs = append(t.EncapNHs, h)
		}
	}

	util.WithSwitch(s.name).WithOperation("nexthop-create").WithField("nexthop", h).Info("next hop created")
	return h, nil
}

// activateNextHopOwner sets the NextHop owner bit on a node that currently
// only exists as a Neighbor, reusing its storage rather than minting a new
// handle.
func (s *Switch) activateNextHopOwner(nh *NextHop, attrs attr.List) error {
	applyNHAttrs(nh, attrs)
	nh.Owner |= ownerNextHop
	if rif, err := s.lookupRIF(nh.Key.RIF); err == nil {
		rif.RefCount++
	}
	return nil
}

func applyNHAttrs(nh *NextHop, attrs attr.List) {
	for _, a := range attrs {
		switch a.ID {
		case NHAttrPacketAction:
			v, _ := a.Value.S32()
			nh.Action = PacketAction(v)
		case NHAttrMetadata:
			v, _ := a.Value.U32()
			nh.Metadata = v
		case NHAttrNoHostRoute:
			v, _ := a.Value.Bool()
			nh.NoHostRoute = v
		}
	}
}

// RemoveNextHop implements the C5 "IP next-hop remove" path: refuses if the
// node is a member of any group or still referenced by a route
// (RefCount>0); otherwise clears the NextHop owner bit and frees the node
// only if no owner remains.
func (s *Switch) RemoveNextHop(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nh, err := s.lookupNextHop(h)
	if err != nil {
		return err
	}
	if !nh.Owner.has(ownerNextHop) {
		return newError(StatusInvalidObjectId, "next hop %s is not a forwarding next hop", h)
	}
	if nh.RefCount != 0 || len(nh.Groups) != 0 {
		return newError(StatusObjectInUse, "next hop %s is referenced by %d routes/groups", h, nh.RefCount+len(nh.Groups))
	}

	// A node shared with a Neighbor (owner-bitmask pattern) keeps its NPU
	// object alive until the last owner bit clears.
	if nh.Owner == ownerNextHop {
		if err := s.driver.NextHopRemove(uint64(h)); err != nil {
			return newError(StatusFailure, "npu next-hop remove: %s", err)
		}
	}

	nh.Owner &^= ownerNextHop
	if rif, err := s.lookupRIF(nh.Key.RIF); err == nil {
		rif.RefCount--
	}
	if nh.Key.Type == NextHopTypeEncap {
		s.teardownEncapNH(nh)
		if t, ok := s.tunnels[nh.TunnelID]; ok {
			t.EncapNHs = removeHandle(t.EncapNHs, h)
		}
	}

	s.collapseNextHopIfUnowned(nh)

	util.WithSwitch(s.name).WithOperation("nexthop-remove").WithField("nexthop", h).Info("next hop removed")
	return nil
}

// collapseNextHopIfUnowned frees nh's arena slot and every index entry once
// no owner bit remains set.
func (s *Switch) collapseNextHopIfUnowned(nh *NextHop) {
	if nh.Owner != 0 {
		return
	}
	vr, err := s.lookupVRF(nh.VRF)
	if err == nil {
		delete(vr.nhByKey, nh.Key)
		vr.nhByIP[nh.Key.IP] = removeHandle(vr.nhByIP[nh.Key.IP], nh.Handle)
		if len(vr.nhByIP[nh.Key.IP]) == 0 {
			delete(vr.nhByIP, nh.Key.IP)
		}
	}
	delete(s.nextHops, nh.Handle)
	s.allocNextHop.Free(nh.Handle)
}

// SetNextHopAttribute implements C5 attribute-set. Open
// Questions, the original NPU layer leaves next-hop attribute-set as a
// stable NotImplemented gap; this core preserves that rather than
// inventing semantics.
func (s *Switch) SetNextHopAttribute(h Handle, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupNextHop(h); err != nil {
		return err
	}
	return newError(StatusNotImplemented, "next-hop attribute set is not implemented")
}

// underlayNHsAtIP returns every NextHop in vr's nh_tree whose IP equals ip,
// the walk the neighbor-create/remove propagation performs
// "forward from (Encap, A)".
func underlayNHsAtIP(vr *VirtualRouter, ip netip.Addr) []Handle {
	return vr.nhByIP[ip]
}
