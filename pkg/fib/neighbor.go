package fib

import (
	"net"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// Neighbor attribute ids. Neighbor shares its storage
// with NextHop (the owner-bitmask pattern) but publishes its own attribute
// namespace since a caller addresses it through a RIF+IP key, not a handle,
// until after creation.
const (
	NeighborAttrRIF attr.ID = iota
	NeighborAttrIP
	NeighborAttrMAC
	NeighborAttrPacketAction
	NeighborAttrMetadata
	NeighborAttrNoHostRoute
)

func neighborMACMandatory(attrs attr.List) bool {
	a, ok := attrs.Get(NeighborAttrPacketAction)
	if !ok {
		return true // default action is Forward
	}
	v, _ := a.S32()
	act := PacketAction(v)
	return act == PacketActionForward || act == PacketActionLog
}

var neighborAttrTable = attr.Table{
	{ID: NeighborAttrRIF, Kind: attr.KindObjectID, MandatoryOnCreate: true, CreateOnly: true},
	{ID: NeighborAttrIP, Kind: attr.KindIPAddr, MandatoryOnCreate: true, CreateOnly: true},
	{ID: NeighborAttrMAC, Kind: attr.KindMAC, Settable: true, MandatoryIf: neighborMACMandatory},
	{ID: NeighborAttrPacketAction, Kind: attr.KindS32, Settable: true},
	{ID: NeighborAttrMetadata, Kind: attr.KindU32, Settable: true},
	{ID: NeighborAttrNoHostRoute, Kind: attr.KindBool, Settable: true},
}

// CreateNeighbor implements the C5 "Neighbor create" path:
// resolves the egress port from the RIF's attachment (Port) or an FDB
// lookup (Vlan, deferred to a future learn event on miss), links the node
// into neighbor_mac_tree, and registers FDB notifications for the MAC.
func (s *Switch) CreateNeighbor(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, neighborAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	rifOID, _ := attrs.Get(NeighborAttrRIF)
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

	ipVal, _ := attrs.Get(NeighborAttrIP)
	ip, _ := ipVal.IPAddr()

	key := nhKey{Type: NextHopTypeIP, RIF: rifH, IP: ip}

	var nh *NextHop
	var h Handle
	if existingH, ok := vr.nhByKey[key]; ok {
		nh = s.nextHops[existingH]
		if nh.Owner.has(ownerNeighbor) {
			return 0, newError(StatusItemAlreadyExists, "neighbor already exists for this (rif, ip)")
		}
		h = existingH
	} else {
		h, err = s.allocNextHop.Alloc()
		if err != nil {
			return 0, err
		}
		nh = &NextHop{Handle: h, Key: key, VRF: rif.VRF, Groups: make(map[Handle]uint32)}
	}

	saved := *nh
	applyNeighborAttrs(nh, attrs)
	nh.Owner |= ownerNeighbor

	port, resolved := s.resolveNeighborPort(rif, nh.MAC)
	nh.PortID = port
	nh.PendingFDBPort = !resolved && rif.AttachType == RIFAttachVlan

	if err := s.driver.NextHopCreate(uint64(h)); err != nil {
		if _, existed := vr.nhByKey[key]; !existed {
			s.allocNextHop.Free(h)
		} else {
			*nh = saved
		}
		return 0, newError(StatusFailure, "npu next-hop create: %s", err)
	}

	vr.nhByKey[key] = h
	vr.nhByIP[ip] = appendUnique(vr.nhByIP[ip], h)
	s.nextHops[h] = nh

	if rif.AttachType == RIFAttachVlan {
		mk := macKeyOf(rif.VlanID, nh.MAC)
		s.neighborMacTree[mk] = appendUnique(s.neighborMacTree[mk], h)
		if err := s.driver.FDBRegisterCallback(rif.VlanID, macArray(nh.MAC)); err != nil {
			util.WithSwitch(s.name).WithOperation("neighbor-create").Warn("fdb register callback failed")
		} else {
			nh.FDBRegistered = true
		}
	}

	s.underlayNeighborCreated(vr, ip)

	util.WithSwitch(s.name).WithOperation("neighbor-create").WithField("nexthop", h).Info("neighbor created")
	return h, nil
}

// resolveNeighborPort implements the port resolution: a
// Port-attached RIF uses its own attachment; a Vlan-attached RIF queries
// FDB, returning ok=false (deferred to a future learn event) on a miss.
func (s *Switch) resolveNeighborPort(rif *RouterInterface, mac net.HardwareAddr) (port uint32, ok bool) {
	if rif.AttachType == RIFAttachPort {
		return rif.PortID, true
	}
	if s.fdb == nil {
		return 0, false
	}
	return s.fdb.LookupPort(rif.VlanID, mac)
}

func applyNeighborAttrs(nh *NextHop, attrs attr.List) {
	for _, a := range attrs {
		switch a.ID {
		case NeighborAttrMAC:
			mac, _ := a.Value.MAC()
			nh.MAC = mac
		case NeighborAttrPacketAction:
			v, _ := a.Value.S32()
			nh.Action = PacketAction(v)
		case NeighborAttrMetadata:
			v, _ := a.Value.U32()
			nh.Metadata = v
		case NeighborAttrNoHostRoute:
			v, _ := a.Value.Bool()
			nh.NoHostRoute = v
		}
	}
}

// RemoveNeighbor implements the C5 "Neighbor remove" path: reverses create
// — NPU remove, unregister FDB notification if this was the last neighbor
// for the MAC entry, unlink from neighbor_mac_tree, clear the owner bit,
// and collapse the node if unowned.
func (s *Switch) RemoveNeighbor(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nh, err := s.lookupNextHop(h)
	if err != nil {
		return err
	}
	if !nh.Owner.has(ownerNeighbor) {
		return newError(StatusInvalidObjectId, "next hop %s is not a neighbor", h)
	}

	// A node shared with a forwarding NextHop (owner-bitmask pattern) keeps
	// its NPU object alive until the last owner bit clears.
	if nh.Owner == ownerNeighbor {
		if err := s.driver.NextHopRemove(uint64(h)); err != nil {
			return newError(StatusFailure, "npu next-hop remove: %s", err)
		}
	}

	if rif, rerr := s.lookupRIF(nh.Key.RIF); rerr == nil && rif.AttachType == RIFAttachVlan {
		mk := macKeyOf(rif.VlanID, nh.MAC)
		s.neighborMacTree[mk] = removeHandle(s.neighborMacTree[mk], h)
		if len(s.neighborMacTree[mk]) == 0 {
			delete(s.neighborMacTree, mk)
			if nh.FDBRegistered {
				if err := s.driver.FDBFlush(rif.VlanID, macArray(nh.MAC)); err != nil {
					util.WithSwitch(s.name).WithOperation("neighbor-remove").Warn("fdb flush failed")
				}
			}
		}
	}

	nh.Owner &^= ownerNeighbor

	if vr, verr := s.lookupVRF(nh.VRF); verr == nil {
		s.underlayNeighborRemoved(vr, nh.Key.IP)
	}
	s.collapseNextHopIfUnowned(nh)

	util.WithSwitch(s.name).WithOperation("neighbor-remove").WithField("nexthop", h).Info("neighbor removed")
	return nil
}

// SetNeighborAttribute implements C5 neighbor attribute-set. A MAC change
// or a packet-action transition into Forward recomputes the effective
// port, commits via NPU with the port flag, and re-links mac-tree
// membership.
func (s *Switch) SetNeighborAttribute(h Handle, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nh, err := s.lookupNextHop(h)
	if err != nil {
		return err
	}
	if !nh.Owner.has(ownerNeighbor) {
		return newError(StatusInvalidObjectId, "next hop %s is not a neighbor", h)
	}
	if err := attr.Validate(attr.OpSet, neighborAttrTable, attr.List{a}); err != nil {
		return wrapValidation(err)
	}

	rif, err := s.lookupRIF(nh.Key.RIF)
	if err != nil {
		return err
	}

	oldMAC := nh.MAC
	oldPort := nh.PortID
	portFlagNeeded := a.ID == NeighborAttrMAC || a.ID == NeighborAttrPacketAction
	saved := *nh
	applyNeighborAttrs(nh, attr.List{a})

	portFlag := false
	if portFlagNeeded {
		newPort, resolved := s.resolveNeighborPort(rif, nh.MAC)
		if resolved && newPort != oldPort {
			nh.PortID = newPort
			portFlag = true
		}
	}

	raw, _ := a.Value.U64()
	if err := s.driver.NextHopAttrSet(uint64(h), uint32(a.ID), raw, portFlag); err != nil {
		*nh = saved
		return newError(StatusFailure, "npu next-hop attr set: %s", err)
	}

	if rif.AttachType == RIFAttachVlan && a.ID == NeighborAttrMAC && string(oldMAC) != string(nh.MAC) {
		oldKey := macKeyOf(rif.VlanID, oldMAC)
		newKey := macKeyOf(rif.VlanID, nh.MAC)
		s.neighborMacTree[oldKey] = removeHandle(s.neighborMacTree[oldKey], h)
		if len(s.neighborMacTree[oldKey]) == 0 {
			delete(s.neighborMacTree, oldKey)
		}
		s.neighborMacTree[newKey] = appendUnique(s.neighborMacTree[newKey], h)
	}

	s.replayEncapDepsOf(nh)
	return nil
}

func appendUnique(list []Handle, h Handle) []Handle {
	for _, x := range list {
		if x == h {
			return list
		}
	}
	return append(list, h)
}
