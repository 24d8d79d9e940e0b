package fib

import (
	"net/netip"

	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// Tunnel attribute ids.
const (
	TunnelAttrType attr.ID = iota
	TunnelAttrUnderlayVRF
	TunnelAttrUnderlayRIF
	TunnelAttrOverlayVRF
	TunnelAttrOverlayRIF
	TunnelAttrSrcIP
	TunnelAttrEncapMappers
	TunnelAttrDecapMappers
)

var tunnelAttrTable = attr.Table{
	{ID: TunnelAttrType, Kind: attr.KindS32, MandatoryOnCreate: true, CreateOnly: true},
	{ID: TunnelAttrUnderlayVRF, Kind: attr.KindObjectID, MandatoryOnCreate: true, CreateOnly: true},
	{ID: TunnelAttrUnderlayRIF, Kind: attr.KindObjectID, CreateOnly: true},
	{ID: TunnelAttrOverlayVRF, Kind: attr.KindObjectID, CreateOnly: true},
	{ID: TunnelAttrOverlayRIF, Kind: attr.KindObjectID, CreateOnly: true},
	{ID: TunnelAttrSrcIP, Kind: attr.KindIPAddr, MandatoryOnCreate: true, CreateOnly: true},
	{ID: TunnelAttrEncapMappers, Kind: attr.KindObjectList, Settable: true},
	{ID: TunnelAttrDecapMappers, Kind: attr.KindObjectList, Settable: true},
}

// CreateTunnel implements C9 tunnel create.
func (s *Switch) CreateTunnel(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, tunnelAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	typeVal, _ := attrs.Get(TunnelAttrType)
	typeRaw, _ := typeVal.S32()

	uvrfVal, _ := attrs.Get(TunnelAttrUnderlayVRF)
	uvrfRaw, _ := uvrfVal.ObjectID()
	if _, err := s.lookupVRF(Handle(uvrfRaw)); err != nil {
		return 0, err
	}

	srcIPVal, _ := attrs.Get(TunnelAttrSrcIP)
	srcIP, _ := srcIPVal.IPAddr()

	t := &Tunnel{
		Type:        TunnelType(typeRaw),
		UnderlayVRF: Handle(uvrfRaw),
		SrcIP:       srcIP,
	}
	if v, ok := attrs.Get(TunnelAttrUnderlayRIF); ok {
		raw, _ := v.ObjectID()
		t.UnderlayRIF = Handle(raw)
	}
	if v, ok := attrs.Get(TunnelAttrOverlayVRF); ok {
		raw, _ := v.ObjectID()
		t.OverlayVRF = Handle(raw)
	}
	if v, ok := attrs.Get(TunnelAttrOverlayRIF); ok {
		raw, _ := v.ObjectID()
		t.OverlayRIF = Handle(raw)
	}
	applyTunnelAttrs(t, attrs)

	h, err := s.allocTunnel.Alloc()
	if err != nil {
		return 0, err
	}
	t.Handle = h

	if err := s.driver.TunnelCreate(uint64(h)); err != nil {
		s.allocTunnel.Free(h)
		return 0, newError(StatusFailure, "npu tunnel create: %s", err)
	}
	s.tunnels[h] = t

	util.WithSwitch(s.name).WithOperation("tunnel-create").WithField("tunnel", h).Info("tunnel created")
	return h, nil
}

func applyTunnelAttrs(t *Tunnel, attrs attr.List) {
	for _, a := range attrs {
		switch a.ID {
		case TunnelAttrEncapMappers:
			oids, _ := a.Value.ObjectList()
			t.EncapMappers = handlesOf(oids)
		case TunnelAttrDecapMappers:
			oids, _ := a.Value.ObjectList()
			t.DecapMappers = handlesOf(oids)
		}
	}
}

func handlesOf(oids []uint64) []Handle {
	out := make([]Handle, len(oids))
	for i, o := range oids {
		out[i] = Handle(o)
	}
	return out
}

// RemoveTunnel implements C9 tunnel remove: refuses with ObjectInUse while
// any encap NextHop or termination entry still references it.
func (s *Switch) RemoveTunnel(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupTunnel(h)
	if err != nil {
		return err
	}
	if len(t.EncapNHs) != 0 || len(t.TermEntries) != 0 {
		return newError(StatusObjectInUse, "tunnel %s still has dependent next hops or termination entries", h)
	}

	if err := s.driver.TunnelRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu tunnel remove: %s", err)
	}
	delete(s.tunnels, h)
	s.allocTunnel.Free(h)

	util.WithSwitch(s.name).WithOperation("tunnel-remove").WithField("tunnel", h).Info("tunnel removed")
	return nil
}

// SetTunnelAttribute implements C9 tunnel attribute-set.
func (s *Switch) SetTunnelAttribute(h Handle, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupTunnel(h)
	if err != nil {
		return err
	}
	if err := attr.Validate(attr.OpSet, tunnelAttrTable, attr.List{a}); err != nil {
		return wrapValidation(err)
	}
	applyTunnelAttrs(t, attr.List{a})
	return nil
}

// TunnelTerminationEntry attribute ids.
const (
	TermAttrVRF attr.ID = iota
	TermAttrType
	TermAttrSrcIP
	TermAttrDstIP
	TermAttrTunnelID
)

var termAttrTable = attr.Table{
	{ID: TermAttrVRF, Kind: attr.KindObjectID, MandatoryOnCreate: true, CreateOnly: true},
	{ID: TermAttrType, Kind: attr.KindS32, MandatoryOnCreate: true, CreateOnly: true},
	{ID: TermAttrSrcIP, Kind: attr.KindIPAddr, CreateOnly: true},
	{ID: TermAttrDstIP, Kind: attr.KindIPAddr, MandatoryOnCreate: true, CreateOnly: true},
	{ID: TermAttrTunnelID, Kind: attr.KindObjectID, MandatoryOnCreate: true, CreateOnly: true},
}

// CreateTunnelTermEntry implements C9 decap-match create: binds a
// (VRF, type, src?, dst) tuple to the tunnel whose underlay traffic it
// decapsulates.
func (s *Switch) CreateTunnelTermEntry(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, termAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	vrfVal, _ := attrs.Get(TermAttrVRF)
	vrfRaw, _ := vrfVal.ObjectID()
	if _, err := s.lookupVRF(Handle(vrfRaw)); err != nil {
		return 0, err
	}
	typeVal, _ := attrs.Get(TermAttrType)
	typeRaw, _ := typeVal.S32()
	dstVal, _ := attrs.Get(TermAttrDstIP)
	dst, _ := dstVal.IPAddr()
	var src netip.Addr
	if v, ok := attrs.Get(TermAttrSrcIP); ok {
		src, _ = v.IPAddr()
	}
	tidVal, _ := attrs.Get(TermAttrTunnelID)
	tidRaw, _ := tidVal.ObjectID()
	tunnelH := Handle(tidRaw)
	t, err := s.lookupTunnel(tunnelH)
	if err != nil {
		return 0, err
	}

	h, err := s.allocTunTerm.Alloc()
	if err != nil {
		return 0, err
	}
	entry := &TunnelTerminationEntry{
		Handle:   h,
		VRF:      Handle(vrfRaw),
		Type:     TunnelType(typeRaw),
		SrcIP:    src,
		DstIP:    dst,
		TunnelID: tunnelH,
	}

	if err := s.driver.TunnelTermEntryCreate(uint64(h)); err != nil {
		s.allocTunTerm.Free(h)
		return 0, newError(StatusFailure, "npu tunnel-term-entry create: %s", err)
	}
	s.tunnelTerms[h] = entry
	t.TermEntries = append(t.TermEntries, h)

	util.WithSwitch(s.name).WithOperation("tunnel-term-create").WithField("term", h).Info("tunnel termination entry created")
	return h, nil
}

// RemoveTunnelTermEntry implements C9 decap-match remove.
func (s *Switch) RemoveTunnelTermEntry(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tunnelTerms[h]
	if !ok || h.Type() != ObjectTypeTunnelTermEntry {
		return newError(StatusInvalidObjectId, "tunnel-term-entry %s does not exist", h)
	}

	if err := s.driver.TunnelTermEntryRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu tunnel-term-entry remove: %s", err)
	}
	if t, ok := s.tunnels[entry.TunnelID]; ok {
		t.TermEntries = removeHandle(t.TermEntries, h)
	}
	delete(s.tunnelTerms, h)
	s.allocTunTerm.Free(h)
	return nil
}

// TunnelMap attribute ids and operations.
func (s *Switch) CreateTunnelMap(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.allocTunMap.Alloc()
	if err != nil {
		return 0, err
	}
	if err := s.driver.TunnelMapCreate(uint64(h)); err != nil {
		s.allocTunMap.Free(h)
		return 0, newError(StatusFailure, "npu tunnel-map create: %s", err)
	}
	s.tunnelMaps[h] = &TunnelMap{Handle: h}

	util.WithSwitch(s.name).WithOperation("tunnel-map-create").WithField("tunnelmap", h).Info("tunnel map created")
	return h, nil
}

// RemoveTunnelMap implements C9 map remove: refuses while any entry remains.
func (s *Switch) RemoveTunnelMap(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.tunnelMaps[h]
	if !ok || h.Type() != ObjectTypeTunnelMap {
		return newError(StatusInvalidObjectId, "tunnel-map %s does not exist", h)
	}
	if len(m.Entries) != 0 {
		return newError(StatusObjectInUse, "tunnel-map %s still has entries", h)
	}
	if err := s.driver.TunnelMapRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu tunnel-map remove: %s", err)
	}
	delete(s.tunnelMaps, h)
	s.allocTunMap.Free(h)
	return nil
}

// CreateTunnelMapEntry implements C9 bridge<->VNI binding create (invariant
// I8: a (map, bridge) or (map, vni) pair is unique within the map).
func (s *Switch) CreateTunnelMapEntry(mapH Handle, bridgeID, vni uint32) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.tunnelMaps[mapH]
	if !ok || mapH.Type() != ObjectTypeTunnelMap {
		return 0, newError(StatusInvalidObjectId, "tunnel-map %s does not exist", mapH)
	}
	for _, eh := range m.Entries {
		e := s.tunnelMapEntry[eh]
		if e.BridgeID == bridgeID || e.VNI == vni {
			return 0, newError(StatusItemAlreadyExists, "bridge/vni already bound in tunnel-map %s", mapH)
		}
	}

	h, err := s.allocTunMapEn.Alloc()
	if err != nil {
		return 0, err
	}
	e := &TunnelMapEntry{Handle: h, Map: mapH, BridgeID: bridgeID, VNI: vni}

	if err := s.driver.TunnelMapEntryCreate(uint64(h), bridgeID, vni); err != nil {
		s.allocTunMapEn.Free(h)
		return 0, newError(StatusFailure, "npu tunnel-map-entry create: %s", err)
	}
	s.tunnelMapEntry[h] = e
	m.Entries = append(m.Entries, h)
	return h, nil
}

// SetTunnelMapEntry implements C9 binding update: refuses with ObjectInUse
// while any bridge-port still depends on the current binding.
func (s *Switch) SetTunnelMapEntry(h Handle, bridgeID, vni uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tunnelMapEntry[h]
	if !ok || h.Type() != ObjectTypeTunnelMapEntry {
		return newError(StatusInvalidObjectId, "tunnel-map-entry %s does not exist", h)
	}
	if e.BridgeRefCount != 0 {
		return newError(StatusObjectInUse, "tunnel-map-entry %s is in use by %d bridge ports", h, e.BridgeRefCount)
	}
	if err := s.driver.TunnelMapEntrySet(uint64(h), bridgeID, vni); err != nil {
		return newError(StatusFailure, "npu tunnel-map-entry set: %s", err)
	}
	e.BridgeID = bridgeID
	e.VNI = vni
	return nil
}

// RemoveTunnelMapEntry implements C9 binding remove.
func (s *Switch) RemoveTunnelMapEntry(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tunnelMapEntry[h]
	if !ok || h.Type() != ObjectTypeTunnelMapEntry {
		return newError(StatusInvalidObjectId, "tunnel-map-entry %s does not exist", h)
	}
	if e.BridgeRefCount != 0 {
		return newError(StatusObjectInUse, "tunnel-map-entry %s is in use by %d bridge ports", h, e.BridgeRefCount)
	}
	if err := s.driver.TunnelMapEntryRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu tunnel-map-entry remove: %s", err)
	}
	if m, ok := s.tunnelMaps[e.Map]; ok {
		m.Entries = removeHandle(m.Entries, h)
	}
	delete(s.tunnelMapEntry, h)
	s.allocTunMapEn.Free(h)
	return nil
}
