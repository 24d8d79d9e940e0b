package fib

import (
	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// NextHopGroup attribute ids.
const (
	NHGroupAttrNHList attr.ID = iota
	NHGroupAttrWeightList
)

var nhGroupAttrTable = attr.Table{
	{ID: NHGroupAttrNHList, Kind: attr.KindObjectList, CreateOnly: true},
	{ID: NHGroupAttrWeightList, Kind: attr.KindS32List, CreateOnly: true},
}

// CreateNextHopGroup implements C6 create: an empty group is
// legal, members are added afterward via NextHopGroupMemberAdd.
func (s *Switch) CreateNextHopGroup(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, nhGroupAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	h, err := s.allocNHGroup.Alloc()
	if err != nil {
		return 0, err
	}
	g := &NextHopGroup{Handle: h, Members: make(map[Handle]uint32)}

	if err := s.driver.NextHopGroupCreate(uint64(h)); err != nil {
		s.allocNHGroup.Free(h)
		return 0, newError(StatusFailure, "npu next-hop-group create: %s", err)
	}
	s.nhGroups[h] = g

	if nhList, ok := attrs.Get(NHGroupAttrNHList); ok {
		members, _ := nhList.ObjectList()
		weights, _ := attrList2S32(attrs)
		for i, raw := range members {
			w := uint32(1)
			if i < len(weights) {
				w = uint32(weights[i])
			}
			if err := s.addGroupMemberLocked(g, Handle(raw), w); err != nil {
				for m, mw := range g.Members {
					s.driver.NextHopGroupMemberRemove(uint64(h), uint64(m))
					if mnh, lerr := s.lookupNextHop(m); lerr == nil {
						delete(mnh.Groups, h)
						mnh.RefCount -= int(mw)
					}
				}
				s.driver.NextHopGroupRemove(uint64(h))
				delete(s.nhGroups, h)
				s.allocNHGroup.Free(h)
				return 0, err
			}
		}
	}

	util.WithSwitch(s.name).WithOperation("nhgroup-create").WithField("nhgroup", h).Info("next-hop group created")
	return h, nil
}

func attrList2S32(attrs attr.List) ([]int32, bool) {
	v, ok := attrs.Get(NHGroupAttrWeightList)
	if !ok {
		return nil, false
	}
	list, ok := v.S32List()
	return list, ok
}

// RemoveNextHopGroup implements C6 remove: refuses with ObjectInUse while
// any route still forwards through g.
func (s *Switch) RemoveNextHopGroup(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.lookupNHGroup(h)
	if err != nil {
		return err
	}
	if g.RefCount != 0 {
		return newError(StatusObjectInUse, "next-hop-group %s has %d dependent routes", h, g.RefCount)
	}
	if len(g.Members) != 0 {
		return newError(StatusObjectInUse, "next-hop-group %s still has members", h)
	}

	if err := s.driver.NextHopGroupRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu next-hop-group remove: %s", err)
	}
	delete(s.nhGroups, h)
	s.allocNHGroup.Free(h)

	util.WithSwitch(s.name).WithOperation("nhgroup-remove").WithField("nhgroup", h).Info("next-hop group removed")
	return nil
}

// NextHopGroupMemberAdd implements C6 member-add: idempotent
// on an already-present member at the same weight, enforces the switch-wide
// max_ecmp_paths cap, and links the symmetric NH<->NHG mirror.
func (s *Switch) NextHopGroupMemberAdd(group, member Handle, weight uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.lookupNHGroup(group)
	if err != nil {
		return err
	}
	return s.addGroupMemberLocked(g, member, weight)
}

func (s *Switch) addGroupMemberLocked(g *NextHopGroup, member Handle, weight uint32) error {
	nh, err := s.lookupNextHop(member)
	if err != nil {
		return err
	}
	if !nh.Owner.has(ownerNextHop) {
		return newError(StatusInvalidObjectId, "next hop %s is not a forwarding next hop", member)
	}
	old, exists := g.Members[member]
	if exists && old == weight {
		return nil
	}
	if g.NHCount-old+weight > s.maxECMPPaths {
		return newError(StatusInsufficientResources, "adding member would exceed max_ecmp_paths (%d)", s.maxECMPPaths)
	}

	if err := s.driver.NextHopGroupMemberAdd(uint64(g.Handle), uint64(member), weight); err != nil {
		return newError(StatusFailure, "npu next-hop-group member add: %s", err)
	}

	g.NHCount = g.NHCount - old + weight
	g.Members[member] = weight
	nh.Groups[g.Handle] = weight
	nh.RefCount += int(weight) - int(old)

	s.replayEncapDepsOfGroup(g)
	return nil
}

// NextHopGroupMemberRemove implements C6 member-remove.
func (s *Switch) NextHopGroupMemberRemove(group, member Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.lookupNHGroup(group)
	if err != nil {
		return err
	}
	w, ok := g.Members[member]
	if !ok {
		return newError(StatusItemNotFound, "next hop %s is not a member of group %s", member, group)
	}

	if err := s.driver.NextHopGroupMemberRemove(uint64(group), uint64(member)); err != nil {
		return newError(StatusFailure, "npu next-hop-group member remove: %s", err)
	}

	g.NHCount -= w
	delete(g.Members, member)
	if nh, err := s.lookupNextHop(member); err == nil {
		delete(nh.Groups, group)
		nh.RefCount -= int(w)
	}

	s.replayEncapDepsOfGroup(g)
	return nil
}
