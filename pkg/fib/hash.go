package fib

import (
	"github.com/openfib/fibcore/pkg/fib/attr"
	"github.com/openfib/fibcore/pkg/util"
)

// Hash attribute ids, modeled on sai_hash_obj.c's native-field bitmask and
// algorithm selector.
const (
	HashAttrNativeFields attr.ID = iota
	HashAttrAlgorithm
	HashAttrUDFGroups
)

var hashAttrTable = attr.Table{
	{ID: HashAttrNativeFields, Kind: attr.KindU32, Settable: true},
	{ID: HashAttrAlgorithm, Kind: attr.KindS32, Settable: true},
	{ID: HashAttrUDFGroups, Kind: attr.KindObjectList, Settable: true},
}

// CreateHash implements the switch-scoped hash-configuration object create.
func (s *Switch) CreateHash(attrs attr.List) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := attr.Validate(attr.OpCreate, hashAttrTable, attrs); err != nil {
		return 0, wrapValidation(err)
	}

	h, err := s.allocHash.Alloc()
	if err != nil {
		return 0, err
	}
	hobj := &Hash{Handle: h}
	applyHashAttrs(hobj, attrs)

	if err := s.driver.HashCreate(uint64(h), uint32(hobj.NativeFields), int32(hobj.Algorithm)); err != nil {
		s.allocHash.Free(h)
		return 0, newError(StatusFailure, "npu hash create: %s", err)
	}
	s.hashes[h] = hobj

	util.WithSwitch(s.name).WithOperation("hash-create").WithField("hash", h).Info("hash object created")
	return h, nil
}

func applyHashAttrs(h *Hash, attrs attr.List) {
	for _, a := range attrs {
		switch a.ID {
		case HashAttrNativeFields:
			v, _ := a.Value.U32()
			h.NativeFields = NativeHashField(v)
		case HashAttrAlgorithm:
			v, _ := a.Value.S32()
			h.Algorithm = HashAlgorithm(v)
		case HashAttrUDFGroups:
			oids, _ := a.Value.ObjectList()
			h.UDFGroups = handlesOf(oids)
		}
	}
}

// RemoveHash implements hash object remove. A hash still bound to
// ecmp_hash/lag_hash is refused with ObjectInUse.
func (s *Switch) RemoveHash(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hashes[h]; !ok || h.Type() != ObjectTypeHash {
		return newError(StatusInvalidObjectId, "hash %s does not exist", h)
	}
	if s.ecmpHash == h || s.lagHash == h {
		return newError(StatusObjectInUse, "hash %s is bound as the switch ecmp/lag hash", h)
	}

	if err := s.driver.HashRemove(uint64(h)); err != nil {
		return newError(StatusFailure, "npu hash remove: %s", err)
	}
	delete(s.hashes, h)
	s.allocHash.Free(h)
	return nil
}

// SetHashAttribute implements hash object attribute-set.
func (s *Switch) SetHashAttribute(h Handle, a attr.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hobj, ok := s.hashes[h]
	if !ok || h.Type() != ObjectTypeHash {
		return newError(StatusInvalidObjectId, "hash %s does not exist", h)
	}
	if err := attr.Validate(attr.OpSet, hashAttrTable, attr.List{a}); err != nil {
		return wrapValidation(err)
	}
	next := *hobj
	applyHashAttrs(&next, attr.List{a})
	if err := s.driver.HashAttrSet(uint64(h), uint32(next.NativeFields), int32(next.Algorithm)); err != nil {
		return newError(StatusFailure, "npu hash attr set: %s", err)
	}
	*hobj = next
	return nil
}

// SetSwitchECMPHash binds the switch-wide ecmp_hash attribute to h.
func (s *Switch) SetSwitchECMPHash(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h != 0 {
		if _, ok := s.hashes[h]; !ok || h.Type() != ObjectTypeHash {
			return newError(StatusInvalidObjectId, "hash %s does not exist", h)
		}
	}
	s.ecmpHash = h
	return nil
}

// SetSwitchLAGHash binds the switch-wide lag_hash attribute to h.
func (s *Switch) SetSwitchLAGHash(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h != 0 {
		if _, ok := s.hashes[h]; !ok || h.Type() != ObjectTypeHash {
			return newError(StatusInvalidObjectId, "hash %s does not exist", h)
		}
	}
	s.lagHash = h
	return nil
}
