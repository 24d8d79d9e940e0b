// Package attr models the north-bound attribute list: a set of (id, typed
// value) pairs exchanged with every object-family method, and the
// descriptor-table-driven validation this requires of it.
package attr

import (
	"fmt"
	"net"
	"net/netip"
)

// ID identifies an attribute within the namespace of a single object type.
// Object types do not share an ID space — RIF attribute 3 and Route
// attribute 3 are unrelated — so callers always validate against the
// descriptor table for the object type in hand.
type ID uint32

// Kind tags the dynamic type carried by a Value, mirroring the
// tagged-union attribute value this describes at the wire level.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS32
	KindMAC
	// KindIPAddr covers both v4 and v6 addresses: the address family is a
	// property of the netip.Addr itself, not of a separate wire kind, so a
	// descriptor that accepts "an IP address" accepts either family rather
	// than forcing every dual-stack attribute to declare two variants.
	KindIPAddr
	KindIPPrefix
	KindObjectID
	KindObjectList
	KindS32List
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindS32:
		return "s32"
	case KindMAC:
		return "mac"
	case KindIPAddr:
		return "ip-addr"
	case KindIPPrefix:
		return "ip-prefix"
	case KindObjectID:
		return "object-id"
	case KindObjectList:
		return "object-list"
	case KindS32List:
		return "s32-list"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the value kinds the north-bound surface
// supports. Construct one with the Kind-specific constructor below; read it
// back with the matching accessor, which reports ok=false on a kind
// mismatch rather than panicking.
type Value struct {
	kind   Kind
	u      uint64
	s      int32
	mac    [6]byte
	ip     netip.Addr
	prefix netip.Prefix
	oids   []uint64
	s32s   []int32
}

func (v Value) Kind() Kind { return v.kind }

func BoolValue(b bool) Value {
	var u uint64
	if b {
		u = 1
	}
	return Value{kind: KindBool, u: u}
}

func U8Value(x uint8) Value   { return Value{kind: KindU8, u: uint64(x)} }
func U16Value(x uint16) Value { return Value{kind: KindU16, u: uint64(x)} }
func U32Value(x uint32) Value { return Value{kind: KindU32, u: uint64(x)} }
func U64Value(x uint64) Value { return Value{kind: KindU64, u: x} }
func S32Value(x int32) Value  { return Value{kind: KindS32, s: x} }

func MACValue(mac net.HardwareAddr) Value {
	var v Value
	v.kind = KindMAC
	copy(v.mac[:], mac)
	return v
}

func IPAddrValue(ip netip.Addr) Value { return Value{kind: KindIPAddr, ip: ip} }

func IPPrefixValue(p netip.Prefix) Value { return Value{kind: KindIPPrefix, prefix: p} }

// ObjectIDValue carries a raw handle value. attr deliberately stores it as a
// plain uint64 rather than importing the fib package's Handle type, so that
// fib (which needs attr for its attribute model) and attr never form an
// import cycle.
func ObjectIDValue(oid uint64) Value { return Value{kind: KindObjectID, u: oid} }

func ObjectListValue(oids []uint64) Value { return Value{kind: KindObjectList, oids: oids} }

func S32ListValue(s32s []int32) Value { return Value{kind: KindS32List, s32s: s32s} }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.u != 0, true
}

func (v Value) U8() (uint8, bool) {
	if v.kind != KindU8 {
		return 0, false
	}
	return uint8(v.u), true
}

func (v Value) U16() (uint16, bool) {
	if v.kind != KindU16 {
		return 0, false
	}
	return uint16(v.u), true
}

func (v Value) U32() (uint32, bool) {
	if v.kind != KindU32 {
		return 0, false
	}
	return uint32(v.u), true
}

func (v Value) U64() (uint64, bool) {
	if v.kind != KindU64 {
		return 0, false
	}
	return v.u, true
}

func (v Value) S32() (int32, bool) {
	if v.kind != KindS32 {
		return 0, false
	}
	return v.s, true
}

func (v Value) MAC() (net.HardwareAddr, bool) {
	if v.kind != KindMAC {
		return nil, false
	}
	mac := make(net.HardwareAddr, 6)
	copy(mac, v.mac[:])
	return mac, true
}

func (v Value) IPAddr() (netip.Addr, bool) {
	if v.kind != KindIPAddr {
		return netip.Addr{}, false
	}
	return v.ip, true
}

func (v Value) IPPrefix() (netip.Prefix, bool) {
	if v.kind != KindIPPrefix {
		return netip.Prefix{}, false
	}
	return v.prefix, true
}

func (v Value) ObjectID() (uint64, bool) {
	if v.kind != KindObjectID {
		return 0, false
	}
	return v.u, true
}

func (v Value) ObjectList() ([]uint64, bool) {
	if v.kind != KindObjectList {
		return nil, false
	}
	return v.oids, true
}

func (v Value) S32List() ([]int32, bool) {
	if v.kind != KindS32List {
		return nil, false
	}
	return v.s32s, true
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		b, _ := v.Bool()
		return fmt.Sprintf("%v", b)
	case KindU8, KindU16, KindU32, KindU64:
		return fmt.Sprintf("%d", v.u)
	case KindS32:
		return fmt.Sprintf("%d", v.s)
	case KindMAC:
		mac, _ := v.MAC()
		return mac.String()
	case KindIPAddr:
		return v.ip.String()
	case KindIPPrefix:
		return v.prefix.String()
	case KindObjectID:
		return fmt.Sprintf("0x%x", v.u)
	case KindObjectList:
		return fmt.Sprintf("%v", v.oids)
	case KindS32List:
		return fmt.Sprintf("%v", v.s32s)
	default:
		return "<invalid>"
	}
}

// Attribute is one (id, value) pair in an attribute list.
type Attribute struct {
	ID    ID
	Value Value
}

// List is an attribute list as exchanged at the north-bound surface.
type List []Attribute

// Get returns the value for id and reports whether it was present.
func (l List) Get(id ID) (Value, bool) {
	for _, a := range l {
		if a.ID == id {
			return a.Value, true
		}
	}
	return Value{}, false
}
