package fib

import (
	"fmt"
	"math/bits"
)

// ObjectType tags every handle minted by the allocator (C1). The tag occupies
// bits 48-55 of a Handle; the low 48 bits are a type-local index.
type ObjectType uint8

const (
	ObjectTypeNull ObjectType = iota
	ObjectTypeVirtualRouter
	ObjectTypeRIF
	ObjectTypeNextHop
	ObjectTypeNextHopGroup
	ObjectTypeNextHopGroupMember
	ObjectTypeRoute
	ObjectTypeTunnel
	ObjectTypeTunnelTermEntry
	ObjectTypeTunnelMap
	ObjectTypeTunnelMapEntry
	ObjectTypeHash
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeVirtualRouter:
		return "virtual-router"
	case ObjectTypeRIF:
		return "router-interface"
	case ObjectTypeNextHop:
		return "next-hop"
	case ObjectTypeNextHopGroup:
		return "next-hop-group"
	case ObjectTypeNextHopGroupMember:
		return "next-hop-group-member"
	case ObjectTypeRoute:
		return "route"
	case ObjectTypeTunnel:
		return "tunnel"
	case ObjectTypeTunnelTermEntry:
		return "tunnel-term-entry"
	case ObjectTypeTunnelMap:
		return "tunnel-map"
	case ObjectTypeTunnelMapEntry:
		return "tunnel-map-entry"
	case ObjectTypeHash:
		return "hash"
	default:
		return "null"
	}
}

const (
	handleTypeShift = 48
	handleIndexMask = (uint64(1) << handleTypeShift) - 1
)

// Handle is an opaque 64-bit object id carrying an 8-bit type tag and a
// type-local index. The zero Handle never names a live
// object and is used as the "unset" sentinel (e.g. a Route with no forwarding
// object, an unresolved encap next hop).
type Handle uint64

// NewHandle packs a type tag and index into a Handle.
func NewHandle(t ObjectType, index uint32) Handle {
	return Handle(uint64(t)<<handleTypeShift | uint64(index)&handleIndexMask)
}

// Type extracts the object-type tag from a handle.
func (h Handle) Type() ObjectType { return ObjectType(uint64(h) >> handleTypeShift) }

// Index extracts the type-local index from a handle.
func (h Handle) Index() uint32 { return uint32(uint64(h) & handleIndexMask) }

// Valid reports whether h is non-zero.
func (h Handle) Valid() bool { return h != 0 }

func (h Handle) String() string {
	if h == 0 {
		return "null"
	}
	return fmt.Sprintf("%s:0x%x", h.Type(), h.Index())
}

// handleAllocator mints and reclaims type-local indices using a first-free-clear
// bitmap of configurable capacity. It never reuses the index
// of a live object and never returns the same handle twice for two live
// objects, but a freed index may be reused by a later allocation.
type handleAllocator struct {
	objType  ObjectType
	capacity uint32
	free     []uint64 // bitset: 1 = free, 0 = in-use
	lastHint uint32   // next word to scan from, bounds amortized cost
}

func newHandleAllocator(t ObjectType, capacity uint32) *handleAllocator {
	words := (capacity + 63) / 64
	free := make([]uint64, words)
	for i := range free {
		free[i] = ^uint64(0)
	}
	// Clear bits beyond capacity in the last word so they're never handed out.
	if rem := capacity % 64; rem != 0 && words > 0 {
		free[words-1] = (uint64(1) << rem) - 1
	}
	return &handleAllocator{objType: t, capacity: capacity, free: free}
}

// Alloc returns a freshly-minted handle, or an error if the bitmap is exhausted
// (InsufficientResources).
func (a *handleAllocator) Alloc() (Handle, error) {
	n := len(a.free)
	for i := 0; i < n; i++ {
		w := (a.lastHint + uint32(i)) % uint32(n)
		word := a.free[w]
		if word == 0 {
			continue
		}
		bit := bits.TrailingZeros64(word)
		idx := w*64 + uint32(bit)
		if idx >= a.capacity {
			continue
		}
		a.free[w] &^= uint64(1) << uint(bit)
		a.lastHint = w
		return NewHandle(a.objType, idx), nil
	}
	return 0, newError(StatusInsufficientResources, "no free %s handles (capacity %d)", a.objType, a.capacity)
}

// Free releases index back to the bitmap. Freeing an already-free index is a
// no-op (defensive — callers are expected to free exactly once per Alloc).
func (a *handleAllocator) Free(h Handle) {
	idx := h.Index()
	if idx >= a.capacity {
		return
	}
	w := idx / 64
	bit := idx % 64
	a.free[w] |= uint64(1) << bit
}

// InUse reports the number of currently allocated handles (test/diagnostic use).
func (a *handleAllocator) InUse() uint32 {
	used := uint32(0)
	for i, word := range a.free {
		lo := uint32(i) * 64
		for b := uint32(0); b < 64 && lo+b < a.capacity; b++ {
			if word&(uint64(1)<<b) == 0 {
				used++
			}
		}
	}
	return used
}
