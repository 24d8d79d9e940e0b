package fib

import (
	"net"
	"net/netip"
)

// PacketAction mirrors the small enum of forwarding dispositions every
// object family's packet_action attribute draws from.
type PacketAction int32

const (
	PacketActionForward PacketAction = iota
	PacketActionDrop
	PacketActionTrap
	PacketActionLog
)

// AdminState is a simple up/down toggle used by VRF and RIF address-family
// admin-state attributes.
type AdminState bool

const (
	AdminDown AdminState = false
	AdminUp   AdminState = true
)

// NextHopType discriminates a NextHop's forwarding behavior.
type NextHopType int32

const (
	NextHopTypeIP NextHopType = iota
	NextHopTypeEncap
)

// TunnelType enumerates the encapsulation families a Tunnel or an encap
// NextHop can carry.
type TunnelType int32

const (
	TunnelTypeIPinIP TunnelType = iota
	TunnelTypeIPinIPGRE
	TunnelTypeVxLAN
	TunnelTypeMPLS
)

// RIFAttachType discriminates what a RouterInterface is bound to.
type RIFAttachType int32

const (
	RIFAttachPort RIFAttachType = iota
	RIFAttachVlan
)

// FwdObjectKind discriminates what a Route (or a resolved encap NH) forwards
// through.
type FwdObjectKind int32

const (
	FwdNone FwdObjectKind = iota // drop
	FwdNextHop
	FwdNextHopGroup
)

// nhOwner is the bitmask of roles a single NextHop-arena slot plays at
// once: a node is freed only once no owner bit remains set.
type nhOwner uint8

const (
	ownerNeighbor nhOwner = 1 << iota
	ownerNextHop
)

func (o nhOwner) has(bit nhOwner) bool { return o&bit != 0 }

// VirtualRouter is the C3 VRF entity. Per-VRF state — its next
// hop index, route table and RIF membership — lives alongside it rather
// than in an intrusive tree, since handles already give us O(1) arena
// lookups without raw pointers.
type VirtualRouter struct {
	Handle Handle

	SrcMAC           net.HardwareAddr
	V4Admin          AdminState
	V6Admin          AdminState
	IPOptionsAction  PacketAction
	TTLViolationAction PacketAction

	RIFs []Handle // members, insertion order

	nhByKey    map[nhKey]Handle
	nhByIP     map[netip.Addr][]Handle // all NH handles at this exact IP, any type/RIF
	routeTreeV4 *routeTree
	routeTreeV6 *routeTree
}

// nhKey is the exact-match key this defines for a VRF's nh_tree:
// (nh_type, RIF, ip_address, tunnel_type). tunnelType is only meaningful
// when Type==NextHopTypeEncap; it is zero (and ignored by non-encap lookups)
// otherwise.
type nhKey struct {
	Type       NextHopType
	RIF        Handle
	IP         netip.Addr
	TunnelType TunnelType
}

// RouterInterface is the C4 RIF entity.
type RouterInterface struct {
	Handle Handle
	VRF    Handle

	AttachType RIFAttachType
	PortID     uint32 // valid when AttachType==RIFAttachPort, or LAG id reused as a port-like id
	VlanID     uint16 // valid when AttachType==RIFAttachVlan
	IsLAG      bool   // true when PortID actually names a LAG, not a physical port

	MAC             net.HardwareAddr
	V4Admin         AdminState
	V6Admin         AdminState
	MTU             uint32
	IPOptionsAction PacketAction

	RefCount int // number of NHs keyed against this RIF
}

// encapLinks holds the resolution state an encap NextHop carries, as
// handle slices rather than raw pointers so it plays well with the
// arena-and-handles allocator.
type encapLinks struct {
	Neighbor Handle       // resolved underlay neighbor (NextHop handle), or zero
	LPMRoute routeKey     // resolved underlay route key, valid only if Resolved
	Resolved bool         // whether LPMRoute/Neighbor currently name a live underlay route
	DepRoutes []routeKey  // overlay routes whose forward-object is this encap NH
}

// NextHop is the C5 entity. A single arena slot can simultaneously be a
// Neighbor and a forwarding NextHop; Owner tracks which roles are live.
type NextHop struct {
	Handle Handle
	Key    nhKey

	VRF      Handle // cached from RIF at creation
	MAC      net.HardwareAddr
	PortID   uint32
	Action   PacketAction
	Metadata uint32

	NoHostRoute bool
	Owner       nhOwner
	RefCount    int // routes/groups referencing this as a forwarding object

	TunnelID Handle // valid when Key.Type==NextHopTypeEncap

	Groups map[Handle]uint32 // NHG handle -> weight, the symmetric mirror of NextHopGroup.Members

	// Neighbor-role fields; meaningful only when Owner.has(ownerNeighbor).
	FDBRegistered bool
	PendingFDBPort bool // set when Vlan-attached neighbor creation couldn't resolve a port via FDB yet

	// Encap-role fields; meaningful only when Key.Type==NextHopTypeEncap.
	Encap encapLinks
}

// NextHopGroup is the C6 entity: a weighted multiset of member NextHops.
type NextHopGroup struct {
	Handle Handle

	Members  map[Handle]uint32 // NH handle -> weight
	NHCount  uint32            // sum of weights
	RefCount int               // routes whose forwarding object is this group

	DepEncapNHs []Handle // encap NHs that resolve through this group
}

// Route is the C7 entity, keyed by (VRF, prefix).
type Route struct {
	VRF    Handle
	Prefix netip.Prefix

	Action       PacketAction
	TrapPriority uint8
	Metadata     uint32

	FwdKind FwdObjectKind
	FwdNH   Handle // valid when FwdKind==FwdNextHop
	FwdNHG  Handle // valid when FwdKind==FwdNextHopGroup

	IsDefault bool // the VRF-creation-time 0/0 route; never removable by the caller

	DepEncapNHs []Handle // encap NHs whose LPM resolves to this route
}

// key returns the (VRF, prefix) identity used by the dependency engine and
// tests to name a route without threading a pointer around.
func (r *Route) key() routeKey { return routeKey{VRF: r.VRF, Prefix: r.Prefix} }

type routeKey struct {
	VRF    Handle
	Prefix netip.Prefix
}

// Tunnel is the C9 tunnel entity.
type Tunnel struct {
	Handle Handle

	Type TunnelType

	UnderlayVRF Handle
	UnderlayRIF Handle
	OverlayVRF  Handle
	OverlayRIF  Handle

	SrcIP netip.Addr

	EncapTTLMode int32
	DecapTTLMode int32
	EncapTTLVal  uint8
	DecapTTLVal  uint8
	EncapDSCPMode int32
	DecapDSCPMode int32
	EncapDSCPVal  uint8
	DecapDSCPVal  uint8

	EncapMappers []Handle // TunnelMap handles used on encap
	DecapMappers []Handle // TunnelMap handles used on decap

	EncapNHs   []Handle // encap NextHops egressing through this tunnel
	TermEntries []Handle
}

// TunnelTerminationEntry is the C9 decap-match entity.
type TunnelTerminationEntry struct {
	Handle Handle

	VRF        Handle
	Type       TunnelType
	SrcIP      netip.Addr
	DstIP      netip.Addr
	TunnelID   Handle // the tunnel this entry resolves decapped traffic to
}

// TunnelMap is the C9 bridge<->VNI mapping entity.
type TunnelMap struct {
	Handle  Handle
	Entries []Handle
}

// TunnelMapEntry is one directed bridge<->VNI binding within a TunnelMap.
type TunnelMapEntry struct {
	Handle  Handle
	Map     Handle
	BridgeID uint32
	VNI      uint32

	// refcount of bridge-ports on a tunnel currently depending on this
	// binding; removing or changing an entry while this is non-zero fails
	// with ObjectInUse.
	BridgeRefCount int
}

// HashAlgorithm selects the member tie-break strategy an ECMP/LAG hash
// pipeline uses. It is passed to the driver's HashCreate/HashAttrSet;
// pkg/npu/mock stores it, and its member selector does not read it.
type HashAlgorithm int32

const (
	HashAlgorithmCRC HashAlgorithm = iota
	HashAlgorithmXOR
	HashAlgorithmRendezvous
)

// NativeHashField is one bit of the native-field selection bitmask a Hash
// object carries, modeled on sai_hash_obj.c's field list.
type NativeHashField uint32

const (
	HashFieldSrcIP NativeHashField = 1 << iota
	HashFieldDstIP
	HashFieldSrcPort
	HashFieldDstPort
	HashFieldIPProto
	HashFieldVlanID
)

// Hash is the switch-scoped hash-configuration object controlling
// ECMP/LAG member tie-break behavior.
type Hash struct {
	Handle Handle

	NativeFields NativeHashField
	Algorithm    HashAlgorithm
	UDFGroups    []Handle
}
