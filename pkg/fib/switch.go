package fib

import (
	"context"
	"net"
	"sync"

	"github.com/openfib/fibcore/pkg/collab"
	"github.com/openfib/fibcore/pkg/fibconfig"
	"github.com/openfib/fibcore/pkg/npu"
	"github.com/openfib/fibcore/pkg/util"
)

// macKey is the (VLAN, MAC) composite key of the global neighbor_mac_tree
// this describes, letting the FDB adapter find every neighbor
// sharing a learned MAC regardless of which RIF/VRF created it.
type macKey struct {
	VLAN uint16
	MAC  [6]byte
}

func macKeyOf(vlan uint16, mac net.HardwareAddr) macKey {
	var k macKey
	k.VLAN = vlan
	copy(k.MAC[:], mac)
	return k
}

// Switch is the top-level FIB core instance: one process-
// wide write lock ("the FIB lock") guards every arena and index below it,
// and the dependency-engine worker goroutine reacquires the same lock
// before every replay pass.
type Switch struct {
	mu sync.Mutex

	name   string
	driver npu.Driver
	fdb    collab.FDBQuery
	stp    collab.STPQuery
	config *fibconfig.Config

	allocVRF      *handleAllocator
	allocRIF      *handleAllocator
	allocNextHop  *handleAllocator
	allocNHGroup  *handleAllocator
	allocTunnel   *handleAllocator
	allocTunTerm  *handleAllocator
	allocTunMap   *handleAllocator
	allocTunMapEn *handleAllocator
	allocHash     *handleAllocator

	vrfs           map[Handle]*VirtualRouter
	rifs           map[Handle]*RouterInterface
	nextHops       map[Handle]*NextHop
	nhGroups       map[Handle]*NextHopGroup
	tunnels        map[Handle]*Tunnel
	tunnelTerms    map[Handle]*TunnelTerminationEntry
	tunnelMaps     map[Handle]*TunnelMap
	tunnelMapEntry map[Handle]*TunnelMapEntry
	hashes         map[Handle]*Hash

	neighborMacTree map[macKey][]Handle

	switchSrcMAC  net.HardwareAddr
	maxECMPPaths  uint32
	ecmpHash      Handle
	lagHash       Handle

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSwitch builds a Switch wired to driver for NPU programming and fdb/stp
// for the collaborator queries the dependency engine needs, sized per cfg's
// handle-allocator capacities, and starts its dependency-engine worker.
func NewSwitch(name string, srcMAC net.HardwareAddr, driver npu.Driver, fdb collab.FDBQuery, stp collab.STPQuery, cfg *fibconfig.Config) *Switch {
	if cfg == nil {
		cfg = fibconfig.Default()
	}
	s := &Switch{
		name:   name,
		driver: driver,
		fdb:    fdb,
		stp:    stp,
		config: cfg,

		allocVRF:      newHandleAllocator(ObjectTypeVirtualRouter, cfg.MaxVRFs),
		allocRIF:      newHandleAllocator(ObjectTypeRIF, cfg.MaxRIFs),
		allocNextHop:  newHandleAllocator(ObjectTypeNextHop, cfg.L3NeighborTableSize+cfg.NumECMPMembers),
		allocNHGroup:  newHandleAllocator(ObjectTypeNextHopGroup, cfg.NumECMPGroups),
		allocTunnel:   newHandleAllocator(ObjectTypeTunnel, cfg.MaxTunnels),
		allocTunTerm:  newHandleAllocator(ObjectTypeTunnelTermEntry, cfg.MaxTunnelTerms),
		allocTunMap:   newHandleAllocator(ObjectTypeTunnelMap, cfg.MaxTunnelMaps),
		allocTunMapEn: newHandleAllocator(ObjectTypeTunnelMapEntry, cfg.MaxTunnelMaps*16),
		allocHash:     newHandleAllocator(ObjectTypeHash, cfg.MaxHashes),

		vrfs:           make(map[Handle]*VirtualRouter),
		rifs:           make(map[Handle]*RouterInterface),
		nextHops:       make(map[Handle]*NextHop),
		nhGroups:       make(map[Handle]*NextHopGroup),
		tunnels:        make(map[Handle]*Tunnel),
		tunnelTerms:    make(map[Handle]*TunnelTerminationEntry),
		tunnelMaps:     make(map[Handle]*TunnelMap),
		tunnelMapEntry: make(map[Handle]*TunnelMapEntry),
		hashes:         make(map[Handle]*Hash),

		neighborMacTree: make(map[macKey][]Handle),

		switchSrcMAC: srcMAC,
		maxECMPPaths: cfg.NumECMPMembers,

		wake: make(chan struct{}, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.runDependencyWorker(ctx)

	util.WithSwitch(name).Info("switch initialized")
	return s
}

// Close stops the dependency-engine worker and waits for it to exit. It
// exists for deterministic test teardown; this requires no clean
// termination contract for the production call path (the worker otherwise
// runs for the process lifetime).
func (s *Switch) Close() {
	s.cancel()
	s.wg.Wait()
}

// SetMaxECMPPaths updates the switch-wide ECMP/WCMP member cap every
// NextHopGroup is checked against.
func (s *Switch) SetMaxECMPPaths(max uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxECMPPaths = max
}

func (s *Switch) lookupVRF(h Handle) (*VirtualRouter, error) {
	if h.Type() != ObjectTypeVirtualRouter {
		return nil, newError(StatusInvalidObjectType, "handle %s is not a virtual-router", h)
	}
	vr, ok := s.vrfs[h]
	if !ok {
		return nil, newError(StatusInvalidObjectId, "virtual-router %s does not exist", h)
	}
	return vr, nil
}

func (s *Switch) lookupRIF(h Handle) (*RouterInterface, error) {
	if h.Type() != ObjectTypeRIF {
		return nil, newError(StatusInvalidObjectType, "handle %s is not a router-interface", h)
	}
	rif, ok := s.rifs[h]
	if !ok {
		return nil, newError(StatusInvalidObjectId, "router-interface %s does not exist", h)
	}
	return rif, nil
}

func (s *Switch) lookupNextHop(h Handle) (*NextHop, error) {
	if h.Type() != ObjectTypeNextHop {
		return nil, newError(StatusInvalidObjectType, "handle %s is not a next-hop", h)
	}
	nh, ok := s.nextHops[h]
	if !ok {
		return nil, newError(StatusInvalidObjectId, "next-hop %s does not exist", h)
	}
	return nh, nil
}

func (s *Switch) lookupNHGroup(h Handle) (*NextHopGroup, error) {
	if h.Type() != ObjectTypeNextHopGroup {
		return nil, newError(StatusInvalidObjectType, "handle %s is not a next-hop-group", h)
	}
	g, ok := s.nhGroups[h]
	if !ok {
		return nil, newError(StatusInvalidObjectId, "next-hop-group %s does not exist", h)
	}
	return g, nil
}

func (s *Switch) lookupTunnel(h Handle) (*Tunnel, error) {
	if h.Type() != ObjectTypeTunnel {
		return nil, newError(StatusInvalidObjectType, "handle %s is not a tunnel", h)
	}
	t, ok := s.tunnels[h]
	if !ok {
		return nil, newError(StatusInvalidObjectId, "tunnel %s does not exist", h)
	}
	return t, nil
}

// signalWorker performs a non-blocking "single-bit pipe" write: at least
// one replay is guaranteed after the last signal before the worker next
// sleeps, but a pending signal is never queued twice.
func (s *Switch) signalWorker() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
