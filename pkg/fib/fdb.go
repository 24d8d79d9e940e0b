package fib

import (
	"net"

	"github.com/openfib/fibcore/pkg/util"
)

// FDBEventKind discriminates one entry in a batch the MAC-learning pipeline
// delivers to ProcessFDBEvents.
type FDBEventKind int32

const (
	FDBLearned FDBEventKind = iota
	FDBAged
	FDBMoved
	FDBFlushed
)

// FDBEvent is one observed change to the hardware-learned MAC table.
type FDBEvent struct {
	Kind FDBEventKind
	VLAN uint16
	MAC  net.HardwareAddr
	Port uint32
}

// macToU64 packs a MAC address into the raw uint64 an attr-set call carries,
// since attr.Value has no raw accessor for KindMAC.
func macToU64(mac net.HardwareAddr) uint64 {
	var raw uint64
	for _, b := range mac {
		raw = raw<<8 | uint64(b)
	}
	return raw
}

// ProcessFDBEvents implements the C8 FDB event-batch adapter. A Learned or
// Moved event is first checked against stp.CanLearn: if the port is down,
// not a VLAN member, or STP-blocked, the learn is invalid and the adapter
// flushes the offending entry back out of the NPU instead of creating or
// updating any neighbor. A valid event is then matched against
// neighbor_mac_tree; events with no dependent neighbor are a silent no-op,
// since the FIB core only cares about MACs a Neighbor was created against.
// A Learned/Moved event for a dependent neighbor either resolves its
// PendingFDBPort (first learn) or moves its port (the port changed since
// last resolved), in both cases by reprogramming the neighbor through an
// NPU attr-set with the port flag set, exactly like an explicit
// SetNeighborAttribute port-affecting change.
func (s *Switch) ProcessFDBEvents(events []FDBEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		s.processFDBEventLocked(ev)
	}
}

func (s *Switch) processFDBEventLocked(ev FDBEvent) {
	if (ev.Kind == FDBLearned || ev.Kind == FDBMoved) && s.stp != nil && !s.stp.CanLearn(ev.VLAN, ev.Port) {
		if err := s.driver.FDBFlush(ev.VLAN, macArray(ev.MAC)); err != nil {
			util.WithSwitch(s.name).WithOperation("fdb-event").WithField("vlan", ev.VLAN).Warn("invalid-learn flush failed")
		}
		return
	}

	mk := macKeyOf(ev.VLAN, ev.MAC)
	handles, ok := s.neighborMacTree[mk]
	if !ok || len(handles) == 0 {
		return // no dependent neighbor, nothing to do
	}

	switch ev.Kind {
	case FDBLearned, FDBMoved:
		for _, h := range handles {
			nh, ok := s.nextHops[h]
			if !ok || !nh.Owner.has(ownerNeighbor) {
				continue
			}
			if nh.PortID == ev.Port {
				nh.PendingFDBPort = false
				continue
			}
			if err := s.driver.NextHopAttrSet(uint64(h), uint32(NeighborAttrMAC), macToU64(nh.MAC), true); err != nil {
				util.WithSwitch(s.name).WithOperation("fdb-event").WithField("nexthop", h).Warn("port move push failed")
				continue
			}
			nh.PortID = ev.Port
			nh.PendingFDBPort = false
			s.replayEncapDepsOf(nh)
		}
	case FDBAged:
		// A neighbor-owned MAC aging out of hardware doesn't remove the
		// Neighbor object itself (only an explicit RemoveNeighbor does); the
		// node just goes back to PendingFDBPort until re-learned.
		for _, h := range handles {
			if nh, ok := s.nextHops[h]; ok && nh.Owner.has(ownerNeighbor) {
				nh.PendingFDBPort = true
			}
		}
	case FDBFlushed:
		// Nothing neighbor-owned should have been flushed out from under us;
		// re-assert the neighbor's own binding to correct the hardware state.
		for _, h := range handles {
			nh, ok := s.nextHops[h]
			if !ok || !nh.Owner.has(ownerNeighbor) {
				continue
			}
			if err := s.driver.FDBWriteEntry(ev.VLAN, macArray(nh.MAC), nh.PortID); err != nil {
				util.WithSwitch(s.name).WithOperation("fdb-event").WithField("nexthop", h).Warn("re-assert after flush failed")
			}
		}
	}
}
