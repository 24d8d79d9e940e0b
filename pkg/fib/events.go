package fib

import "github.com/openfib/fibcore/pkg/util"

// OnLAGMembersAdded implements the C11 LAG-membership-changed callback
//: every RIF attached to lagID has its newly-joined members
// moved into routing forward mode.
func (s *Switch) OnLAGMembersAdded(lagID uint32, ports []uint32) {
	s.mu.Lock()
	rifs := s.rifsOnLAGLocked(lagID)
	s.mu.Unlock()

	for _, h := range rifs {
		if err := s.RIFAddLAGMembers(h, ports); err != nil {
			util.WithSwitch(s.name).WithOperation("lag-members-added").WithField("rif", h).Warn("add members failed")
		}
	}
}

// OnLAGMembersRemoved is the mirror of OnLAGMembersAdded for departing
// members.
func (s *Switch) OnLAGMembersRemoved(lagID uint32, ports []uint32) {
	s.mu.Lock()
	rifs := s.rifsOnLAGLocked(lagID)
	s.mu.Unlock()

	for _, h := range rifs {
		if err := s.RIFRemoveLAGMembers(h, ports); err != nil {
			util.WithSwitch(s.name).WithOperation("lag-members-removed").WithField("rif", h).Warn("remove members failed")
		}
	}
}

func (s *Switch) rifsOnLAGLocked(lagID uint32) []Handle {
	var out []Handle
	for h, rif := range s.rifs {
		if rif.AttachType == RIFAttachPort && rif.IsLAG && rif.PortID == lagID {
			out = append(out, h)
		}
	}
	return out
}

// OnPortUp/OnPortDown implement the C11 port-state passthrough: a
// Port-attached RIF's forward mode tracks the underlying port's link state,
//.
func (s *Switch) OnPortUp(portID uint32) {
	s.onPortStateChange(portID, true)
}

func (s *Switch) OnPortDown(portID uint32) {
	s.onPortStateChange(portID, false)
}

func (s *Switch) onPortStateChange(portID uint32, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rif := range s.rifs {
		if rif.AttachType == RIFAttachPort && rif.PortID == portID {
			if err := s.driver.SetPortRoutingMode(portID, up); err != nil {
				util.WithSwitch(s.name).WithOperation("port-state-change").WithField("port", portID).Warn("routing mode push failed")
			}
		}
	}
}
