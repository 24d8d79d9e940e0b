package fib

import (
	"context"

	"github.com/openfib/fibcore/pkg/util"
)

// runDependencyWorker is the long-lived goroutine this requires:
// it wakes on every signalWorker() call (collapsing bursts into a single
// pass, never queuing more than one pending wake) and re-pushes every route
// marked dirty since its last pass down to the driver. Synchronous callers
// already drive the resolution algorithm inline on their own goroutine; this
// pass exists to make that replay idempotent and to give warm-restart/crash
// recovery a single place to re-synchronize hardware state from the dirty
// set instead of a full table walk.
func (s *Switch) runDependencyWorker(ctx context.Context) {
	defer s.wg.Done()
	log := util.WithSwitch(s.name).WithOperation("dependency-worker")
	log.Debug("dependency worker started")
	for {
		select {
		case <-ctx.Done():
			log.Debug("dependency worker stopped")
			return
		case <-s.wake:
			s.drainOnce()
		}
	}
}

func (s *Switch) drainOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, vr := range s.vrfs {
		s.drainTree(vr.routeTreeV4)
		s.drainTree(vr.routeTreeV6)
	}
}

func (s *Switch) drainTree(tree *routeTree) {
	for _, r := range tree.drainDirty() {
		if err := s.driver.RouteAttrSet(uint64(r.VRF), r.Prefix, routeDriverView(r)); err != nil {
			util.WithSwitch(s.name).WithOperation("dependency-worker").
				WithField("prefix", r.Prefix).Warn("replay route attr set failed")
		}
	}
}
