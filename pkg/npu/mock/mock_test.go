package mock

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallCount_TracksEachMethod(t *testing.T) {
	d := New()
	require.Equal(t, 0, d.CallCount("RouterCreate"))

	require.NoError(t, d.RouterCreate(1, [6]byte{2}))
	require.NoError(t, d.RouterCreate(2, [6]byte{2}))
	require.NoError(t, d.RouterRemove(1))

	require.Equal(t, 2, d.CallCount("RouterCreate"))
	require.Equal(t, 1, d.CallCount("RouterRemove"))
	require.Equal(t, 0, d.CallCount("RIFCreate"))
}

// SelectGroupMember gives heavier members a proportionally larger share of
// flow keys, and is deterministic for a fixed membership set.
func TestSelectGroupMember_WeightedDistribution(t *testing.T) {
	d := New()
	require.NoError(t, d.NextHopGroupCreate(1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 10, 1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 20, 3))

	counts := make(map[uint64]int)
	const flows = 4000
	for i := 0; i < flows; i++ {
		member, ok := d.SelectGroupMember(1, fmt.Sprintf("flow-%d", i))
		require.True(t, ok)
		counts[member]++
	}

	require.Len(t, counts, 2)
	// Member 20 carries 3x the weight of member 10; allow generous slack
	// since rendezvous hashing only approximates the ratio over finite flows.
	ratio := float64(counts[20]) / float64(counts[10])
	require.InDelta(t, 3.0, ratio, 1.0)
}

// Flow stickiness: removing an uninvolved member must not reassign flows
// that were already resolving to a surviving member.
func TestSelectGroupMember_StickyAcrossMembershipChange(t *testing.T) {
	d := New()
	require.NoError(t, d.NextHopGroupCreate(1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 10, 1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 20, 1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 30, 1))

	const flows = 500
	before := make(map[string]uint64, flows)
	for i := 0; i < flows; i++ {
		key := fmt.Sprintf("flow-%d", i)
		member, ok := d.SelectGroupMember(1, key)
		require.True(t, ok)
		before[key] = member
	}

	require.NoError(t, d.NextHopGroupMemberRemove(1, 30))

	unchanged := 0
	for key, oldMember := range before {
		if oldMember == 30 {
			continue
		}
		newMember, ok := d.SelectGroupMember(1, key)
		require.True(t, ok)
		if newMember == oldMember {
			unchanged++
		}
	}
	total := 0
	for _, m := range before {
		if m != 30 {
			total++
		}
	}
	require.Equal(t, total, unchanged, "every flow not on the removed member must stay put")
}

func TestRoutes_EmptyWhenNoRouteProgrammed(t *testing.T) {
	d := New()
	require.NoError(t, d.RIFCreate(1, 1, 3, false, [6]byte{}, 1500))

	require.Empty(t, d.Routes())
}

func TestGroupMembers_ReturnsLiveWeights(t *testing.T) {
	d := New()
	require.NoError(t, d.NextHopGroupCreate(1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 10, 2))

	members := d.GroupMembers(1)
	require.Equal(t, map[uint64]uint32{10: 2}, members)

	require.NoError(t, d.NextHopGroupMemberRemove(1, 10))
	require.Empty(t, d.GroupMembers(1))

	require.Nil(t, d.GroupMembers(99))
}
