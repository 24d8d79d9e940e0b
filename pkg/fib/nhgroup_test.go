package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

func TestCreateNextHopGroup_Empty(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	g, err := sw.CreateNextHopGroup(attr.List{})
	require.NoError(t, err)
	require.Equal(t, ObjectTypeNextHopGroup, g.Type())
	require.Equal(t, 1, driver.CallCount("NextHopGroupCreate"))
	require.Empty(t, sw.nhGroups[g].Members)
}

// P2: a group's nh_count is the sum of member weights, independent of its
// member count.
func TestNextHopGroupMemberAdd_NHCountIsWeightSum(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	g, err := sw.CreateNextHopGroup(attr.List{})
	require.NoError(t, err)

	nh1 := createIPNH(t, sw, rif, "10.0.0.2")
	nh2 := createIPNH(t, sw, rif, "10.0.0.3")

	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh1, 3))
	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh2, 5))

	grp := sw.nhGroups[g]
	require.Equal(t, uint32(8), grp.NHCount)
	require.Len(t, grp.Members, 2)
	require.Equal(t, uint32(3), sw.nextHops[nh1].Groups[g])
}

// P9: re-adding an already-present member at the same weight is a no-op
// that does not reach the NPU a second time.
func TestNextHopGroupMemberAdd_IdempotentAtSameWeight(t *testing.T) {
	sw, driver := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	g, err := sw.CreateNextHopGroup(attr.List{})
	require.NoError(t, err)
	nh := createIPNH(t, sw, rif, "10.0.0.2")

	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh, 2))
	before := driver.CallCount("NextHopGroupMemberAdd")

	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh, 2))
	require.Equal(t, before, driver.CallCount("NextHopGroupMemberAdd"))
	require.Equal(t, uint32(2), sw.nhGroups[g].NHCount)

	require.NoError(t, sw.NextHopGroupMemberRemove(g, nh))
	require.Empty(t, sw.nhGroups[g].Members)
	require.Equal(t, uint32(0), sw.nhGroups[g].NHCount)
	require.Empty(t, sw.nextHops[nh].Groups)
}

// P12: adding a member beyond max_ecmp_paths fails with
// InsufficientResources and leaves the group untouched.
func TestNextHopGroupMemberAdd_ExceedsMaxECMPPaths(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()
	sw.maxECMPPaths = 4

	_, rif := createPortRIF(t, sw, 1)
	g, err := sw.CreateNextHopGroup(attr.List{})
	require.NoError(t, err)

	nh1 := createIPNH(t, sw, rif, "10.0.0.2")
	nh2 := createIPNH(t, sw, rif, "10.0.0.3")

	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh1, 4))

	err = sw.NextHopGroupMemberAdd(g, nh2, 1)
	require.Error(t, err)
	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, StatusInsufficientResources, ferr.Status)
	require.NotContains(t, sw.nhGroups[g].Members, nh2)
}

// S3: a next hop still referenced by a group refuses removal until it is
// removed from every group.
func TestRemoveNextHop_ObjectInUseWhileGroupMember(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	g, err := sw.CreateNextHopGroup(attr.List{})
	require.NoError(t, err)
	nh := createIPNH(t, sw, rif, "10.0.0.2")

	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh, 1))

	err = sw.RemoveNextHop(nh)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrObjectInUse)

	require.NoError(t, sw.NextHopGroupMemberRemove(g, nh))
	require.NoError(t, sw.RemoveNextHop(nh))
}

// A group with live members or dependent routes refuses removal.
func TestRemoveNextHopGroup_ObjectInUseWithMembers(t *testing.T) {
	sw, _ := newTestSwitch(t)
	defer sw.Close()

	_, rif := createPortRIF(t, sw, 1)
	g, err := sw.CreateNextHopGroup(attr.List{})
	require.NoError(t, err)
	nh := createIPNH(t, sw, rif, "10.0.0.2")
	require.NoError(t, sw.NextHopGroupMemberAdd(g, nh, 1))

	err = sw.RemoveNextHopGroup(g)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrObjectInUse)

	require.NoError(t, sw.NextHopGroupMemberRemove(g, nh))
	require.NoError(t, sw.RemoveNextHopGroup(g))
}
