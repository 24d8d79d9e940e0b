//go:build integration

package redisshadow

import (
	"net/netip"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfib/fibcore/pkg/npu"
)

// redisAddr follows the NEWTRON_TEST_REDIS_ADDR env-var convention used
// elsewhere in this codebase's integration tests, scoped to this package's
// own variable since no container-discovery helper survives here.
func redisAddr() string {
	if addr := os.Getenv("FIBCORE_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:6379"
}

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d := New(redisAddr(), 15)
	if err := d.Ping(); err != nil {
		t.Skipf("no redis reachable at %s: %v", redisAddr(), err)
	}
	t.Cleanup(func() {
		d.client.FlushDB(d.ctx)
		d.Close()
	})
	return d
}

func TestRouterCreate_WritesShadowHash(t *testing.T) {
	d := newTestDriver(t)

	require.NoError(t, d.RouterCreate(1, [6]byte{0x02, 0, 0, 0, 0, 1}))

	vals, err := d.client.HGetAll(d.ctx, key("ROUTER", 1)).Result()
	require.NoError(t, err)
	require.Equal(t, "02:00:00:00:00:01", vals["SAI_ROUTER_ATTR_SRC_MAC"])

	require.NoError(t, d.RouterRemove(1))
	n, err := d.client.Exists(d.ctx, key("ROUTER", 1)).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRouteCreate_KeyNamingMatchesASICConvention(t *testing.T) {
	d := newTestDriver(t)

	prefix := netip.MustParsePrefix("192.0.2.0/24")
	v := npu.RouteView{Action: 1, FwdKind: 1, FwdObject: 0x2a}
	require.NoError(t, d.RouteCreate(0x10, prefix, v))

	k := routeKey(0x10, prefix)
	require.Contains(t, k, `"dest":"192.0.2.0/24"`)
	require.Contains(t, k, `"vr":"0x10"`)

	vals, err := d.client.HGetAll(d.ctx, k).Result()
	require.NoError(t, err)
	require.Equal(t, "2a", vals["SAI_ROUTE_ENTRY_ATTR_NEXT_HOP_ID"])

	require.NoError(t, d.RouteRemove(0x10, prefix))
}

func TestNextHopGroupMemberAdd_WritesCompositeKey(t *testing.T) {
	d := newTestDriver(t)

	require.NoError(t, d.NextHopGroupCreate(1))
	require.NoError(t, d.NextHopGroupMemberAdd(1, 2, 5))

	vals, err := d.client.HGetAll(d.ctx, memberKey(1, 2)).Result()
	require.NoError(t, err)
	require.Equal(t, "5", vals["SAI_NEXT_HOP_GROUP_MEMBER_ATTR_WEIGHT"])

	require.NoError(t, d.NextHopGroupMemberRemove(1, 2))
	n, err := d.client.Exists(d.ctx, memberKey(1, 2)).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}
