// Package redisshadow is an npu.Driver backed by Redis, mirroring the
// ASIC_STATE conventions pkg/newtron/device/sonic uses against SONiC's
// ASIC_DB: one hash per programmed object, keyed
// "ASIC_STATE:<SAI_OBJECT_TYPE>:oid:<handle>", with attributes stored as
// hash fields. It does not talk to a real ASIC; it gives a second driver
// implementation a durable, externally-inspectable backing store, the way
// a warm-restart-capable SAI adapter would shadow its own state.
package redisshadow

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/openfib/fibcore/pkg/npu"
)

// Driver is a Redis-backed shadow of ASIC_STATE. Every method uses the one
// context.Background() that New stores, matching the synchronous, best-effort style
// the SAI south-bound calls use elsewhere in this tree.
type Driver struct {
	client *redis.Client
	ctx    context.Context
}

// New returns a Driver against the Redis instance at addr, using db as the
// shadow ASIC_STATE database index.
func New(addr string, db int) *Driver {
	return &Driver{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ctx:    context.Background(),
	}
}

// Close releases the underlying Redis connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// Ping verifies connectivity, the way sonic.AppDBClient.Connect does.
func (d *Driver) Ping() error {
	return d.client.Ping(d.ctx).Err()
}

func key(objType string, handle uint64) string {
	return fmt.Sprintf("ASIC_STATE:SAI_OBJECT_TYPE_%s:oid:%#x", objType, handle)
}

func (d *Driver) hset(k string, fields map[string]interface{}) error {
	if err := d.client.HSet(d.ctx, k, fields).Err(); err != nil {
		return fmt.Errorf("redisshadow: hset %s: %w", k, err)
	}
	return nil
}

func (d *Driver) del(k string) error {
	if err := d.client.Del(d.ctx, k).Err(); err != nil {
		return fmt.Errorf("redisshadow: del %s: %w", k, err)
	}
	return nil
}

func macString(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// --- RouterDriver ---

func (d *Driver) RouterCreate(handle uint64, srcMAC [6]byte) error {
	return d.hset(key("ROUTER", handle), map[string]interface{}{
		"SAI_ROUTER_ATTR_SRC_MAC": macString(srcMAC),
	})
}

func (d *Driver) RouterRemove(handle uint64) error {
	return d.del(key("ROUTER", handle))
}

func (d *Driver) RouterAttrSet(handle uint64, attrID uint32, raw uint64) error {
	return d.hset(key("ROUTER", handle), map[string]interface{}{
		fmt.Sprintf("ATTR_%d", attrID): raw,
	})
}

// --- RIFDriver ---

func (d *Driver) RIFCreate(handle uint64, vrf uint64, portOrVlan uint32, isVlan bool, mac [6]byte, mtu uint32) error {
	return d.hset(key("ROUTER_INTERFACE", handle), map[string]interface{}{
		"SAI_ROUTER_INTERFACE_ATTR_VIRTUAL_ROUTER_ID": vrf,
		"SAI_ROUTER_INTERFACE_ATTR_PORT_OR_VLAN_ID":    portOrVlan,
		"SAI_ROUTER_INTERFACE_ATTR_IS_VLAN":            isVlan,
		"SAI_ROUTER_INTERFACE_ATTR_SRC_MAC_ADDRESS":    macString(mac),
		"SAI_ROUTER_INTERFACE_ATTR_MTU":                mtu,
	})
}

func (d *Driver) RIFRemove(handle uint64) error {
	return d.del(key("ROUTER_INTERFACE", handle))
}

func (d *Driver) RIFAttrSet(handle uint64, attrID uint32, raw uint64) error {
	return d.hset(key("ROUTER_INTERFACE", handle), map[string]interface{}{
		fmt.Sprintf("ATTR_%d", attrID): raw,
	})
}

func (d *Driver) SetPortRoutingMode(portID uint32, routing bool) error {
	k := fmt.Sprintf("ASIC_STATE:SAI_OBJECT_TYPE_PORT:oid:%#x", portID)
	return d.hset(k, map[string]interface{}{"SAI_PORT_ATTR_ROUTING": routing})
}

// --- NextHopDriver ---

func (d *Driver) NextHopCreate(handle uint64) error {
	return d.hset(key("NEXT_HOP", handle), map[string]interface{}{"SAI_NEXT_HOP_ATTR_CREATED": true})
}

func (d *Driver) NextHopRemove(handle uint64) error {
	return d.del(key("NEXT_HOP", handle))
}

func (d *Driver) NextHopAttrSet(handle uint64, attrID uint32, raw uint64, portFlag bool) error {
	fields := map[string]interface{}{fmt.Sprintf("ATTR_%d", attrID): raw}
	if portFlag {
		fields["SAI_NEXT_HOP_ATTR_PORT_CHANGED"] = true
	}
	return d.hset(key("NEXT_HOP", handle), fields)
}

func (d *Driver) EncapNHRouteResolve(encap uint64, route netip.Prefix, fwd uint64) error {
	return d.hset(key("NEXT_HOP", encap), map[string]interface{}{
		"SAI_NEXT_HOP_ATTR_RESOLVED_VIA":    "route",
		"SAI_NEXT_HOP_ATTR_UNDERLAY_ROUTE":  route.String(),
		"SAI_NEXT_HOP_ATTR_FORWARD_OBJECT":  fwd,
	})
}

func (d *Driver) EncapNHNeighborResolve(encap uint64, neighborMAC [6]byte, port uint32) error {
	return d.hset(key("NEXT_HOP", encap), map[string]interface{}{
		"SAI_NEXT_HOP_ATTR_RESOLVED_VIA":  "neighbor",
		"SAI_NEXT_HOP_ATTR_NEIGHBOR_MAC":  macString(neighborMAC),
		"SAI_NEXT_HOP_ATTR_NEIGHBOR_PORT": port,
	})
}

func (d *Driver) EncapNHNeighborAttrSet(encap uint64, neighborMAC [6]byte, port uint32, portFlag bool) error {
	fields := map[string]interface{}{
		"SAI_NEXT_HOP_ATTR_NEIGHBOR_MAC":  macString(neighborMAC),
		"SAI_NEXT_HOP_ATTR_NEIGHBOR_PORT": port,
	}
	if portFlag {
		fields["SAI_NEXT_HOP_ATTR_PORT_CHANGED"] = true
	}
	return d.hset(key("NEXT_HOP", encap), fields)
}

// --- NextHopGroupDriver ---

func (d *Driver) NextHopGroupCreate(handle uint64) error {
	return d.hset(key("NEXT_HOP_GROUP", handle), map[string]interface{}{"SAI_NEXT_HOP_GROUP_ATTR_CREATED": true})
}

func (d *Driver) NextHopGroupRemove(handle uint64) error {
	return d.del(key("NEXT_HOP_GROUP", handle))
}

func memberKey(group, member uint64) string {
	return fmt.Sprintf("ASIC_STATE:SAI_OBJECT_TYPE_NEXT_HOP_GROUP_MEMBER:oid:%#x:%#x", group, member)
}

func (d *Driver) NextHopGroupMemberAdd(group, member uint64, weight uint32) error {
	return d.hset(memberKey(group, member), map[string]interface{}{
		"SAI_NEXT_HOP_GROUP_MEMBER_ATTR_NEXT_HOP_GROUP_ID": group,
		"SAI_NEXT_HOP_GROUP_MEMBER_ATTR_NEXT_HOP_ID":       member,
		"SAI_NEXT_HOP_GROUP_MEMBER_ATTR_WEIGHT":            weight,
	})
}

func (d *Driver) NextHopGroupMemberRemove(group, member uint64) error {
	return d.del(memberKey(group, member))
}

// --- RouteDriver ---

// routeKey mirrors sonic.AsicDBClient.GetRouteASIC's canonical JSON route
// key, substituting the fib VRF handle for the resolved VR OID.
func routeKey(vrf uint64, prefix netip.Prefix) string {
	return fmt.Sprintf(`ASIC_STATE:SAI_OBJECT_TYPE_ROUTE_ENTRY:{"dest":"%s","vr":"%#x"}`, prefix, vrf)
}

func (d *Driver) RouteCreate(vrf uint64, prefix netip.Prefix, v npu.RouteView) error {
	return d.writeRouteView(vrf, prefix, v)
}

func (d *Driver) RouteRemove(vrf uint64, prefix netip.Prefix) error {
	return d.del(routeKey(vrf, prefix))
}

func (d *Driver) RouteAttrSet(vrf uint64, prefix netip.Prefix, v npu.RouteView) error {
	return d.writeRouteView(vrf, prefix, v)
}

func (d *Driver) writeRouteView(vrf uint64, prefix netip.Prefix, v npu.RouteView) error {
	return d.hset(routeKey(vrf, prefix), map[string]interface{}{
		"SAI_ROUTE_ENTRY_ATTR_PACKET_ACTION": v.Action,
		"SAI_ROUTE_ENTRY_ATTR_TRAP_PRIORITY": v.TrapPriority,
		"SAI_ROUTE_ENTRY_ATTR_META_DATA":     v.Metadata,
		"SAI_ROUTE_ENTRY_ATTR_FWD_KIND":      v.FwdKind,
		"SAI_ROUTE_ENTRY_ATTR_NEXT_HOP_ID":   strconv.FormatUint(v.FwdObject, 16),
	})
}

// --- FDBDriver ---

func fdbKey(vlan uint16, mac [6]byte) string {
	return fmt.Sprintf("ASIC_STATE:SAI_OBJECT_TYPE_FDB_ENTRY:{\"vlan\":%d,\"mac\":\"%s\"}", vlan, macString(mac))
}

func (d *Driver) FDBFlush(vlan uint16, mac [6]byte) error {
	return d.del(fdbKey(vlan, mac))
}

func (d *Driver) FDBRegisterCallback(vlan uint16, mac [6]byte) error {
	return d.hset(fdbKey(vlan, mac), map[string]interface{}{"SAI_FDB_ENTRY_ATTR_CALLBACK": true})
}

func (d *Driver) FDBWriteEntry(vlan uint16, mac [6]byte, port uint32) error {
	return d.hset(fdbKey(vlan, mac), map[string]interface{}{"SAI_FDB_ENTRY_ATTR_PORT_ID": port})
}

// --- TunnelDriver ---

func (d *Driver) TunnelCreate(handle uint64) error {
	return d.hset(key("TUNNEL", handle), map[string]interface{}{"SAI_TUNNEL_ATTR_CREATED": true})
}

func (d *Driver) TunnelRemove(handle uint64) error {
	return d.del(key("TUNNEL", handle))
}

func (d *Driver) TunnelTermEntryCreate(handle uint64) error {
	return d.hset(key("TUNNEL_TERM_TABLE_ENTRY", handle), map[string]interface{}{"SAI_TUNNEL_TERM_TABLE_ENTRY_ATTR_CREATED": true})
}

func (d *Driver) TunnelTermEntryRemove(handle uint64) error {
	return d.del(key("TUNNEL_TERM_TABLE_ENTRY", handle))
}

func (d *Driver) TunnelMapCreate(handle uint64) error {
	return d.hset(key("TUNNEL_MAP", handle), map[string]interface{}{"SAI_TUNNEL_MAP_ATTR_CREATED": true})
}

func (d *Driver) TunnelMapRemove(handle uint64) error {
	return d.del(key("TUNNEL_MAP", handle))
}

func (d *Driver) TunnelMapEntryCreate(handle uint64, bridgeID, vni uint32) error {
	return d.hset(key("TUNNEL_MAP_ENTRY", handle), map[string]interface{}{
		"SAI_TUNNEL_MAP_ENTRY_ATTR_BRIDGE_ID": bridgeID,
		"SAI_TUNNEL_MAP_ENTRY_ATTR_VNI_ID":    vni,
	})
}

func (d *Driver) TunnelMapEntrySet(handle uint64, bridgeID, vni uint32) error {
	return d.TunnelMapEntryCreate(handle, bridgeID, vni)
}

func (d *Driver) TunnelMapEntryRemove(handle uint64) error {
	return d.del(key("TUNNEL_MAP_ENTRY", handle))
}

// --- HashDriver ---

func (d *Driver) HashCreate(handle uint64, nativeFields uint32, algorithm int32) error {
	return d.hset(key("HASH", handle), map[string]interface{}{
		"SAI_HASH_ATTR_NATIVE_FIELD_LIST": nativeFields,
		"SAI_HASH_ATTR_ALGORITHM":         algorithm,
	})
}

func (d *Driver) HashRemove(handle uint64) error {
	return d.del(key("HASH", handle))
}

func (d *Driver) HashAttrSet(handle uint64, nativeFields uint32, algorithm int32) error {
	return d.HashCreate(handle, nativeFields, algorithm)
}

var _ npu.Driver = (*Driver)(nil)
