// Package fibconfig loads switch-wide configuration keys and handle-allocator
// capacities into a single Config struct. A file is optional — Default
// returns the built-in defaults, and Load layers an optional YAML file's
// keys on top of them.
package fibconfig

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every KV the fib core consumes, plus the handle-allocator
// capacities (tunnels 64, tunnel-terms 64, tunnel-maps 256, hashes 256) and
// the VRF/RIF table sizes a real NPU driver would also need sized up front.
type Config struct {
	// NPU sizing hints.
	FDBTableSize        uint32 `yaml:"fdb_table_size"`
	L3RouteTableSize    uint32 `yaml:"l3_route_table_size"`
	L3NeighborTableSize uint32 `yaml:"l3_neighbor_table_size"`

	// ECMP/LAG caps.
	NumLAGMembers  uint32 `yaml:"num_lag_members"`
	NumLAGs        uint32 `yaml:"num_lags"`
	NumECMPMembers uint32 `yaml:"num_ecmp_members"`
	NumECMPGroups  uint32 `yaml:"num_ecmp_groups"`

	// Queue inventory.
	NumUnicastQueues   uint32 `yaml:"num_unicast_queues"`
	NumMulticastQueues uint32 `yaml:"num_multicast_queues"`
	NumQueues          uint32 `yaml:"num_queues"`
	NumCPUQueues       uint32 `yaml:"num_cpu_queues"`

	// NPU-specific init. Warm-restart is accepted but ignored: it is
	// parsed here purely so a config file that sets it doesn't fail to
	// load, and is otherwise a no-op.
	InitConfigFile string `yaml:"init_config_file"`
	WarmRestart    bool   `yaml:"warm_restart"`

	// Handle-allocator capacities.
	MaxVRFs        uint32 `yaml:"max_vrfs"`
	MaxRIFs        uint32 `yaml:"max_rifs"`
	MaxTunnels     uint32 `yaml:"max_tunnels"`
	MaxTunnelTerms uint32 `yaml:"max_tunnel_terms"`
	MaxTunnelMaps  uint32 `yaml:"max_tunnel_maps"`
	MaxHashes      uint32 `yaml:"max_hashes"`
}

// Default returns the built-in default capacities with generously-sized
// table/queue hints typical of a fixed-function NPU.
func Default() *Config {
	return &Config{
		FDBTableSize:        16384,
		L3RouteTableSize:    65536,
		L3NeighborTableSize: 8192,

		NumLAGMembers:  32,
		NumLAGs:        128,
		NumECMPMembers: 32,
		NumECMPGroups:  4096,

		NumUnicastQueues:   8,
		NumMulticastQueues: 8,
		NumQueues:          16,
		NumCPUQueues:       8,

		MaxVRFs:        256,
		MaxRIFs:        4096,
		MaxTunnels:     64,
		MaxTunnelTerms: 64,
		MaxTunnelMaps:  256,
		MaxHashes:      256,
	}
}

// Load reads path as YAML over Default's values; a field absent from the
// file keeps the default, and a field present in the file replaces it, even
// when its value is zero. A missing file is not an error —
// callers that only want defaults can pass an empty path.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
