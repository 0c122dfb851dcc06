// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package salt

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MasterConfig is the master-side drop-in: file serving roots, pillar
// roots and the peer ACL that lets minions publish to each other.
type MasterConfig struct {
	FileRoots   map[string][]string `yaml:"file_roots"`
	PillarRoots map[string][]string `yaml:"pillar_roots"`
	Peer        map[string][]string `yaml:"peer"`
}

// DefaultMasterConfig returns the stack's standard master drop-in.
func DefaultMasterConfig() *MasterConfig {
	return &MasterConfig{
		FileRoots: map[string][]string{
			"base": {"/srv/salt"},
		},
		PillarRoots: map[string][]string{
			"base": {"/srv/pillar"},
		},
		Peer: map[string][]string{
			".*": {"test.ping", "network.ip_addrs", "grains.item"},
		},
	}
}

// MinionConfig is the minion-side tuning drop-in.
type MinionConfig struct {
	Master           string `yaml:"master"`
	TCPKeepAlive     bool   `yaml:"tcp_keepalive"`
	TCPKeepAliveIdle int    `yaml:"tcp_keepalive_idle"`

	MineInterval  int                 `yaml:"mine_interval"`
	MineFunctions map[string][]string `yaml:"mine_functions"`
}

// DefaultMinionConfig returns the stack's standard minion drop-in,
// including the periodic mine configuration.
func DefaultMinionConfig(masterAddr string) *MinionConfig {
	return &MinionConfig{
		Master:           masterAddr,
		TCPKeepAlive:     true,
		TCPKeepAliveIdle: 60,
		MineInterval:     5,
		MineFunctions: map[string][]string{
			"network.ip_addrs": {},
			"grains.item":      {"role", "stack", "environment"},
		},
	}
}

// WriteDropIn persists a config drop-in below the salt configuration
// directory, e.g. dir="master.d", name="opg.conf".
func WriteDropIn(configDir, dir, name string, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	target := filepath.Join(configDir, dir)

	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(target, name), out, 0o644)
}
