// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package salt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/einyx/opg-bootstrap/internal/pkg/salt"
)

func TestWriteDropIn(t *testing.T) {
	configDir := t.TempDir()

	require.NoError(t, salt.WriteDropIn(configDir, "minion.d", "opg.conf", salt.DefaultMinionConfig("10.0.1.10")))

	contents, err := os.ReadFile(filepath.Join(configDir, "minion.d", "opg.conf"))
	require.NoError(t, err)

	var got salt.MinionConfig

	require.NoError(t, yaml.Unmarshal(contents, &got))

	assert.Equal(t, "10.0.1.10", got.Master)
	assert.True(t, got.TCPKeepAlive)
	assert.Equal(t, 60, got.TCPKeepAliveIdle)
	assert.Equal(t, 5, got.MineInterval)
	assert.Contains(t, got.MineFunctions, "network.ip_addrs")
}

func TestDefaultMasterConfigPeerACL(t *testing.T) {
	cfg := salt.DefaultMasterConfig()

	// Minions must be able to publish the round-trip probe.
	assert.Contains(t, cfg.Peer[".*"], "test.ping")
	assert.Equal(t, []string{"/srv/salt"}, cfg.FileRoots["base"])
	assert.Equal(t, []string{"/srv/pillar"}, cfg.PillarRoots["base"])
}
