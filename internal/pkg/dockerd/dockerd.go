// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dockerd inspects and reconfigures the docker engine.
package dockerd

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// DaemonConfig is the subset of the engine configuration the bootstrap
// manages.
type DaemonConfig struct {
	StorageDriver string `json:"storage-driver"`
	DataRoot      string `json:"data-root"`
}

// Present reports whether the docker engine is installed.
func Present() bool {
	_, err := exec.LookPath("dockerd")
	if err == nil {
		return true
	}

	_, err = exec.LookPath("docker")

	return err == nil
}

// Version returns the engine version, or "" when it cannot be determined.
// The value only feeds a grain, so failures are not propagated.
func Version(ctx context.Context) string {
	out, err := cmd.RunContext(ctx, "docker", "version", "--format", "{{.Server.Version}}")
	if err != nil {
		return ""
	}

	return strings.TrimSpace(out)
}

// WriteDaemonConfig switches the engine's storage backend onto the
// provisioned copy-on-write filesystem.
func WriteDaemonConfig(path, dataRoot string) error {
	config := DaemonConfig{
		StorageDriver: "btrfs",
		DataRoot:      dataRoot,
	}

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, append(out, '\n'), 0o644)
}
