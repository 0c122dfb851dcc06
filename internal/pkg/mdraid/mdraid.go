// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mdraid assembles striped software RAID arrays out of ephemeral
// disks.
package mdraid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Create builds a striped (raid0) array over the given devices.
func Create(arrayPath string, devices []string) error {
	args := []string{
		"--create", arrayPath,
		"--force",
		"--run",
		"--level=0",
		"--raid-devices=" + strconv.Itoa(len(devices)),
	}
	args = append(args, devices...)

	if _, err := cmd.Run("mdadm", args...); err != nil {
		return fmt.Errorf("error creating array %s: %w", arrayPath, err)
	}

	return nil
}

// Persist appends the array scan output to the mdadm configuration so the
// array reassembles on later boots. Lines already present are not
// duplicated.
func Persist(confPath string) error {
	scan, err := cmd.Run("mdadm", "--detail", "--scan")
	if err != nil {
		return fmt.Errorf("error scanning arrays: %w", err)
	}

	existing, err := os.ReadFile(confPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(confPath), 0o755); err != nil {
		return err
	}

	var sb strings.Builder

	sb.Write(existing)

	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		sb.WriteByte('\n')
	}

	appended := 0

	for _, line := range strings.Split(strings.TrimSpace(scan), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(string(existing), line) {
			continue
		}

		sb.WriteString(line)
		sb.WriteByte('\n')

		appended++
	}

	if appended == 0 {
		return nil
	}

	return os.WriteFile(confPath, []byte(sb.String()), 0o644)
}
