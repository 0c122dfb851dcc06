// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blockdev discovers and resolves instance block devices.
package blockdev

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/einyx/opg-bootstrap/internal/pkg/backoff"
	"github.com/einyx/opg-bootstrap/internal/pkg/metadata"
)

// Device is a discovered block device.
type Device struct {
	// Name is the logical name from the metadata mapping (e.g. "sdb").
	Name string

	// Path is the resolved physical device path (e.g. "/dev/xvdb").
	Path string
}

// DeviceNotFoundError indicates an expected device did not appear within
// the wait budget. Callers continue with presence=false.
type DeviceNotFoundError struct {
	Candidates []string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("block device not found: tried %v", e.Candidates)
}

var ephemeralPattern = regexp.MustCompile(`^ephemeral[0-9]+$`)

// Resolver resolves logical device names against a device directory. The
// zero value is not usable; use NewResolver.
type Resolver struct {
	// DevDir is the device directory, normally /dev.
	DevDir string

	// IsBlock reports whether the path exists and is a block device.
	IsBlock func(path string) bool
}

// NewResolver builds a Resolver against /dev.
func NewResolver() *Resolver {
	return &Resolver{
		DevDir:  "/dev",
		IsBlock: isBlockDevice,
	}
}

// Resolve maps a logical device name to an existing physical path. Modern
// kernels expose the Xen virtual device name, so "sdb" falls back to
// "xvdb" when /dev/sdb does not exist.
func (r *Resolver) Resolve(name string) (string, bool) {
	candidates := []string{name}

	if len(name) > 2 && name[:2] == "sd" {
		candidates = append(candidates, "xvd"+name[2:])
	}

	for _, candidate := range candidates {
		path := filepath.Join(r.DevDir, candidate)
		if r.IsBlock(path) {
			return path, true
		}
	}

	return "", false
}

// DiscoverEphemeral enumerates the instance's ephemeral disks from the
// metadata block-device mapping. Mapping entries that resolve to no
// existing block device are skipped. The result is deduplicated by
// resolved path and sorted ascending, so repeated discovery over the same
// metadata yields an identical set.
func (r *Resolver) DiscoverEphemeral(ctx context.Context, client *metadata.Client) ([]Device, error) {
	mappings, err := client.BlockDeviceMappings(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}

	var devices []Device

	for name, logical := range mappings {
		if !ephemeralPattern.MatchString(name) {
			continue
		}

		path, ok := r.Resolve(logical)
		if !ok {
			continue
		}

		if _, dup := seen[path]; dup {
			continue
		}

		seen[path] = struct{}{}

		devices = append(devices, Device{Name: logical, Path: path})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})

	return devices, nil
}

// WaitForAny waits for any of the candidate names to resolve to a block
// device. With a zero budget the check is immediate. Exhaustion returns a
// DeviceNotFoundError; the caller decides whether that aborts anything.
func (r *Resolver) WaitForAny(ctx context.Context, logger *zap.Logger, names []string, budget backoff.Linear) (string, error) {
	resolveAny := func() (string, bool) {
		for _, name := range names {
			if path, ok := r.Resolve(name); ok {
				return path, ok
			}
		}

		return "", false
	}

	if budget.Attempts <= 1 {
		if path, ok := resolveAny(); ok {
			return path, nil
		}

		return "", &DeviceNotFoundError{Candidates: names}
	}

	var path string

	err := budget.Run(ctx, func(context.Context) error {
		var ok bool

		if path, ok = resolveAny(); !ok {
			logger.Info("waiting for block device", zap.Strings("candidates", names))

			return &DeviceNotFoundError{Candidates: names}
		}

		return nil
	})
	if err != nil {
		return "", &DeviceNotFoundError{Candidates: names}
	}

	return path, nil
}

func isBlockDevice(path string) bool {
	var st unix.Stat_t

	if err := unix.Stat(path, &st); err != nil {
		return false
	}

	return st.Mode&unix.S_IFMT == unix.S_IFBLK
}
