// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"errors"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// FilesystemTypeBtrfs is the filesystem type for btrfs.
const FilesystemTypeBtrfs = "btrfs"

// Btrfs creates a btrfs filesystem spanning the specified devices. With more
// than one device both data and metadata are striped across the set.
func Btrfs(devnames []string, setters ...Option) error {
	if len(devnames) == 0 {
		return errors.New("missing path to disk")
	}

	opts := NewDefaultOptions(setters...)

	var args []string

	if opts.Force {
		args = append(args, "-f")
	}

	if opts.Label != "" {
		args = append(args, "-L", opts.Label)
	}

	if len(devnames) > 1 {
		args = append(args, "-d", "raid0", "-m", "raid0")
	}

	args = append(args, devnames...)

	_, err := cmd.Run("mkfs.btrfs", args...)

	return err
}

// BtrfsBalance rebalances a mounted btrfs filesystem so existing block
// groups spread over all member devices.
func BtrfsBalance(mountpoint string) error {
	_, err := cmd.Run("btrfs", "balance", "start", "--full-balance", mountpoint)

	return err
}
