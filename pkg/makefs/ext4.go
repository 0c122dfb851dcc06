// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	"errors"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// FilesystemTypeEXT4 is the filesystem type for EXT4.
const FilesystemTypeEXT4 = "ext4"

// Ext4 creates an ext4 filesystem on the specified device.
func Ext4(devname string, setters ...Option) error {
	if devname == "" {
		return errors.New("missing path to disk")
	}

	opts := NewDefaultOptions(setters...)

	var args []string

	if opts.Label != "" {
		args = append(args, "-L", opts.Label)
	}

	if opts.Force {
		args = append(args, "-F")
	}

	args = append(args, devname)

	_, err := cmd.Run("mkfs.ext4", args...)

	return err
}
