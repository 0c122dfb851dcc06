// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import (
	blockdev "github.com/siderolabs/go-blockdevice/v2/block"
	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Wipe removes filesystem signatures from each of the specified devices.
// Every format operation is preceded by a wipe: the devices are assumed to
// hold no data worth preserving.
func Wipe(devnames ...string) error {
	for _, devname := range devnames {
		if _, err := cmd.Run("wipefs", "-a", devname); err != nil {
			return err
		}
	}

	return nil
}

// FastWipe zeroes the signature regions of a device directly, without
// relying on external tooling.
func FastWipe(devname string) error {
	dev, err := blockdev.NewFromPath(devname, blockdev.OpenForWrite())
	if err != nil {
		return err
	}

	defer dev.Close() //nolint:errcheck

	return dev.FastWipe()
}
