// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mount performs live mounts and maintains the persistent mount
// table.
package mount

import (
	"fmt"
	"os"
	"time"

	"github.com/siderolabs/go-retry/retry"
	"golang.org/x/sys/unix"
)

// Point represents a linux mount point.
type Point struct {
	Source string
	Target string
	Fstype string
	Flags  uintptr
	Data   string
}

// NewPoint initializes and returns a Point.
func NewPoint(source, target, fstype string, flags uintptr, data string) *Point {
	return &Point{
		Source: source,
		Target: target,
		Fstype: fstype,
		Flags:  flags,
		Data:   data,
	}
}

// NewBindPoint initializes a bind mount of source onto target.
func NewBindPoint(source, target string) *Point {
	return &Point{
		Source: source,
		Target: target,
		Flags:  unix.MS_BIND,
	}
}

// Mount creates the target directory and mounts the point, retrying on
// EBUSY for up to five seconds.
func (p *Point) Mount() error {
	if err := os.MkdirAll(p.Target, 0o755); err != nil {
		return fmt.Errorf("error creating mount point directory %s: %w", p.Target, err)
	}

	err := retry.Constant(5*time.Second, retry.WithUnits(100*time.Millisecond)).Retry(func() error {
		if err := unix.Mount(p.Source, p.Target, p.Fstype, p.Flags, p.Data); err != nil {
			if err == unix.EBUSY {
				return retry.ExpectedError(err)
			}

			return err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("error mounting %s on %s: %w", p.Source, p.Target, err)
	}

	return nil
}

// Unmount unmounts the point.
func (p *Point) Unmount() error {
	return unix.Unmount(p.Target, 0)
}
