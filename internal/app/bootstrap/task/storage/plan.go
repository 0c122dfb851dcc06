// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package storage provisions ephemeral and persistent block storage.
package storage

import (
	"github.com/siderolabs/gen/xslices"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/blockdev"
	"github.com/einyx/opg-bootstrap/internal/pkg/mount"
	"github.com/einyx/opg-bootstrap/pkg/constants"
	"github.com/einyx/opg-bootstrap/pkg/makefs"
)

// Plan is the storage layout decided from the discovered devices. It is
// computed without side effects; Apply carries it out.
type Plan struct {
	// ServiceFS is the filesystem for instance-local service storage:
	// btrfs when the container runtime will live on it, ext4 otherwise,
	// empty when no ephemeral devices were discovered.
	ServiceFS      string
	ServiceDevices []string
	ServiceSource  string
	ServiceMount   string

	// UseMDRaid stripes multiple devices through a software RAID array
	// (ext4 only; btrfs stripes natively).
	UseMDRaid bool
	Striped   bool

	RelocateDocker bool
	RelocateTmp    bool
	DockerData     string
	TmpData        string

	// DataFS describes the persistent data volume, empty when absent.
	DataFS     string
	DataDevice string
	DataMount  string

	Entries []mount.Entry
}

// Build computes the storage plan for the run.
func Build(ephemeral []blockdev.Device, dataVolume string, dockerPresent bool, paths runtime.Paths) Plan {
	plan := Plan{
		ServiceMount: paths.ServiceMount,
		DockerData:   paths.DockerData,
		TmpData:      paths.TmpData,
		DataMount:    paths.DataMount,
	}

	if len(ephemeral) > 0 {
		plan.ServiceDevices = xslices.Map(ephemeral, func(d blockdev.Device) string { return d.Path })
		plan.Striped = len(ephemeral) > 1
		plan.RelocateTmp = true

		if dockerPresent {
			plan.ServiceFS = makefs.FilesystemTypeBtrfs
			plan.ServiceSource = plan.ServiceDevices[0]
			plan.RelocateDocker = true
		} else {
			plan.ServiceFS = makefs.FilesystemTypeEXT4
			plan.ServiceSource = plan.ServiceDevices[0]

			if plan.Striped {
				plan.UseMDRaid = true
				plan.ServiceSource = constants.MDDevice
			}
		}

		plan.Entries = append(plan.Entries, mount.Entry{
			Source:  plan.ServiceSource,
			Target:  plan.ServiceMount,
			Fstype:  plan.ServiceFS,
			Options: "defaults,noatime",
		})

		if plan.RelocateDocker {
			plan.Entries = append(plan.Entries, mount.Entry{
				Source:  plan.DockerData,
				Target:  "/var/lib/docker",
				Fstype:  "none",
				Options: "bind",
			})
		}

		plan.Entries = append(plan.Entries, mount.Entry{
			Source:  plan.TmpData,
			Target:  "/tmp",
			Fstype:  "none",
			Options: "bind",
		})
	}

	if dataVolume != "" {
		plan.DataFS = makefs.FilesystemTypeXFS
		plan.DataDevice = dataVolume

		// Disposable compute: integrity barriers are not worth their
		// cost on a volume that is rebuilt from scratch on provisioning.
		plan.Entries = append(plan.Entries, mount.Entry{
			Source:  plan.DataDevice,
			Target:  plan.DataMount,
			Fstype:  plan.DataFS,
			Options: "defaults,noatime,nobarrier",
		})
	}

	return plan
}

// HasServiceStorage reports whether the plan provisions instance-local
// service storage.
func (p Plan) HasServiceStorage() bool {
	return p.ServiceFS != ""
}
