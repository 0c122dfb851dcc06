// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package constants defines paths and well-known values shared across the
// bootstrap sequence.
package constants

const (
	// StateDir is the directory holding bootstrap run state.
	StateDir = "/var/lib/opg-bootstrap"

	// MarkerPath is the completion marker written after a successful run.
	MarkerPath = StateDir + "/bootstrapped"

	// ClaimPath is the exclusive claim taken before the first mutation.
	ClaimPath = StateDir + "/bootstrapped.claim"

	// HostsPath is the system hosts file.
	HostsPath = "/etc/hosts"

	// HostnamePath is the persisted hostname file.
	HostnamePath = "/etc/hostname"

	// FstabPath is the persistent mount table.
	FstabPath = "/etc/fstab"

	// MdadmConfPath persists software RAID array metadata so arrays
	// reassemble on later boots.
	MdadmConfPath = "/etc/mdadm/mdadm.conf"

	// ServiceStorageMountPoint is where ephemeral service storage is mounted.
	ServiceStorageMountPoint = "/srv"

	// DockerDataDir is the relocated docker data directory on service storage.
	DockerDataDir = ServiceStorageMountPoint + "/docker"

	// TmpDataDir is the relocated system temp directory on service storage.
	TmpDataDir = ServiceStorageMountPoint + "/tmp"

	// DataVolumeMountPoint is where the persistent data volume is mounted.
	DataVolumeMountPoint = "/data"

	// MDDevice is the software RAID device assembled from multiple
	// ephemeral disks when no copy-on-write filesystem is in play.
	MDDevice = "/dev/md0"

	// SaltConfigDir is the salt configuration root.
	SaltConfigDir = "/etc/salt"

	// SaltPKIDir holds minion/master keys purged before re-registration.
	SaltPKIDir = SaltConfigDir + "/pki"

	// SaltGrainsPath is the grains file consumed by the salt agent.
	SaltGrainsPath = SaltConfigDir + "/grains"

	// SaltServiceAlias is the well-known hosts alias minions resolve the
	// master through.
	SaltServiceAlias = "salt"

	// SaltPublishPort is the master's event publish port.
	SaltPublishPort = 4505

	// SaltReturnPort is the master's return/request port.
	SaltReturnPort = 4506

	// DockerDaemonConfigPath is the docker engine configuration file.
	DockerDaemonConfigPath = "/etc/docker/daemon.json"

	// DNSHandoffPath is the key=value file consumed by the external DNS
	// registration script.
	DNSHandoffPath = "/etc/opg/dns.conf"

	// DefaultDNSTTL is the record TTL written to the DNS hand-off file.
	DefaultDNSTTL = 300
)
