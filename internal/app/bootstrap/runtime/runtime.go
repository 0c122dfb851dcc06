// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package runtime carries the state shared across the bootstrap sequence
// and the controller that executes it.
package runtime

import (
	"github.com/einyx/opg-bootstrap/internal/pkg/blockdev"
	"github.com/einyx/opg-bootstrap/internal/pkg/metadata"
	"github.com/einyx/opg-bootstrap/internal/pkg/mount"
	"github.com/einyx/opg-bootstrap/internal/pkg/runcontext"
	"github.com/einyx/opg-bootstrap/pkg/constants"
)

// Identity is the resolved instance identity, filled in by the config
// phase and read-only afterwards.
type Identity struct {
	Hostname         string
	FQDN             string
	LocalIP          string
	InstanceID       string
	InstanceType     string
	AvailabilityZone string
	Region           string
}

// State is the mutable state accumulated over a run: discovered devices,
// provisioning results and the pending mount table entries.
type State struct {
	Identity Identity

	Ephemeral      []blockdev.Device
	DataVolumePath string
	ServiceStorage bool
	Striped        bool

	DockerPresent bool
	DockerVersion string

	MountPlan mount.Plan
}

// Paths collects every host location the sequence touches. Production
// runs use DefaultPaths; tests point them into a scratch directory.
type Paths struct {
	Marker       string
	Claim        string
	Hosts        string
	Hostname     string
	Fstab        string
	MdadmConf    string
	SaltConfig   string
	SaltPKI      string
	SaltGrains   string
	DockerDaemon string
	DNSHandoff   string
	ServiceMount string
	DataMount    string
	DockerData   string
	TmpData      string
}

// DefaultPaths returns the production path set.
func DefaultPaths() Paths {
	return Paths{
		Marker:       constants.MarkerPath,
		Claim:        constants.ClaimPath,
		Hosts:        constants.HostsPath,
		Hostname:     constants.HostnamePath,
		Fstab:        constants.FstabPath,
		MdadmConf:    constants.MdadmConfPath,
		SaltConfig:   constants.SaltConfigDir,
		SaltPKI:      constants.SaltPKIDir,
		SaltGrains:   constants.SaltGrainsPath,
		DockerDaemon: constants.DockerDaemonConfigPath,
		DNSHandoff:   constants.DNSHandoffPath,
		ServiceMount: constants.ServiceStorageMountPoint,
		DataMount:    constants.DataVolumeMountPoint,
		DockerData:   constants.DockerDataDir,
		TmpData:      constants.TmpDataDir,
	}
}

// Runtime is handed to every task.
type Runtime struct {
	config   *runcontext.Context
	state    *State
	metadata *metadata.Client
	paths    Paths

	// DryRun makes the storage provisioning step log its plan without
	// touching any device.
	DryRun bool
}

// NewRuntime initializes and returns a Runtime. A nil config is valid
// until the config phase has run; tasks sequenced after it may rely on
// Config being non-nil.
func NewRuntime(config *runcontext.Context, client *metadata.Client) *Runtime {
	return &Runtime{
		config:   config,
		state:    &State{},
		metadata: client,
		paths:    DefaultPaths(),
	}
}

// Config returns the run configuration, nil before the config phase.
func (r *Runtime) Config() *runcontext.Context {
	return r.config
}

// SetConfig installs the loaded run configuration. The configuration is
// immutable once set.
func (r *Runtime) SetConfig(config *runcontext.Context) {
	r.config = config
}

// State returns the mutable run state.
func (r *Runtime) State() *State {
	return r.state
}

// Metadata returns the metadata client.
func (r *Runtime) Metadata() *metadata.Client {
	return r.metadata
}

// Paths returns the host locations for this run.
func (r *Runtime) Paths() Paths {
	return r.paths
}

// SetPaths overrides the host locations, for tests.
func (r *Runtime) SetPaths(paths Paths) {
	r.paths = paths
}
