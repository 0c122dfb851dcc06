// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package bootstrap

import (
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/agent"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/config"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/converge"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/docker"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/guard"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/identity"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/storage"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/tagging"
)

// PhaseList represents a list of phases.
type PhaseList []runtime.Phase

// Append appends a new phase to the list.
func (p PhaseList) Append(name string, tasks ...runtime.TaskSetupFunc) PhaseList {
	p = append(p, runtime.Phase{Name: name, Tasks: tasks})

	return p
}

// Sequencer holds the default boot sequence.
type Sequencer struct{}

// Boot is the sequence that takes a freshly launched instance to a
// converged member of its stack. Order matters: storage is settled
// before the agent configuration references it, the completion marker
// is written last, and a task whose failure must stop its successors
// gets a phase of its own.
func (s *Sequencer) Boot(r *runtime.Runtime) []runtime.Phase {
	phases := PhaseList{}.
		Append(
			"guard",
			guard.Claim,
		).
		Append(
			"config",
			config.Load,
		).
		Append(
			"identity",
			identity.Resolve,
		).
		Append(
			"network",
			identity.Apply,
		).
		Append(
			"agentTeardown",
			agent.Teardown,
			agent.PurgePKI,
		).
		Append(
			"storageDiscovery",
			storage.Discover,
			storage.WaitDataVolume,
			storage.Tune,
		).
		Append(
			"storageProvisioning",
			storage.Provision,
		).
		Append(
			"containerRuntime",
			docker.Integrate,
			docker.Divert,
		).
		Append(
			"agentInstall",
			agent.Install,
		).
		Append(
			"agentConfigure",
			agent.Configure,
		).
		Append(
			"agentStart",
			agent.Start,
		).
		Append(
			"tagging",
			tagging.Publish,
		).
		Append(
			"awaitMaster",
			converge.AwaitMaster,
		).
		Append(
			"converge",
			converge.Trigger,
		).
		Append(
			"masterCleanup",
			converge.CleanupKeys,
		).
		Append(
			"seal",
			guard.Seal,
		)

	return phases
}
