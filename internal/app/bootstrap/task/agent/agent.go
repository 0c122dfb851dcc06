// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package agent manages the salt agent's lifecycle on the host.
package agent

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/runcontext"
	"github.com/einyx/opg-bootstrap/internal/pkg/salt"
	"github.com/einyx/opg-bootstrap/internal/pkg/services"
)

const (
	masterUnit = "salt-master.service"
	minionUnit = "salt-minion.service"
)

// Teardown stops any pre-existing agent processes and force-kills
// stragglers. The desired end state is "not running", so a failed stop of
// a service that never ran is acceptable and the errors are only logged.
func Teardown(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		manager, err := services.NewManager(ctx)
		if err != nil {
			logger.Warn("systemd unavailable, falling back to process kill", zap.Error(err))
		} else {
			defer manager.Close()

			for _, unit := range []string{masterUnit, minionUnit} {
				if err := manager.Stop(ctx, unit); err != nil {
					// Not running is an acceptable starting point.
					logger.Debug("stop ignored", zap.Error(err))
				}
			}
		}

		for _, pattern := range []string{"salt-master", "salt-minion"} {
			if err := services.KillAll(ctx, pattern); err != nil {
				logger.Debug("kill ignored", zap.Error(err))
			}
		}

		return nil
	}
}

// PurgePKI removes stale authentication material so the agent re-registers
// under the identity this run establishes.
func PurgePKI(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		if err := salt.PurgePKI(r.Paths().SaltPKI); err != nil {
			return err
		}

		logger.Info("purged agent authentication material")

		return nil
	}
}

// Install installs the role-appropriate agent packages. Install failures
// are fatal.
func Install(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		packages := salt.MinionPackages
		if r.Config().Role == runcontext.RoleMaster {
			packages = salt.MasterPackages
		}

		logger.Info("installing agent packages", zap.Strings("packages", packages))

		return salt.InstallPackages(ctx, packages...)
	}
}

// Configure writes the grains file and the role configuration drop-ins.
func Configure(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		cfg := r.Config()
		state := r.State()
		paths := r.Paths()

		grains := &salt.Grains{
			Role:         string(cfg.Role),
			Organisation: cfg.Organisation,
			Project:      cfg.Project,
			Stack:        cfg.Stack,
			Environment:  cfg.Environment,
			Release:      cfg.Release,
			Branch:       cfg.Branch,
			Domain:       cfg.Domain,

			InstanceID:       state.Identity.InstanceID,
			InstanceType:     state.Identity.InstanceType,
			AvailabilityZone: state.Identity.AvailabilityZone,
			Region:           state.Identity.Region,

			DockerVersion: state.DockerVersion,
		}

		if err := grains.Write(paths.SaltGrains); err != nil {
			return err
		}

		if err := salt.WriteDropIn(paths.SaltConfig, "minion.d", "opg.conf", salt.DefaultMinionConfig(cfg.MasterAddr)); err != nil {
			return err
		}

		if cfg.Role == runcontext.RoleMaster {
			if err := salt.WriteDropIn(paths.SaltConfig, "master.d", "opg.conf", salt.DefaultMasterConfig()); err != nil {
				return err
			}
		}

		// The minion id file pins the identity registered with the master.
		idPath := filepath.Join(paths.SaltConfig, "minion_id")

		if err := writeFile(idPath, state.Identity.FQDN+"\n"); err != nil {
			return err
		}

		logger.Info("wrote agent configuration", zap.String("grains", paths.SaltGrains))

		return nil
	}
}

// Start brings the agent up. The master role additionally triggers one
// immediate convergence run so its own state applies before minions call
// in.
func Start(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		manager, err := services.NewManager(ctx)
		if err != nil {
			return err
		}

		defer manager.Close()

		units := []string{minionUnit}
		if r.Config().Role == runcontext.RoleMaster {
			units = []string{masterUnit, minionUnit}
		}

		for _, unit := range units {
			if err := manager.Start(ctx, unit); err != nil {
				return err
			}
		}

		if r.Config().Role == runcontext.RoleMaster {
			if err := salt.NewClient().Highstate(ctx); err != nil {
				// The convergence phase retries; starting degraded here
				// is acceptable.
				logger.Warn("initial convergence failed", zap.Error(err))
			}
		}

		logger.Info("agent started", zap.Strings("units", units))

		return nil
	}
}
