// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package docker reconfigures the container engine onto provisioned
// storage, or diverts it entirely.
package docker

import (
	"context"

	"go.uber.org/zap"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/dockerd"
	"github.com/einyx/opg-bootstrap/internal/pkg/services"
)

const (
	dockerUnit   = "docker.service"
	dockerSocket = "docker.socket"
)

// Integrate switches the engine's storage backend onto the copy-on-write
// filesystem provisioned on ephemeral storage. Not applicable when the
// engine is absent or no service storage was provisioned.
func Integrate(r *runtime.Runtime) runtime.TaskExecutionFunc {
	if !r.State().DockerPresent {
		return nil
	}

	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		if !r.State().ServiceStorage {
			logger.Info("no service storage, container engine left on its default backend")

			return nil
		}

		manager, err := services.NewManager(ctx)
		if err != nil {
			return err
		}

		defer manager.Close()

		if err := manager.Stop(ctx, dockerUnit); err != nil {
			// A stopped engine is the desired intermediate state anyway.
			logger.Debug("stop ignored", zap.Error(err))
		}

		if err := dockerd.WriteDaemonConfig(r.Paths().DockerDaemon, r.Paths().DockerData); err != nil {
			return err
		}

		if err := manager.Start(ctx, dockerUnit); err != nil {
			return err
		}

		logger.Info("container engine storage switched", zap.String("data_root", r.Paths().DockerData))

		return nil
	}
}

// Divert masks the engine's startup units so the init system cannot bring
// it back. Applicable only when the engine is installed but explicitly
// disabled for this stack.
func Divert(r *runtime.Runtime) runtime.TaskExecutionFunc {
	if !r.Config().DockerDisabled || !dockerd.Present() {
		return nil
	}

	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		manager, err := services.NewManager(ctx)
		if err != nil {
			return err
		}

		defer manager.Close()

		if err := manager.Stop(ctx, dockerUnit); err != nil {
			logger.Debug("stop ignored", zap.Error(err))
		}

		if err := manager.Mask(ctx, dockerUnit, dockerSocket); err != nil {
			return err
		}

		logger.Info("container engine diverted")

		return nil
	}
}
