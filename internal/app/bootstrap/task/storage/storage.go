// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/backoff"
	"github.com/einyx/opg-bootstrap/internal/pkg/blockdev"
	"github.com/einyx/opg-bootstrap/internal/pkg/dockerd"
	"github.com/einyx/opg-bootstrap/internal/pkg/mdraid"
	"github.com/einyx/opg-bootstrap/internal/pkg/mount"
	"github.com/einyx/opg-bootstrap/pkg/makefs"
)

// Persistent data volume device candidates.
var dataVolumeNames = []string{"sdf", "xvdf"}

// Discover enumerates the ephemeral device set and the container runtime
// state the provisioning branch matrix depends on.
func Discover(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		state := r.State()

		state.DockerPresent = dockerd.Present() && !r.Config().DockerDisabled
		if state.DockerPresent {
			state.DockerVersion = dockerd.Version(ctx)
		}

		devices, err := blockdev.NewResolver().DiscoverEphemeral(ctx, r.Metadata())
		if err != nil {
			return fmt.Errorf("error discovering ephemeral devices: %w", err)
		}

		state.Ephemeral = devices
		state.Striped = len(devices) > 1

		logger.Info("discovered ephemeral devices",
			zap.Int("count", len(devices)),
			zap.Bool("docker", state.DockerPresent),
		)

		return nil
	}
}

// WaitDataVolume resolves the persistent data volume, optionally waiting
// for it to attach. An absent volume is only fatal when the run was
// explicitly told to wait for one: in that case the volume is expected,
// and continuing without it would converge the node into the wrong shape.
func WaitDataVolume(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		budget := backoff.Linear{Attempts: 1}

		if r.Config().WaitForVolume {
			budget = backoff.Linear{Attempts: 15, Unit: 2 * time.Second}
		}

		path, err := blockdev.NewResolver().WaitForAny(ctx, logger, dataVolumeNames, budget)
		if err != nil {
			var notFound *blockdev.DeviceNotFoundError
			if errors.As(err, &notFound) {
				if r.Config().WaitForVolume {
					return fmt.Errorf("data volume expected but never attached: %w", err)
				}

				logger.Warn("data volume not found, continuing without persistent storage", zap.Error(err))

				return nil
			}

			return err
		}

		r.State().DataVolumePath = path

		logger.Info("data volume present", zap.String("device", path))

		return nil
	}
}

// Tune applies io scheduler and read-ahead settings to each discovered
// device. Unsupported devices are logged and skipped.
func Tune(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		for _, device := range r.State().Ephemeral {
			if err := blockdev.Tune(device.Path); err != nil {
				logger.Warn("device tuning skipped", zap.Error(err))
			}
		}

		return nil
	}
}

// Provision formats and mounts the discovered storage and persists the
// mount table entries.
func Provision(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		state := r.State()
		paths := r.Paths()

		plan := Build(state.Ephemeral, state.DataVolumePath, state.DockerPresent, paths)

		if r.DryRun {
			for _, entry := range plan.Entries {
				logger.Info("dry-run: would persist mount", zap.String("entry", entry.Render()))
			}

			return nil
		}

		if plan.HasServiceStorage() {
			if err := provisionServiceStorage(logger, plan, paths); err != nil {
				return err
			}

			state.ServiceStorage = true
		}

		if plan.DataFS != "" {
			if err := provisionDataVolume(logger, plan); err != nil {
				return err
			}
		}

		for _, entry := range plan.Entries {
			state.MountPlan.Add(entry)
		}

		if err := state.MountPlan.Write(paths.Fstab); err != nil {
			return err
		}

		logger.Info("storage provisioned",
			zap.Bool("service_storage", plan.HasServiceStorage()),
			zap.Bool("data_volume", plan.DataFS != ""),
		)

		return nil
	}
}

func provisionServiceStorage(logger *zap.Logger, plan Plan, paths runtime.Paths) error {
	if err := makefs.Wipe(plan.ServiceDevices...); err != nil {
		return fmt.Errorf("error wiping devices: %w", err)
	}

	switch plan.ServiceFS {
	case makefs.FilesystemTypeBtrfs:
		if err := makefs.Btrfs(plan.ServiceDevices, makefs.WithForce(true)); err != nil {
			return fmt.Errorf("error formatting service storage: %w", err)
		}
	case makefs.FilesystemTypeEXT4:
		device := plan.ServiceDevices[0]

		if plan.UseMDRaid {
			if err := mdraid.Create(plan.ServiceSource, plan.ServiceDevices); err != nil {
				return err
			}

			if err := mdraid.Persist(paths.MdadmConf); err != nil {
				return err
			}

			device = plan.ServiceSource
		}

		if err := makefs.Ext4(device, makefs.WithForce(true)); err != nil {
			return fmt.Errorf("error formatting service storage: %w", err)
		}
	default:
		return fmt.Errorf("unsupported service filesystem %q", plan.ServiceFS)
	}

	point := mount.NewPoint(plan.ServiceSource, plan.ServiceMount, plan.ServiceFS, 0, "")
	if err := point.Mount(); err != nil {
		return err
	}

	if plan.ServiceFS == makefs.FilesystemTypeBtrfs && plan.Striped {
		if err := makefs.BtrfsBalance(plan.ServiceMount); err != nil {
			return fmt.Errorf("error balancing service storage: %w", err)
		}
	}

	if plan.RelocateDocker {
		if err := relocate(plan.DockerData, "/var/lib/docker", 0o711); err != nil {
			return err
		}
	}

	if plan.RelocateTmp {
		if err := relocate(plan.TmpData, "/tmp", 0o1777); err != nil {
			return err
		}
	}

	logger.Info("service storage mounted",
		zap.String("source", plan.ServiceSource),
		zap.String("fstype", plan.ServiceFS),
		zap.Bool("striped", plan.Striped),
	)

	return nil
}

func provisionDataVolume(logger *zap.Logger, plan Plan) error {
	if err := makefs.FastWipe(plan.DataDevice); err != nil {
		return fmt.Errorf("error wiping data volume: %w", err)
	}

	if err := makefs.XFS(plan.DataDevice, makefs.WithForce(true)); err != nil {
		return fmt.Errorf("error formatting data volume: %w", err)
	}

	point := mount.NewPoint(plan.DataDevice, plan.DataMount, plan.DataFS, 0, "")
	if err := point.Mount(); err != nil {
		return err
	}

	logger.Info("data volume mounted", zap.String("device", plan.DataDevice))

	return nil
}

// relocate bind-mounts a directory on service storage over its original
// location.
func relocate(source, target string, mode os.FileMode) error {
	if err := os.MkdirAll(source, mode); err != nil {
		return err
	}

	if err := os.Chmod(source, mode); err != nil {
		return err
	}

	return mount.NewBindPoint(source, target).Mount()
}
