// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bootstrap assembles and runs the first-boot sequence.
package bootstrap

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/guard"
	"github.com/einyx/opg-bootstrap/internal/pkg/metadata"
	"github.com/einyx/opg-bootstrap/pkg/logging"
	"github.com/einyx/opg-bootstrap/pkg/version"
)

// Options adjusts a run without touching the environment configuration.
type Options struct {
	// DryRun logs the storage provisioning plan without touching devices.
	DryRun bool

	// Paths overrides the host locations, nil means production defaults.
	Paths *runtime.Paths
}

// Run executes the full boot sequence. A prior completed (or claimed)
// run aborts with ErrAlreadyBootstrapped before any mutation.
func Run(ctx context.Context, opts Options) error {
	encoderOpts := []logging.EncoderOption{logging.WithColoredLevels()}

	// Under systemd the journal stamps every line on its own.
	if os.Getenv("INVOCATION_ID") != "" {
		encoderOpts = append(encoderOpts, logging.WithoutTimestamp())
	}

	logger := logging.ZapLogger(
		logging.NewLogDestination(os.Stderr, zapcore.InfoLevel, encoderOpts...),
	).With(
		logging.Component(version.Name),
		zap.String("run_id", uuid.NewString()),
	)

	logger.Info("starting", zap.String("version", version.Tag), zap.String("sha", version.SHA))

	r := runtime.NewRuntime(nil, metadata.NewClient())
	r.DryRun = opts.DryRun

	if opts.Paths != nil {
		r.SetPaths(*opts.Paths)
	}

	controller := &runtime.Controller{
		Runtime:   r,
		Sequencer: &Sequencer{},
		Logger:    logger,
	}

	if err := controller.Run(ctx); err != nil {
		if errors.Is(err, guard.ErrAlreadyBootstrapped) {
			logger.Error("refusing to run again", zap.Error(err))
		}

		return err
	}

	return nil
}
