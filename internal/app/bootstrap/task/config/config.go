// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads the run configuration from the environment once
// the guard has admitted the run.
package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/runcontext"
)

// Load reads the OPG_* environment into the runtime. Every phase after
// this one depends on the configuration, so a ConfigurationError aborts
// the sequence here.
func Load(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		cfg, err := runcontext.Load()
		if err != nil {
			return fmt.Errorf("loading run configuration: %w", err)
		}

		r.SetConfig(cfg)

		logger.Info("run configuration loaded",
			zap.String("role", string(cfg.Role)),
			zap.String("stack", cfg.Stack),
			zap.String("environment", cfg.Environment),
			zap.Bool("autoscaled", cfg.Autoscaled),
		)

		return nil
	}
}
