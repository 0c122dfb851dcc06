// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package guard keeps the bootstrap from ever running twice.
package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
)

// ErrAlreadyBootstrapped indicates that a previous run completed (or
// claimed the host) and the process must abort immediately.
var ErrAlreadyBootstrapped = errors.New("host is already bootstrapped")

// Claim atomically claims the host before any other step mutates it. The
// claim uses create-exclusive semantics, so two racing invocations cannot
// both proceed. A leftover claim from a failed run also trips this: a
// partially bootstrapped host needs manual remediation, not a blind
// re-run.
func Claim(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		paths := r.Paths()

		if _, err := os.Stat(paths.Marker); err == nil {
			return fmt.Errorf("%w: marker %s exists", ErrAlreadyBootstrapped, paths.Marker)
		}

		if err := os.MkdirAll(filepath.Dir(paths.Claim), 0o755); err != nil {
			return err
		}

		f, err := os.OpenFile(paths.Claim, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return fmt.Errorf("%w: claim %s exists", ErrAlreadyBootstrapped, paths.Claim)
			}

			return err
		}

		logger.Info("claimed host for bootstrap", zap.String("claim", paths.Claim))

		return f.Close()
	}
}

// Seal writes the completion marker. It only ever runs after every prior
// phase returned success.
func Seal(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		paths := r.Paths()

		now := time.Now()

		content := fmt.Sprintf("TIMESTAMP=%d\nDATE=%q\n", now.Unix(), now.Format(time.RFC1123))

		if err := os.WriteFile(paths.Marker, []byte(content), 0o644); err != nil {
			return fmt.Errorf("error writing completion marker: %w", err)
		}

		logger.Info("bootstrap complete", zap.String("marker", paths.Marker))

		return nil
	}
}
