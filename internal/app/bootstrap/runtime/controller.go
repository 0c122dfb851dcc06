// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// TaskSetupFunc prepares a task for the given runtime. Returning a nil
// execution func marks the task as not applicable in this configuration.
type TaskSetupFunc func(r *Runtime) TaskExecutionFunc

// TaskExecutionFunc is the unit of work a task performs.
type TaskExecutionFunc func(ctx context.Context, logger *zap.Logger, r *Runtime) error

// Phase represents a named step of the sequence.
type Phase struct {
	Name  string
	Tasks []TaskSetupFunc
}

// Sequencer produces the ordered phase list for a runtime.
type Sequencer interface {
	Boot(r *Runtime) []Phase
}

// Controller manages the execution of the boot sequence.
type Controller struct {
	Runtime   *Runtime
	Sequencer Sequencer
	Logger    *zap.Logger

	semaphore int32
}

// Run executes all phases known to the controller in serial, aborting
// immediately when any phase fails.
func (c *Controller) Run(ctx context.Context) error {
	if c.Runtime == nil {
		return ErrUndefinedRuntime
	}

	// Allow only one sequence to run at a time.
	if c.tryLock() {
		return ErrLocked
	}

	defer c.unlock()

	phases := c.Sequencer.Boot(c.Runtime)

	start := time.Now()

	c.Logger.Info("boot sequence starting", zap.Int("phases", len(phases)))
	defer func() {
		c.Logger.Info("boot sequence done", zap.Duration("elapsed", time.Since(start)))
	}()

	for number, phase := range phases {
		progress := fmt.Sprintf("%d/%d", number+1, len(phases))

		phaseStart := time.Now()

		c.Logger.Info("phase starting", zap.String("phase", phase.Name), zap.String("progress", progress))

		if err := c.runPhase(ctx, phase); err != nil {
			return fmt.Errorf("error running phase %d (%s) in boot sequence: %w", number+1, phase.Name, err)
		}

		c.Logger.Info("phase done", zap.String("phase", phase.Name), zap.Duration("elapsed", time.Since(phaseStart)))
	}

	return nil
}

// runPhase executes the phase's tasks in order. Each applicable task runs
// even when an earlier one failed, and the failures are reported together.
func (c *Controller) runPhase(ctx context.Context, phase Phase) error {
	var result *multierror.Error

	for number, setup := range phase.Tasks {
		task := setup(c.Runtime)
		if task == nil {
			// Not applicable in this configuration.
			continue
		}

		logger := c.Logger.With(zap.String("phase", phase.Name), zap.Int("task", number+1))

		if err := task(ctx, logger, c.Runtime); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (c *Controller) tryLock() bool {
	return !atomic.CompareAndSwapInt32(&c.semaphore, 0, 1)
}

func (c *Controller) unlock() bool {
	return atomic.CompareAndSwapInt32(&c.semaphore, 1, 0)
}
