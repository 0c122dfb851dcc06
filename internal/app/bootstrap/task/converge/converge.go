// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package converge verifies connectivity to the master and triggers the
// first full convergence run.
package converge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/backoff"
	"github.com/einyx/opg-bootstrap/internal/pkg/runcontext"
	"github.com/einyx/opg-bootstrap/internal/pkg/salt"
	"github.com/einyx/opg-bootstrap/internal/pkg/services"
	"github.com/einyx/opg-bootstrap/pkg/constants"
)

// ErrMasterUnreachable indicates the master's ports never became
// reachable within the retry budget. The run aborts before any
// convergence is attempted and the completion marker is never written.
var ErrMasterUnreachable = errors.New("master unreachable")

// ErrDegenerateProbe indicates the mesh probe returned an empty result.
// It triggers one degraded retry, never an abort.
var ErrDegenerateProbe = errors.New("degenerate probe response")

const dialTimeout = 2 * time.Second

// awaitBudget is a var so tests can shorten the wait.
var awaitBudget = backoff.Linear{Attempts: 10, Unit: time.Second}

// AwaitMaster waits for both master ports to accept connections.
func AwaitMaster(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		ports := []int{constants.SaltPublishPort, constants.SaltReturnPort}

		return awaitPorts(ctx, logger, r.Config().MasterAddr, ports, awaitBudget)
	}
}

// awaitPorts requires every port to respond within the budget.
func awaitPorts(ctx context.Context, logger *zap.Logger, addr string, ports []int, budget backoff.Linear) error {
	err := budget.Run(ctx, func(ctx context.Context) error {
		var eg errgroup.Group

		for _, port := range ports {
			target := net.JoinHostPort(addr, strconv.Itoa(port))

			eg.Go(func() error {
				conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", target)
				if err != nil {
					return fmt.Errorf("%s not reachable: %w", target, err)
				}

				return conn.Close()
			})
		}

		if err := eg.Wait(); err != nil {
			logger.Info("waiting for master", zap.Error(err))

			return err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMasterUnreachable, addr, err)
	}

	return nil
}

// Trigger publishes the round-trip probe and runs the first convergence.
// A degenerate probe restarts the local agent and converges once more in
// degraded mode.
func Trigger(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		return trigger(ctx, logger, r, salt.NewClient())
	}
}

func trigger(ctx context.Context, logger *zap.Logger, r *runtime.Runtime, client *salt.Client) error {
	if err := probeMesh(ctx, logger, client, r.State().Identity.FQDN); err != nil {
		if !errors.Is(err, ErrDegenerateProbe) {
			return err
		}

		logger.Warn("probe came back empty, restarting agent for a degraded convergence")

		if err := restartMinion(ctx); err != nil {
			// Desired end state is "restarted"; a failed restart of a
			// half-started agent is still worth a convergence attempt.
			logger.Warn("agent restart failed", zap.Error(err))
		}
	}

	if err := client.Highstate(ctx); err != nil {
		// Convergence re-runs periodically once the agent is up; the
		// bootstrap only has to trigger it.
		logger.Warn("convergence run failed", zap.Error(err))
	}

	return nil
}

func probeMesh(ctx context.Context, logger *zap.Logger, client *salt.Client, fqdn string) error {
	responders, err := client.ProbePublish(ctx, fqdn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateProbe, err)
	}

	if len(responders) == 0 {
		return ErrDegenerateProbe
	}

	logger.Info("mesh probe answered", zap.Strings("responders", responders))

	return nil
}

func restartMinion(ctx context.Context) error {
	manager, err := services.NewManager(ctx)
	if err != nil {
		return err
	}

	defer manager.Close()

	return manager.Restart(ctx, "salt-minion.service")
}

// CleanupKeys removes malformed registered identities and restarts the
// master processes so the final configuration applies. Master role only.
func CleanupKeys(r *runtime.Runtime) runtime.TaskExecutionFunc {
	if r.Config().Role != runcontext.RoleMaster {
		return nil
	}

	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		client := salt.NewClient()

		if err := cleanupKeys(ctx, logger, client, r.Config()); err != nil {
			return err
		}

		manager, err := services.NewManager(ctx)
		if err != nil {
			return err
		}

		defer manager.Close()

		for _, unit := range []string{"salt-master.service", "salt-minion.service"} {
			if err := manager.Restart(ctx, unit); err != nil {
				logger.Warn("restart failed", zap.Error(err))
			}
		}

		return nil
	}
}

func cleanupKeys(ctx context.Context, logger *zap.Logger, client *salt.Client, cfg *runcontext.Context) error {
	keys, err := client.AcceptedKeys(ctx)
	if err != nil {
		return err
	}

	suffix := "." + cfg.Stack + "." + cfg.Domain

	for _, id := range keys {
		if strings.HasSuffix(id, suffix) {
			continue
		}

		logger.Info("removing malformed registered identity", zap.String("id", id))

		if err := client.DeleteKey(ctx, id); err != nil {
			logger.Warn("key removal failed", zap.String("id", id), zap.Error(err))
		}
	}

	return nil
}
