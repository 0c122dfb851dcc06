// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package identity resolves the instance's network identity and applies
// it to the host.
package identity

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/pkg/runcontext"
	"github.com/einyx/opg-bootstrap/pkg/constants"
)

// Resolve fills in the run's instance identity from the environment and
// the metadata service. Autoscaled instances derive their hostname from
// the instance id, everything else uses the configured one.
func Resolve(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		cfg := r.Config()
		md := r.Metadata()
		id := &r.State().Identity

		var err error

		if id.LocalIP, err = md.LocalIPv4(ctx); err != nil {
			return err
		}

		if id.LocalIP == "" {
			return fmt.Errorf("instance metadata does not expose a local address")
		}

		if id.InstanceID, err = md.InstanceID(ctx); err != nil {
			return err
		}

		if id.InstanceType, err = md.InstanceType(ctx); err != nil {
			return err
		}

		if id.AvailabilityZone, err = md.AvailabilityZone(ctx); err != nil {
			return err
		}

		if id.Region, err = md.Region(ctx); err != nil {
			return err
		}

		id.Hostname = cfg.Hostname

		if cfg.Autoscaled {
			if id.InstanceID == "" {
				return fmt.Errorf("autoscaled instance without an instance id")
			}

			id.Hostname = fmt.Sprintf("%s-%s", cfg.Role, id.InstanceID)
		}

		id.FQDN = cfg.FQDN(id.Hostname)

		logger.Info("resolved instance identity",
			zap.String("hostname", id.Hostname),
			zap.String("fqdn", id.FQDN),
			zap.String("instance_id", id.InstanceID),
			zap.String("local_ip", id.LocalIP),
		)

		return nil
	}
}

// RenderHosts builds the hosts file for the run. The loopback aliases are
// always present; the master role aliases the local entry to the salt
// service name, minions get a static entry for the master address.
func RenderHosts(cfg *runcontext.Context, id runtime.Identity) string {
	var sb strings.Builder

	sb.WriteString("127.0.0.1\tlocalhost localhost.localdomain\n")
	sb.WriteString("::1\tlocalhost ip6-localhost ip6-loopback\n")

	local := fmt.Sprintf("%s\t%s %s", id.LocalIP, id.FQDN, id.Hostname)

	if cfg.Role == runcontext.RoleMaster {
		local += " " + constants.SaltServiceAlias
	}

	sb.WriteString(local)
	sb.WriteByte('\n')

	if cfg.Role != runcontext.RoleMaster {
		sb.WriteString(fmt.Sprintf("%s\t%s\n", cfg.MasterAddr, constants.SaltServiceAlias))
	}

	return sb.String()
}

// Apply writes the hosts and hostname files and propagates the identity
// into the live kernel.
func Apply(r *runtime.Runtime) runtime.TaskExecutionFunc {
	return func(ctx context.Context, logger *zap.Logger, r *runtime.Runtime) error {
		cfg := r.Config()
		id := r.State().Identity
		paths := r.Paths()

		if err := os.WriteFile(paths.Hosts, []byte(RenderHosts(cfg, id)), 0o644); err != nil {
			return fmt.Errorf("error writing hosts file: %w", err)
		}

		if err := os.WriteFile(paths.Hostname, []byte(id.Hostname+"\n"), 0o644); err != nil {
			return fmt.Errorf("error writing hostname file: %w", err)
		}

		if err := applyKernelHostname(id.Hostname); err != nil {
			return fmt.Errorf("error applying hostname: %w", err)
		}

		if err := applyKernelDomainname(cfg.Stack + "." + cfg.Domain); err != nil {
			return fmt.Errorf("error applying domain name: %w", err)
		}

		logger.Info("applied network identity", zap.String("hostname", id.Hostname))

		return nil
	}
}

// Kernel state application, overridden in tests.
var (
	applyKernelHostname = func(hostname string) error {
		return unix.Sethostname([]byte(hostname))
	}

	applyKernelDomainname = func(domain string) error {
		return unix.Setdomainname([]byte(domain))
	}
)
