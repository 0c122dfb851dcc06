// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package runcontext loads and validates the bootstrap run configuration
// from the process environment.
package runcontext

import (
	"fmt"
	"os"
	"strconv"

	"github.com/einyx/opg-bootstrap/pkg/constants"
)

// Role is the salt role an instance bootstraps into.
type Role string

const (
	// RoleMaster is the configuration management control plane.
	RoleMaster Role = "master"

	// RoleMinion is a worker connecting to the master for convergence.
	RoleMinion Role = "minion"
)

// Environment variable keys consumed by the loader.
const (
	EnvHostname     = "OPG_HOSTNAME"
	EnvDomain       = "OPG_DOMAIN"
	EnvRole         = "OPG_ROLE"
	EnvOrganisation = "OPG_ORG"
	EnvProject      = "OPG_PROJECT"
	EnvStack        = "OPG_STACK"
	EnvEnvironment  = "OPG_ENVIRONMENT"
	EnvRelease      = "OPG_RELEASE"
	EnvBranch       = "OPG_BRANCH"
	EnvMaster       = "OPG_MASTER"
	EnvAutoscaling  = "OPG_AUTOSCALING"
	EnvWaitVolume   = "OPG_WAIT_FOR_VOLUME"
	EnvNoDocker     = "OPG_NO_DOCKER"
	EnvHostedZoneID = "OPG_HOSTED_ZONE_ID"
	EnvDNSTTL       = "OPG_DNS_TTL"
)

// ConfigurationError indicates a missing or invalid required input. It
// aborts the whole run before any mutation takes place.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Context is the resolved configuration of a single bootstrap run. It is
// constructed once and never mutated afterwards.
type Context struct {
	Hostname     string
	Domain       string
	Role         Role
	Organisation string
	Project      string
	Stack        string
	Environment  string
	Release      string
	Branch       string

	// MasterAddr is the coordinator address minions connect to. For the
	// master role it is forced to loopback regardless of input.
	MasterAddr string

	Autoscaled     bool
	WaitForVolume  bool
	DockerDisabled bool

	HostedZoneID string
	DNSTTL       int
}

// Load builds a Context from the process environment.
func Load() (*Context, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Context using the supplied environment lookup.
//
//nolint:gocyclo
func LoadFrom(lookup func(string) (string, bool)) (*Context, error) {
	get := func(key string) string {
		v, _ := lookup(key)

		return v
	}

	ctx := &Context{
		Hostname:     get(EnvHostname),
		Domain:       get(EnvDomain),
		Role:         Role(get(EnvRole)),
		Organisation: get(EnvOrganisation),
		Project:      get(EnvProject),
		Stack:        get(EnvStack),
		Environment:  get(EnvEnvironment),
		Release:      get(EnvRelease),
		Branch:       get(EnvBranch),
		MasterAddr:   get(EnvMaster),
		HostedZoneID: get(EnvHostedZoneID),
		DNSTTL:       constants.DefaultDNSTTL,
	}

	var err error

	if ctx.Autoscaled, err = boolValue(lookup, EnvAutoscaling); err != nil {
		return nil, err
	}

	if ctx.WaitForVolume, err = boolValue(lookup, EnvWaitVolume); err != nil {
		return nil, err
	}

	if ctx.DockerDisabled, err = boolValue(lookup, EnvNoDocker); err != nil {
		return nil, err
	}

	if ttl, ok := lookup(EnvDNSTTL); ok && ttl != "" {
		if ctx.DNSTTL, err = strconv.Atoi(ttl); err != nil {
			return nil, &ConfigurationError{Key: EnvDNSTTL, Reason: "not an integer"}
		}
	}

	required := []struct {
		key   string
		value string
	}{
		{EnvDomain, ctx.Domain},
		{EnvRole, string(ctx.Role)},
		{EnvOrganisation, ctx.Organisation},
		{EnvProject, ctx.Project},
		{EnvStack, ctx.Stack},
		{EnvEnvironment, ctx.Environment},
		{EnvRelease, ctx.Release},
		{EnvBranch, ctx.Branch},
	}

	for _, r := range required {
		if r.value == "" {
			return nil, &ConfigurationError{Key: r.key, Reason: "required but not set"}
		}
	}

	switch ctx.Role {
	case RoleMaster, RoleMinion:
	default:
		return nil, &ConfigurationError{Key: EnvRole, Reason: fmt.Sprintf("unknown role %q", ctx.Role)}
	}

	// Autoscaled instances derive their hostname from instance identity
	// later; everything else must supply one up front.
	if ctx.Hostname == "" && !ctx.Autoscaled {
		return nil, &ConfigurationError{Key: EnvHostname, Reason: "required but not set"}
	}

	if ctx.Role == RoleMaster {
		ctx.MasterAddr = "127.0.0.1"
	} else if ctx.MasterAddr == "" {
		return nil, &ConfigurationError{Key: EnvMaster, Reason: "required for minion role"}
	}

	if ctx.Autoscaled && ctx.HostedZoneID == "" {
		return nil, &ConfigurationError{Key: EnvHostedZoneID, Reason: "required for autoscaled instances"}
	}

	return ctx, nil
}

// FQDN derives the fully qualified name for the given short hostname.
func (c *Context) FQDN(hostname string) string {
	return hostname + "." + c.Stack + "." + c.Domain
}

func boolValue(lookup func(string) (string, bool), key string) (bool, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigurationError{Key: key, Reason: "not a boolean"}
	}

	return b, nil
}
