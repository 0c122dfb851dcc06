// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package salt writes the salt agent's configuration and drives its CLI.
package salt

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Grains is the closed set of static grains the bootstrap publishes. The
// agent and downstream states key off these; keys are not open-ended.
type Grains struct {
	Role         string `yaml:"role"`
	Organisation string `yaml:"organisation"`
	Project      string `yaml:"project"`
	Stack        string `yaml:"stack"`
	Environment  string `yaml:"environment"`
	Release      string `yaml:"release"`
	Branch       string `yaml:"branch"`
	Domain       string `yaml:"domain"`

	InstanceID       string `yaml:"ec2_instance_id,omitempty"`
	InstanceType     string `yaml:"ec2_instance_type,omitempty"`
	AvailabilityZone string `yaml:"ec2_availability_zone,omitempty"`
	Region           string `yaml:"ec2_region,omitempty"`

	DockerVersion string `yaml:"docker_version,omitempty"`
}

// Validate rejects grains missing their identity fields.
func (g *Grains) Validate() error {
	for key, value := range map[string]string{
		"role":         g.Role,
		"organisation": g.Organisation,
		"project":      g.Project,
		"stack":        g.Stack,
		"environment":  g.Environment,
		"release":      g.Release,
		"branch":       g.Branch,
		"domain":       g.Domain,
	} {
		if value == "" {
			return fmt.Errorf("grain %q must not be empty", key)
		}
	}

	return nil
}

// Write validates and persists the grains file.
func (g *Grains) Write(path string) error {
	if err := g.Validate(); err != nil {
		return err
	}

	out, err := yaml.Marshal(g)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, out, 0o644)
}
