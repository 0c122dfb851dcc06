// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package salt

import (
	"context"
	"fmt"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"gopkg.in/yaml.v3"
)

// Client drives the salt CLI tools. The runner is injectable for tests.
type Client struct {
	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewClient returns a Client executing the real CLI tools.
func NewClient() *Client {
	return &Client{run: cmd.RunContext}
}

// NewClientWithRunner returns a Client with a custom command runner.
func NewClientWithRunner(run func(ctx context.Context, name string, args ...string) (string, error)) *Client {
	return &Client{run: run}
}

// Highstate triggers a full convergence run.
func (c *Client) Highstate(ctx context.Context) error {
	if _, err := c.run(ctx, "salt-call", "state.highstate"); err != nil {
		return fmt.Errorf("highstate failed: %w", err)
	}

	return nil
}

// ProbePublish publishes a round-trip probe through the master's
// messaging layer: the named minion is asked to answer a ping, and the
// responders are returned. An empty responder set means the mesh is not
// functional yet.
func (c *Client) ProbePublish(ctx context.Context, target string) ([]string, error) {
	out, err := c.run(ctx, "salt-call", "publish.publish", target, "test.ping", "--out=yaml")
	if err != nil {
		return nil, fmt.Errorf("probe publish failed: %w", err)
	}

	var result struct {
		Local map[string]bool `yaml:"local"`
	}

	if err := yaml.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("unparseable probe response: %w", err)
	}

	responders := make([]string, 0, len(result.Local))

	for id, ok := range result.Local {
		if ok {
			responders = append(responders, id)
		}
	}

	return responders, nil
}

// AcceptedKeys lists the identities registered with the master.
func (c *Client) AcceptedKeys(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "salt-key", "-L", "--out=yaml")
	if err != nil {
		return nil, fmt.Errorf("key listing failed: %w", err)
	}

	var result struct {
		Minions []string `yaml:"minions"`
	}

	if err := yaml.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("unparseable key listing: %w", err)
	}

	return result.Minions, nil
}

// DeleteKey removes a registered identity from the master.
func (c *Client) DeleteKey(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("refusing to delete empty key id")
	}

	if _, err := c.run(ctx, "salt-key", "-d", id, "-y"); err != nil {
		return fmt.Errorf("key delete failed: %w", err)
	}

	return nil
}
