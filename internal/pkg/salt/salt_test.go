// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package salt_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einyx/opg-bootstrap/internal/pkg/salt"
)

func TestGrainsWrite(t *testing.T) {
	grains := salt.Grains{
		Role:         "minion",
		Organisation: "acme",
		Project:      "payments",
		Stack:        "blue",
		Environment:  "production",
		Release:      "2024.08.1",
		Branch:       "main",
		Domain:       "example.net",

		InstanceID:       "i-0abc123def456",
		InstanceType:     "m5.large",
		AvailabilityZone: "eu-west-1a",
		Region:           "eu-west-1",

		DockerVersion: "24.0.7",
	}

	path := filepath.Join(t.TempDir(), "etc", "salt", "grains")

	require.NoError(t, grains.Write(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	expected := `role: minion
organisation: acme
project: payments
stack: blue
environment: production
release: 2024.08.1
branch: main
domain: example.net
ec2_instance_id: i-0abc123def456
ec2_instance_type: m5.large
ec2_availability_zone: eu-west-1a
ec2_region: eu-west-1
docker_version: 24.0.7
`

	assert.Equal(t, expected, string(contents))
}

func TestGrainsWriteOmitsOptional(t *testing.T) {
	grains := salt.Grains{
		Role:         "master",
		Organisation: "acme",
		Project:      "payments",
		Stack:        "blue",
		Environment:  "production",
		Release:      "2024.08.1",
		Branch:       "main",
		Domain:       "example.net",
	}

	path := filepath.Join(t.TempDir(), "grains")

	require.NoError(t, grains.Write(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NotContains(t, string(contents), "ec2_instance_id")
	assert.NotContains(t, string(contents), "docker_version")
}

func TestGrainsValidate(t *testing.T) {
	grains := salt.Grains{
		Role:         "minion",
		Organisation: "acme",
		Project:      "payments",
		Stack:        "blue",
		Environment:  "production",
		Release:      "2024.08.1",
		Branch:       "main",
	}

	err := grains.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain")
}

type recordedCall struct {
	name string
	args []string
}

func fakeRunner(t *testing.T, calls *[]recordedCall, out string, err error) func(ctx context.Context, name string, args ...string) (string, error) {
	t.Helper()

	return func(_ context.Context, name string, args ...string) (string, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})

		return out, err
	}
}

func TestProbePublish(t *testing.T) {
	var calls []recordedCall

	out := `local:
  worker-1.blue.example.net: true
  worker-2.blue.example.net: true
  worker-3.blue.example.net: false
`

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, out, nil))

	responders, err := client.ProbePublish(context.Background(), "worker-1.blue.example.net")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"worker-1.blue.example.net", "worker-2.blue.example.net"}, responders)

	require.Len(t, calls, 1)
	assert.Equal(t, "salt-call", calls[0].name)
	assert.Equal(t, []string{"publish.publish", "worker-1.blue.example.net", "test.ping", "--out=yaml"}, calls[0].args)
}

func TestProbePublishEmpty(t *testing.T) {
	var calls []recordedCall

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, "local: {}\n", nil))

	responders, err := client.ProbePublish(context.Background(), "worker-1.blue.example.net")
	require.NoError(t, err)
	assert.Empty(t, responders)
}

func TestProbePublishFailure(t *testing.T) {
	var calls []recordedCall

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, "", errors.New("exit status 2")))

	_, err := client.ProbePublish(context.Background(), "worker-1.blue.example.net")
	require.Error(t, err)
}

func TestAcceptedKeys(t *testing.T) {
	var calls []recordedCall

	out := `minions:
- master.blue.example.net
- worker-1.blue.example.net
- localhost
minions_pre: []
minions_rejected: []
`

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, out, nil))

	keys, err := client.AcceptedKeys(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"master.blue.example.net", "worker-1.blue.example.net", "localhost"}, keys)
}

func TestDeleteKey(t *testing.T) {
	var calls []recordedCall

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, "", nil))

	require.NoError(t, client.DeleteKey(context.Background(), "localhost"))

	require.Len(t, calls, 1)
	assert.Equal(t, "salt-key", calls[0].name)
	assert.Equal(t, []string{"-d", "localhost", "-y"}, calls[0].args)
}

func TestDeleteKeyRefusesEmptyID(t *testing.T) {
	var calls []recordedCall

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, "", nil))

	require.Error(t, client.DeleteKey(context.Background(), "  "))
	assert.Empty(t, calls)
}

func TestHighstate(t *testing.T) {
	var calls []recordedCall

	client := salt.NewClientWithRunner(fakeRunner(t, &calls, "", nil))

	require.NoError(t, client.Highstate(context.Background()))

	require.Len(t, calls, 1)
	assert.Equal(t, []string{"state.highstate"}, calls[0].args)
}
