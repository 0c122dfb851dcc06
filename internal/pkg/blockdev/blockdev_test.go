// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blockdev_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/einyx/opg-bootstrap/internal/pkg/backoff"
	"github.com/einyx/opg-bootstrap/internal/pkg/blockdev"
	"github.com/einyx/opg-bootstrap/internal/pkg/metadata"
)

func resolverWith(present ...string) *blockdev.Resolver {
	set := map[string]struct{}{}

	for _, p := range present {
		set[p] = struct{}{}
	}

	return &blockdev.Resolver{
		DevDir: "/dev",
		IsBlock: func(path string) bool {
			_, ok := set[path]

			return ok
		},
	}
}

func TestResolveDirect(t *testing.T) {
	r := resolverWith("/dev/sdb")

	path, ok := r.Resolve("sdb")
	require.True(t, ok)
	assert.Equal(t, "/dev/sdb", path)
}

func TestResolveXenFallback(t *testing.T) {
	r := resolverWith("/dev/xvdb")

	path, ok := r.Resolve("sdb")
	require.True(t, ok)
	assert.Equal(t, "/dev/xvdb", path)
}

func TestResolveMissing(t *testing.T) {
	r := resolverWith()

	_, ok := r.Resolve("sdf")
	assert.False(t, ok)
}

func metadataClient(t *testing.T, data map[string]string) *metadata.Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPut {
			w.Write([]byte("test-token")) //nolint:errcheck

			return
		}

		value, ok := data[strings.TrimPrefix(req.URL.Path, "/latest/meta-data/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		w.Write([]byte(value)) //nolint:errcheck
	}))

	t.Cleanup(server.Close)

	return metadata.NewClientWithEndpoint(server.URL)
}

func TestDiscoverEphemeral(t *testing.T) {
	client := metadataClient(t, map[string]string{
		"block-device-mapping/":           "ami\nephemeral0\nephemeral1\nephemeral2\nroot",
		"block-device-mapping/ami":        "sda1",
		"block-device-mapping/ephemeral0": "sdb",
		"block-device-mapping/ephemeral1": "sdc",
		"block-device-mapping/ephemeral2": "sdd",
		"block-device-mapping/root":       "/dev/sda1",
	})

	// ephemeral2 maps to a device the kernel never created.
	r := resolverWith("/dev/xvdb", "/dev/xvdc")

	devices, err := r.DiscoverEphemeral(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, []blockdev.Device{
		{Name: "sdb", Path: "/dev/xvdb"},
		{Name: "sdc", Path: "/dev/xvdc"},
	}, devices)
}

func TestDiscoverEphemeralDeduplicates(t *testing.T) {
	client := metadataClient(t, map[string]string{
		"block-device-mapping/":           "ephemeral0\nephemeral1",
		"block-device-mapping/ephemeral0": "sdb",
		"block-device-mapping/ephemeral1": "xvdb",
	})

	r := resolverWith("/dev/xvdb")

	devices, err := r.DiscoverEphemeral(context.Background(), client)
	require.NoError(t, err)

	// Both mapping entries resolve to the same physical device.
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/xvdb", devices[0].Path)
}

func TestDiscoverEphemeralNone(t *testing.T) {
	client := metadataClient(t, map[string]string{
		"block-device-mapping/":    "ami",
		"block-device-mapping/ami": "sda1",
	})

	r := resolverWith("/dev/xvda1")

	devices, err := r.DiscoverEphemeral(context.Background(), client)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestWaitForAnyImmediate(t *testing.T) {
	r := resolverWith("/dev/xvdf")

	path, err := r.WaitForAny(context.Background(), zaptest.NewLogger(t), []string{"sdf", "xvdf"}, backoff.Linear{Attempts: 1})
	require.NoError(t, err)
	assert.Equal(t, "/dev/xvdf", path)
}

func TestWaitForAnyImmediateMissing(t *testing.T) {
	r := resolverWith()

	_, err := r.WaitForAny(context.Background(), zaptest.NewLogger(t), []string{"sdf", "xvdf"}, backoff.Linear{Attempts: 1})

	var notFound *blockdev.DeviceNotFoundError

	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"sdf", "xvdf"}, notFound.Candidates)
}

func TestWaitForAnyAppearsLater(t *testing.T) {
	attached := false

	r := &blockdev.Resolver{
		DevDir: "/dev",
		IsBlock: func(path string) bool {
			return attached && path == "/dev/xvdf"
		},
	}

	budget := backoff.Linear{
		Attempts: 5,
		Unit:     time.Second,
		Sleep: func(context.Context, time.Duration) error {
			attached = true

			return nil
		},
	}

	path, err := r.WaitForAny(context.Background(), zaptest.NewLogger(t), []string{"sdf"}, budget)
	require.NoError(t, err)
	assert.Equal(t, "/dev/xvdf", path)
}

func TestWaitForAnyExhausted(t *testing.T) {
	r := resolverWith()

	budget := backoff.Linear{
		Attempts: 3,
		Unit:     time.Second,
		Sleep: func(context.Context, time.Duration) error {
			return nil
		},
	}

	_, err := r.WaitForAny(context.Background(), zaptest.NewLogger(t), []string{"sdf"}, budget)

	var notFound *blockdev.DeviceNotFoundError

	require.ErrorAs(t, err, &notFound)
}
