// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package guard_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/task/guard"
	"github.com/einyx/opg-bootstrap/internal/pkg/runcontext"
)

func testRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()

	dir := t.TempDir()

	r := runtime.NewRuntime(&runcontext.Context{}, nil)

	paths := runtime.DefaultPaths()
	paths.Marker = filepath.Join(dir, "bootstrapped")
	paths.Claim = filepath.Join(dir, "bootstrapped.claim")

	r.SetPaths(paths)

	return r
}

func TestClaimFreshHost(t *testing.T) {
	r := testRuntime(t)

	err := guard.Claim(r)(context.Background(), zaptest.NewLogger(t), r)
	require.NoError(t, err)

	_, err = os.Stat(r.Paths().Claim)
	assert.NoError(t, err)
}

func TestClaimRefusesSecondRun(t *testing.T) {
	r := testRuntime(t)

	require.NoError(t, guard.Claim(r)(context.Background(), zaptest.NewLogger(t), r))

	err := guard.Claim(r)(context.Background(), zaptest.NewLogger(t), r)
	assert.ErrorIs(t, err, guard.ErrAlreadyBootstrapped)
}

func TestClaimRefusesSealedHost(t *testing.T) {
	r := testRuntime(t)

	require.NoError(t, os.WriteFile(r.Paths().Marker, []byte("TIMESTAMP=1\n"), 0o644))

	err := guard.Claim(r)(context.Background(), zaptest.NewLogger(t), r)
	assert.ErrorIs(t, err, guard.ErrAlreadyBootstrapped)
}

func TestSeal(t *testing.T) {
	r := testRuntime(t)

	require.NoError(t, guard.Seal(r)(context.Background(), zaptest.NewLogger(t), r))

	contents, err := os.ReadFile(r.Paths().Marker)
	require.NoError(t, err)

	assert.Contains(t, string(contents), "TIMESTAMP=")
	assert.Contains(t, string(contents), "DATE=")
}

func TestSealThenClaimAborts(t *testing.T) {
	r := testRuntime(t)

	require.NoError(t, guard.Claim(r)(context.Background(), zaptest.NewLogger(t), r))
	require.NoError(t, guard.Seal(r)(context.Background(), zaptest.NewLogger(t), r))

	err := guard.Claim(r)(context.Background(), zaptest.NewLogger(t), r)
	assert.ErrorIs(t, err, guard.ErrAlreadyBootstrapped)
}
