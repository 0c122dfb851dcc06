// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einyx/opg-bootstrap/internal/pkg/services"
)

type fakeConn struct {
	ops      []string
	result   string
	jobErr   error
	maskErr  error
	reloaded bool
}

func (f *fakeConn) job(op, name string, ch chan<- string) (int, error) {
	f.ops = append(f.ops, op+" "+name)

	if f.jobErr != nil {
		return 0, f.jobErr
	}

	result := f.result
	if result == "" {
		result = "done"
	}

	ch <- result

	return 1, nil
}

func (f *fakeConn) StopUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return f.job("stop", name, ch)
}

func (f *fakeConn) StartUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return f.job("start", name, ch)
}

func (f *fakeConn) RestartUnitContext(_ context.Context, name, _ string, ch chan<- string) (int, error) {
	return f.job("restart", name, ch)
}

func (f *fakeConn) MaskUnitFilesContext(_ context.Context, files []string, _, _ bool) ([]dbus.MaskUnitFileChange, error) {
	for _, file := range files {
		f.ops = append(f.ops, "mask "+file)
	}

	return nil, f.maskErr
}

func (f *fakeConn) ReloadContext(context.Context) error {
	f.reloaded = true

	return nil
}

func (f *fakeConn) Close() {}

func TestStopStartRestart(t *testing.T) {
	conn := &fakeConn{}
	manager := services.NewManagerWithConn(conn)

	require.NoError(t, manager.Stop(context.Background(), "docker.service"))
	require.NoError(t, manager.Start(context.Background(), "docker.service"))
	require.NoError(t, manager.Restart(context.Background(), "salt-minion.service"))

	assert.Equal(t, []string{
		"stop docker.service",
		"start docker.service",
		"restart salt-minion.service",
	}, conn.ops)
}

func TestJobFailure(t *testing.T) {
	conn := &fakeConn{jobErr: errors.New("unit not found")}
	manager := services.NewManagerWithConn(conn)

	err := manager.Stop(context.Background(), "ghost.service")
	require.Error(t, err)

	var ctrlErr *services.ControlError

	require.ErrorAs(t, err, &ctrlErr)
	assert.Equal(t, "ghost.service", ctrlErr.Unit)
	assert.Equal(t, "stop", ctrlErr.Op)
}

func TestJobResultNotDone(t *testing.T) {
	conn := &fakeConn{result: "failed"}
	manager := services.NewManagerWithConn(conn)

	err := manager.Start(context.Background(), "docker.service")

	var ctrlErr *services.ControlError

	require.ErrorAs(t, err, &ctrlErr)
	assert.Contains(t, ctrlErr.Error(), "failed")
}

func TestMaskReloads(t *testing.T) {
	conn := &fakeConn{}
	manager := services.NewManagerWithConn(conn)

	require.NoError(t, manager.Mask(context.Background(), "docker.service", "docker.socket"))

	assert.Equal(t, []string{"mask docker.service", "mask docker.socket"}, conn.ops)
	assert.True(t, conn.reloaded)
}
