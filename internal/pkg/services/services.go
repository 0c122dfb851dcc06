// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package services controls systemd units over the dbus API.
package services

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// ControlError wraps a failed service control operation. Stopping a unit
// that was never started and restarting one that is mid-shutdown both
// land here; callers in best-effort positions log and discard it.
type ControlError struct {
	Unit string
	Op   string
	Err  error
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("service control: %s %s: %v", e.Op, e.Unit, e.Err)
}

func (e *ControlError) Unwrap() error {
	return e.Err
}

// Conn is the subset of the systemd dbus connection the manager needs.
type Conn interface {
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	MaskUnitFilesContext(ctx context.Context, files []string, runtime, force bool) ([]dbus.MaskUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	Close()
}

// Manager drives unit state transitions.
type Manager struct {
	conn Conn
}

// NewManager connects to the system bus.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to systemd: %w", err)
	}

	return &Manager{conn: conn}, nil
}

// NewManagerWithConn builds a Manager over an existing connection.
func NewManagerWithConn(conn Conn) *Manager {
	return &Manager{conn: conn}
}

// Close releases the dbus connection.
func (m *Manager) Close() {
	m.conn.Close()
}

// Stop stops a unit and waits for the job to finish.
func (m *Manager) Stop(ctx context.Context, unit string) error {
	return m.job(ctx, unit, "stop", m.conn.StopUnitContext)
}

// Start starts a unit and waits for the job to finish.
func (m *Manager) Start(ctx context.Context, unit string) error {
	return m.job(ctx, unit, "start", m.conn.StartUnitContext)
}

// Restart restarts a unit and waits for the job to finish.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	return m.job(ctx, unit, "restart", m.conn.RestartUnitContext)
}

// Mask diverts the unit files so the init system cannot (re)start them.
func (m *Manager) Mask(ctx context.Context, units ...string) error {
	if _, err := m.conn.MaskUnitFilesContext(ctx, units, false, true); err != nil {
		return &ControlError{Unit: fmt.Sprintf("%v", units), Op: "mask", Err: err}
	}

	if err := m.conn.ReloadContext(ctx); err != nil {
		return &ControlError{Unit: fmt.Sprintf("%v", units), Op: "daemon-reload", Err: err}
	}

	return nil
}

func (m *Manager) job(ctx context.Context, unit, op string, f func(context.Context, string, string, chan<- string) (int, error)) error {
	ch := make(chan string, 1)

	if _, err := f(ctx, unit, "replace", ch); err != nil {
		return &ControlError{Unit: unit, Op: op, Err: err}
	}

	select {
	case result := <-ch:
		if result != "done" {
			return &ControlError{Unit: unit, Op: op, Err: fmt.Errorf("job result %q", result)}
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// KillAll force-kills any processes matching the pattern. Stragglers that
// survived a unit stop are the expected targets.
func KillAll(ctx context.Context, pattern string) error {
	if _, err := cmd.RunContext(ctx, "pkill", "-9", "-f", pattern); err != nil {
		return &ControlError{Unit: pattern, Op: "pkill", Err: err}
	}

	return nil
}
