// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mount_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einyx/opg-bootstrap/internal/pkg/mount"
)

func TestEntryRender(t *testing.T) {
	entry := mount.Entry{
		Source:  "/dev/md0",
		Target:  "/srv",
		Fstype:  "ext4",
		Options: "defaults,noatime",
		Dump:    0,
		Pass:    0,
	}

	assert.Equal(t, "/dev/md0\t/srv\text4\tdefaults,noatime\t0\t0", entry.Render())
}

func TestPlanWriteFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	require.NoError(t, os.WriteFile(path, []byte("LABEL=root\t/\text4\tdefaults\t0\t1\n"), 0o644))

	var plan mount.Plan

	plan.Add(mount.Entry{Source: "/dev/xvdf", Target: "/data", Fstype: "xfs", Options: "noatime,nobarrier"})
	plan.Add(mount.Entry{Source: "/srv/docker", Target: "/var/lib/docker", Fstype: "none", Options: "bind"})

	require.NoError(t, plan.Write(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	expected := "LABEL=root\t/\text4\tdefaults\t0\t1\n" +
		"/dev/xvdf\t/data\txfs\tnoatime,nobarrier\t0\t0\n" +
		"/srv/docker\t/var/lib/docker\tnone\tbind\t0\t0\n"

	assert.Equal(t, expected, string(contents))
}

func TestPlanWriteIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	var plan mount.Plan

	plan.Add(mount.Entry{Source: "/dev/xvdf", Target: "/data", Fstype: "xfs", Options: "noatime,nobarrier"})

	require.NoError(t, plan.Write(path))

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// A second pass over the same plan appends nothing.
	require.NoError(t, plan.Write(path))

	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestPlanWriteSkipsExistingPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	require.NoError(t, os.WriteFile(path, []byte("/dev/xvdf /data xfs noatime 0 0\n"), 0o644))

	var plan mount.Plan

	plan.Add(mount.Entry{Source: "/dev/xvdf", Target: "/data", Fstype: "xfs", Options: "noatime,nobarrier"})
	plan.Add(mount.Entry{Source: "/dev/xvdf", Target: "/backup", Fstype: "xfs", Options: "noatime"})

	require.NoError(t, plan.Write(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	// Same source+target is left alone, same source with a new target is
	// still appended.
	assert.Equal(t,
		"/dev/xvdf /data xfs noatime 0 0\n/dev/xvdf\t/backup\txfs\tnoatime\t0\t0\n",
		string(contents))
}

func TestPlanWriteMissingTableWithoutEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	var plan mount.Plan

	require.NoError(t, plan.Write(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPlanWriteNoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	require.NoError(t, os.WriteFile(path, []byte("LABEL=root\t/\text4\tdefaults\t0\t1"), 0o644))

	var plan mount.Plan

	plan.Add(mount.Entry{Source: "/dev/xvdf", Target: "/data", Fstype: "xfs", Options: "noatime"})

	require.NoError(t, plan.Write(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t,
		"LABEL=root\t/\text4\tdefaults\t0\t1\n/dev/xvdf\t/data\txfs\tnoatime\t0\t0\n",
		string(contents))
}
