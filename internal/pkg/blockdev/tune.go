// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blockdev

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	tuneScheduler   = "deadline"
	tuneReadAheadKB = "1024"
)

// Tune applies the io scheduler and read-ahead settings to a discovered
// device via sysfs. Unsupported kernels or virtual devices make these
// writes fail; that is not a reason to stop the run, so the single
// returned error carries everything for the caller to log.
func Tune(devPath string) error {
	name := filepath.Base(devPath)

	queueDir := filepath.Join("/sys/block", name, "queue")

	if err := os.WriteFile(filepath.Join(queueDir, "scheduler"), []byte(tuneScheduler), 0o644); err != nil {
		return fmt.Errorf("setting io scheduler on %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(queueDir, "read_ahead_kb"), []byte(tuneReadAheadKB), 0o644); err != nil {
		return fmt.Errorf("setting read-ahead on %s: %w", name, err)
	}

	return nil
}
