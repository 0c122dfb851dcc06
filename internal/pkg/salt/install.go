// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package salt

import (
	"context"
	"fmt"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Role package sets.
var (
	MinionPackages = []string{"salt-minion"}
	MasterPackages = []string{"salt-master", "salt-minion"}
)

// InstallPackages installs the given agent packages. Install failures are
// fatal to the run.
func InstallPackages(ctx context.Context, packages ...string) error {
	args := append([]string{"install", "-y"}, packages...)

	if _, err := cmd.RunContext(ctx, "apt-get", args...); err != nil {
		return fmt.Errorf("error installing packages %v: %w", packages, err)
	}

	return nil
}
