// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package salt

import (
	"os"
	"path/filepath"
)

// PurgePKI removes stored master and minion authentication material so the
// agent re-registers under its new identity.
func PurgePKI(pkiDir string) error {
	for _, role := range []string{"master", "minion"} {
		if err := os.RemoveAll(filepath.Join(pkiDir, role)); err != nil {
			return err
		}
	}

	return nil
}
