// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package runtime

import "errors"

var (
	// ErrUndefinedRuntime indicates that the sequence's runtime is not
	// defined.
	ErrUndefinedRuntime = errors.New("undefined runtime")

	// ErrLocked indicates that a sequence is already running.
	ErrLocked = errors.New("sequence already running")
)
