// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package version carries the build identity, set via ldflags.
package version

var (
	// Name is set at build time.
	Name = "opg-bootstrap"

	// Tag is set at build time.
	Tag = "devel"

	// SHA is set at build time.
	SHA string
)
