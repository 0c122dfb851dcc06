// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mount

import (
	"fmt"
	"os"
	"strings"
)

// Entry is a single persistent mount table line.
type Entry struct {
	Source  string
	Target  string
	Fstype  string
	Options string
	Dump    int
	Pass    int
}

// Render formats the entry as a tab-separated fstab line.
func (e Entry) Render() string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d", e.Source, e.Target, e.Fstype, e.Options, e.Dump, e.Pass)
}

// Plan is the ordered set of mount table entries accumulated over a run
// and persisted once.
type Plan struct {
	entries []Entry
}

// Add appends an entry to the plan.
func (p *Plan) Add(entry Entry) {
	p.entries = append(p.entries, entry)
}

// Entries returns the accumulated entries in order.
func (p *Plan) Entries() []Entry {
	return p.entries
}

// Write appends the plan to the mount table at path. An entry whose
// source and target already appear in the table is skipped, so re-running
// the bootstrap does not accumulate duplicates.
func (p *Plan) Write(path string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error reading mount table %s: %w", path, err)
	}

	present := map[string]struct{}{}

	for _, line := range strings.Split(string(existing), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		present[fields[0]+"\x00"+fields[1]] = struct{}{}
	}

	var sb strings.Builder

	sb.Write(existing)

	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		sb.WriteByte('\n')
	}

	appended := 0

	for _, entry := range p.entries {
		if _, ok := present[entry.Source+"\x00"+entry.Target]; ok {
			continue
		}

		sb.WriteString(entry.Render())
		sb.WriteByte('\n')

		appended++
	}

	if appended == 0 {
		return nil
	}

	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
