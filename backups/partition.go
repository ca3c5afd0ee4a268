// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/juju/errors"
)

// Partition identifies the hour a run belongs to. Every file written by
// one run lives below the partition's directory.
type Partition struct {
	Year  int
	Month int
	Day   int
	Hour  int
}

// PartitionFor returns the partition for t, taken in UTC.
func PartitionFor(t time.Time) Partition {
	t = t.UTC()
	return Partition{
		Year:  t.Year(),
		Month: int(t.Month()),
		Day:   t.Day(),
		Hour:  t.Hour(),
	}
}

// segments returns the directory names, outermost first.
func (p Partition) segments() []string {
	return []string{
		fmt.Sprintf("%04d", p.Year),
		fmt.Sprintf("%02d", p.Month),
		fmt.Sprintf("%02d", p.Day),
		fmt.Sprintf("%02d", p.Hour),
	}
}

// Dir returns the partition directory below root.
func (p Partition) Dir(root string) string {
	return filepath.Join(append([]string{root}, p.segments()...)...)
}

// ObjectPrefix returns the slash separated prefix used for object names.
func (p Partition) ObjectPrefix() string {
	return path.Join(p.segments()...)
}

// ArchiveName returns the file name used for the partition's archive.
func (p Partition) ArchiveName() string {
	return fmt.Sprintf("%04d-%02d-%02d-%02d.tar.gz", p.Year, p.Month, p.Day, p.Hour)
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return p.ObjectPrefix()
}

// EnsurePartition creates root/YYYY, then root/YYYY/MM and so on down to
// the hour, leaving existing directories untouched, and returns the
// deepest one.
func EnsurePartition(root string, p Partition) (string, error) {
	dir := root
	if err := ensureDir(dir); err != nil {
		return "", errors.Trace(err)
	}
	for _, segment := range p.segments() {
		dir = filepath.Join(dir, segment)
		if err := ensureDir(dir); err != nil {
			return "", errors.Trace(err)
		}
	}
	return dir, nil
}
