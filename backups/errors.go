// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"fmt"
)

// DataIntegrityError reports fetched records that contradict each
// other, such as a section whose category was not returned.
type DataIntegrityError struct {
	SectionID  int64
	CategoryID int64
}

// Error implements error.
func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("section %d refers to unknown category %d", e.SectionID, e.CategoryID)
}

// FilesystemError reports a failure to create or write part of the
// local backup tree.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

// Error implements error.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("cannot %s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// UploadError reports that a container or object could not be written
// to the object store. Attempts is zero when the failure was not retried.
type UploadError struct {
	Container string
	Path      string
	Object    string
	Attempts  int
	Err       error
}

// Error implements error.
func (e *UploadError) Error() string {
	var what string
	if e.Path != "" {
		what = fmt.Sprintf("cannot upload %q to %s/%s", e.Path, e.Container, e.Object)
	} else {
		what = fmt.Sprintf("cannot create container %q", e.Container)
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("%s after %d attempts: %v", what, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %v", what, e.Err)
}

// Unwrap returns the underlying error.
func (e *UploadError) Unwrap() error {
	return e.Err
}
