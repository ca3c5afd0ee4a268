// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"

	"github.com/juju/helpcenter-backup/backups"
	"github.com/juju/helpcenter-backup/helpcenter"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2
	exitAPI        = 3
	exitIntegrity  = 4
	exitUpload     = 5
	exitFilesystem = 6
)

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		apiErr       *helpcenter.APIError
		parseErr     *helpcenter.ParseError
		integrityErr *backups.DataIntegrityError
		uploadErr    *backups.UploadError
		fsErr        *backups.FilesystemError
	)
	switch {
	case errors.As(err, &apiErr), errors.As(err, &parseErr):
		return exitAPI
	case errors.As(err, &integrityErr):
		return exitIntegrity
	case errors.As(err, &uploadErr):
		return exitUpload
	case errors.As(err, &fsErr):
		return exitFilesystem
	case errors.IsNotValid(err):
		return exitConfig
	}
	return exitFailure
}
