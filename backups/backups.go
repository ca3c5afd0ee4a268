// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package backups builds a local copy of a help center and pushes it to
// object storage.
//
// A run lays files out as
//
//	<root>/<YYYY>/<MM>/<DD>/<HH>/<category id> <name>/<section id> <name>/<article id> <title>.json
//
// and uploads each file under the same relative name.
package backups

import (
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("helpcenterbackup.backups")
