// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"compress/gzip"
	"crypto/sha1"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/hash"
	"github.com/juju/utils/v4/tar"
)

const checksumFormat = "SHA-1, base64 encoded"

// Archive describes a gzipped tarball of a backup partition.
type Archive struct {
	// Filename is where the archive was written.
	Filename string
	// Size is the size of the compressed archive in bytes.
	Size int64
	// Checksum is the checksum of the compressed archive.
	Checksum string
	// ChecksumFormat is the kind (and encoding) of Checksum.
	ChecksumFormat string
}

// CreateArchive writes dir, and everything below it, to a gzipped
// tarball at filename. Entry names are relative to root, so an archive
// of a partition unpacks to YYYY/MM/DD/HH/...
func CreateArchive(root, dir, filename string) (*Archive, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) > 2 && rel[:3] == ".."+string(os.PathSeparator) {
		return nil, errors.NotValidf("archive directory %q outside root %q", dir, root)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, &FilesystemError{Op: "create archive", Path: filename, Err: err}
	}
	checksum, err := writeArchive(file, root, dir)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = &FilesystemError{Op: "close archive", Path: filename, Err: closeErr}
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	info, err := os.Stat(filename)
	if err != nil {
		return nil, &FilesystemError{Op: "stat archive", Path: filename, Err: err}
	}
	logger.Infof("wrote archive %s", filename)
	return &Archive{
		Filename:       filename,
		Size:           info.Size(),
		Checksum:       checksum,
		ChecksumFormat: checksumFormat,
	}, nil
}

// writeArchive tars and compresses dir into file, returning the
// checksum of the compressed bytes.
func writeArchive(file *os.File, root, dir string) (string, error) {
	// The hash covers the gzipped output, so it can be compared with
	// the checksum of the archive file without decompressing it.
	hasher := hash.NewHashingWriter(file, sha1.New())
	tarball := gzip.NewWriter(hasher)

	stripPrefix := filepath.Clean(root) + string(os.PathSeparator)
	if _, err := tar.TarFiles([]string{filepath.Clean(dir)}, tarball, stripPrefix); err != nil {
		tarball.Close()
		return "", errors.Annotate(err, "bundling archive")
	}
	// The gzip writer buffers, so it must be closed before the
	// checksum is read.
	if err := tarball.Close(); err != nil {
		return "", &FilesystemError{Op: "write archive", Path: file.Name(), Err: err}
	}
	return hasher.Base64Sum(), nil
}
