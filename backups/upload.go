// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/ratelimit"

	"github.com/juju/helpcenter-backup/internal/netretry"
)

// ObjectStore is the remote storage the backup is pushed to.
type ObjectStore interface {
	// CreateContainer creates the named container. A container that
	// already exists is not an error.
	CreateContainer(ctx context.Context, name string) error

	// PutObject stores length bytes read from r as the named object,
	// replacing any object of the same name.
	PutObject(ctx context.Context, container, name string, r io.Reader, length int64) error
}

// UploaderConfig holds the parameters for NewUploader. Zero retry
// settings are replaced by the netretry defaults.
type UploaderConfig struct {
	Store ObjectStore
	Clock clock.Clock

	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration

	// BytesPerSecond caps the upload bandwidth; zero means no cap.
	BytesPerSecond int64
}

// Validate checks the configuration.
func (cfg UploaderConfig) Validate() error {
	if cfg.Store == nil {
		return errors.NotValidf("missing Store")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if cfg.Attempts < 1 {
		return errors.NotValidf("Attempts %d", cfg.Attempts)
	}
	if cfg.Delay <= 0 {
		return errors.NotValidf("Delay %v", cfg.Delay)
	}
	if cfg.MaxDelay < cfg.Delay {
		return errors.NotValidf("MaxDelay %v shorter than Delay %v", cfg.MaxDelay, cfg.Delay)
	}
	if cfg.BytesPerSecond < 0 {
		return errors.NotValidf("BytesPerSecond %d", cfg.BytesPerSecond)
	}
	return nil
}

func (cfg UploaderConfig) withDefaults() UploaderConfig {
	if cfg.Attempts == 0 {
		cfg.Attempts = netretry.DefaultAttempts
	}
	if cfg.Delay == 0 {
		cfg.Delay = netretry.DefaultDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = netretry.DefaultMaxDelay
		if cfg.MaxDelay < cfg.Delay {
			cfg.MaxDelay = cfg.Delay
		}
	}
	return cfg
}

// UploadStats summarises a finished upload.
type UploadStats struct {
	Objects int
	Bytes   int64
}

// Uploader copies local files to an ObjectStore, retrying on transient
// network failures.
type Uploader struct {
	cfg    UploaderConfig
	bucket *ratelimit.Bucket
}

// NewUploader returns an Uploader for the given configuration.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	u := &Uploader{cfg: cfg}
	if cfg.BytesPerSecond > 0 {
		// One second's worth of bytes may be sent in a burst.
		u.bucket = ratelimit.NewBucketWithRate(float64(cfg.BytesPerSecond), cfg.BytesPerSecond)
	}
	return u, nil
}

// Upload makes sure container exists and then stores every regular
// file below root in it, in lexical order. Each object is named by
// prefix followed by the file's slash separated path relative to root.
// The first file that cannot be stored stops the upload.
func (u *Uploader) Upload(ctx context.Context, container, root, prefix string) (UploadStats, error) {
	var stats UploadStats
	if err := u.createContainer(ctx, container); err != nil {
		return stats, errors.Trace(err)
	}

	files, err := listFiles(root)
	if err != nil {
		return stats, errors.Trace(err)
	}
	for _, file := range files {
		object := path.Join(prefix, file.rel)
		if err := u.put(ctx, container, file.path, object); err != nil {
			return stats, errors.Trace(err)
		}
		stats.Objects++
		stats.Bytes += file.size
	}
	logger.Infof("uploaded %d objects (%s) to %s/%s",
		stats.Objects, humanize.Bytes(uint64(stats.Bytes)), container, prefix)
	return stats, nil
}

// UploadFile makes sure container exists and stores the file at path
// as object.
func (u *Uploader) UploadFile(ctx context.Context, container, path, object string) error {
	if err := u.createContainer(ctx, container); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(u.put(ctx, container, path, object))
}

func (u *Uploader) createContainer(ctx context.Context, container string) error {
	err := u.call(ctx, func() error {
		return u.cfg.Store.CreateContainer(ctx, container)
	})
	if err != nil {
		return u.uploadError(ctx, err, &UploadError{Container: container})
	}
	logger.Debugf("container %q ready", container)
	return nil
}

// put uploads a single file. The file is reopened for every attempt so
// a retry always starts from the first byte.
func (u *Uploader) put(ctx context.Context, container, filename, object string) error {
	err := u.call(ctx, func() error {
		f, err := os.Open(filename)
		if err != nil {
			return &FilesystemError{Op: "open", Path: filename, Err: err}
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return &FilesystemError{Op: "stat", Path: filename, Err: err}
		}
		var r io.Reader = f
		if u.bucket != nil {
			r = throttledFile{Reader: ratelimit.Reader(f, u.bucket), file: f}
		}
		return u.cfg.Store.PutObject(ctx, container, object, r, info.Size())
	})
	if err != nil {
		return u.uploadError(ctx, err, &UploadError{
			Container: container,
			Path:      filename,
			Object:    object,
		})
	}
	logger.Tracef("uploaded %s as %s/%s", filename, container, object)
	return nil
}

// throttledFile reads through a rate limiter but can still be rewound,
// which request signing needs.
type throttledFile struct {
	io.Reader
	file *os.File
}

// Seek implements io.Seeker.
func (t throttledFile) Seek(offset int64, whence int) (int64, error) {
	return t.file.Seek(offset, whence)
}

func (u *Uploader) call(ctx context.Context, f func() error) error {
	return netretry.Call(ctx, netretry.Args{
		Func:        f,
		IsRetryable: isRetryableUpload,
		Attempts:    u.cfg.Attempts,
		Delay:       u.cfg.Delay,
		MaxDelay:    u.cfg.MaxDelay,
		Clock:       u.cfg.Clock,
	})
}

// uploadError fills in uerr from the error returned by netretry.Call.
// Local filesystem failures and cancellation are passed through as they
// are.
func (u *Uploader) uploadError(ctx context.Context, err error, uerr *UploadError) error {
	if ctx.Err() != nil {
		return errors.Trace(err)
	}
	var fsErr *FilesystemError
	if errors.As(err, &fsErr) {
		return fsErr
	}
	var exhausted *netretry.ExhaustedError
	if errors.As(err, &exhausted) {
		uerr.Attempts = exhausted.Attempts
		uerr.Err = exhausted.Err
	} else {
		uerr.Err = errors.Cause(err)
	}
	return uerr
}

func isRetryableUpload(err error) bool {
	var fsErr *FilesystemError
	if errors.As(err, &fsErr) {
		return false
	}
	return netretry.IsTransient(err)
}

type localFile struct {
	path string
	rel  string
	size int64
}

// listFiles returns the regular files below root in lexical order.
func listFiles(root string) ([]localFile, error) {
	var files []localFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &FilesystemError{Op: "read", Path: p, Err: err}
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return &FilesystemError{Op: "stat", Path: p, Err: err}
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return errors.Trace(err)
		}
		files = append(files, localFile{
			path: p,
			rel:  filepath.ToSlash(rel),
			size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return files, nil
}
