// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"context"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// RunConfig holds everything a single backup run needs.
type RunConfig struct {
	// Root is the local directory partitions are created in.
	Root string

	// Container is the object store container uploads go to.
	Container string

	Clock   clock.Clock
	Fetcher Fetcher

	// Store receives the uploads. It may be nil when SkipUpload is set.
	Store ObjectStore

	// Archive also writes a tar.gz of the partition next to it, and
	// uploads it unless SkipUpload is set.
	Archive bool

	SkipUpload bool
	ASCIINames bool

	// Retry settings for the uploader; zero values take the defaults.
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration

	// UploadBytesPerSecond caps the upload bandwidth; zero means no cap.
	UploadBytesPerSecond int64
}

// Validate checks the configuration.
func (cfg RunConfig) Validate() error {
	if cfg.Root == "" {
		return errors.NotValidf("empty Root")
	}
	if cfg.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if cfg.Fetcher == nil {
		return errors.NotValidf("missing Fetcher")
	}
	if cfg.SkipUpload {
		return nil
	}
	if cfg.Store == nil {
		return errors.NotValidf("missing Store")
	}
	if cfg.Container == "" {
		return errors.NotValidf("empty Container")
	}
	return nil
}

// Result describes what a run produced.
type Result struct {
	Partition Partition
	// Dir is the local partition directory.
	Dir string

	Tree   TreeStats
	Upload UploadStats

	// Archive is nil unless an archive was requested.
	Archive *Archive
}

// Run performs one backup: it creates the partition for the current
// hour, writes the help center into it and then uploads it. Nothing is
// uploaded unless the whole tree was written, and nothing written
// locally is removed if the upload fails.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	result := &Result{Partition: PartitionFor(cfg.Clock.Now())}

	dir, err := EnsurePartition(cfg.Root, result.Partition)
	if err != nil {
		return result, errors.Trace(err)
	}
	result.Dir = dir
	logger.Infof("backing up to %s", dir)

	builder, err := NewBuilder(BuilderConfig{
		Fetcher:    cfg.Fetcher,
		Root:       dir,
		ASCIINames: cfg.ASCIINames,
	})
	if err != nil {
		return result, errors.Trace(err)
	}
	if result.Tree, err = builder.Build(ctx); err != nil {
		return result, errors.Trace(err)
	}
	logger.Infof("wrote %d articles in %d sections of %d categories (%s)",
		result.Tree.Articles, result.Tree.Sections, result.Tree.Categories,
		humanize.Bytes(uint64(result.Tree.Bytes)))

	if cfg.Archive {
		filename := filepath.Join(cfg.Root, result.Partition.ArchiveName())
		if result.Archive, err = CreateArchive(cfg.Root, dir, filename); err != nil {
			return result, errors.Trace(err)
		}
		logger.Infof("archive %s is %s, checksum %s",
			filename, humanize.Bytes(uint64(result.Archive.Size)), result.Archive.Checksum)
	}

	if cfg.SkipUpload {
		logger.Infof("skipping upload")
		return result, nil
	}
	uploader, err := NewUploader(UploaderConfig{
		Store:    cfg.Store,
		Clock:    cfg.Clock,
		Attempts: cfg.Attempts,
		Delay:    cfg.Delay,
		MaxDelay: cfg.MaxDelay,

		BytesPerSecond: cfg.UploadBytesPerSecond,
	})
	if err != nil {
		return result, errors.Trace(err)
	}
	if result.Upload, err = uploader.Upload(ctx, cfg.Container, dir, result.Partition.ObjectPrefix()); err != nil {
		return result, errors.Trace(err)
	}
	if result.Archive != nil {
		object := filepath.Base(result.Archive.Filename)
		if err := uploader.UploadFile(ctx, cfg.Container, result.Archive.Filename, object); err != nil {
			return result, errors.Trace(err)
		}
		result.Upload.Objects++
		result.Upload.Bytes += result.Archive.Size
	}
	return result, nil
}
