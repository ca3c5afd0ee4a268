// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backups

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/juju/helpcenter-backup/helpcenter"
)

const (
	dirPerm  = 0700
	filePerm = 0600

	articleExt = ".json"
)

// Fetcher is the part of the help-center client the tree builder needs.
type Fetcher interface {
	Categories(ctx context.Context) ([]helpcenter.Category, error)
	Sections(ctx context.Context) ([]helpcenter.Section, error)
	Articles(ctx context.Context, sectionID int64) ([]helpcenter.Article, error)
}

// BuilderConfig holds the parameters for NewBuilder.
type BuilderConfig struct {
	Fetcher Fetcher

	// Root is the directory the category directories are created in.
	// It must already exist.
	Root string

	// ASCIINames restricts directory and file names to ASCII.
	ASCIINames bool
}

// Validate checks the configuration.
func (cfg BuilderConfig) Validate() error {
	if cfg.Fetcher == nil {
		return errors.NotValidf("missing Fetcher")
	}
	if cfg.Root == "" {
		return errors.NotValidf("empty Root")
	}
	return nil
}

// TreeStats summarises a finished build.
type TreeStats struct {
	Categories int
	Sections   int
	Articles   int
	Bytes      int64
}

// Builder writes the category/section/article hierarchy to disk, one
// JSON file per article.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder returns a Builder for the given configuration.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Builder{cfg: cfg}, nil
}

// Build fetches everything and writes it below the configured root.
// Running it again over unchanged data rewrites identical files.
func (b *Builder) Build(ctx context.Context) (TreeStats, error) {
	var stats TreeStats

	sections, err := b.cfg.Fetcher.Sections(ctx)
	if err != nil {
		return stats, errors.Annotate(err, "fetching sections")
	}
	categories, err := b.cfg.Fetcher.Categories(ctx)
	if err != nil {
		return stats, errors.Annotate(err, "fetching categories")
	}
	byID := make(map[int64]helpcenter.Category, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}

	seenCategories := make(map[int64]bool)
	for _, section := range sections {
		category, ok := byID[section.CategoryID]
		if !ok {
			return stats, &DataIntegrityError{
				SectionID:  section.ID,
				CategoryID: section.CategoryID,
			}
		}
		if !seenCategories[category.ID] {
			seenCategories[category.ID] = true
			stats.Categories++
		}

		categoryDir := filepath.Join(b.cfg.Root, segmentName(category.ID, category.Name, b.cfg.ASCIINames))
		if err := ensureDir(categoryDir); err != nil {
			return stats, errors.Trace(err)
		}
		sectionDir := filepath.Join(categoryDir, segmentName(section.ID, section.Name, b.cfg.ASCIINames))
		if err := ensureDir(sectionDir); err != nil {
			return stats, errors.Trace(err)
		}
		stats.Sections++

		articles, err := b.cfg.Fetcher.Articles(ctx, section.ID)
		if err != nil {
			return stats, errors.Trace(err)
		}
		for _, article := range articles {
			filename := filepath.Join(sectionDir, segmentName(article.ID, article.Title, b.cfg.ASCIINames)+articleExt)
			n, err := writeArticle(filename, article)
			if err != nil {
				return stats, errors.Trace(err)
			}
			stats.Articles++
			stats.Bytes += n
		}
		logger.Debugf("section %d %q: %d articles", section.ID, section.Name, len(articles))
	}
	return stats, nil
}

// ensureDir creates dir if it does not exist yet.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return &FilesystemError{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}

// writeArticle stores the full article record as indented JSON.
func writeArticle(filename string, article helpcenter.Article) (int64, error) {
	raw, err := json.Marshal(article)
	if err != nil {
		return 0, errors.Annotatef(err, "encoding article %d", article.ID)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return 0, errors.Annotatef(err, "encoding article %d", article.ID)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(filename, buf.Bytes(), filePerm); err != nil {
		return 0, &FilesystemError{Op: "write article", Path: filename, Err: err}
	}
	return int64(buf.Len()), nil
}
