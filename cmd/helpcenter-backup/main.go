// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// The helpcenter-backup command copies every help-center article into
// an hourly partition on local disk and uploads the result to an object
// store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
	"github.com/mattn/go-isatty"

	"github.com/juju/helpcenter-backup/backups"
	"github.com/juju/helpcenter-backup/helpcenter"
	"github.com/juju/helpcenter-backup/internal/config"
	"github.com/juju/helpcenter-backup/objectstore/s3"
	"github.com/juju/helpcenter-backup/objectstore/swift"
)

var logger = loggo.GetLogger("helpcenterbackup.cmd")

const (
	defaultLoggingConfig = "<root>=INFO"

	logFileMaxSizeMB  = 100
	logFileMaxBackups = 5
)

func main() {
	os.Exit(Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type commandLineArgs struct {
	configFile    string
	envFile       string
	root          string
	container     string
	loggingConfig string
	logFile       string
	storage       string
	archive       bool
	skipUpload    bool
	asciiNames    bool
}

func commandLine(args []string, stderr io.Writer) (commandLineArgs, error) {
	flags := gnuflag.NewFlagSet("helpcenter-backup", gnuflag.ContinueOnError)
	flags.SetOutput(stderr)
	var a commandLineArgs
	flags.StringVar(&a.configFile, "config", "",
		"YAML configuration file")
	flags.StringVar(&a.envFile, "env-file", ".env",
		"file of KEY=value settings, used when missing from the environment")
	flags.StringVar(&a.root, "root", "",
		"local directory to write backups to")
	flags.StringVar(&a.container, "container", "",
		"object store container to upload to")
	flags.StringVar(&a.loggingConfig, "logging-config", "",
		"logging configuration, e.g. <root>=DEBUG")
	flags.StringVar(&a.logFile, "log-file", "",
		"also write logs to this file, rotating it as it grows")
	flags.StringVar(&a.storage, "storage", "",
		"object store protocol, swift or s3")
	flags.BoolVar(&a.archive, "archive", false,
		"also write and upload a tar.gz of the backup")
	flags.BoolVar(&a.skipUpload, "skip-upload", false,
		"only write the local backup")
	flags.BoolVar(&a.asciiNames, "ascii-names", false,
		"restrict file and directory names to ASCII")

	if err := flags.Parse(true, args); err != nil {
		return a, err
	}
	if flags.NArg() > 0 {
		return a, errors.NotValidf("unexpected arguments %q", flags.Args())
	}
	return a, nil
}

// apply overrides cfg with whatever was given on the command line.
func (a commandLineArgs) apply(cfg *config.Config) {
	if a.root != "" {
		cfg.Root = a.root
	}
	if a.container != "" {
		cfg.Container = a.container
	}
	if a.loggingConfig != "" {
		cfg.LoggingConfig = a.loggingConfig
	}
	if a.logFile != "" {
		cfg.LogFile = a.logFile
	}
	if a.storage != "" {
		cfg.StorageBackend = a.storage
	}
	if a.archive {
		cfg.Archive = true
	}
	if a.skipUpload {
		cfg.SkipUpload = true
	}
	if a.asciiNames {
		cfg.ASCIINames = true
	}
}

// Main runs the command and returns its exit status.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a, err := commandLine(args, stderr)
	if err == gnuflag.ErrHelp {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return exitConfig
	}

	cfg, err := config.Load(config.LoadArgs{
		File:    a.configFile,
		EnvFile: a.envFile,
	})
	if err != nil {
		return report(stderr, err)
	}
	a.apply(&cfg)
	closeLog, err := setupLogging(stderr, cfg)
	if err != nil {
		return report(stderr, errors.NewNotValid(err, "logging config"))
	}
	defer closeLog()

	if cfg.Domain == "" && isTerminal(stdin) {
		if cfg.Domain, err = promptDomain(stdin, stdout); err != nil {
			return report(stderr, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return report(stderr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	result, err := run(ctx, cfg)
	if err != nil {
		return report(stderr, err)
	}
	printSummary(stdout, cfg, result)
	return exitOK
}

// printSummary writes a table describing a finished run.
func printSummary(w io.Writer, cfg config.Config, result *backups.Result) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("Partition", result.Partition)
	table.AddRow("Directory", result.Dir)
	table.AddRow("Categories", result.Tree.Categories)
	table.AddRow("Sections", result.Tree.Sections)
	table.AddRow("Articles", result.Tree.Articles)
	table.AddRow("Size", humanize.Bytes(uint64(result.Tree.Bytes)))
	if result.Archive != nil {
		table.AddRow("Archive", result.Archive.Filename)
		table.AddRow("Checksum", result.Archive.Checksum)
	}
	if cfg.SkipUpload {
		table.AddRow("Uploaded", "skipped")
	} else {
		table.AddRow("Uploaded", fmt.Sprintf("%d objects to %s (%s)",
			result.Upload.Objects, cfg.Container, cfg.StorageBackend))
	}
	fmt.Fprintln(w, table)
}

func run(ctx context.Context, cfg config.Config) (*backups.Result, error) {
	client, err := helpcenter.NewClient(helpcenter.Config{
		Domain:            cfg.Domain,
		Credentials:       cfg.HelpCenterCredentials(),
		PerPage:           cfg.PerPage,
		RequestsPerMinute: cfg.RequestsPerMinute,
		HTTPClient:        &http.Client{Timeout: cfg.HTTPTimeout},
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	runCfg := backups.RunConfig{
		Root:       cfg.Root,
		Container:  cfg.Container,
		Clock:      clock.WallClock,
		Fetcher:    client,
		Archive:    cfg.Archive,
		SkipUpload: cfg.SkipUpload,
		ASCIINames: cfg.ASCIINames,
		Attempts:   cfg.UploadAttempts,
		Delay:      cfg.UploadRetryDelay,
		MaxDelay:   cfg.UploadRetryMaxDelay,

		UploadBytesPerSecond: cfg.UploadBytesPerSecond,
	}
	if !cfg.SkipUpload {
		store, err := newStore(cfg)
		if err != nil {
			return nil, errors.Trace(err)
		}
		runCfg.Store = store
	}
	return backups.Run(ctx, runCfg)
}

func newStore(cfg config.Config) (backups.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		store, err := s3.New(cfg.S3Config())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return store, nil
	case config.BackendSwift:
		store, err := swift.New(cfg.SwiftConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return store, nil
	}
	return nil, errors.NotValidf("storage backend %q", cfg.StorageBackend)
}

// setupLogging sends log output to w and, when configured, to a
// rotated log file. The returned func closes the file.
func setupLogging(w io.Writer, cfg config.Config) (func(), error) {
	closeLog := func() {}
	if cfg.LogFile != "" {
		ljLogger := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(w, ljLogger)
		closeLog = func() { ljLogger.Close() }
	}
	writer := loggo.NewSimpleWriter(w, logFormatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		closeLog()
		return nil, errors.Trace(err)
	}
	spec := cfg.LoggingConfig
	if spec == "" {
		spec = defaultLoggingConfig
	}
	if err := loggo.ConfigureLoggers(spec); err != nil {
		closeLog()
		return nil, errors.Trace(err)
	}
	return closeLog, nil
}

func logFormatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// promptDomain asks for the help-center domain.
func promptDomain(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "Help center domain (e.g. example.zendesk.com): ")
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", errors.Annotate(err, "reading domain")
		}
		return "", errors.NotValidf("empty domain")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// report logs err and returns the matching exit status.
func report(stderr io.Writer, err error) int {
	code := exitCode(err)
	fmt.Fprintf(stderr, "ERROR %v\n", err)
	logger.Debugf("exit %d: %s", code, errors.ErrorStack(err))
	return code
}
