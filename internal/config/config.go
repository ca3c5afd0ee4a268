// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config gathers the settings for a backup run from a YAML
// file, a .env file and the process environment.
package config

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/yaml.v3"

	"github.com/juju/helpcenter-backup/helpcenter"
	"github.com/juju/helpcenter-backup/internal/netretry"
	"github.com/juju/helpcenter-backup/objectstore/s3"
	"github.com/juju/helpcenter-backup/objectstore/swift"
)

var logger = loggo.GetLogger("helpcenterbackup.config")

// Environment variables read by Load.
const (
	EnvDomain              = "ZENDESK_URL"
	EnvEmail               = "EMAIL"
	EnvPassword            = "ZENDESK_PASS"
	EnvToken               = "ZENDESK_TOKEN"
	EnvPerPage             = "ZENDESK_PER_PAGE"
	EnvRateLimit           = "ZENDESK_RATE_LIMIT"
	EnvHTTPTimeout         = "HTTP_TIMEOUT"
	EnvStorageUser         = "DHO_USER"
	EnvStorageKey          = "DHO_KEY"
	EnvStorageAuthURL      = "DHO_AUTH_URL"
	EnvStorageBackend      = "STORAGE_BACKEND"
	EnvStorageEndpoint     = "S3_ENDPOINT"
	EnvStorageRegion       = "STORAGE_REGION"
	EnvContainer           = "BACKUP_CONTAINER"
	EnvRoot                = "BACKUP_ROOT"
	EnvArchive             = "BACKUP_ARCHIVE"
	EnvASCIINames          = "ASCII_NAMES"
	EnvUploadAttempts      = "UPLOAD_ATTEMPTS"
	EnvUploadRetryDelay    = "UPLOAD_RETRY_DELAY"
	EnvUploadRetryMaxDelay = "UPLOAD_RETRY_MAX_DELAY"
	EnvUploadRateLimit     = "UPLOAD_RATE_LIMIT"
	EnvLoggingConfig       = "LOG_CONFIG"
	EnvLogFile             = "LOG_FILE"
)

// Storage backends.
const (
	BackendSwift = "swift"
	BackendS3    = "s3"
)

const (
	// DefaultContainer is the object store container backups go to.
	DefaultContainer = "zendesk-backup"

	// DefaultRoot is the local directory backups are written to.
	DefaultRoot = "zendesk-backup"
)

// Config holds every setting of a backup run.
type Config struct {
	Domain            string        `yaml:"domain"`
	Email             string        `yaml:"email"`
	Password          string        `yaml:"password"`
	Token             string        `yaml:"token"`
	PerPage           int           `yaml:"per-page"`
	RequestsPerMinute int           `yaml:"requests-per-minute"`
	HTTPTimeout       time.Duration `yaml:"http-timeout"`

	// StorageBackend selects the object store protocol, BackendSwift
	// or BackendS3. The same user and key are used for either.
	StorageBackend  string `yaml:"storage-backend"`
	StorageUser     string `yaml:"storage-user"`
	StorageKey      string `yaml:"storage-key"`
	StorageAuthURL  string `yaml:"storage-auth-url"`
	StorageEndpoint string `yaml:"storage-endpoint"`
	StorageRegion   string `yaml:"storage-region"`
	Container       string `yaml:"container"`

	Root       string `yaml:"root"`
	Archive    bool   `yaml:"archive"`
	ASCIINames bool   `yaml:"ascii-names"`
	SkipUpload bool   `yaml:"skip-upload"`

	UploadAttempts      int           `yaml:"upload-attempts"`
	UploadRetryDelay    time.Duration `yaml:"upload-retry-delay"`
	UploadRetryMaxDelay time.Duration `yaml:"upload-retry-max-delay"`

	// UploadBytesPerSecond caps upload bandwidth; zero means no cap.
	UploadBytesPerSecond int64 `yaml:"upload-bytes-per-second"`

	LoggingConfig string `yaml:"logging-config"`

	// LogFile, if set, also sends log output to a rotated file.
	LogFile string `yaml:"log-file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		PerPage:             helpcenter.DefaultPerPage,
		HTTPTimeout:         helpcenter.DefaultTimeout,
		StorageBackend:      BackendSwift,
		StorageAuthURL:      swift.DefaultAuthURL,
		StorageEndpoint:     s3.DefaultEndpoint,
		Container:           DefaultContainer,
		Root:                DefaultRoot,
		UploadAttempts:      netretry.DefaultAttempts,
		UploadRetryDelay:    netretry.DefaultDelay,
		UploadRetryMaxDelay: netretry.DefaultMaxDelay,
	}
}

// LoadArgs holds the parameters for Load.
type LoadArgs struct {
	// File is an optional YAML configuration file.
	File string

	// EnvFile is an optional .env file. Variables set in the
	// environment take precedence over it. A missing file is ignored.
	EnvFile string

	// Getenv looks up environment variables. os.Getenv is used when
	// nil.
	Getenv func(string) string
}

// Load builds a configuration from the defaults, then the YAML file,
// then the environment. The result is not validated: callers apply
// command line overrides first and then call Validate.
func Load(args LoadArgs) (Config, error) {
	cfg := Default()
	if args.File != "" {
		if err := cfg.readFile(args.File); err != nil {
			return Config{}, errors.Trace(err)
		}
	}

	getenv := args.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if args.EnvFile != "" {
		dotenv, err := godotenv.Read(args.EnvFile)
		switch {
		case os.IsNotExist(errors.Cause(err)):
			logger.Debugf("no env file at %s", args.EnvFile)
		case err != nil:
			return Config{}, errors.NewNotValid(err, "reading env file "+args.EnvFile)
		default:
			getenv = withFallback(getenv, dotenv)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

func withFallback(getenv func(string) string, fallback map[string]string) func(string) string {
	return func(key string) string {
		if value := getenv(key); value != "" {
			return value
		}
		return fallback[key]
	}
}

func (cfg *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewNotValid(err, "reading config file "+path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.NewNotValid(err, "parsing config file "+path)
	}
	return nil
}

func (cfg *Config) applyEnv(getenv func(string) string) error {
	textVars := []struct {
		key   string
		field *string
	}{
		{EnvDomain, &cfg.Domain},
		{EnvEmail, &cfg.Email},
		{EnvPassword, &cfg.Password},
		{EnvToken, &cfg.Token},
		{EnvStorageUser, &cfg.StorageUser},
		{EnvStorageKey, &cfg.StorageKey},
		{EnvStorageAuthURL, &cfg.StorageAuthURL},
		{EnvStorageBackend, &cfg.StorageBackend},
		{EnvStorageEndpoint, &cfg.StorageEndpoint},
		{EnvStorageRegion, &cfg.StorageRegion},
		{EnvContainer, &cfg.Container},
		{EnvRoot, &cfg.Root},
		{EnvLoggingConfig, &cfg.LoggingConfig},
		{EnvLogFile, &cfg.LogFile},
	}
	for _, s := range textVars {
		if value := getenv(s.key); value != "" {
			*s.field = value
		}
	}

	intVars := []struct {
		key   string
		field *int
	}{
		{EnvPerPage, &cfg.PerPage},
		{EnvRateLimit, &cfg.RequestsPerMinute},
		{EnvUploadAttempts, &cfg.UploadAttempts},
	}
	for _, i := range intVars {
		value := getenv(i.key)
		if value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.NotValidf("%s %q", i.key, value)
		}
		*i.field = n
	}

	if value := getenv(EnvUploadRateLimit); value != "" {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.NotValidf("%s %q", EnvUploadRateLimit, value)
		}
		cfg.UploadBytesPerSecond = n
	}

	durationVars := []struct {
		key   string
		field *time.Duration
	}{
		{EnvHTTPTimeout, &cfg.HTTPTimeout},
		{EnvUploadRetryDelay, &cfg.UploadRetryDelay},
		{EnvUploadRetryMaxDelay, &cfg.UploadRetryMaxDelay},
	}
	for _, d := range durationVars {
		value := getenv(d.key)
		if value == "" {
			continue
		}
		dur, err := time.ParseDuration(value)
		if err != nil {
			return errors.NotValidf("%s %q", d.key, value)
		}
		*d.field = dur
	}

	boolVars := []struct {
		key   string
		field *bool
	}{
		{EnvArchive, &cfg.Archive},
		{EnvASCIINames, &cfg.ASCIINames},
	}
	for _, b := range boolVars {
		value := getenv(b.key)
		if value == "" {
			continue
		}
		v, err := strconv.ParseBool(value)
		if err != nil {
			return errors.NotValidf("%s %q", b.key, value)
		}
		*b.field = v
	}
	return nil
}

// Validate checks that the configuration is complete enough to run.
// Storage credentials are only needed when uploading.
func (cfg Config) Validate() error {
	upload := !cfg.SkipUpload
	swiftUpload := upload && cfg.StorageBackend == BackendSwift
	s3Upload := upload && cfg.StorageBackend == BackendS3
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Domain, validation.Required),
		validation.Field(&cfg.Root, validation.Required),
		validation.Field(&cfg.PerPage, validation.Required, validation.Min(1), validation.Max(helpcenter.DefaultPerPage)),
		validation.Field(&cfg.RequestsPerMinute, validation.Min(0)),
		validation.Field(&cfg.HTTPTimeout, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&cfg.StorageUser, validation.When(upload, validation.Required)),
		validation.Field(&cfg.StorageKey, validation.When(upload, validation.Required)),
		validation.Field(&cfg.StorageBackend, validation.Required, validation.In(BackendSwift, BackendS3)),
		validation.Field(&cfg.StorageAuthURL, validation.When(swiftUpload, validation.Required)),
		validation.Field(&cfg.StorageEndpoint, validation.When(s3Upload, validation.Required)),
		validation.Field(&cfg.Container, validation.When(upload, validation.Required)),
		validation.Field(&cfg.UploadAttempts, validation.Required, validation.Min(1)),
		validation.Field(&cfg.UploadRetryDelay, validation.Required, validation.Min(time.Duration(0))),
		validation.Field(&cfg.UploadRetryMaxDelay, validation.Required, validation.Min(cfg.UploadRetryDelay)),
		validation.Field(&cfg.UploadBytesPerSecond, validation.Min(int64(0))),
	)
	if err != nil {
		return errors.NewNotValid(err, "invalid configuration")
	}
	return nil
}

// HelpCenterCredentials returns the credentials for the help-center
// API, or nil when there are not enough of them to authenticate.
func (cfg Config) HelpCenterCredentials() *helpcenter.Credentials {
	if cfg.Email == "" || (cfg.Password == "" && cfg.Token == "") {
		return nil
	}
	return &helpcenter.Credentials{
		Email:    cfg.Email,
		Password: cfg.Password,
		Token:    cfg.Token,
	}
}

// S3Config returns the settings for an S3 object store.
func (cfg Config) S3Config() s3.Config {
	return s3.Config{
		AccessKey: cfg.StorageUser,
		SecretKey: cfg.StorageKey,
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
	}
}

// SwiftConfig returns the settings for a Swift object store.
func (cfg Config) SwiftConfig() swift.Config {
	return swift.Config{
		User:    cfg.StorageUser,
		Key:     cfg.StorageKey,
		AuthURL: cfg.StorageAuthURL,
		Region:  cfg.StorageRegion,
	}
}
