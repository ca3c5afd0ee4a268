// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package s3 stores backups in an S3 compatible object store. Containers
// map to buckets.
package s3

import (
	"context"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("helpcenterbackup.objectstore.s3")

const (
	// DefaultEndpoint is the DreamObjects S3 endpoint.
	DefaultEndpoint = "https://objects-us-east-1.dream.io"

	// DefaultRegion is used for signing when no region is configured.
	DefaultRegion = "us-east-1"

	codeBucketAlreadyOwnedByYou = "BucketAlreadyOwnedByYou"
)

// Config holds the settings for New.
type Config struct {
	AccessKey string
	SecretKey string
	Endpoint  string
	Region    string

	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	if cfg.AccessKey == "" {
		return errors.NotValidf("empty AccessKey")
	}
	if cfg.SecretKey == "" {
		return errors.NotValidf("empty SecretKey")
	}
	if cfg.Endpoint == "" {
		return errors.NotValidf("empty Endpoint")
	}
	return nil
}

// bucketClient is the part of the S3 client Store uses.
type bucketClient interface {
	CreateBucket(ctx context.Context, params *awss3.CreateBucketInput, optFns ...func(*awss3.Options)) (*awss3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Store writes objects to an S3 bucket.
type Store struct {
	client bucketClient
	region string
}

// New returns a Store using path-style requests against cfg.Endpoint.
// The SDK's own retries are disabled; callers decide what to retry.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := awss3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Retryer:      aws.NopRetryer{},
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	logger.Debugf("using S3 endpoint %s (%s)", cfg.Endpoint, region)
	return newStore(awss3.New(opts), region), nil
}

func newStore(client bucketClient, region string) *Store {
	return &Store{client: client, region: region}
}

// CreateContainer implements backups.ObjectStore by creating a bucket.
// A bucket this account already owns is reused.
func (s *Store) CreateContainer(ctx context.Context, name string) error {
	input := &awss3.CreateBucketInput{Bucket: aws.String(name)}
	if s.region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	_, err := s.client.CreateBucket(ctx, input)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == codeBucketAlreadyOwnedByYou {
		logger.Debugf("bucket %q already exists", name)
		return nil
	}
	return errors.Annotatef(err, "creating bucket %q", name)
}

// PutObject implements backups.ObjectStore.
func (s *Store) PutObject(ctx context.Context, container, name string, r io.Reader, length int64) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(name),
		Body:          r,
		ContentLength: aws.Int64(length),
	})
	return errors.Annotatef(err, "writing %s/%s", container, name)
}
