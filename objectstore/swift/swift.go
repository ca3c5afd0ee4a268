// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package swift stores backups in an OpenStack Swift compatible object
// store, such as DreamObjects.
package swift

import (
	"context"
	"io"

	"github.com/go-goose/goose/v5/client"
	gooseerrors "github.com/go-goose/goose/v5/errors"
	"github.com/go-goose/goose/v5/identity"
	gooseswift "github.com/go-goose/goose/v5/swift"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("helpcenterbackup.objectstore.swift")

// DefaultAuthURL is the DreamObjects legacy auth endpoint.
const DefaultAuthURL = "https://objects.dreamhost.com/auth"

// Config holds the credentials for the object store.
type Config struct {
	User    string
	Key     string
	AuthURL string

	// Region is only needed when the endpoint serves more than one.
	Region string
}

// Validate checks the configuration.
func (cfg Config) Validate() error {
	if cfg.User == "" {
		return errors.NotValidf("empty User")
	}
	if cfg.Key == "" {
		return errors.NotValidf("empty Key")
	}
	if cfg.AuthURL == "" {
		return errors.NotValidf("empty AuthURL")
	}
	return nil
}

// objectClient is the part of the goose swift client Store uses.
type objectClient interface {
	CreateContainer(containerName string, acl gooseswift.ACL) error
	PutReader(containerName, objectName string, r io.Reader, length int64) error
}

// Store writes objects to Swift. Containers are created private.
type Store struct {
	client objectClient
}

// New returns a Store authenticating with the legacy (v1) Swift auth
// scheme. No request is made until the store is first used.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	cred := &identity.Credentials{
		User:    cfg.User,
		Secrets: cfg.Key,
		Region:  cfg.Region,
		URL:     cfg.AuthURL,
	}
	authClient := client.NewClient(cred, identity.AuthLegacy, nil)
	logger.Debugf("using object store at %s as %q", cfg.AuthURL, cfg.User)
	return newStore(gooseswift.New(authClient)), nil
}

func newStore(c objectClient) *Store {
	return &Store{client: c}
}

// CreateContainer implements backups.ObjectStore. A container that
// already exists is reused. The goose client cannot be interrupted, so
// ctx is only checked before the request is made.
func (s *Store) CreateContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	err := s.client.CreateContainer(name, gooseswift.Private)
	if gooseerrors.IsDuplicateValue(err) {
		logger.Debugf("container %q already exists", name)
		return nil
	}
	return errors.Annotatef(err, "creating container %q", name)
}

// PutObject implements backups.ObjectStore.
func (s *Store) PutObject(ctx context.Context, container, name string, r io.Reader, length int64) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	err := s.client.PutReader(container, name, r, length)
	return errors.Annotatef(err, "writing %s/%s", container, name)
}
