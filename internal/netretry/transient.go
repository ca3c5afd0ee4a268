// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package netretry

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"syscall"
)

// IsTransient reports whether err comes from a broken connection or TLS
// session, as opposed to a refusal by the remote service. Certificate
// verification failures are not transient: retrying cannot fix them.
//
// The error chain is followed through both Unwrap and Cause, so errors
// annotated by juju/errors or wrapped by goose are recognised.
func IsTransient(err error) bool {
	for err != nil {
		switch e := err.(type) {
		case x509.UnknownAuthorityError, x509.CertificateInvalidError, x509.HostnameError,
			*x509.UnknownAuthorityError, *x509.CertificateInvalidError, *x509.HostnameError,
			*tls.CertificateVerificationError:
			return false
		case tls.RecordHeaderError, *tls.RecordHeaderError, tls.AlertError, *net.OpError:
			return true
		case syscall.Errno:
			switch e {
			case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
				syscall.EPIPE, syscall.ETIMEDOUT:
				return true
			}
		case net.Error:
			if e.Timeout() {
				return true
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return true
		}
		err = next(err)
	}
	return false
}

// next steps one link down an error chain.
func next(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		if cause := e.Cause(); cause != err {
			return cause
		}
	}
	return nil
}
