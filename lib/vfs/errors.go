// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"errors"
	"net"
	"net/http"
	"syscall"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrFileExists   = errors.New("file exists")
	ErrIsDirectory  = errors.New("is a directory")
	ErrNotDirectory = errors.New("not a directory")
	ErrNotSupported = errors.New("not supported")

	// ErrConflict reports that the remote changed underneath a write.
	// Providers resolve it with a merge; hosts only ever see
	// ErrUnresolvableConflict.
	ErrConflict = errors.New("remote changed since last read")

	ErrUnresolvableConflict = errors.New("unresolvable conflict")
	ErrAuthRequired         = errors.New("authentication required")
	ErrEncodingAmbiguity    = errors.New("name collides with the directory separator token")

	// ErrTransient marks network failures and remote throttling. The
	// operation may succeed if the caller retries it; providers never
	// retry on their own.
	ErrTransient = errors.New("transient remote failure")
)

// Error records a failed provider operation.
type Error struct {
	Op  string
	URI URI
	Err error
}

func (e *Error) Error() string {
	return e.Op + " " + e.URI.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps err for op on uri. A nil err returns nil; an err that is
// already an *Error is returned as is.
func Fail(op string, uri URI, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Op: op, URI: uri, Err: err}
}

// Classify maps a remote client error onto the sentinels above while
// keeping the original in the chain. Errors that carry an HTTP status
// are recognized through an HTTPStatus method; network errors through
// net.Error.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrConflict, ErrAuthRequired, ErrTransient, ErrUnresolvableConflict} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var status interface{ HTTPStatus() int }
	if errors.As(err, &status) {
		switch code := status.HTTPStatus(); {
		case code == http.StatusNotFound:
			return wrapped{sentinel: ErrNotFound, err: err}
		case code == http.StatusUnauthorized:
			return wrapped{sentinel: ErrAuthRequired, err: err}
		case code == http.StatusConflict:
			return wrapped{sentinel: ErrConflict, err: err}
		case code == http.StatusTooManyRequests || code >= 500:
			return wrapped{sentinel: ErrTransient, err: err}
		}
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return wrapped{sentinel: ErrTransient, err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrapped{sentinel: ErrTransient, err: err}
	}
	return err
}

// wrapped carries both a sentinel and the original error.
type wrapped struct {
	sentinel error
	err      error
}

func (w wrapped) Error() string   { return w.err.Error() }
func (w wrapped) Unwrap() []error { return []error{w.sentinel, w.err} }

// Errno translates a provider error into the errno a FUSE host
// returns.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ErrFileExists):
		return syscall.EEXIST
	case errors.Is(err, ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, ErrAuthRequired):
		return syscall.EACCES
	case errors.Is(err, ErrUnresolvableConflict), errors.Is(err, ErrConflict):
		return syscall.EBUSY
	case errors.Is(err, ErrEncodingAmbiguity):
		return syscall.EILSEQ
	case errors.Is(err, ErrNotSupported):
		return syscall.ENOTSUP
	case errors.Is(err, ErrTransient):
		return syscall.EAGAIN
	default:
		return syscall.EIO
	}
}
