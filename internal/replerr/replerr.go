// Package replerr defines the typed error kinds from the coordinator's
// error-handling design: ResolveError, ReadError, ParseError,
// TransportError, EvalError and ForbiddenError. Each wraps an underlying
// cause and carries the context (locator/specifier) needed to produce the
// descriptive messages the propagation rules require, while still
// supporting errors.As for callers that branch on kind (mirroring the
// teacher's own errors.As use for isAddrInUse in esmdev/server.go).
package replerr

import "fmt"

// ResolveError is "no such package/export" from the resolution phase.
type ResolveError struct {
	Specifier string
	Parent    string
	Reason    string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q from %q: %s", e.Specifier, e.Parent, e.Reason)
}

// ReadError wraps an I/O failure reading a locator's source.
type ReadError struct {
	Locator string
	Err     error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %q: %v", e.Locator, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// ParseError is malformed source reported by the analyzer.
type ParseError struct {
	Locator string
	Err     error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %q: %v", e.Locator, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// TransportError covers socket/subprocess failures in the padawan transport.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Reason)
}
func (e *TransportError) Unwrap() error { return e.Err }

// EvalError is an exception raised inside the padawan. Per spec §7 this is
// NOT an error at the coordinator level — it's a successful round-trip
// whose report carries `exception` — so this type exists only for callers
// that want to represent it uniformly, and is never returned from the
// coordinator's Eval method itself. No caller in this module constructs one;
// the `eval` CLI verb prints the exception string directly.
type EvalError struct {
	Exception string
}

func (e *EvalError) Error() string { return fmt.Sprintf("eval exception: %s", e.Exception) }

// ForbiddenError is a read attempted outside the root locator.
type ForbiddenError struct {
	Locator string
	Root    string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %q is outside root %q", e.Locator, e.Root)
}
