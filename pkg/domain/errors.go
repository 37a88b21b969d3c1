package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProtocol matches every *ProtocolError.
	ErrProtocol = errors.New("protocol error")

	// ErrNotFound is returned when a delta targets an element that does not exist.
	ErrNotFound = errors.New("element not found")

	// ErrSchemaMismatch is returned when appended rows do not fit the target element.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNotConnected is returned when an envelope is sent while the connection is not usable.
	ErrNotConnected = errors.New("not connected")

	// ErrSharingDisabled is returned by cloud uploads when the server has no sharing configured.
	ErrSharingDisabled = errors.New("sharing is not configured")

	// ErrLoginRejected is returned to the waiter of a login that was rejected.
	ErrLoginRejected = errors.New("login rejected")

	// ErrLoginSuperseded is returned to the waiter of a login replaced by a newer attempt.
	ErrLoginSuperseded = errors.New("login superseded by a newer attempt")

	// ErrNoPendingLogin is returned when resolving a login nobody is waiting for.
	ErrNoPendingLogin = errors.New("no login in progress")

	// ErrSessionNotFound is returned when a session ID is not registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned by operations on a session whose loop has stopped.
	ErrSessionClosed = errors.New("session closed")

	// ErrReportNotFound is returned when an archived report cannot be found.
	ErrReportNotFound = errors.New("report not found")
)

// ProtocolError reports an inbound envelope the client cannot handle.
type ProtocolError struct {
	Tag string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot handle type %q: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("cannot handle type %q", e.Tag)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
func (e *ProtocolError) Unwrap() error        { return e.Err }

// NotFoundError reports an addRows delta for a missing element.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SchemaMismatchError reports rows that cannot be appended to an element.
type SchemaMismatchError struct {
	ID     int
	Kind   ElementKind
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("cannot add rows to element %d (%s): %s", e.ID, e.Kind, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// NotConnectedError reports an outbound action dropped by the connection gate.
type NotConnectedError struct {
	Action string
	State  ConnectionState
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("cannot %s while %s", strings.TrimSpace(e.Action), strings.ToLower(string(e.State)))
}

func (e *NotConnectedError) Is(target error) bool { return target == ErrNotConnected }
