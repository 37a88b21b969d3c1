package session

import (
	"context"
	"sync"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/google/uuid"
)

type loginResult struct {
	creds domain.Credentials
	err   error
}

// LoginAttempt is one request for credentials.
type LoginAttempt struct {
	ID   string
	slot *LoginSlot
	done chan loginResult
}

// LoginSlot holds the single in-flight login of a session.
//
// Only one attempt can be pending. Starting a new attempt while one is
// pending supersedes it: the older waiter returns domain.ErrLoginSuperseded
// and the operator's answer goes to the newest attempt.
type LoginSlot struct {
	mu      sync.Mutex
	pending *LoginAttempt
}

// Begin opens a new attempt, superseding the pending one.
func (l *LoginSlot) Begin() *LoginAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		l.pending.done <- loginResult{err: domain.ErrLoginSuperseded}
	}
	l.pending = &LoginAttempt{ID: uuid.NewString(), slot: l, done: make(chan loginResult, 1)}
	return l.pending
}

// Await opens an attempt and blocks until it is answered, superseded or ctx ends.
func (l *LoginSlot) Await(ctx context.Context) (domain.Credentials, error) {
	return l.Begin().Wait(ctx)
}

// Wait blocks until the attempt is answered. Abandoning it through ctx frees the slot.
func (a *LoginAttempt) Wait(ctx context.Context) (domain.Credentials, error) {
	select {
	case res := <-a.done:
		return res.creds, res.err
	case <-ctx.Done():
		a.Cancel()
		return domain.Credentials{}, ctx.Err()
	}
}

// Cancel abandons the attempt without answering it and frees the slot if
// the attempt still holds it.
func (a *LoginAttempt) Cancel() {
	a.slot.mu.Lock()
	defer a.slot.mu.Unlock()
	if a.slot.pending == a {
		a.slot.pending = nil
	}
}

// Pending reports whether an attempt is waiting for an answer.
func (l *LoginSlot) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil
}

// Resolve answers the pending attempt with creds.
func (l *LoginSlot) Resolve(creds domain.Credentials) error {
	return l.finish(loginResult{creds: creds})
}

// Reject fails the pending attempt. The waiter receives an error matching
// domain.ErrLoginRejected that also wraps reason, if any.
func (l *LoginSlot) Reject(reason error) error {
	err := domain.ErrLoginRejected
	if reason != nil {
		err = &rejectedError{reason: reason}
	}
	return l.finish(loginResult{err: err})
}

func (l *LoginSlot) finish(res loginResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		return domain.ErrNoPendingLogin
	}
	l.pending.done <- res
	l.pending = nil
	return nil
}

type rejectedError struct {
	reason error
}

func (e *rejectedError) Error() string        { return domain.ErrLoginRejected.Error() + ": " + e.reason.Error() }
func (e *rejectedError) Is(target error) bool { return target == domain.ErrLoginRejected }
func (e *rejectedError) Unwrap() error        { return e.reason }
