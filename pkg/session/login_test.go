package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginOutcome struct {
	creds domain.Credentials
	err   error
}

func awaitAsync(attempt *session.LoginAttempt) <-chan loginOutcome {
	out := make(chan loginOutcome, 1)
	go func() {
		creds, err := attempt.Wait(context.Background())
		out <- loginOutcome{creds, err}
	}()
	return out
}

func TestLoginSlot_Resolve(t *testing.T) {
	var slot session.LoginSlot
	res := awaitAsync(slot.Begin())

	require.True(t, slot.Pending())
	require.NoError(t, slot.Resolve(domain.Credentials{Token: "t0k"}))

	got := <-res
	require.NoError(t, got.err)
	assert.Equal(t, "t0k", got.creds.Token)
	assert.False(t, slot.Pending())
}

func TestLoginSlot_Reject(t *testing.T) {
	var slot session.LoginSlot
	res := awaitAsync(slot.Begin())

	reason := errors.New("bad password")
	require.NoError(t, slot.Reject(reason))

	got := <-res
	assert.ErrorIs(t, got.err, domain.ErrLoginRejected)
	assert.ErrorIs(t, got.err, reason)
}

func TestLoginSlot_SecondAttemptSupersedesFirst(t *testing.T) {
	var slot session.LoginSlot
	first := awaitAsync(slot.Begin())
	second := awaitAsync(slot.Begin())

	got := <-first
	assert.ErrorIs(t, got.err, domain.ErrLoginSuperseded)

	require.NoError(t, slot.Resolve(domain.Credentials{Token: "new"}))
	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, "new", got.creds.Token)
}

func TestLoginSlot_NothingPending(t *testing.T) {
	var slot session.LoginSlot
	assert.ErrorIs(t, slot.Resolve(domain.Credentials{}), domain.ErrNoPendingLogin)
	assert.ErrorIs(t, slot.Reject(nil), domain.ErrNoPendingLogin)
}

func TestLoginSlot_ContextCancel(t *testing.T) {
	var slot session.LoginSlot
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := slot.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, slot.Pending(), "an abandoned attempt frees the slot")
}

func TestLoginAttempt_Cancel(t *testing.T) {
	var slot session.LoginSlot
	first := slot.Begin()
	first.Cancel()
	assert.False(t, slot.Pending())

	second := slot.Begin()
	first.Cancel()
	assert.True(t, slot.Pending(), "a stale attempt cannot free a newer one")
	second.Cancel()
	assert.ErrorIs(t, slot.Resolve(domain.Credentials{Token: "t"}), domain.ErrNoPendingLogin)
}
