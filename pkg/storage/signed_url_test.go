package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleSignerRoundTrip(t *testing.T) {
	signer := NewHandleSigner("secret", time.Minute)
	token, expiresAt, err := signer.Generate("h1", "FOL/2025/001")
	require.NoError(t, err)

	handleID, folio, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "h1", handleID)
	require.Equal(t, "FOL/2025/001", folio)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestHandleSignerRejectsExpiredAndTampered(t *testing.T) {
	signer := NewHandleSigner("secret", time.Minute)
	base := time.Now()
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("h1", "F-1")
	require.NoError(t, err)

	other := NewHandleSigner("other", time.Minute)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token)
	require.EqualError(t, err, "token expired")
}

func TestHandleSignerValidatesInput(t *testing.T) {
	_, _, err := NewHandleSigner("", time.Minute).Generate("h", "f")
	require.Error(t, err)
	_, _, err = NewHandleSigner("s", time.Minute).Generate("a.b", "f")
	require.Error(t, err)
	_, _, _, err = NewHandleSigner("s", time.Minute).Parse("bad")
	require.Error(t, err)
}
