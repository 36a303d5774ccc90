package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("inst-1", "inst-1/statement-20240901.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	instituteID, name, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "inst-1", instituteID)
	require.Equal(t, "inst-1/statement-20240901.csv", name)
}

func TestTokenSignerRejectsExpired(t *testing.T) {
	signer := NewTokenSigner("secret", time.Nanosecond)

	token, _, err := signer.Generate("inst-1", "file.csv")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 5)

	_, _, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	signer := NewTokenSigner("secret", time.Hour)

	token, _, err := signer.Generate("inst-1", "file.csv")
	require.NoError(t, err)

	forged := strings.Replace(token, "inst-1", "inst-2", 1)
	_, _, err = signer.Parse(forged)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, _, err = NewTokenSigner("other", time.Hour).Parse(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestArchiveSaveOpenSweep(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	name, err := archive.Save("inst-1/statement.csv", []byte("Date,Kind\n"))
	require.NoError(t, err)

	f, err := archive.Open(name)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	removed, err := archive.Sweep(0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = archive.Open(name)
	require.Error(t, err)
}
