package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("42", "7/ABC-123.pdf")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	resourceID, relPath, parsedExp, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "42", resourceID)
	require.Equal(t, "7/ABC-123.pdf", relPath)
	require.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("42", "7/ABC-123.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "ff")
	require.Error(t, err)

	forged := NewSignedURLSigner("other-secret", time.Minute)
	other, _, err := forged.Generate("42", "7/ABC-123.pdf")
	require.NoError(t, err)
	_, _, _, err = signer.Parse(other)
	require.Error(t, err)
}

func TestSignedURLExpires(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	signer.ttl = -time.Minute

	token, _, err := signer.Generate("42", "7/ABC-123.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	require.ErrorContains(t, err, "expired")
}

func TestSignedURLRequiresInput(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	_, _, err := signer.Generate("", "7/ABC-123.pdf")
	require.Error(t, err)

	_, _, err = signer.Generate("42", "")
	require.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token")
	require.Error(t, err)
}
