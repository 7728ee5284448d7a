package main

import (
	"bytes"
	"strings"
	"testing"

	"chamahub/internal/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysGenerate(t *testing.T) {
	cmd := keysCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"generate", "2026b"})
	require.NoError(t, cmd.Execute())

	kid, secret, ok := strings.Cut(strings.TrimSpace(out.String()), ":")
	require.True(t, ok)
	assert.Equal(t, "2026b", kid)
	assert.NotContains(t, secret, ",")

	// The printed entry is usable as a signing key
	_, err := jwt.NewKeyRing("chamahub", kid, map[string]string{kid: secret}, nil)
	assert.NoError(t, err)
}

func TestKeysGenerate_RejectsShortSecrets(t *testing.T) {
	cmd := keysCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "--bytes", "16"})
	assert.Error(t, cmd.Execute())
	keyBytes = 32
}
