package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/auth"
)

const testSigningKey = "airectl-test-signing-key-0123456789"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AIRE_SIGNING_KEY", "")
	t.Setenv("INGEST_SIGNING_KEY", "")

	out, err := runCLI(t, "token", "--signing-key", testSigningKey, "--subject", "model-runner", "--expiry", "1h")
	require.NoError(t, err)

	var got tokenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "model-runner", got.Subject)
	assert.Equal(t, []string{auth.ScopePredictionsWrite}, got.Scopes)
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, time.Minute)

	claims, err := auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey}).ValidateServiceToken(got.Token)
	require.NoError(t, err)
	assert.Equal(t, "model-runner", claims.Subject)
	assert.True(t, claims.HasScope(auth.ScopePredictionsWrite))
}

func TestTokenCommand_KeyFromEnvironment(t *testing.T) {
	t.Run("prefixed variable", func(t *testing.T) {
		t.Setenv("AIRE_SIGNING_KEY", testSigningKey)
		t.Setenv("INGEST_SIGNING_KEY", "")

		out, err := runCLI(t, "token", "--subject", "model-runner")
		require.NoError(t, err)

		var got tokenOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		_, err = auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey}).ValidateServiceToken(got.Token)
		assert.NoError(t, err)
	})

	t.Run("api variable", func(t *testing.T) {
		t.Setenv("AIRE_SIGNING_KEY", "")
		t.Setenv("INGEST_SIGNING_KEY", testSigningKey)

		out, err := runCLI(t, "token", "--subject", "model-runner", "--scope", "a", "--scope", "b")
		require.NoError(t, err)

		var got tokenOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, []string{"a", "b"}, got.Scopes)

		claims, err := auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey}).ValidateServiceToken(got.Token)
		require.NoError(t, err)
		assert.False(t, claims.HasScope(auth.ScopePredictionsWrite))
	})
}

func TestTokenCommand_Errors(t *testing.T) {
	t.Setenv("AIRE_SIGNING_KEY", "")
	t.Setenv("INGEST_SIGNING_KEY", "")

	_, err := runCLI(t, "token", "--subject", "model-runner")
	assert.ErrorIs(t, err, auth.ErrSigningKeyNotSet)

	_, err = runCLI(t, "token", "--signing-key", testSigningKey)
	assert.ErrorIs(t, err, auth.ErrMissingSubject)
}

func TestMigrateCommand_Print(t *testing.T) {
	out, err := runCLI(t, "migrate", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	_, err := runCLI(t, "--log-level", "loud", "migrate", "--print")
	assert.ErrorContains(t, err, "invalid log level")
}
