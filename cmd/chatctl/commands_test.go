package main

import (
	"bytes"
	"strings"
	"testing"

	"chat_engine/internal/domain"
	"chat_engine/internal/middleware"
	"chat_engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "chat-engine")

	out, err := run(t, "token", "bot:9", "--ttl", "1h")
	require.NoError(t, err)

	auth := middleware.NewAuthMiddleware("cli-secret", "chat-engine", "user", logger.NewNop())
	actor, err := auth.ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, domain.NewActor("bot", "9"), actor)

	_, err = run(t, "token", "nobody")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("CHAT_ENCRYPTION_KEY", "do-not-print")

	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "chat:")
	assert.Contains(t, out, "deletion_mode: soft")
	assert.NotContains(t, out, "do-not-print")
}

func TestPrintResults(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, printResults(root, map[string]int64{"versions": 2, "deleted_messages": 1}, false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "deleted_messages"))

	out.Reset()
	require.NoError(t, printResults(root, map[string]int64{"versions": 2}, true))
	assert.JSONEq(t, `{"versions":2}`, out.String())
}
