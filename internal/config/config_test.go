package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	chat := cfg.Chat
	assert.True(t, chat.Messages.Immutable)
	assert.Equal(t, "soft", chat.Messages.DeletionMode)
	assert.Nil(t, chat.Messages.EditTimeLimit)
	assert.True(t, chat.Threads.HashParticipants)
	assert.True(t, chat.Threads.IncludeRolesInHash)
	assert.False(t, chat.Threads.AllowDuplicates)
	assert.True(t, chat.Delivery.TrackDeliveries)
	assert.True(t, chat.Delivery.TrackReads)
	assert.False(t, chat.Encryption.Enabled)
	assert.Equal(t, "none", chat.Encryption.Driver)
	assert.Nil(t, chat.Retention.DeletedMessagesDays)
	assert.Equal(t, 10, chat.Attachments.MaxPerMessage)
	assert.Empty(t, chat.Pipeline)
	assert.Equal(t, "asterisk", chat.Profanity.Mode)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHAT_MESSAGES_IMMUTABLE", "false")
	t.Setenv("CHAT_DELETION_MODE", "hybrid")
	t.Setenv("CHAT_EDIT_TIME_LIMIT", "15")
	t.Setenv("CHAT_PIPELINE", "sanitize, mentions,urls")
	t.Setenv("CHAT_PROFANITY_WORDS", "darn,heck")
	t.Setenv("CHAT_RETENTION_DELETED_MESSAGES_DAYS", "30")
	t.Setenv("CHAT_PRESENCE_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Chat.Messages.Immutable)
	assert.Equal(t, "hybrid", cfg.Chat.Messages.DeletionMode)
	require.NotNil(t, cfg.Chat.Messages.EditTimeLimit)
	assert.Equal(t, 15, *cfg.Chat.Messages.EditTimeLimit)
	assert.Equal(t, []string{"sanitize", "mentions", "urls"}, cfg.Chat.Pipeline)
	assert.Equal(t, []string{"darn", "heck"}, cfg.Chat.Profanity.Words)
	require.NotNil(t, cfg.Chat.Retention.DeletedMessagesDays)
	assert.Equal(t, 30, *cfg.Chat.Retention.DeletedMessagesDays)
	assert.Equal(t, 2*time.Minute, cfg.Chat.Presence.TTL)
}

func TestLoadChatFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chat:
  messages:
    deletion_mode: hard
    edit_time_limit: 5
  threads:
    allow_duplicates: true
  retention:
    versions_days: 90
  pipeline: [sanitize, profanity]
  profanity:
    words: [darn]
    mode: reject
`), 0o600))
	t.Setenv("CHAT_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hard", cfg.Chat.Messages.DeletionMode)
	assert.True(t, cfg.Chat.Messages.Immutable, "keys absent from the file keep env values")
	require.NotNil(t, cfg.Chat.Messages.EditTimeLimit)
	assert.Equal(t, 5, *cfg.Chat.Messages.EditTimeLimit)
	assert.True(t, cfg.Chat.Threads.AllowDuplicates)
	assert.True(t, cfg.Chat.Threads.HashParticipants)
	require.NotNil(t, cfg.Chat.Retention.VersionsDays)
	assert.Equal(t, 90, *cfg.Chat.Retention.VersionsDays)
	assert.Equal(t, []string{"sanitize", "profanity"}, cfg.Chat.Pipeline)
	assert.Equal(t, "reject", cfg.Chat.Profanity.Mode)
}

func TestLoadChatFileMissing(t *testing.T) {
	t.Setenv("CHAT_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestChatConfigValidate(t *testing.T) {
	cases := map[string]func(c *ChatConfig){
		"deletion mode":    func(c *ChatConfig) { c.Messages.DeletionMode = "shred" },
		"profanity mode":   func(c *ChatConfig) { c.Profanity.Mode = "shout" },
		"unknown pipe":     func(c *ChatConfig) { c.Pipeline = []string{"translate"} },
		"encrypt not last": func(c *ChatConfig) { c.Pipeline = []string{"encrypt", "sanitize"} },
		"missing key": func(c *ChatConfig) {
			c.Encryption.Enabled = true
			c.Encryption.Driver = "symmetric"
		},
		"negative limit": func(c *ChatConfig) {
			limit := -1
			c.Messages.EditTimeLimit = &limit
		},
		"negative retention": func(c *ChatConfig) {
			days := -3
			c.Retention.VersionsDays = &days
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultChatConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	ok := DefaultChatConfig()
	ok.Pipeline = []string{"sanitize", "encrypt"}
	assert.NoError(t, ok.Validate())
}
