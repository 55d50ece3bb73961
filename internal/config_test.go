package internal

import (
	"chat-match/errors"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, vars map[string]string) Config {
	t.Helper()
	var config Config
	err := env.Unmarshal(env.EnvSet(vars), &config)
	require.NoError(t, err)
	return config
}

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	config := loadConfig(t, map[string]string{})

	req.NoError(config.Validate())
	req.Equal("localhost:8080", config.Address())
	req.Equal(time.Hour, config.SessionTTL)
	req.Equal(64, config.ConnectionBufferSize)
	req.Equal(2*time.Second, config.DeliveryTimeout)
	req.Equal(3, config.MatchAttempts)
	req.Equal(2000, config.MaxContentLength)
	req.Equal(5*time.Minute, config.KeepaliveInterval)
	req.False(config.EnableModeration)
	req.Empty(config.BadgerFilepath)
	req.Nil(config.Origins())
}

func TestConfig_Overrides(t *testing.T) {
	req := require.New(t)

	config := loadConfig(t, map[string]string{
		"PORT":               "9000",
		"SESSION_TTL":        "10m",
		"ENABLE_MODERATION":  "true",
		"ALLOWED_ORIGINS":    "http://localhost:3000, https://chat.example.com,",
		"LOG_LEVEL":          "DEBUG",
		"KEEPALIVE_INTERVAL": "1m",
	})

	req.NoError(config.Validate())
	req.Equal(9000, config.Port)
	req.True(config.EnableModeration)
	req.Equal([]string{"http://localhost:3000", "https://chat.example.com"}, config.Origins())
}

func TestConfig_Validate_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		vars map[string]string
	}{
		{name: "port out of range", vars: map[string]string{"PORT": "70000"}},
		{name: "no match attempt", vars: map[string]string{"MATCH_ATTEMPTS": "0"}},
		{name: "unknown log level", vars: map[string]string{"LOG_LEVEL": "LOUD"}},
		{name: "keepalive slower than ttl", vars: map[string]string{"SESSION_TTL": "1m", "KEEPALIVE_INTERVAL": "2m"}},
		{name: "replacement too long", vars: map[string]string{"CHARACTER_REPLACEMENT": "**"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := loadConfig(t, tc.vars)
			require.Error(t, config.Validate())
		})
	}
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("")
	req.ErrorIs(err, errors.ErrInvalidReplacement)
}
