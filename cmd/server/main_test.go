package main

import (
	"context"
	"testing"
	"time"

	"github.com/Tyrowin/partyrelay/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func parseConfig(t *testing.T, args ...string) server.Config {
	t.Helper()
	var got server.Config
	cmd := newCommand(nil)
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		got = configFromCommand(c)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{appName}, args...)))
	return got
}

func TestConfigFromCommandDefaults(t *testing.T) {
	cfg := parseConfig(t)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "questions.json", cfg.QuestionsFile)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestConfigFromCommandFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SEND_BUFFER_SIZE", "16")

	cfg := parseConfig(t,
		"--host", "127.0.0.1",
		"--port", "9001",
		"--questions", "deck.yaml",
		"--allowed-origins", "https://a.example",
		"--allowed-origins", "https://b.example",
		"--write-timeout", "3s",
	)

	assert.Equal(t, "127.0.0.1:9001", cfg.Addr())
	assert.Equal(t, "deck.yaml", cfg.QuestionsFile)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 16, cfg.SendBufferSize)
}

func TestConfigFromCommandInvalidPortFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	assert.Equal(t, "8000", parseConfig(t).Port)

	assert.Equal(t, "8000", parseConfig(t, "--port", "99999").Port)
}

func TestConfigFromCommandReadsEnv(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("QUESTIONS_FILE", "env.json")

	cfg := parseConfig(t)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "env.json", cfg.QuestionsFile)
}
