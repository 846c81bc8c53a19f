package main

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/insight-wallet/internal/config"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	std := logrus.StandardLogger()
	formatter, level, out := std.Formatter, std.GetLevel(), std.Out
	t.Cleanup(func() {
		std.SetFormatter(formatter)
		std.SetLevel(level)
		std.SetOutput(out)
	})
}

func TestSetupLogging(t *testing.T) {
	restoreLogger(t)

	setupLogging("warn", "json")
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	setupLogging("bogus", "text")
	assert.IsType(t, &logrus.TextFormatter{}, logrus.StandardLogger().Formatter)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestSetupLoggingFromEnv_AppliesBeforeConfigLoad(t *testing.T) {
	restoreLogger(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RPC_RETRY_MAX", "many")

	var buf bytes.Buffer
	logrus.SetOutput(&buf)

	setupLoggingFromEnv()
	_, err := config.Load()
	require.NoError(t, err)

	line := buf.String()
	require.NotEmpty(t, line, "invalid value is warned about")
	assert.Contains(t, line, `"level":"warning"`, "load-time warnings are already JSON")
	assert.Contains(t, line, "RPC_RETRY_MAX")
}
