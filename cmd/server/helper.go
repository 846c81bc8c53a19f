package main

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/insight-wallet/internal/config"
)

// setupLoggingFromEnv applies LOG_LEVEL and LOG_FORMAT before the configuration is
// loaded, so warnings raised while loading it already use the requested format
func setupLoggingFromEnv() {
	defaults := config.DefaultConfig()
	setupLogging(
		config.GetEnvOrDefault("LOG_LEVEL", defaults.LogLevel),
		config.GetEnvOrDefault("LOG_FORMAT", defaults.LogFormat),
	)
}

// setupLogging configures the logging for the application
func setupLogging(level, format string) {
	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch strings.ToLower(level) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
