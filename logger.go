// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnv selects the package log level (debug, info, warn, error).
const LogLevelEnv = "LEDGER_LOG_LEVEL"

var log *zap.SugaredLogger

func init() {
	log = newLogger(getLogLevel())
}

func newLogger(level string) *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(ParseLogLevel(level))

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Named("ledger-eos").Sugar()
}

// ParseLogLevel maps a level name to a zap level, defaulting to info.
func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetLogger replaces the package logger. A nil logger silences output.
func SetLogger(logger *zap.SugaredLogger) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	log = logger
}

func getLogLevel() string {
	level := os.Getenv(LogLevelEnv)
	if level == "" {
		level = "info"
	}
	return strings.ToLower(level)
}
