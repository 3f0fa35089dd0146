// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	ledger "github.com/luxfi/ledger-eos-go"
)

const (
	envPrefix = "EOS_LEDGER"

	// TransportKey selects hid or speculos
	TransportKey = "TRANSPORT"
	// DeviceIndexKey is the position of the device among the connected ones
	DeviceIndexKey = "DEVICE_INDEX"
	// SpeculosAddressKey is the host:port of the Speculos APDU port
	SpeculosAddressKey = "SPECULOS_ADDRESS"
	// ScrambleKeyKey is sent to transports that need one
	ScrambleKeyKey = "SCRAMBLE_KEY"
	// BasePathKey is the derivation path key indices are appended to
	BasePathKey = "BASE_PATH"
	// ConfigurationTimeoutKey bounds the app configuration query
	ConfigurationTimeoutKey = "CONFIGURATION_TIMEOUT"
	// VerifySignaturesKey checks device signatures against the login key
	VerifySignaturesKey = "VERIFY_SIGNATURES"
	// LogLevelKey is one of debug, info, warn or error
	LogLevelKey = "LOG_LEVEL"

	configFlag          = "config"
	transportFlag       = "transport"
	deviceIndexFlag     = "device-index"
	speculosAddressFlag = "speculos-address"
	basePathFlag        = "base-path"
	timeoutFlag         = "timeout"
	noVerifyFlag        = "no-verify"
	logLevelFlag        = "log-level"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  configFlag,
			Usage: "Path to a config file (json, yaml or toml)",
		},
		&cli.StringFlag{
			Name:  transportFlag,
			Usage: "Transport used to reach the device: hid or speculos",
		},
		&cli.IntFlag{
			Name:  deviceIndexFlag,
			Usage: "Index of the HID device to open",
		},
		&cli.StringFlag{
			Name:  speculosAddressFlag,
			Usage: "Speculos APDU address",
		},
		&cli.StringFlag{
			Name:  basePathFlag,
			Usage: "Derivation path key indices are appended to",
		},
		&cli.DurationFlag{
			Name:  timeoutFlag,
			Usage: "Timeout of the app configuration query",
		},
		&cli.BoolFlag{
			Name:  noVerifyFlag,
			Usage: "Skip checking signatures against the login key",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Usage: "Log level: debug, info, warn or error",
			Value: "info",
		},
	}
}

func newSettings() *viper.Viper {
	defaults := ledger.DefaultConfig()

	vip := viper.New()
	vip.SetEnvPrefix(envPrefix)
	vip.AutomaticEnv()

	vip.SetDefault(TransportKey, string(defaults.Transport))
	vip.SetDefault(DeviceIndexKey, defaults.DeviceIndex)
	vip.SetDefault(SpeculosAddressKey, defaults.SpeculosAddress)
	vip.SetDefault(ScrambleKeyKey, defaults.ScrambleKey)
	vip.SetDefault(BasePathKey, defaults.BasePath)
	vip.SetDefault(ConfigurationTimeoutKey, defaults.ConfigurationTimeout.Milliseconds())
	vip.SetDefault(VerifySignaturesKey, defaults.VerifySignatures)
	vip.SetDefault(LogLevelKey, "info")
	return vip
}

// loadSettings layers the config file and command line flags over the
// environment and defaults.
func loadSettings(cmd *cli.Command) (*viper.Viper, error) {
	vip := newSettings()

	if path := cmd.String(configFlag); path != "" {
		vip.SetConfigFile(path)
		if err := vip.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if cmd.IsSet(transportFlag) {
		vip.Set(TransportKey, cmd.String(transportFlag))
	}
	if cmd.IsSet(deviceIndexFlag) {
		vip.Set(DeviceIndexKey, cmd.Int(deviceIndexFlag))
	}
	if cmd.IsSet(speculosAddressFlag) {
		vip.Set(SpeculosAddressKey, cmd.String(speculosAddressFlag))
	}
	if cmd.IsSet(basePathFlag) {
		vip.Set(BasePathKey, cmd.String(basePathFlag))
	}
	if cmd.IsSet(timeoutFlag) {
		vip.Set(ConfigurationTimeoutKey, cmd.Duration(timeoutFlag).Milliseconds())
	}
	if cmd.Bool(noVerifyFlag) {
		vip.Set(VerifySignaturesKey, false)
	}
	return vip, nil
}

func configFromSettings(vip *viper.Viper) (ledger.Config, error) {
	transport, err := ledger.ParseTransportType(vip.GetString(TransportKey))
	if err != nil {
		return ledger.Config{}, err
	}

	config := ledger.Config{
		Transport:            transport,
		DeviceIndex:          vip.GetInt(DeviceIndexKey),
		SpeculosAddress:      vip.GetString(SpeculosAddressKey),
		ScrambleKey:          vip.GetString(ScrambleKeyKey),
		BasePath:             vip.GetString(BasePathKey),
		ConfigurationTimeout: time.Duration(vip.GetInt64(ConfigurationTimeoutKey)) * time.Millisecond,
		VerifySignatures:     vip.GetBool(VerifySignaturesKey),
	}
	return config, config.Validate()
}

func newLogger(level string) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(ledger.ParseLogLevel(level))
	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
