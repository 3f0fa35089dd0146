// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransportType selects how the device is reached.
type TransportType string

const (
	TransportHID      TransportType = "hid"
	TransportSpeculos TransportType = "speculos"
	TransportBLE      TransportType = "ble"
	TransportU2F      TransportType = "u2f"
)

// DefaultConfigurationTimeout bounds GetAppConfiguration.
const DefaultConfigurationTimeout = 3000 * time.Millisecond

var errUnknownTransport = errors.New("unknown transport")

// ParseTransportType accepts a transport name case-insensitively.
func ParseTransportType(s string) (TransportType, error) {
	switch t := TransportType(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportHID, TransportSpeculos, TransportBLE, TransportU2F:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownTransport, s)
	}
}

// Config configures a WalletProvider.
type Config struct {
	Transport            TransportType
	DeviceIndex          int
	SpeculosAddress      string
	ScrambleKey          string
	BasePath             string
	ConfigurationTimeout time.Duration
	// VerifySignatures checks that each device signature recovers to the key
	// registered at login.
	VerifySignatures bool
}

func DefaultConfig() Config {
	return Config{
		Transport:            TransportHID,
		SpeculosAddress:      DefaultSpeculosAddress,
		ScrambleKey:          DefaultScrambleKey,
		BasePath:             DefaultBasePath,
		ConfigurationTimeout: DefaultConfigurationTimeout,
		VerifySignatures:     true,
	}
}

func (c Config) Validate() error {
	if _, err := ParseTransportType(string(c.Transport)); err != nil {
		return err
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("device index must not be negative, got %d", c.DeviceIndex)
	}
	if c.Transport == TransportSpeculos && c.SpeculosAddress == "" {
		return errors.New("speculos transport requires an address")
	}
	if c.ConfigurationTimeout <= 0 {
		return fmt.Errorf("configuration timeout must be positive, got %s", c.ConfigurationTimeout)
	}
	if depth := len(SplitPath(c.BasePath)); depth == 0 || depth >= MaxPathComponents {
		return fmt.Errorf("base path %q must have between 1 and %d components", c.BasePath, MaxPathComponents-1)
	}
	return nil
}

// OpenDevice opens the device selected by c.Transport.
func OpenDevice(c Config) (LedgerDevice, error) {
	switch c.Transport {
	case TransportHID:
		return NewLedgerAdmin().Connect(c.DeviceIndex)
	case TransportSpeculos:
		return DialSpeculos(c.SpeculosAddress)
	case TransportBLE, TransportU2F:
		return nil, fmt.Errorf("%w: %s", ErrTransportUnsupported, c.Transport)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownTransport, c.Transport)
	}
}
