// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

// LedgerAdmin defines the interface for enumerating and opening Ledger devices.
type LedgerAdmin interface {
	CountDevices() int
	ListDevices() ([]string, error)
	Connect(deviceIndex int) (LedgerDevice, error)
}

// LedgerDevice is a raw APDU channel to one device. Exchange takes a complete
// command APDU and returns the response including its trailing status word.
type LedgerDevice interface {
	Exchange(command []byte) ([]byte, error)
	Close() error
}

// ScrambleKeySetter is implemented by transports that obfuscate their channel
// with an application scramble key.
type ScrambleKeySetter interface {
	SetScrambleKey(key string)
}
