// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn is returned when signing is attempted before Login.
	ErrNotLoggedIn = errors.New("account not logged in")
	// ErrInvalidLogin is returned when Login is missing one of its arguments.
	ErrInvalidLogin = errors.New("when calling the ledger login function: accountName, authorization, index and key must be supplied")
	// ErrTimeout is returned when the device does not answer a configuration
	// query in time. The device call itself keeps running.
	ErrTimeout = errors.New("ledger: request timed out")
	// ErrNotImplemented is returned by SignArbitrary.
	ErrNotImplemented = errors.New("not implemented")
	// ErrNotConnected is returned when a device command is issued before Connect.
	ErrNotConnected = errors.New("ledger: not connected")
	// ErrInvalidReply is returned when a device reply is shorter than its
	// declared layout.
	ErrInvalidReply = errors.New("ledger: invalid reply")
	// ErrTransportUnsupported is returned for transports with no Go binding.
	ErrTransportUnsupported = errors.New("ledger: transport not supported")
	// ErrSignatureMismatch is returned when a device signature does not
	// recover to the logged in key.
	ErrSignatureMismatch = errors.New("ledger: signature does not match selected key")
)

// Status words returned by the device in the last two bytes of every reply.
const (
	StatusOK                     uint16 = 0x9000
	StatusWrongLength            uint16 = 0x6700
	StatusSecurityNotSatisfied   uint16 = 0x6982
	StatusConditionsNotSatisfied uint16 = 0x6985
	StatusDenied                 uint16 = 0x6986
	StatusIncorrectData          uint16 = 0x6a80
	StatusIncorrectP1P2          uint16 = 0x6b00
	StatusINSNotSupported        uint16 = 0x6d00
	StatusCLANotSupported        uint16 = 0x6e00
	StatusAppNotOpen             uint16 = 0x6e01
	StatusLocked                 uint16 = 0x5515
	StatusTechnicalProblem       uint16 = 0x6f00
	StatusInvalidDataEOSApp      uint16 = 0x6a81
	StatusDeviceBusy             uint16 = 0x9001
)

var statusText = map[uint16]string{
	StatusWrongLength:            "wrong length",
	StatusSecurityNotSatisfied:   "security status not satisfied",
	StatusConditionsNotSatisfied: "conditions of use not satisfied",
	StatusDenied:                 "denied by the user",
	StatusIncorrectData:          "incorrect data",
	StatusInvalidDataEOSApp:      "invalid data",
	StatusIncorrectP1P2:          "incorrect parameters P1 or P2",
	StatusINSNotSupported:        "instruction not supported",
	StatusCLANotSupported:        "class not supported",
	StatusAppNotOpen:             "app does not seem to be open",
	StatusLocked:                 "device is locked",
	StatusTechnicalProblem:       "technical problem",
	StatusDeviceBusy:             "device is busy",
}

// APDUError is a non-success status word returned by the device.
type APDUError struct {
	Status uint16
}

func (e *APDUError) Error() string {
	if text, ok := statusText[e.Status]; ok {
		return fmt.Sprintf("ledger: %s (0x%04x)", text, e.Status)
	}
	return fmt.Sprintf("ledger: unknown status word 0x%04x", e.Status)
}

// IsDenied reports whether err is the device refusing on user request.
func IsDenied(err error) bool {
	var apduErr *APDUError
	return errors.As(err, &apduErr) && apduErr.Status == StatusDenied
}
