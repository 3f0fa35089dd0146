// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultScrambleKey is the scramble key of the EOS app.
const DefaultScrambleKey = "e0s"

// ErrTransportBusy is returned when a command is issued while another one is
// still pending on the device.
var ErrTransportBusy = errors.New("ledger: an action was already pending on the device")

// Transport serializes access to a LedgerDevice. Only one decorated call may
// be in flight at a time, and every reply has its status word checked and
// stripped.
type Transport struct {
	device      LedgerDevice
	scrambleKey string
	metrics     *Metrics

	busy sync.Mutex
}

func NewTransport(device LedgerDevice, scrambleKey string, metrics *Metrics) *Transport {
	return &Transport{
		device:      device,
		scrambleKey: scrambleKey,
		metrics:     metrics,
	}
}

// Atomic runs fn while holding the device. A concurrent caller gets
// ErrTransportBusy instead of interleaving its commands.
func (t *Transport) Atomic(fn func() error) error {
	if !t.busy.TryLock() {
		return ErrTransportBusy
	}
	defer t.busy.Unlock()

	if setter, ok := t.device.(ScrambleKeySetter); ok {
		setter.SetScrambleKey(t.scrambleKey)
	}
	return fn()
}

// Send exchanges one command and returns the reply data without its status
// word. It must be called from inside Atomic.
func (t *Transport) Send(cmd Command) (reply []byte, err error) {
	start := time.Now()
	defer func() {
		t.metrics.observe(cmd.Kind, start, err)
	}()

	response, err := t.device.Exchange(cmd.APDU())
	if err != nil {
		return nil, err
	}
	if len(response) < 2 {
		return nil, fmt.Errorf("%s: %w: missing status word", cmd.Kind, ErrInvalidReply)
	}

	data, sw := response[:len(response)-2], binary.BigEndian.Uint16(response[len(response)-2:])
	if sw != StatusOK {
		log.Debugf("%s rejected with status 0x%04x", cmd.Kind, sw)
		return nil, &APDUError{Status: sw}
	}
	return data, nil
}

// Close releases the underlying device.
func (t *Transport) Close() error {
	return t.device.Close()
}
