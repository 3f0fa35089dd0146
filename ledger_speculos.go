// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	// DefaultSpeculosAddress is the APDU port exposed by the Speculos emulator.
	DefaultSpeculosAddress = "127.0.0.1:9999"

	speculosDialTimeout = 5 * time.Second
)

// LedgerDeviceSpeculos talks to an emulated device over the Speculos raw APDU
// socket. Commands are sent as [u32 BE length][apdu]; replies arrive as
// [u32 BE length][data][sw1 sw2], the length excluding the status word.
type LedgerDeviceSpeculos struct {
	conn net.Conn
}

// DialSpeculos connects to a Speculos APDU socket.
func DialSpeculos(address string) (*LedgerDeviceSpeculos, error) {
	conn, err := net.DialTimeout("tcp", address, speculosDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial speculos %s: %w", address, err)
	}
	return &LedgerDeviceSpeculos{conn: conn}, nil
}

func newSpeculosDevice(conn net.Conn) *LedgerDeviceSpeculos {
	return &LedgerDeviceSpeculos{conn: conn}
}

func (ledger *LedgerDeviceSpeculos) Exchange(command []byte) ([]byte, error) {
	log.Debugf("[TCP] => %x", command)

	frame := binary.BigEndian.AppendUint32(nil, uint32(len(command)))
	frame = append(frame, command...)
	if _, err := ledger.conn.Write(frame); err != nil {
		return nil, err
	}

	var header [4]byte
	if _, err := io.ReadFull(ledger.conn, header[:]); err != nil {
		return nil, err
	}
	response := make([]byte, binary.BigEndian.Uint32(header[:])+2)
	if _, err := io.ReadFull(ledger.conn, response); err != nil {
		return nil, err
	}

	log.Debugf("[TCP] <= %x", response)
	return response, nil
}

func (ledger *LedgerDeviceSpeculos) Close() error {
	return ledger.conn.Close()
}
