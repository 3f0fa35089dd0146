// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"errors"
	"sync"
)

var errScriptExhausted = errors.New("test device: no reply scripted")

// testDevice records every command and answers from a script, falling back to
// handler when the script is empty.
type testDevice struct {
	mu       sync.Mutex
	commands [][]byte
	replies  []testReply
	handler  func(command []byte) ([]byte, error)
	closed   bool
}

type testReply struct {
	data []byte
	err  error
}

func (d *testDevice) Exchange(command []byte) ([]byte, error) {
	d.mu.Lock()
	d.commands = append(d.commands, append([]byte(nil), command...))
	if len(d.replies) > 0 {
		reply := d.replies[0]
		d.replies = d.replies[1:]
		d.mu.Unlock()
		return reply.data, reply.err
	}
	handler := d.handler
	d.mu.Unlock()

	if handler == nil {
		return nil, errScriptExhausted
	}
	return handler(command)
}

func (d *testDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *testDevice) sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.commands...)
}

func (d *testDevice) push(data []byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies = append(d.replies, testReply{data: data, err: err})
}

// okReply appends the success status word.
func okReply(data ...byte) []byte {
	return append(data, 0x90, 0x00)
}

func newTestApp(device *testDevice) *EosApp {
	return NewEosApp(NewTransport(device, DefaultScrambleKey, nil))
}
