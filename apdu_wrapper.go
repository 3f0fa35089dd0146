// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const tagAPDU = 0x05

var (
	errPacketSize      = errors.New("packet size must be larger than the frame header")
	errCommandTooLarge = errors.New("command exceeds 65535 bytes")
	errFrameShort      = errors.New("frame shorter than its header")
	errFrameChannel    = errors.New("frame channel mismatch")
	errFrameTag        = errors.New("frame tag mismatch")
	errFrameSequence   = errors.New("frame sequence mismatch")
)

// WrapCommandAPDU splits a command APDU into fixed size HID frames.
//
// Every frame starts with channel (2), tag (1) and sequence (2). The first
// frame additionally carries the total command length (2). Frames are zero
// padded to packetSize.
func WrapCommandAPDU(channel uint16, command []byte, packetSize int) ([][]byte, error) {
	if packetSize <= 7 {
		return nil, errPacketSize
	}
	if len(command) > 0xffff {
		return nil, errCommandTooLarge
	}

	var (
		frames [][]byte
		seq    uint16
		offset int
	)
	for seq == 0 || offset < len(command) {
		frame := make([]byte, packetSize)
		binary.BigEndian.PutUint16(frame[0:2], channel)
		frame[2] = tagAPDU
		binary.BigEndian.PutUint16(frame[3:5], seq)

		header := 5
		if seq == 0 {
			binary.BigEndian.PutUint16(frame[5:7], uint16(len(command)))
			header = 7
		}
		offset += copy(frame[header:], command[offset:])
		frames = append(frames, frame)
		seq++
	}
	return frames, nil
}

// responseAssembler rebuilds a response APDU from the HID frames returned by
// the device. Frames must arrive in sequence order.
type responseAssembler struct {
	channel uint16
	seq     uint16
	total   int
	data    []byte
}

func newResponseAssembler(channel uint16) *responseAssembler {
	return &responseAssembler{channel: channel, data: []byte{}}
}

// Add consumes one frame and reports whether the response is complete.
func (r *responseAssembler) Add(frame []byte) (bool, error) {
	if len(frame) < 5 {
		return false, errFrameShort
	}
	if binary.BigEndian.Uint16(frame[0:2]) != r.channel {
		return false, errFrameChannel
	}
	if frame[2] != tagAPDU {
		return false, errFrameTag
	}
	if seq := binary.BigEndian.Uint16(frame[3:5]); seq != r.seq {
		return false, fmt.Errorf("%w: got %d, want %d", errFrameSequence, seq, r.seq)
	}

	payload := frame[5:]
	if r.seq == 0 {
		if len(payload) < 2 {
			return false, errFrameShort
		}
		r.total = int(binary.BigEndian.Uint16(payload[0:2]))
		payload = payload[2:]
	}
	r.seq++

	missing := r.total - len(r.data)
	if len(payload) > missing {
		payload = payload[:missing]
	}
	r.data = append(r.data, payload...)
	return len(r.data) == r.total, nil
}

// Bytes returns the assembled response.
func (r *responseAssembler) Bytes() []byte {
	return r.data
}
