// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	claEOS = 0xD4

	insGetAddress       = 0x02
	insSignTransaction  = 0x04
	insSignMessage      = 0x02 // shared with insGetAddress, the payload shape differs
	insGetConfiguration = 0x06

	p1First        = 0x00
	p1Continuation = 0x80
	p2None         = 0x00

	// MaxChunkSize is the largest payload carried by a single APDU.
	MaxChunkSize = 150
	// MaxPathComponents is the deepest path the EOS app accepts.
	MaxPathComponents = 10

	messageLengthSize = 4
)

var (
	errPathTooLong  = fmt.Errorf("derivation path longer than %d components, the EOS app limit", MaxPathComponents)
	errEmptyPayload = errors.New("nothing to sign")
)

// CommandKind enumerates the EOS app commands. Each kind owns its instruction
// byte and payload layout, so the shared 0x02 opcode cannot be misrouted.
type CommandKind uint8

const (
	CommandGetAddress CommandKind = iota
	CommandSignTransaction
	CommandSignMessage
	CommandGetConfiguration
)

func (k CommandKind) Instruction() byte {
	switch k {
	case CommandGetAddress:
		return insGetAddress
	case CommandSignTransaction:
		return insSignTransaction
	case CommandSignMessage:
		return insSignMessage
	default:
		return insGetConfiguration
	}
}

func (k CommandKind) String() string {
	switch k {
	case CommandGetAddress:
		return "get_address"
	case CommandSignTransaction:
		return "sign_transaction"
	case CommandSignMessage:
		return "sign_message"
	case CommandGetConfiguration:
		return "get_configuration"
	default:
		return fmt.Sprintf("command(%d)", uint8(k))
	}
}

// Command is one APDU payload addressed to the EOS app.
type Command struct {
	Kind CommandKind
	P1   byte
	P2   byte
	Data []byte
}

// APDU serializes the command as CLA | INS | P1 | P2 | Lc | data.
func (c Command) APDU() []byte {
	apdu := make([]byte, 5, 5+len(c.Data))
	apdu[0] = claEOS
	apdu[1] = c.Kind.Instruction()
	apdu[2] = c.P1
	apdu[3] = c.P2
	apdu[4] = byte(len(c.Data))
	return append(apdu, c.Data...)
}

// NewAddressCommand builds the single buffer address request.
func NewAddressCommand(path []uint32) (Command, error) {
	if err := checkPath(path); err != nil {
		return Command{}, err
	}
	return Command{Kind: CommandGetAddress, P1: p1First, P2: p2None, Data: EncodePath(path)}, nil
}

// NewConfigurationCommand builds the payload-less configuration request.
func NewConfigurationCommand() Command {
	return Command{Kind: CommandGetConfiguration, P1: p1First, P2: p2None}
}

// SignTransactionCommands splits a serialized transaction into the ordered
// commands the device expects. The first command carries the path.
func SignTransactionCommands(path []uint32, rawTx []byte) ([]Command, error) {
	return chunkedCommands(CommandSignTransaction, path, rawTx, false)
}

// SignMessageCommands splits a message like SignTransactionCommands, with the
// total message length prepended to the first chunk.
func SignMessageCommands(path []uint32, message []byte) ([]Command, error) {
	return chunkedCommands(CommandSignMessage, path, message, true)
}

func chunkedCommands(kind CommandKind, path []uint32, payload []byte, withLength bool) ([]Command, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}

	var commands []Command
	for offset := 0; offset != len(payload); {
		var header []byte
		if offset == 0 {
			header = EncodePath(path)
			if withLength {
				header = binary.BigEndian.AppendUint32(header, uint32(len(payload)))
			}
		}

		chunkSize := min(len(payload)-offset, MaxChunkSize-len(header))
		data := make([]byte, 0, len(header)+chunkSize)
		data = append(data, header...)
		data = append(data, payload[offset:offset+chunkSize]...)

		p1 := byte(p1Continuation)
		if offset == 0 {
			p1 = p1First
		}
		commands = append(commands, Command{Kind: kind, P1: p1, P2: p2None, Data: data})
		offset += chunkSize
	}
	return commands, nil
}

func checkPath(path []uint32) error {
	if len(path) > MaxPathComponents {
		return errPathTooLong
	}
	return nil
}
