// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"context"
	"encoding/hex"
	"fmt"
)

const (
	// P2 = 0x01 asks the app to append the chain code to the address reply.
	p2ReturnChainCode = 0x01

	chainCodeSize         = 32
	configurationReplyLen = 4
)

// AddressResult is the reply to an address request.
type AddressResult struct {
	PublicKey string `json:"publicKey"`
	Address   string `json:"address"`
	ChainCode string `json:"chainCode,omitempty"`
}

// AppConfiguration is the reply to a configuration request.
type AppConfiguration struct {
	ArbitraryDataEnabled uint8  `json:"arbitraryDataEnabled"`
	Version              string `json:"version"`
}

// EosApp issues EOS application commands over a Transport.
type EosApp struct {
	transport *Transport
}

func NewEosApp(transport *Transport) *EosApp {
	return &EosApp{transport: transport}
}

// GetAddress returns the public key and address at a BIP-32 path.
//
// Request: [path count][path components, u32 BE each].
// Reply: [pk len][pk][address len][address][chain code, 32 bytes if requested].
func (app *EosApp) GetAddress(ctx context.Context, path string, withChainCode bool) (*AddressResult, error) {
	cmd, err := NewAddressCommand(SplitPath(path))
	if err != nil {
		return nil, err
	}
	if withChainCode {
		cmd.P2 = p2ReturnChainCode
	}

	var reply []byte
	err = app.transport.Atomic(func() (err error) {
		if err := ctx.Err(); err != nil {
			return err
		}
		reply, err = app.transport.Send(cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ParseAddressResponse(reply, withChainCode)
}

// SignTransaction sends a packed transaction in chunks and returns the
// device's 65 byte [v|r|s] signature.
func (app *EosApp) SignTransaction(ctx context.Context, path string, rawTx []byte) ([]byte, error) {
	commands, err := SignTransactionCommands(SplitPath(path), rawTx)
	if err != nil {
		return nil, err
	}
	return app.sendChunks(ctx, commands)
}

// SignPersonalMessage sends a message in chunks and returns the device reply.
func (app *EosApp) SignPersonalMessage(ctx context.Context, path string, message []byte) ([]byte, error) {
	commands, err := SignMessageCommands(SplitPath(path), message)
	if err != nil {
		return nil, err
	}
	return app.sendChunks(ctx, commands)
}

// GetAppConfiguration returns the app version and its arbitrary data setting.
func (app *EosApp) GetAppConfiguration(ctx context.Context) (*AppConfiguration, error) {
	var reply []byte
	err := app.transport.Atomic(func() (err error) {
		if err := ctx.Err(); err != nil {
			return err
		}
		reply, err = app.transport.Send(NewConfigurationCommand())
		return err
	})
	if err != nil {
		return nil, err
	}
	return ParseAppConfiguration(reply)
}

// sendChunks sends commands strictly in order. The first failure abandons the
// sequence and only the last reply is returned.
func (app *EosApp) sendChunks(ctx context.Context, commands []Command) ([]byte, error) {
	var reply []byte
	err := app.transport.Atomic(func() error {
		for i, cmd := range commands {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			reply, err = app.transport.Send(cmd)
			if err != nil {
				log.Debugf("%s chunk %d/%d failed: %v", cmd.Kind, i+1, len(commands), err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ParseAddressResponse decodes an address reply.
func ParseAddressResponse(reply []byte, withChainCode bool) (*AddressResult, error) {
	if len(reply) < 1 {
		return nil, fmt.Errorf("%w: empty address reply", ErrInvalidReply)
	}
	pkEnd := 1 + int(reply[0])
	if len(reply) < pkEnd+1 {
		return nil, fmt.Errorf("%w: reply lacks public key entry", ErrInvalidReply)
	}
	addrEnd := pkEnd + 1 + int(reply[pkEnd])
	if len(reply) < addrEnd {
		return nil, fmt.Errorf("%w: reply lacks address entry", ErrInvalidReply)
	}

	result := &AddressResult{
		PublicKey: hex.EncodeToString(reply[1:pkEnd]),
		Address:   string(reply[pkEnd+1 : addrEnd]),
	}
	if withChainCode {
		if len(reply) < addrEnd+chainCodeSize {
			return nil, fmt.Errorf("%w: reply lacks chain code", ErrInvalidReply)
		}
		result.ChainCode = hex.EncodeToString(reply[addrEnd : addrEnd+chainCodeSize])
	}
	return result, nil
}

// ParseAppConfiguration decodes a configuration reply: [flags][major][minor][patch].
func ParseAppConfiguration(reply []byte) (*AppConfiguration, error) {
	if len(reply) < configurationReplyLen {
		return nil, fmt.Errorf("%w: configuration reply has %d bytes", ErrInvalidReply, len(reply))
	}
	return &AppConfiguration{
		ArbitraryDataEnabled: reply[0] & 0x01,
		Version:              fmt.Sprintf("%d.%d.%d", reply[1], reply[2], reply[3]),
	}, nil
}
