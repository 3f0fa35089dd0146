// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticAddressReply(withChainCode bool) (reply, pk, addr, chainCode []byte) {
	pk = bytes.Repeat([]byte{0xA1}, 33)
	addr = []byte("protonledger")
	chainCode = bytes.Repeat([]byte{0xC3}, 32)

	reply = append(reply, byte(len(pk)))
	reply = append(reply, pk...)
	reply = append(reply, byte(len(addr)))
	reply = append(reply, addr...)
	if withChainCode {
		reply = append(reply, chainCode...)
	}
	return reply, pk, addr, chainCode
}

func TestParseAddressResponse(t *testing.T) {
	reply, pk, addr, chainCode := syntheticAddressReply(true)

	result, err := ParseAddressResponse(reply, false)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(pk), result.PublicKey)
	require.Equal(t, string(addr), result.Address)
	require.Empty(t, result.ChainCode)

	result, err = ParseAddressResponse(reply, true)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(chainCode), result.ChainCode)
}

func TestParseAddressResponseShort(t *testing.T) {
	reply, _, _, _ := syntheticAddressReply(false)

	for _, tt := range []struct {
		name      string
		reply     []byte
		chainCode bool
	}{
		{"empty", nil, false},
		{"public key cut", reply[:10], false},
		{"address cut", reply[:len(reply)-1], false},
		{"chain code missing", reply, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddressResponse(tt.reply, tt.chainCode)
			require.ErrorIs(t, err, ErrInvalidReply)
		})
	}
}

func TestParseAppConfiguration(t *testing.T) {
	config, err := ParseAppConfiguration([]byte{0x01, 1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, &AppConfiguration{ArbitraryDataEnabled: 1, Version: "1.2.3"}, config)

	config, err = ParseAppConfiguration([]byte{0xFE, 0, 4, 11})
	require.NoError(t, err)
	require.Equal(t, uint8(0), config.ArbitraryDataEnabled)
	require.Equal(t, "0.4.11", config.Version)

	_, err = ParseAppConfiguration([]byte{1, 2})
	require.ErrorIs(t, err, ErrInvalidReply)
}

func TestGetAddress(t *testing.T) {
	reply, _, addr, _ := syntheticAddressReply(true)
	device := &testDevice{}
	device.push(okReply(reply...), nil)

	result, err := newTestApp(device).GetAddress(context.Background(), "44'/194'/0'/0/2", true)
	require.NoError(t, err)
	require.Equal(t, string(addr), result.Address)

	sent := device.sent()
	require.Len(t, sent, 1)
	require.Equal(t, []byte{0xD4, 0x02, 0x00, 0x01}, sent[0][:4])
}

func TestSignTransactionSendsChunksInOrder(t *testing.T) {
	device := &testDevice{}
	payload := testPayload(400)
	commands, err := SignTransactionCommands(SplitPath(DefaultBasePath+"/0"), payload)
	require.NoError(t, err)
	for i := range commands {
		device.push(okReply(byte(i)), nil)
	}

	reply, err := newTestApp(device).SignTransaction(context.Background(), DefaultBasePath+"/0", payload)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(len(commands) - 1)}, reply)

	sent := device.sent()
	require.Len(t, sent, len(commands))
	for i, cmd := range commands {
		require.Equal(t, cmd.APDU(), sent[i])
	}
}

func TestSignTransactionAbortsOnFailure(t *testing.T) {
	device := &testDevice{}
	errUnplugged := errors.New("unplugged")
	device.push(okReply(), nil)
	device.push(nil, errUnplugged)
	device.push(okReply(), nil)

	_, err := newTestApp(device).SignTransaction(context.Background(), DefaultBasePath+"/0", testPayload(500))
	require.ErrorIs(t, err, errUnplugged)
	require.Len(t, device.sent(), 2)
}

func TestSignTransactionStatusWord(t *testing.T) {
	device := &testDevice{}
	device.push([]byte{0x69, 0x86}, nil)

	_, err := newTestApp(device).SignTransaction(context.Background(), DefaultBasePath+"/0", testPayload(10))
	var apduErr *APDUError
	require.ErrorAs(t, err, &apduErr)
	require.Equal(t, StatusDenied, apduErr.Status)
	require.True(t, IsDenied(err))
	require.Contains(t, err.Error(), "denied by the user")
}

func TestSignTransactionCancelledContext(t *testing.T) {
	device := &testDevice{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestApp(device).SignTransaction(ctx, DefaultBasePath+"/0", testPayload(10))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, device.sent())
}

func TestSignPersonalMessage(t *testing.T) {
	device := &testDevice{handler: func([]byte) ([]byte, error) {
		return okReply(0x1f), nil
	}}

	reply, err := newTestApp(device).SignPersonalMessage(context.Background(), DefaultBasePath+"/0", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f}, reply)

	sent := device.sent()
	require.Len(t, sent, 1)
	require.Equal(t, []byte{0xD4, 0x02, 0x00, 0x00}, sent[0][:4])
	// path count, 5 components, message length, message
	require.Equal(t, []byte{0, 0, 0, 5}, sent[0][5+21:5+25])
	require.Equal(t, []byte("hello"), sent[0][5+25:])
}

func TestGetAppConfiguration(t *testing.T) {
	device := &testDevice{}
	device.push(okReply(0x01, 1, 2, 3), nil)

	config, err := newTestApp(device).GetAppConfiguration(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.2.3", config.Version)
	require.Equal(t, [][]byte{{0xD4, 0x06, 0x00, 0x00, 0x00}}, device.sent())
}
