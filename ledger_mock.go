//go:build ledger_mock
// +build ledger_mock

// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Forked from github.com/zondax/ledger-go
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// mockKey signs for every path.
var mockKey = func() *secp256k1.PrivateKey {
	seed := sha256.Sum256([]byte("ledger-eos mock device"))
	return secp256k1.PrivKeyFromBytes(seed[:])
}()

type LedgerAdminMock struct{}

// LedgerDeviceMock answers EOS app commands like the device would, signing
// with mockKey. Every signing chunk is answered with a signature over the
// data received so far.
type LedgerDeviceMock struct {
	payload []byte
}

func NewLedgerAdmin() LedgerAdmin {
	return &LedgerAdminMock{}
}

func (admin *LedgerAdminMock) CountDevices() int {
	return 1
}

func (admin *LedgerAdminMock) ListDevices() ([]string, error) {
	return []string{"mock"}, nil
}

func (admin *LedgerAdminMock) Connect(deviceIndex int) (LedgerDevice, error) {
	if deviceIndex != 0 {
		return nil, errors.New("device not found")
	}
	return &LedgerDeviceMock{}, nil
}

func (ledger *LedgerDeviceMock) Exchange(command []byte) ([]byte, error) {
	if len(command) < 5 {
		return nil, errors.New("APDU commands should not be smaller than 5")
	}
	log.Debugf("[MOCK] => %x", command)
	if command[0] != claEOS {
		return statusReply(nil, StatusCLANotSupported), nil
	}

	ins, p1, p2, data := command[1], command[2], command[3], command[5:]
	switch ins {
	case insGetConfiguration:
		return statusReply([]byte{0x01, 1, 0, 0}, StatusOK), nil
	case insGetAddress:
		if p1 != p1First {
			return ledger.signChunk(p1, data, 0, sha256Of)
		}
		if len(data) == 0 {
			return statusReply(nil, StatusWrongLength), nil
		}
		header := pathHeaderSize(int(data[0]))
		if len(data) > header {
			return ledger.signChunk(p1, data, header+messageLengthSize, sha256Of)
		}
		return statusReply(mockAddressReply(p2 == p2ReturnChainCode), StatusOK), nil
	case insSignTransaction:
		if p1 != p1First {
			return ledger.signChunk(p1, data, 0, packedDigest)
		}
		if len(data) == 0 {
			return statusReply(nil, StatusWrongLength), nil
		}
		return ledger.signChunk(p1, data, pathHeaderSize(int(data[0])), packedDigest)
	default:
		return statusReply(nil, StatusINSNotSupported), nil
	}
}

func (ledger *LedgerDeviceMock) signChunk(p1 byte, data []byte, header int, digest func([]byte) ([]byte, bool)) ([]byte, error) {
	if p1 == p1First {
		if len(data) < header {
			return statusReply(nil, StatusWrongLength), nil
		}
		ledger.payload = append([]byte(nil), data[header:]...)
	} else {
		ledger.payload = append(ledger.payload, data...)
	}

	hash, ok := digest(ledger.payload)
	if !ok {
		return statusReply(nil, StatusOK), nil
	}
	return statusReply(ecdsa.SignCompact(mockKey, hash, true), StatusOK), nil
}

func (ledger *LedgerDeviceMock) Close() error {
	return nil
}

// mockChainCode is appended to address replies that ask for a chain code.
var mockChainCode = sha256.Sum256([]byte("ledger-eos mock chain code"))

func mockAddressReply(withChainCode bool) []byte {
	pk := mockKey.PubKey().SerializeUncompressed()
	address := FormatPublicKey(mockKey.PubKey().SerializeCompressed())
	reply := []byte{byte(len(pk))}
	reply = append(reply, pk...)
	reply = append(reply, byte(len(address)))
	reply = append(reply, address...)
	if withChainCode {
		reply = append(reply, mockChainCode[:]...)
	}
	return reply
}

func sha256Of(data []byte) ([]byte, bool) {
	sum := sha256.Sum256(data)
	return sum[:], true
}

// packedDigest hashes the element values once the payload is a complete
// sequence of OCTET STRINGs.
func packedDigest(payload []byte) ([]byte, bool) {
	input := cryptobyte.String(payload)
	var values [][]byte
	for !input.Empty() {
		var element cryptobyte.String
		if !input.ReadASN1(&element, cryptobyte_asn1.OCTET_STRING) {
			return nil, false
		}
		values = append(values, element)
	}
	sum := sha256.Sum256(bytes.Join(values, nil))
	return sum[:], true
}

func statusReply(data []byte, status uint16) []byte {
	return append(data, byte(status>>8), byte(status))
}
