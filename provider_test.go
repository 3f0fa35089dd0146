// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ledger-eos-go/chain"
)

// stubCodec decodes every payload to a fixed transaction.
type stubCodec struct {
	chain.EosCodec
	tx *chain.Transaction
}

func (c stubCodec) DeserializeTransaction([]byte) (*chain.Transaction, error) {
	return c.tx, nil
}

func indexKey(index uint32) *secp256k1.PrivateKey {
	return testPrivateKey(byte(0x40 + index))
}

func indexAddress(index uint32) string {
	return FormatPublicKey(indexKey(index).PubKey().SerializeCompressed())
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}

// fakeEosApp answers like the EOS app, deriving one key per address index and
// signing once payloadLen transaction bytes have arrived.
type fakeEosApp struct {
	t          *testing.T
	payloadLen int
	failIndex  *uint32

	payload []byte
	index   uint32
	signed  [32]byte
}

func (f *fakeEosApp) handle(command []byte) ([]byte, error) {
	ins, p1, data := command[1], command[2], command[5:]
	switch ins {
	case insGetConfiguration:
		return okReply(0x01, 1, 2, 3), nil
	case insGetAddress:
		if len(data) > 1+4*int(data[0]) {
			return okReply(bytes.Repeat([]byte{0x5a}, compactSigSize)...), nil
		}
		path := data[1:]
		index := binary.BigEndian.Uint32(path[len(path)-4:])
		if f.failIndex != nil && *f.failIndex == index {
			return []byte{0x69, 0x85}, nil
		}
		pk := indexKey(index).PubKey().SerializeUncompressed()
		addr := indexAddress(index)
		reply := append([]byte{byte(len(pk))}, pk...)
		reply = append(reply, byte(len(addr)))
		return okReply(append(reply, addr...)...), nil
	case insSignTransaction:
		if p1 == p1First {
			header := 1 + 4*int(data[0])
			f.index = binary.BigEndian.Uint32(data[header-4 : header])
			f.payload = append([]byte(nil), data[header:]...)
		} else {
			f.payload = append(f.payload, data...)
		}
		if len(f.payload) < f.payloadLen {
			return okReply(), nil
		}
		f.signed = sha256.Sum256(bytes.Join(readElements(f.t, f.payload), nil))
		return okReply(ecdsa.SignCompact(indexKey(f.index), f.signed[:], true)...), nil
	default:
		return []byte{0x6d, 0x00}, nil
	}
}

func newTestProvider(t *testing.T, device LedgerDevice, config Config) *WalletProvider {
	t.Helper()

	tx := testTransaction()
	provider, err := NewWalletProvider(config, stubCodec{tx: tx}, WithDeviceOpener(func(Config) (LedgerDevice, error) {
		return device, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func connectedProvider(t *testing.T, app *fakeEosApp) (*WalletProvider, *testDevice) {
	t.Helper()

	device := &testDevice{handler: app.handle}
	provider := newTestProvider(t, device, DefaultConfig())
	config, err := provider.Connect(t.Context())
	require.NoError(t, err)
	require.Equal(t, "1.2.3", config.Version)
	require.Equal(t, uint8(1), config.ArbitraryDataEnabled)
	return provider, device
}

func packedLen(t *testing.T) int {
	t.Helper()

	packed, err := PackTransaction(testChainID, testTransaction(), chain.EosCodec{})
	require.NoError(t, err)
	encoded, err := packed.Encode()
	require.NoError(t, err)
	return len(encoded)
}

func TestNewWalletProviderValidatesConfig(t *testing.T) {
	config := DefaultConfig()
	config.ConfigurationTimeout = 0
	_, err := NewWalletProvider(config, chain.EosCodec{})
	require.Error(t, err)
}

func TestProviderNotConnected(t *testing.T) {
	provider := newTestProvider(t, &testDevice{}, DefaultConfig())

	_, err := provider.GetAppConfiguration(t.Context())
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = provider.Discover(t.Context())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectOpenError(t *testing.T) {
	config := DefaultConfig()
	config.Transport = TransportBLE
	provider, err := NewWalletProvider(config, chain.EosCodec{})
	require.NoError(t, err)

	_, err = provider.Connect(t.Context())
	require.ErrorIs(t, err, ErrTransportUnsupported)
}

func TestConnectReplacesTransport(t *testing.T) {
	app := &fakeEosApp{t: t}
	first := &testDevice{handler: app.handle}
	second := &testDevice{handler: app.handle}
	devices := []*testDevice{first, second}

	provider, err := NewWalletProvider(DefaultConfig(), chain.EosCodec{}, WithDeviceOpener(func(Config) (LedgerDevice, error) {
		device := devices[0]
		devices = devices[1:]
		return device, nil
	}))
	require.NoError(t, err)

	_, err = provider.Connect(t.Context())
	require.NoError(t, err)
	_, err = provider.Connect(t.Context())
	require.NoError(t, err)
	require.True(t, first.closed)
	require.False(t, second.closed)

	require.NoError(t, provider.Close())
	require.True(t, second.closed)
}

func TestConfigurationTimeout(t *testing.T) {
	release := make(chan struct{})
	device := &testDevice{handler: func([]byte) ([]byte, error) {
		<-release
		return okReply(0, 1, 0, 0), nil
	}}
	t.Cleanup(func() { close(release) })

	config := DefaultConfig()
	config.ConfigurationTimeout = 20 * time.Millisecond
	provider := newTestProvider(t, device, config)

	_, err := provider.Connect(t.Context())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestDiscoverOnlyQueriesMissingIndices(t *testing.T) {
	provider, device := connectedProvider(t, &fakeEosApp{t: t})
	base := len(device.sent())

	keys, err := provider.Discover(t.Context(), 0, 1)
	require.NoError(t, err)
	require.Equal(t, []KeyEntry{
		{Index: 0, Key: indexAddress(0)},
		{Index: 1, Key: indexAddress(1)},
	}, keys)
	require.Len(t, device.sent(), base+2)

	keys, err = provider.Discover(t.Context(), 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	require.Len(t, device.sent(), base+3)

	_, err = provider.Discover(t.Context(), 0, 1, 2)
	require.NoError(t, err)
	require.Len(t, device.sent(), base+3)

	keys, err = provider.Discover(t.Context())
	require.NoError(t, err)
	require.Len(t, keys, len(DefaultDiscoverIndices))
	require.Len(t, device.sent(), base+4)
}

func TestDiscoverFailureKeepsSession(t *testing.T) {
	provider, _ := connectedProvider(t, &fakeEosApp{t: t, failIndex: uint32Ptr(2)})

	_, err := provider.Discover(t.Context(), 0, 2)
	var apduErr *APDUError
	require.ErrorAs(t, err, &apduErr)
	require.Equal(t, uint16(0x6985), apduErr.Status)
	require.Empty(t, provider.Session().Keys())
}

func TestLoginValidation(t *testing.T) {
	device := &testDevice{}
	provider := newTestProvider(t, device, DefaultConfig())

	valid := LoginArgs{AccountName: "alice", Permission: "active", PublicKey: indexAddress(0), Index: uint32Ptr(0)}
	for name, modify := range map[string]func(*LoginArgs){
		"account":    func(a *LoginArgs) { a.AccountName = "" },
		"permission": func(a *LoginArgs) { a.Permission = "" },
		"public key": func(a *LoginArgs) { a.PublicKey = "" },
		"index":      func(a *LoginArgs) { a.Index = nil },
	} {
		t.Run(name, func(t *testing.T) {
			args := valid
			modify(&args)
			_, err := provider.Login(args)
			require.ErrorIs(t, err, ErrInvalidLogin)
		})
	}

	auth, err := provider.Login(valid)
	require.NoError(t, err)
	require.Equal(t, "alice", auth.AccountName)
	require.Empty(t, device.sent())

	keys, err := provider.SignatureProvider().GetAvailableKeys(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{indexAddress(0)}, keys)
}

func TestSignRequiresLogin(t *testing.T) {
	provider, _ := connectedProvider(t, &fakeEosApp{t: t})

	_, err := provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{
		ChainID:               hex.EncodeToString(testChainID),
		SerializedTransaction: []byte{0x01},
	})
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSignArbitraryNotImplemented(t *testing.T) {
	provider := newTestProvider(t, &testDevice{}, DefaultConfig())
	_, err := provider.SignArbitrary(indexAddress(0), "hello")
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestSign(t *testing.T) {
	app := &fakeEosApp{t: t, payloadLen: packedLen(t)}
	provider, device := connectedProvider(t, app)

	_, err := provider.Discover(t.Context())
	require.NoError(t, err)
	_, err = provider.Login(LoginArgs{
		AccountName: "alice",
		Permission:  "active",
		PublicKey:   indexAddress(1),
		Index:       uint32Ptr(1),
	})
	require.NoError(t, err)

	base := len(device.sent())
	serialized := []byte("serialized transaction")
	result, err := provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{
		ChainID:               hex.EncodeToString(testChainID),
		RequiredKeys:          []string{indexAddress(1)},
		SerializedTransaction: serialized,
	})
	require.NoError(t, err)
	require.Equal(t, serialized, result.SerializedTransaction)
	require.Len(t, result.Signatures, 1)
	require.True(t, strings.HasPrefix(result.Signatures[0], k1SignaturePrefix))

	require.Equal(t, uint32(1), app.index)
	packed, err := PackTransaction(testChainID, testTransaction(), chain.EosCodec{})
	require.NoError(t, err)
	require.Equal(t, packed.SigningDigest(), app.signed)

	commands, err := SignTransactionCommands(SplitPath(AccountPath(DefaultBasePath, 1)), app.payload)
	require.NoError(t, err)
	require.Len(t, device.sent(), base+len(commands))
}

func TestSignDetectsWrongKey(t *testing.T) {
	app := &fakeEosApp{t: t, payloadLen: packedLen(t)}
	provider, _ := connectedProvider(t, app)

	_, err := provider.Login(LoginArgs{
		AccountName: "alice",
		Permission:  "active",
		PublicKey:   indexAddress(2),
		Index:       uint32Ptr(1),
	})
	require.NoError(t, err)

	_, err = provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{
		ChainID:               hex.EncodeToString(testChainID),
		SerializedTransaction: []byte{0x01},
	})
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSignSkipsVerificationForUnknownKeyFormat(t *testing.T) {
	app := &fakeEosApp{t: t, payloadLen: packedLen(t)}
	provider, _ := connectedProvider(t, app)

	_, err := provider.Login(LoginArgs{
		AccountName: "alice",
		Permission:  "active",
		PublicKey:   "PUB_WA_unparsed",
		Index:       uint32Ptr(0),
	})
	require.NoError(t, err)

	result, err := provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{
		ChainID:               hex.EncodeToString(testChainID),
		SerializedTransaction: []byte{0x01},
	})
	require.NoError(t, err)
	require.Len(t, result.Signatures, 1)
}

func TestSignDeviceDenied(t *testing.T) {
	app := &fakeEosApp{t: t}
	device := &testDevice{handler: app.handle}
	provider := newTestProvider(t, device, DefaultConfig())
	_, err := provider.Connect(t.Context())
	require.NoError(t, err)

	device.push([]byte{0x69, 0x86}, nil)
	_, err = provider.Login(LoginArgs{AccountName: "alice", Permission: "active", PublicKey: indexAddress(0), Index: uint32Ptr(0)})
	require.NoError(t, err)

	_, err = provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{
		ChainID:               hex.EncodeToString(testChainID),
		SerializedTransaction: []byte{0x01},
	})
	require.True(t, IsDenied(err))
}

func TestSignBadChainID(t *testing.T) {
	provider, _ := connectedProvider(t, &fakeEosApp{t: t})
	_, err := provider.Login(LoginArgs{AccountName: "alice", Permission: "active", PublicKey: indexAddress(0), Index: uint32Ptr(0)})
	require.NoError(t, err)

	_, err = provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{ChainID: "zz"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotLoggedIn))
}

func TestAddress(t *testing.T) {
	provider, device := connectedProvider(t, &fakeEosApp{t: t})

	result, err := provider.Address(t.Context(), 3, false)
	require.NoError(t, err)
	require.Equal(t, indexAddress(3), result.Address)
	require.Equal(t, hex.EncodeToString(indexKey(3).PubKey().SerializeUncompressed()), result.PublicKey)
	require.Empty(t, provider.Session().Keys())

	sent := device.sent()
	require.Equal(t, EncodePath(SplitPath(AccountPath(DefaultBasePath, 3))), sent[len(sent)-1][5:])
}

func TestProviderSignPersonalMessage(t *testing.T) {
	provider, _ := connectedProvider(t, &fakeEosApp{t: t})

	reply, err := provider.SignPersonalMessage(t.Context(), 0, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x5a}, compactSigSize), reply)
}

func TestSignSerializedTransaction(t *testing.T) {
	serialized, err := chain.EosCodec{}.SerializeTransaction(testTransaction())
	require.NoError(t, err)

	app := &fakeEosApp{t: t, payloadLen: packedLen(t)}
	device := &testDevice{handler: app.handle}
	provider, err := NewWalletProvider(DefaultConfig(), chain.EosCodec{}, WithDeviceOpener(func(Config) (LedgerDevice, error) {
		return device, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	_, err = provider.Connect(t.Context())
	require.NoError(t, err)
	_, err = provider.Login(LoginArgs{
		AccountName: "alice",
		Permission:  "active",
		PublicKey:   indexAddress(0),
		Index:       uint32Ptr(0),
	})
	require.NoError(t, err)

	result, err := provider.SignatureProvider().Sign(t.Context(), SignatureProviderArgs{
		ChainID:               hex.EncodeToString(testChainID),
		SerializedTransaction: serialized,
	})
	require.NoError(t, err)
	require.Equal(t, serialized, result.SerializedTransaction)
	require.Len(t, result.Signatures, 1)

	packed, err := PackTransaction(testChainID, testTransaction(), chain.EosCodec{})
	require.NoError(t, err)
	require.Equal(t, packed.SigningDigest(), app.signed)
}
