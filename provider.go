// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/ledger-eos-go/chain"
)

// DefaultDiscoverIndices are the address indices probed when Discover is
// called without arguments.
var DefaultDiscoverIndices = []uint32{0, 1, 2, 3}

// LoginArgs identifies the account a key index signs for. Index is a pointer
// because index 0 is valid.
type LoginArgs struct {
	AccountName string
	Permission  string
	PublicKey   string
	Index       *uint32
}

// SignatureProviderArgs is a signing request from the application.
type SignatureProviderArgs struct {
	ChainID               string
	RequiredKeys          []string
	SerializedTransaction []byte
}

// PushTransactionArgs is a signed transaction ready to be pushed.
type PushTransactionArgs struct {
	Signatures            []string `json:"signatures"`
	SerializedTransaction []byte   `json:"serializedTransaction"`
}

// Option customizes a WalletProvider.
type Option func(*WalletProvider)

// WithMetrics records APDU metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(w *WalletProvider) {
		w.metrics = metrics
	}
}

// WithDeviceOpener replaces OpenDevice, typically with an already open device.
func WithDeviceOpener(open func(Config) (LedgerDevice, error)) Option {
	return func(w *WalletProvider) {
		w.openDevice = open
	}
}

// WithSession shares a session between providers.
func WithSession(session *Session) Option {
	return func(w *WalletProvider) {
		w.session = session
	}
}

// WalletProvider is the wallet surface exposed to applications: connect,
// discover keys, login and sign.
type WalletProvider struct {
	config     Config
	codec      chain.Codec
	metrics    *Metrics
	openDevice func(Config) (LedgerDevice, error)
	session    *Session

	mu        sync.Mutex
	transport *Transport
	app       *EosApp
}

func NewWalletProvider(config Config, codec chain.Codec, opts ...Option) (*WalletProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	w := &WalletProvider{
		config:     config,
		codec:      codec,
		openDevice: OpenDevice,
		session:    NewSession(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Session returns the key tracker backing the provider.
func (w *WalletProvider) Session() *Session {
	return w.session
}

// Connect opens the configured transport and returns the app configuration.
func (w *WalletProvider) Connect(ctx context.Context) (*AppConfiguration, error) {
	device, err := w.openDevice(w.config)
	if err != nil {
		return nil, fmt.Errorf("open %s transport: %w", w.config.Transport, err)
	}

	transport := NewTransport(device, w.config.ScrambleKey, w.metrics)
	w.mu.Lock()
	previous := w.transport
	w.transport, w.app = transport, NewEosApp(transport)
	w.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Warnf("closing previous transport: %v", err)
		}
	}
	log.Infof("connected to ledger over %s", w.config.Transport)

	return w.GetAppConfiguration(ctx)
}

// Close releases the device.
func (w *WalletProvider) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.transport == nil {
		return nil
	}
	err := w.transport.Close()
	w.transport, w.app = nil, nil
	return err
}

func (w *WalletProvider) eosApp() (*EosApp, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.app == nil {
		return nil, ErrNotConnected
	}
	return w.app, nil
}

// GetAppConfiguration queries the app configuration. If the device does not
// answer within the configured timeout ErrTimeout is returned; the pending
// command is left running on the device.
func (w *WalletProvider) GetAppConfiguration(ctx context.Context) (*AppConfiguration, error) {
	app, err := w.eosApp()
	if err != nil {
		return nil, err
	}

	type result struct {
		config *AppConfiguration
		err    error
	}
	done := make(chan result, 1)
	go func() {
		config, err := app.GetAppConfiguration(context.WithoutCancel(ctx))
		done <- result{config: config, err: err}
	}()

	timer := time.NewTimer(w.config.ConfigurationTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.config, r.err
	case <-timer.C:
		log.Warnf("configuration query timed out after %s", w.config.ConfigurationTimeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Discover resolves the keys of the requested indices, asking the device only
// for indices not seen before, and returns every known entry.
func (w *WalletProvider) Discover(ctx context.Context, indices ...uint32) ([]KeyEntry, error) {
	if len(indices) == 0 {
		indices = DefaultDiscoverIndices
	}

	missing := w.session.Missing(indices)
	if len(missing) > 0 {
		app, err := w.eosApp()
		if err != nil {
			return nil, err
		}

		found := make([]KeyEntry, 0, len(missing))
		for _, index := range missing {
			result, err := app.GetAddress(ctx, AccountPath(w.config.BasePath, index), false)
			if err != nil {
				return nil, fmt.Errorf("derive key %d: %w", index, err)
			}
			found = append(found, KeyEntry{Index: index, Key: result.Address})
		}
		w.session.Merge(found)
		log.Debugf("discovered %d new keys", len(found))
	}
	return w.session.Keys(), nil
}

// Address asks the device for the key at index, with its chain code if
// requested. The session is not updated.
func (w *WalletProvider) Address(ctx context.Context, index uint32, withChainCode bool) (*AddressResult, error) {
	app, err := w.eosApp()
	if err != nil {
		return nil, err
	}
	return app.GetAddress(ctx, AccountPath(w.config.BasePath, index), withChainCode)
}

// SignPersonalMessage has the key at index sign message and returns the raw
// device reply.
func (w *WalletProvider) SignPersonalMessage(ctx context.Context, index uint32, message []byte) ([]byte, error) {
	app, err := w.eosApp()
	if err != nil {
		return nil, err
	}
	return app.SignPersonalMessage(ctx, AccountPath(w.config.BasePath, index), message)
}

// Login registers the account a key index signs for and selects that index.
// It does not talk to the device.
func (w *WalletProvider) Login(args LoginArgs) (*WalletAuth, error) {
	if args.AccountName == "" || args.Permission == "" || args.PublicKey == "" || args.Index == nil {
		return nil, ErrInvalidLogin
	}

	auth := WalletAuth{
		AccountName: args.AccountName,
		Permission:  args.Permission,
		PublicKey:   args.PublicKey,
	}
	w.session.Login(auth, *args.Index)
	log.Infof("logged in %s@%s with key index %d", auth.AccountName, auth.Permission, *args.Index)
	return &auth, nil
}

// SignArbitrary is not supported by the Ledger EOS app integration.
func (w *WalletProvider) SignArbitrary(publicKey, data string) (string, error) {
	return "", ErrNotImplemented
}

// SignatureProvider returns the signer used to sign transactions.
func (w *WalletProvider) SignatureProvider() *SignatureProvider {
	return &SignatureProvider{wallet: w}
}

// SignatureProvider signs transactions with the key selected at login.
type SignatureProvider struct {
	wallet *WalletProvider
}

// GetAvailableKeys lists the keys this provider can sign with.
func (p *SignatureProvider) GetAvailableKeys(ctx context.Context) ([]string, error) {
	return p.wallet.session.AvailableKeys(), nil
}

// Sign has the device sign a serialized transaction and returns the chain
// formatted signature.
func (p *SignatureProvider) Sign(ctx context.Context, args SignatureProviderArgs) (*PushTransactionArgs, error) {
	w := p.wallet

	index, ok := w.session.Selected()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	chainID, err := hex.DecodeString(args.ChainID)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	tx, err := w.codec.DeserializeTransaction(args.SerializedTransaction)
	if err != nil {
		return nil, err
	}
	packed, err := PackTransaction(chainID, tx, w.codec)
	if err != nil {
		return nil, err
	}
	payload, err := packed.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode packed transaction: %w", err)
	}

	app, err := w.eosApp()
	if err != nil {
		return nil, err
	}
	log.Debugf("selectedIndex: %d", index)
	raw, err := app.SignTransaction(ctx, AccountPath(w.config.BasePath, index), payload)
	if err != nil {
		return nil, err
	}

	if w.config.VerifySignatures {
		if err := w.verify(raw, packed); err != nil {
			return nil, err
		}
	}

	signature, err := FormatSignature(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	return &PushTransactionArgs{
		Signatures:            []string{signature},
		SerializedTransaction: args.SerializedTransaction,
	}, nil
}

// verify checks that sig recovers to the logged in key. Keys that cannot be
// parsed as K1 keys are not checked.
func (w *WalletProvider) verify(sig []byte, packed *PackedTransaction) error {
	auth, ok := w.session.Auth()
	if !ok {
		return ErrNotLoggedIn
	}
	expected, err := ParsePublicKey(auth.PublicKey)
	if err != nil {
		log.Warnf("skipping signature verification for %q: %v", auth.PublicKey, err)
		return nil
	}

	digest := packed.SigningDigest()
	recovered, err := RecoverPublicKey(sig, digest[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if !recovered.IsEqual(expected) {
		return ErrSignatureMismatch
	}
	return nil
}
