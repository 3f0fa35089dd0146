// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

const (
	legacyKeyPrefix    = "EOS"
	k1KeyPrefix        = "PUB_K1_"
	k1SignaturePrefix  = "SIG_K1_"
	k1Suffix           = "K1"
	checksumSize       = 4
	compactSigSize     = 65
	compressedKeySize  = 33
	compactRecoveryMin = 27
)

var (
	errKeyFormat     = errors.New("unrecognized public key format")
	errKeyChecksum   = errors.New("public key checksum mismatch")
	errSignatureSize = fmt.Errorf("signature must be %d bytes", compactSigSize)
	errRecoveryParam = errors.New("invalid signature recovery parameter")
)

func keyChecksum(data []byte, suffix string) []byte {
	h := ripemd160.New() //nolint:gosec
	h.Write(data)
	h.Write([]byte(suffix))
	return h.Sum(nil)[:checksumSize]
}

// FormatPublicKey renders a compressed secp256k1 key in the legacy "EOS..."
// form.
func FormatPublicKey(compressed []byte) string {
	return legacyKeyPrefix + base58.Encode(append(bytes.Clone(compressed), keyChecksum(compressed, "")...))
}

// ParsePublicKey accepts both "EOS..." and "PUB_K1_..." keys.
func ParsePublicKey(key string) (*secp256k1.PublicKey, error) {
	var encoded, suffix string
	switch {
	case strings.HasPrefix(key, k1KeyPrefix):
		encoded, suffix = strings.TrimPrefix(key, k1KeyPrefix), k1Suffix
	case strings.HasPrefix(key, legacyKeyPrefix):
		encoded = strings.TrimPrefix(key, legacyKeyPrefix)
	default:
		return nil, fmt.Errorf("%w: %q", errKeyFormat, key)
	}

	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errKeyFormat, err)
	}
	if len(raw) != compressedKeySize+checksumSize {
		return nil, fmt.Errorf("%w: %d bytes", errKeyFormat, len(raw))
	}
	data, checksum := raw[:compressedKeySize], raw[compressedKeySize:]
	if !bytes.Equal(checksum, keyChecksum(data, suffix)) {
		return nil, errKeyChecksum
	}
	return secp256k1.ParsePubKey(data)
}

// NormalizeSignature returns a copy of a 65 byte [v|r|s] signature with its
// recovery byte moved into the compressed key range (31..34).
func NormalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) != compactSigSize {
		return nil, errSignatureSize
	}
	if sig[0] < compactRecoveryMin {
		return nil, errRecoveryParam
	}
	recovery := sig[0] - compactRecoveryMin
	if recovery > 3 {
		recovery -= 4
	}
	if recovery > 3 {
		return nil, errRecoveryParam
	}

	normalized := bytes.Clone(sig)
	normalized[0] = recovery + compactRecoveryMin + 4
	return normalized, nil
}

// FormatSignature renders a device signature as "SIG_K1_...".
func FormatSignature(sig []byte) (string, error) {
	normalized, err := NormalizeSignature(sig)
	if err != nil {
		return "", err
	}
	return k1SignaturePrefix + base58.Encode(append(normalized, keyChecksum(normalized, k1Suffix)...)), nil
}

// RecoverPublicKey returns the key that produced sig over digest.
func RecoverPublicKey(sig, digest []byte) (*secp256k1.PublicKey, error) {
	normalized, err := NormalizeSignature(sig)
	if err != nil {
		return nil, err
	}
	pub, _, err := ecdsa.RecoverCompact(normalized, digest)
	return pub, err
}
