// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/luxfi/ledger-eos-go/chain"
)

// contextFreeDataHash is sent in place of the context free data digest. The
// app only signs transactions without context free data.
var contextFreeDataHash = make([]byte, 32)

// PackedTransaction is a transaction laid out the way the EOS app parses it:
// a sequence of self-delimited OCTET STRING elements.
type PackedTransaction struct {
	fields [][]byte
}

// Fields returns the element values in wire order.
func (p *PackedTransaction) Fields() [][]byte {
	return p.fields
}

// Encode returns the BER encoding of every element, back to back.
func (p *PackedTransaction) Encode() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	for _, field := range p.fields {
		b.AddASN1OctetString(field)
	}
	return b.Bytes()
}

// SigningDigest is the sha256 the device signs: the concatenation of all
// element values.
func (p *PackedTransaction) SigningDigest() [sha256.Size]byte {
	h := sha256.New()
	for _, field := range p.fields {
		h.Write(field)
	}
	var digest [sha256.Size]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// packer accumulates fields and keeps the first serialization error.
type packer struct {
	serializer chain.Serializer
	fields     [][]byte
	err        error
}

func (p *packer) add(fieldType chain.FieldType, value any) {
	if p.err != nil {
		return
	}
	field, err := p.serializer.Serialize(fieldType, value)
	if err != nil {
		p.err = fmt.Errorf("pack %s: %w", fieldType, err)
		return
	}
	p.fields = append(p.fields, field)
}

func (p *packer) addRaw(raw []byte) {
	if p.err != nil {
		return
	}
	p.fields = append(p.fields, raw)
}

// PackTransaction lays tx out for signing on chainID. max_net_usage_words,
// the context free action count and the extension count are always zero.
func PackTransaction(chainID []byte, tx *chain.Transaction, serializer chain.Serializer) (*PackedTransaction, error) {
	p := &packer{serializer: serializer}

	p.add(chain.TypeChecksum256, chainID)
	p.add(chain.TypeTimePointSec, tx.Expiration)
	p.add(chain.TypeUint16, tx.RefBlockNum)
	p.add(chain.TypeUint32, tx.RefBlockPrefix)
	p.add(chain.TypeVaruint32, uint32(0)) // max_net_usage_words
	p.add(chain.TypeUint8, tx.MaxCPUUsageMS)
	p.add(chain.TypeVaruint32, tx.DelaySec)

	p.add(chain.TypeUint8, uint8(0)) // context free actions

	p.add(chain.TypeUint8, len(tx.Actions))
	for _, action := range tx.Actions {
		p.add(chain.TypeName, action.Account)
		p.add(chain.TypeName, action.Name)
		p.add(chain.TypeUint8, len(action.Authorization))
		for _, auth := range action.Authorization {
			p.add(chain.TypeName, auth.Actor)
			p.add(chain.TypeName, auth.Permission)
		}
		p.add(chain.TypeVaruint32, len(action.Data))
		p.addRaw(action.Data)
	}

	p.add(chain.TypeUint8, uint8(0)) // transaction extensions
	p.add(chain.TypeChecksum256, contextFreeDataHash)

	if p.err != nil {
		return nil, p.err
	}
	return &PackedTransaction{fields: p.fields}, nil
}
