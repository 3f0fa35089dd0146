// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

// Package chain holds the transaction model handed to the Ledger EOS app and
// the chain codec used to read it from, and write its fields to, the EOSIO
// wire format.
package chain

import "time"

// FieldType names an EOSIO built-in type understood by a Serializer.
type FieldType string

const (
	TypeChecksum256  FieldType = "checksum256"
	TypeTimePointSec FieldType = "time_point_sec"
	TypeUint8        FieldType = "uint8"
	TypeUint16       FieldType = "uint16"
	TypeUint32       FieldType = "uint32"
	TypeVaruint32    FieldType = "varuint32"
	TypeName         FieldType = "name"
)

// PermissionLevel is an actor@permission authorization.
type PermissionLevel struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

// Action is a contract call with its ABI-encoded data left opaque.
type Action struct {
	Account       string            `json:"account"`
	Name          string            `json:"name"`
	Authorization []PermissionLevel `json:"authorization"`
	Data          []byte            `json:"data"`
}

// Transaction is a decoded, unsigned transaction.
type Transaction struct {
	Expiration         time.Time `json:"expiration"`
	RefBlockNum        uint16    `json:"ref_block_num"`
	RefBlockPrefix     uint32    `json:"ref_block_prefix"`
	MaxNetUsageWords   uint32    `json:"max_net_usage_words"`
	MaxCPUUsageMS      uint8     `json:"max_cpu_usage_ms"`
	DelaySec           uint32    `json:"delay_sec"`
	ContextFreeActions []Action  `json:"context_free_actions"`
	Actions            []Action  `json:"actions"`
}

// Decoder reads a transaction from its serialized wire form.
type Decoder interface {
	DeserializeTransaction(data []byte) (*Transaction, error)
}

// Serializer writes a single typed field in the chain's wire format.
type Serializer interface {
	Serialize(fieldType FieldType, value any) ([]byte, error)
}

// Codec is the chain capability needed to sign with a Ledger.
type Codec interface {
	Decoder
	Serializer
}
