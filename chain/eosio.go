// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package chain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	eos "github.com/eoscanada/eos-go"
)

const checksum256Size = 32

var (
	errUnknownFieldType = errors.New("unknown field type")
	errChecksumSize     = fmt.Errorf("checksum256 must be %d bytes", checksum256Size)
)

// EosCodec implements Codec with github.com/eoscanada/eos-go.
type EosCodec struct{}

var _ Codec = EosCodec{}

// DeserializeTransaction decodes a packed transaction. Action data is kept as
// raw bytes; no ABI is consulted.
func (EosCodec) DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx eos.Transaction
	if err := eos.UnmarshalBinary(data, &tx); err != nil {
		return nil, fmt.Errorf("deserialize transaction: %w", err)
	}

	return &Transaction{
		Expiration:         tx.Expiration.Time.UTC(),
		RefBlockNum:        tx.RefBlockNum,
		RefBlockPrefix:     tx.RefBlockPrefix,
		MaxNetUsageWords:   uint32(tx.MaxNetUsageWords),
		MaxCPUUsageMS:      tx.MaxCPUUsageMS,
		DelaySec:           uint32(tx.DelaySec),
		ContextFreeActions: fromEosActions(tx.ContextFreeActions),
		Actions:            fromEosActions(tx.Actions),
	}, nil
}

// SerializeTransaction packs tx into its wire form.
func (EosCodec) SerializeTransaction(tx *Transaction) ([]byte, error) {
	packed := &eos.Transaction{
		TransactionHeader: eos.TransactionHeader{
			Expiration:       eos.JSONTime{Time: tx.Expiration},
			RefBlockNum:      tx.RefBlockNum,
			RefBlockPrefix:   tx.RefBlockPrefix,
			MaxNetUsageWords: eos.Varuint32(tx.MaxNetUsageWords),
			MaxCPUUsageMS:    tx.MaxCPUUsageMS,
			DelaySec:         eos.Varuint32(tx.DelaySec),
		},
		ContextFreeActions: toEosActions(tx.ContextFreeActions),
		Actions:            toEosActions(tx.Actions),
	}
	return eos.MarshalBinary(packed)
}

// Serialize writes value as fieldType.
func (EosCodec) Serialize(fieldType FieldType, value any) ([]byte, error) {
	var encoded any
	switch fieldType {
	case TypeChecksum256:
		sum, err := checksum256(value)
		if err != nil {
			return nil, err
		}
		encoded = eos.Checksum256(sum)
	case TypeTimePointSec:
		secs, err := timePointSec(value)
		if err != nil {
			return nil, err
		}
		encoded = secs
	case TypeUint8:
		n, err := unsigned(value, 8)
		if err != nil {
			return nil, err
		}
		encoded = uint8(n)
	case TypeUint16:
		n, err := unsigned(value, 16)
		if err != nil {
			return nil, err
		}
		encoded = uint16(n)
	case TypeUint32:
		n, err := unsigned(value, 32)
		if err != nil {
			return nil, err
		}
		encoded = uint32(n)
	case TypeVaruint32:
		n, err := unsigned(value, 32)
		if err != nil {
			return nil, err
		}
		encoded = eos.Varuint32(n)
	case TypeName:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("name: unexpected %T", value)
		}
		n, err := eos.StringToName(s)
		if err != nil {
			return nil, fmt.Errorf("name %q: %w", s, err)
		}
		encoded = n
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownFieldType, fieldType)
	}

	var buf bytes.Buffer
	if err := eos.NewEncoder(&buf).Encode(encoded); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", fieldType, err)
	}
	return buf.Bytes(), nil
}

func fromEosActions(actions []*eos.Action) []Action {
	if len(actions) == 0 {
		return nil
	}
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		action := Action{
			Account: string(a.Account),
			Name:    string(a.Name),
			Data:    []byte(a.HexData),
		}
		for _, p := range a.Authorization {
			action.Authorization = append(action.Authorization, PermissionLevel{
				Actor:      string(p.Actor),
				Permission: string(p.Permission),
			})
		}
		out = append(out, action)
	}
	return out
}

func toEosActions(actions []Action) []*eos.Action {
	out := make([]*eos.Action, 0, len(actions))
	for _, a := range actions {
		action := &eos.Action{
			Account:    eos.AN(a.Account),
			Name:       eos.ActN(a.Name),
			ActionData: eos.ActionData{HexData: eos.HexBytes(a.Data)},
		}
		for _, p := range a.Authorization {
			action.Authorization = append(action.Authorization, eos.PermissionLevel{
				Actor:      eos.AN(p.Actor),
				Permission: eos.PN(p.Permission),
			})
		}
		out = append(out, action)
	}
	return out
}

func checksum256(value any) ([]byte, error) {
	var sum []byte
	switch v := value.(type) {
	case []byte:
		sum = v
	case string:
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("checksum256: %w", err)
		}
		sum = decoded
	default:
		return nil, fmt.Errorf("checksum256: unexpected %T", value)
	}
	if len(sum) != checksum256Size {
		return nil, errChecksumSize
	}
	return sum, nil
}

func timePointSec(value any) (uint32, error) {
	switch v := value.(type) {
	case time.Time:
		return uint32(v.Unix()), nil
	default:
		n, err := unsigned(value, 32)
		return uint32(n), err
	}
}

func unsigned(value any, bits int) (uint64, error) {
	var n uint64
	switch v := value.(type) {
	case uint8:
		n = uint64(v)
	case uint16:
		n = uint64(v)
	case uint32:
		n = uint64(v)
	case uint64:
		n = v
	case uint:
		n = uint64(v)
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		n = uint64(v)
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative value %d", v)
		}
		n = uint64(v)
	default:
		return 0, fmt.Errorf("uint%d: unexpected %T", bits, value)
	}
	if bits < 64 && n >= 1<<bits {
		return 0, fmt.Errorf("value %d overflows uint%d", n, bits)
	}
	return n, nil
}
