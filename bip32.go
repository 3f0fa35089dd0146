// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Hardened marks a hardened BIP-32 path component.
	Hardened uint32 = 0x80000000

	// DefaultBasePath is the Proton/EOS account path without its address index.
	DefaultBasePath = "44'/194'/0'/0"
)

// SplitPath converts a BIP-32 path such as "44'/194'/0'/0/5" into its
// components. Segments without a leading decimal number, like "m", are
// skipped rather than rejected.
func SplitPath(path string) []uint32 {
	var result []uint32
	for _, element := range strings.Split(path, "/") {
		number, ok := leadingNumber(element)
		if !ok {
			continue
		}
		if len(element) > 1 && strings.HasSuffix(element, "'") {
			number |= Hardened
		}
		result = append(result, number)
	}
	return result
}

// leadingNumber parses the decimal digits at the start of s.
func leadingNumber(s string) (uint32, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// AccountPath returns the derivation path of an address index under base.
func AccountPath(base string, index uint32) string {
	return fmt.Sprintf("%s/%d", strings.TrimSuffix(base, "/"), index)
}

// EncodePath flattens path components into [count][u32 BE]... as expected by
// the device.
func EncodePath(path []uint32) []byte {
	buf := make([]byte, pathHeaderSize(len(path)))
	buf[0] = byte(len(path))
	for i, component := range path {
		binary.BigEndian.PutUint32(buf[1+4*i:], component)
	}
	return buf
}

func pathHeaderSize(components int) int {
	return 1 + 4*components
}
