// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"cmp"
	"slices"
	"sync"
)

// KeyEntry maps an address index to the key the device derived for it.
type KeyEntry struct {
	Index uint32 `json:"index"`
	Key   string `json:"key"`
}

// WalletAuth is the identity registered by Login.
type WalletAuth struct {
	AccountName string `json:"accountName"`
	Permission  string `json:"permission"`
	PublicKey   string `json:"publicKey"`
}

// Session tracks the keys discovered on the device and the index selected for
// signing. Entries are added once per index and never replaced.
type Session struct {
	mu       sync.Mutex
	keys     map[uint32]string
	selected *uint32
	auth     *WalletAuth
}

func NewSession() *Session {
	return &Session{keys: make(map[uint32]string)}
}

// Missing returns the indices, deduplicated and in request order, that have no
// key yet.
func (s *Session) Missing(indices []uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []uint32
	for _, index := range indices {
		if _, ok := s.keys[index]; ok || slices.Contains(missing, index) {
			continue
		}
		missing = append(missing, index)
	}
	return missing
}

// Merge adds entries for unknown indices. Known indices keep their key.
func (s *Session) Merge(entries []KeyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if _, ok := s.keys[entry.Index]; !ok {
			s.keys[entry.Index] = entry.Key
		}
	}
}

// Key returns the key known for index.
func (s *Session) Key(index uint32) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[index]
	return key, ok
}

// Keys returns every known entry ordered by index.
func (s *Session) Keys() []KeyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]KeyEntry, 0, len(s.keys))
	for index, key := range s.keys {
		entries = append(entries, KeyEntry{Index: index, Key: key})
	}
	slices.SortFunc(entries, func(a, b KeyEntry) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return entries
}

// Login records auth and selects index for signing. The key map is left
// untouched.
func (s *Session) Login(auth WalletAuth, index uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auth = &auth
	s.selected = &index
}

// Selected returns the index chosen at login.
func (s *Session) Selected() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return 0, false
	}
	return *s.selected, true
}

// Auth returns the identity registered at login.
func (s *Session) Auth() (WalletAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auth == nil {
		return WalletAuth{}, false
	}
	return *s.auth, true
}

// AvailableKeys lists the discovered keys followed by the logged in key when it
// was not discovered.
func (s *Session) AvailableKeys() []string {
	entries := s.Keys()
	keys := make([]string, 0, len(entries)+1)
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	if auth, ok := s.Auth(); ok && !slices.Contains(keys, auth.PublicKey) {
		keys = append(keys, auth.PublicKey)
	}
	return keys
}
