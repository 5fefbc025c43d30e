// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package s2k_test

import (
	"bytes"
	"crypto/sha256"
	"hash"
	"testing"

	"github.com/dpeckett/gopgpsdk/s2k"
	"github.com/stretchr/testify/require"
)

func sha256HashFunc(id byte) (func() hash.Hash, bool) {
	if id != 8 {
		return nil, false
	}
	return sha256.New, true
}

func TestCountRoundTrip(t *testing.T) {
	for _, count := range []int{1024, 65536, 1 << 20, 65011712} {
		encoded := s2k.EncodeCount(count)
		decoded := s2k.DecodeCount(encoded)
		require.GreaterOrEqual(t, decoded, count)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	p, err := s2k.GenerateSalted(8, true, 65536)
	require.NoError(t, err)

	wire := p.Serialize(nil)
	parsed, err := s2k.Parse(bytes.NewReader(wire))
	require.NoError(t, err)
	require.Equal(t, p.Mode, parsed.Mode)
	require.Equal(t, p.HashID, parsed.HashID)
	require.Equal(t, p.Salt, parsed.Salt)
	require.Equal(t, p.CountByte, parsed.CountByte)
}

func TestKeyIsDeterministic(t *testing.T) {
	p := &s2k.Params{Mode: s2k.IteratedSalted, HashID: 8, Salt: []byte("01234567"), CountByte: s2k.EncodeCount(1024)}
	var k1, k2 [32]byte
	require.NoError(t, p.Key([]byte("hunter2"), k1[:], sha256HashFunc))
	require.NoError(t, p.Key([]byte("hunter2"), k2[:], sha256HashFunc))
	require.Equal(t, k1, k2)

	var k3 [32]byte
	require.NoError(t, p.Key([]byte("different"), k3[:], sha256HashFunc))
	require.NotEqual(t, k1, k3)
}

func TestArgon2RoundTrip(t *testing.T) {
	p, err := s2k.GenerateArgon2(1, 1, 16)
	require.NoError(t, err)
	wire := p.Serialize(nil)
	parsed, err := s2k.Parse(bytes.NewReader(wire))
	require.NoError(t, err)
	require.Equal(t, s2k.Argon2Mode, parsed.Mode)

	var key [32]byte
	require.NoError(t, parsed.Key([]byte("pw"), key[:], nil))
	require.NotEqual(t, make([]byte, 32), key[:])
}

func TestUnsupportedHash(t *testing.T) {
	p := &s2k.Params{Mode: s2k.Simple, HashID: 200}
	var out [16]byte
	err := p.Key([]byte("x"), out[:], sha256HashFunc)
	require.Error(t, err)
}
