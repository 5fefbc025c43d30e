// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package packet_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func TestSEIPEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, algorithm.CipherAES256.KeySize())
	_, err := rand.Read(key)
	require.NoError(t, err)

	const plaintext = "the quick brown fox jumps over the lazy dog"

	var buf bytes.Buffer
	w := packet.NewWriter(&buf)
	w.PushLengthPrefixed(packet.TagSymmetricEncryptedMDC)
	require.NoError(t, w.PushEncryptSEIP(algorithm.CipherAES256, key))
	_, err = w.Write([]byte(plaintext))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var se *packet.SymmetricallyEncrypted
	err = packet.Parse(bytes.NewReader(buf.Bytes()), func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventPacketBody {
			if body, ok := ev.Body.(*packet.SymmetricallyEncrypted); ok {
				se = body
				return packet.Finish
			}
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.NotNil(t, se)
	require.True(t, se.MDC)

	plain, err := se.Decrypt(algorithm.CipherAES256, key)
	require.NoError(t, err)
	got, err := io.ReadAll(plain)
	require.NoError(t, err)
	require.NoError(t, plain.Close())
	require.Equal(t, plaintext, string(got))
}

func TestSEIPDecryptDetectsTampering(t *testing.T) {
	key := make([]byte, algorithm.CipherAES128.KeySize())
	_, err := rand.Read(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := packet.NewWriter(&buf)
	w.PushLengthPrefixed(packet.TagSymmetricEncryptedMDC)
	require.NoError(t, w.PushEncryptSEIP(algorithm.CipherAES128, key))
	_, err = w.Write([]byte("sensitive message"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	tampered := buf.Bytes()
	tampered[len(tampered)-1] ^= 0xff

	var se *packet.SymmetricallyEncrypted
	err = packet.Parse(bytes.NewReader(tampered), func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventPacketBody {
			if body, ok := ev.Body.(*packet.SymmetricallyEncrypted); ok {
				se = body
				return packet.Finish
			}
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.NotNil(t, se)

	plain, err := se.Decrypt(algorithm.CipherAES128, key)
	require.NoError(t, err)
	_, _ = io.ReadAll(plain)
	require.Error(t, plain.Close())
}
