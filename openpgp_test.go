// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package gopgpsdk_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"math/big"
	"testing"

	gopgpsdk "github.com/dpeckett/gopgpsdk"
	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/armor"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func rsaKeyPairFixture(t *testing.T) (*packet.SecretKey, *packet.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub := algorithm.RSAPublicKey{N: key.N, E: big.NewInt(int64(key.E))}
	pk := packet.PublicKey{Version: 4, Algorithm: algorithm.PubKeyRSA, RSA: &pub}
	sk := &packet.SecretKey{
		PublicKey: pk,
		RSA:       &algorithm.RSAPrivateKey{Public: pub, D: key.D, P: key.Primes[0], Q: key.Primes[1]},
	}
	return sk, &sk.PublicKey
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sk, pub := rsaKeyPairFixture(t)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	require.NoError(t, gopgpsdk.Encrypt(&buf, pub, algorithm.CipherAES256, bytes.NewReader(plaintext)))

	r, err := gopgpsdk.Decrypt(bytes.NewReader(buf.Bytes()), sk)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, plaintext, got)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, pub := rsaKeyPairFixture(t)
	plaintext := []byte("a message worth signing inline")

	var buf bytes.Buffer
	require.NoError(t, gopgpsdk.Sign(&buf, sk, algorithm.HashSHA256, bytes.NewReader(plaintext)))

	got, err := gopgpsdk.Verify(bytes.NewReader(buf.Bytes()), pub)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sk, pub := rsaKeyPairFixture(t)

	var buf bytes.Buffer
	require.NoError(t, gopgpsdk.Sign(&buf, sk, algorithm.HashSHA256, bytes.NewReader([]byte("original"))))

	tampered := bytes.Replace(buf.Bytes(), []byte("original"), []byte("corrupt!"), 1)

	_, err := gopgpsdk.Verify(bytes.NewReader(tampered), pub)
	require.Error(t, err)
}

func TestInfoArmoredLiteralPipeline(t *testing.T) {
	var buf bytes.Buffer
	info := gopgpsdk.NewInfo(&buf)
	require.NoError(t, info.PushArmor(armor.BlockMessage, nil))
	info.PushLengthPrefixed(packet.TagLiteralData)
	require.NoError(t, info.PushLiteral(&packet.LiteralData{Format: packet.LiteralFormatBinary}))
	_, err := info.Write([]byte("hello, pipeline"))
	require.NoError(t, err)
	require.NoError(t, info.Close())

	block, err := armor.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, armor.BlockMessage, block.Type)

	var body []byte
	err = packet.Parse(bytes.NewReader(block.Body), func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventDataChunk {
			body = append(body, ev.Chunk...)
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.Equal(t, "hello, pipeline", string(body))
}
