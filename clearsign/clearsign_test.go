// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package clearsign_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/clearsign"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func rsaSecretKeyFixture(t *testing.T) *packet.SecretKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub := algorithm.RSAPublicKey{N: key.N, E: big.NewInt(int64(key.E))}
	return &packet.SecretKey{
		PublicKey: packet.PublicKey{Version: 4, Algorithm: algorithm.PubKeyRSA, RSA: &pub},
		RSA:       &algorithm.RSAPrivateKey{Public: pub, D: key.D, P: key.Primes[0], Q: key.Primes[1]},
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk := rsaSecretKeyFixture(t)

	sig := packet.NewSignature(packet.SigTypeText, algorithm.PubKeyRSA, algorithm.HashSHA256)
	sig.AddCreationTime(time.Unix(1700000000, 0))
	sig.AddIssuerKeyID(0x0102030405060708)
	sig.HashedSubpacketsEnd()

	msg := "line one  \nline two\n-dashed line\nlast line"

	var buf bytes.Buffer
	require.NoError(t, clearsign.Sign(&buf, bytes.NewReader([]byte(msg)), sig, sk))

	out := buf.String()
	require.Contains(t, out, "-----BEGIN PGP SIGNED MESSAGE-----")
	require.Contains(t, out, "Hash: SHA256")
	require.Contains(t, out, "- -dashed line")
	require.Contains(t, out, "-----BEGIN PGP SIGNATURE-----")

	h, parsed, err := clearsign.VerifyHash(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	pub := &packet.PublicKey{Algorithm: algorithm.PubKeyRSA, RSA: &sk.RSA.Public}
	require.NoError(t, parsed.Verify(h, pub))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	sk := rsaSecretKeyFixture(t)

	sig := packet.NewSignature(packet.SigTypeText, algorithm.PubKeyRSA, algorithm.HashSHA256)
	sig.AddCreationTime(time.Now())
	sig.HashedSubpacketsEnd()

	var buf bytes.Buffer
	require.NoError(t, clearsign.Sign(&buf, bytes.NewReader([]byte("original message")), sig, sk))

	tampered := bytes.Replace(buf.Bytes(), []byte("original"), []byte("corrupted"), 1)

	h, parsed, err := clearsign.VerifyHash(bytes.NewReader(tampered))
	require.NoError(t, err)

	pub := &packet.PublicKey{Algorithm: algorithm.PubKeyRSA, RSA: &sk.RSA.Public}
	require.Error(t, parsed.Verify(h, pub))
}
