// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package algorithm_test

import (
	"crypto/dsa" //nolint:staticcheck // legacy fixture generation only
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/stretchr/testify/require"
)

func TestRSASignAndEncryptRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub := algorithm.RSAPublicKey{N: key.N, E: big.NewInt(int64(key.E))}
	priv := algorithm.RSAPrivateKey{
		Public: pub,
		D:      key.D,
		P:      key.Primes[0],
		Q:      key.Primes[1],
	}

	digest := make([]byte, 32)
	_, err = rand.Read(digest)
	require.NoError(t, err)

	sig, err := algorithm.RSASign(priv, algorithm.HashSHA256, digest)
	require.NoError(t, err)
	require.NoError(t, algorithm.RSAVerify(pub, algorithm.HashSHA256, digest, sig))

	tampered := append([]byte(nil), digest...)
	tampered[0] ^= 0xff
	require.Error(t, algorithm.RSAVerify(pub, algorithm.HashSHA256, tampered, sig))

	sessionKey := []byte("0123456789abcdef0123456789abcdef0123456789abcdef")
	ct, err := algorithm.RSAEncrypt(pub, sessionKey)
	require.NoError(t, err)
	pt, err := algorithm.RSADecrypt(priv, ct)
	require.NoError(t, err)
	require.Equal(t, sessionKey, pt)
}

func TestDSASignRoundTrip(t *testing.T) {
	var params dsa.Parameters
	require.NoError(t, dsa.GenerateParameters(&params, rand.Reader, dsa.L1024N160))

	var key dsa.PrivateKey
	key.Parameters = params
	require.NoError(t, dsa.GenerateKey(&key, rand.Reader))

	pub := algorithm.DSAPublicKey{P: params.P, Q: params.Q, G: params.G, Y: key.Y}
	priv := algorithm.DSAPrivateKey{Public: pub, X: key.X}

	digest := make([]byte, 20)
	_, err := rand.Read(digest)
	require.NoError(t, err)

	r, s, err := algorithm.DSASign(priv, digest)
	require.NoError(t, err)
	require.NoError(t, algorithm.DSAVerify(pub, digest, r, s))
}
