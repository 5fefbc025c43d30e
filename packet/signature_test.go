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
	"crypto/dsa" //nolint:staticcheck // legacy fixture generation only
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"
	"testing"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func rsaSecretKeyFixture(t *testing.T) *packet.SecretKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub := algorithm.RSAPublicKey{N: key.N, E: big.NewInt(int64(key.E))}
	return &packet.SecretKey{
		PublicKey: packet.PublicKey{
			Version:   4,
			Algorithm: algorithm.PubKeyRSA,
			RSA:       &pub,
		},
		RSA: &algorithm.RSAPrivateKey{Public: pub, D: key.D, P: key.Primes[0], Q: key.Primes[1]},
	}
}

func TestSignatureRSARoundTrip(t *testing.T) {
	sk := rsaSecretKeyFixture(t)

	sig := packet.NewSignature(packet.SigTypeBinary, algorithm.PubKeyRSA, algorithm.HashSHA256)
	sig.AddCreationTime(time.Unix(1700000000, 0))
	sig.AddIssuerKeyID(0x0102030405060708)
	sig.HashedSubpacketsEnd()

	h := sha256.New()
	h.Write([]byte("the quick brown fox"))
	require.NoError(t, sig.Sign(h, sk))

	var buf bytes.Buffer
	require.NoError(t, sig.Serialize(&buf))

	var parsed packet.Signature
	require.NoError(t, readSignaturePacket(t, buf.Bytes(), &parsed))

	pub := &packet.PublicKey{Algorithm: algorithm.PubKeyRSA, RSA: &sk.RSA.Public}

	vh := sha256.New()
	vh.Write([]byte("the quick brown fox"))
	require.NoError(t, parsed.Verify(vh, pub))

	vh2 := sha256.New()
	vh2.Write([]byte("the quick brown FOX"))
	require.Error(t, parsed.Verify(vh2, pub))
}

func TestSignatureDSARoundTrip(t *testing.T) {
	var params dsa.Parameters
	require.NoError(t, dsa.GenerateParameters(&params, rand.Reader, dsa.L1024N160))

	var key dsa.PrivateKey
	key.Parameters = params
	require.NoError(t, dsa.GenerateKey(&key, rand.Reader))

	pub := algorithm.DSAPublicKey{P: params.P, Q: params.Q, G: params.G, Y: key.Y}
	sk := &packet.SecretKey{
		PublicKey: packet.PublicKey{Version: 4, Algorithm: algorithm.PubKeyDSA, DSA: &pub},
		DSA:       &algorithm.DSAPrivateKey{Public: pub, X: key.X},
	}

	sig := packet.NewSignature(packet.SigTypeBinary, algorithm.PubKeyDSA, algorithm.HashSHA256)
	sig.AddCreationTime(time.Now())
	sig.HashedSubpacketsEnd()

	h := sha256.New()
	h.Write([]byte("dsa signed content"))
	require.NoError(t, sig.Sign(h, sk))

	var buf bytes.Buffer
	require.NoError(t, sig.Serialize(&buf))

	var parsed packet.Signature
	require.NoError(t, readSignaturePacket(t, buf.Bytes(), &parsed))

	pk := &packet.PublicKey{Algorithm: algorithm.PubKeyDSA, DSA: &pub}
	vh := sha256.New()
	vh.Write([]byte("dsa signed content"))
	require.NoError(t, parsed.Verify(vh, pk))
}

// readSignaturePacket parses a single serialized signature packet back
// out via packet.Parse, handing the result to out.
func readSignaturePacket(t *testing.T, data []byte, out *packet.Signature) error {
	t.Helper()
	var found *packet.Signature
	err := packet.Parse(bytes.NewReader(data), func(ev packet.Event) packet.Disposition {
		if ev.Kind == packet.EventPacketBody {
			if sig, ok := ev.Body.(*packet.Signature); ok {
				found = sig
			}
		}
		return packet.Continue
	})
	if err != nil {
		return err
	}
	if found != nil {
		*out = *found
	}
	return nil
}
