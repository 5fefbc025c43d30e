// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package sig_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/dpeckett/gopgpsdk/sig"
	"github.com/stretchr/testify/require"
)

func rsaKeyPairFixture(t *testing.T) (*packet.SecretKey, *packet.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub := algorithm.RSAPublicKey{N: key.N, E: big.NewInt(int64(key.E))}
	sk := &packet.SecretKey{
		PublicKey: packet.PublicKey{Version: 4, Algorithm: algorithm.PubKeyRSA, RSA: &pub},
		RSA:       &algorithm.RSAPrivateKey{Public: pub, D: key.D, P: key.Primes[0], Q: key.Primes[1]},
	}
	return sk, &sk.PublicKey
}

// writeInlineSigned composes a one-pass-signature + literal-data +
// trailing-signature message: w.PushOnePassSignature, then a
// length-prefixed literal-data layer with a hash tee installed over
// it, then the trailer written by signer.Finish.
func writeInlineSigned(t *testing.T, buf *bytes.Buffer, sk *packet.SecretKey, body []byte) {
	t.Helper()
	signer, err := sig.New(sk, algorithm.PubKeyRSA, algorithm.HashSHA256, packet.SigTypeBinary)
	require.NoError(t, err)

	w := packet.NewWriter(buf)
	require.NoError(t, signer.WriteOnePassSignature(w))

	w.PushLengthPrefixed(packet.TagLiteralData)
	require.NoError(t, w.PushLiteral(&packet.LiteralData{Format: packet.LiteralFormatBinary, ModTime: time.Unix(0, 0)}))
	signer.InstallHashTee(w)
	_, err = w.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Pop()) // hash tee
	require.NoError(t, w.Pop()) // literal-data framing

	require.NoError(t, signer.Finish(w))
}

func TestInlineSignVerifyRoundTrip(t *testing.T) {
	sk, pub := rsaKeyPairFixture(t)
	body := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	writeInlineSigned(t, &buf, sk, body)

	var verifier *sig.Verifier
	var gotBody []byte
	var trailer *packet.Signature

	err := packet.Parse(bytes.NewReader(buf.Bytes()), func(ev packet.Event) packet.Disposition {
		switch ev.Kind {
		case packet.EventPacketBody:
			switch b := ev.Body.(type) {
			case *packet.OnePassSignature:
				var verr error
				verifier, verr = sig.NewVerifier(b)
				require.NoError(t, verr)
			case *packet.Signature:
				trailer = b
			}
		case packet.EventDataChunk:
			gotBody = append(gotBody, ev.Chunk...)
			if verifier != nil {
				_, _ = verifier.Write(ev.Chunk)
			}
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.NotNil(t, verifier)
	require.NotNil(t, trailer)
	require.Equal(t, body, gotBody)

	require.NoError(t, verifier.Verify(trailer, pub))
}

func TestInlineVerifyRejectsTamperedBody(t *testing.T) {
	sk, pub := rsaKeyPairFixture(t)

	var buf bytes.Buffer
	writeInlineSigned(t, &buf, sk, []byte("original body"))

	tampered := bytes.Replace(buf.Bytes(), []byte("original"), []byte("tampered"), 1)

	var verifier *sig.Verifier
	var trailer *packet.Signature
	err := packet.Parse(bytes.NewReader(tampered), func(ev packet.Event) packet.Disposition {
		switch ev.Kind {
		case packet.EventPacketBody:
			switch b := ev.Body.(type) {
			case *packet.OnePassSignature:
				var verr error
				verifier, verr = sig.NewVerifier(b)
				require.NoError(t, verr)
			case *packet.Signature:
				trailer = b
			}
		case packet.EventDataChunk:
			if verifier != nil {
				_, _ = verifier.Write(ev.Chunk)
			}
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.Error(t, verifier.Verify(trailer, pub))
}
