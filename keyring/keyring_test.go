// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package keyring_test

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/keyring"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func rsaPublicKeyFixture(t *testing.T, isSubkey bool, createdAt time.Time) *packet.PublicKey {
	t.Helper()
	n, err := rand.Prime(rand.Reader, 512)
	require.NoError(t, err)
	pk := &packet.PublicKey{
		Version:      4,
		CreationTime: createdAt,
		Algorithm:    algorithm.PubKeyRSA,
		IsSubkey:     isSubkey,
		RSA:          &algorithm.RSAPublicKey{N: n, E: big.NewInt(65537)},
	}
	return pk
}

func writeUserID(t *testing.T, w *packet.Writer, id string) {
	t.Helper()
	w.PushLengthPrefixed(packet.TagUserID)
	_, err := w.Write([]byte(id))
	require.NoError(t, err)
	require.NoError(t, w.Pop())
}

func writeSignature(t *testing.T, buf *bytes.Buffer, sigType packet.SignatureType) {
	t.Helper()
	sig := packet.NewSignature(sigType, algorithm.PubKeyRSA, algorithm.HashSHA256)
	sig.AddCreationTime(time.Now())
	sig.HashedSubpacketsEnd()
	sig.RSASignature = big.NewInt(12345)
	require.NoError(t, sig.Serialize(buf))
}

func TestReadGroupsKeyRecords(t *testing.T) {
	var buf bytes.Buffer

	primary := rsaPublicKeyFixture(t, false, time.Unix(1600000000, 0))
	require.NoError(t, primary.Serialize(&buf))

	w := packet.NewWriter(&buf)
	writeUserID(t, w, "Alice Example <alice@example.com>")
	writeSignature(t, &buf, packet.SigTypeGenericCert)

	subkey := rsaPublicKeyFixture(t, true, time.Unix(1600000001, 0))
	require.NoError(t, subkey.Serialize(&buf))
	writeSignature(t, &buf, packet.SigTypeSubkeyBinding)

	second := rsaPublicKeyFixture(t, false, time.Unix(1600000002, 0))
	require.NoError(t, second.Serialize(&buf))
	writeUserID(t, w, "Bob Example <bob@example.com>")

	kr, err := keyring.Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, kr.Records, 2)

	rec := kr.Records[0]
	require.Len(t, rec.Identities, 1)
	require.Equal(t, "Alice Example <alice@example.com>", rec.Identities[0].UserID.ID)
	require.Len(t, rec.Identities[0].Signatures, 1)
	require.Equal(t, packet.SigTypeGenericCert, rec.Identities[0].Signatures[0].Type)
	require.Len(t, rec.Subkeys, 1)
	require.Len(t, rec.Subkeys[0].Signatures, 1)
	require.Equal(t, packet.SigTypeSubkeyBinding, rec.Subkeys[0].Signatures[0].Type)

	found, err := kr.FindByUserID("Bob")
	require.NoError(t, err)
	require.Same(t, kr.Records[1], found)

	found, err = kr.FindByUserID("Alice")
	require.NoError(t, err)
	require.Same(t, kr.Records[0], found)

	_, err = kr.FindByUserID("nobody")
	require.Error(t, err)
}
