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
	"crypto/rand"
	"testing"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/dpeckett/gopgpsdk/s2k"
	"github.com/stretchr/testify/require"
)

func TestEncryptedKeyRSARoundTrip(t *testing.T) {
	sk := rsaSecretKeyFixture(t)

	sessionKey := make([]byte, algorithm.CipherAES256.KeySize())
	_, err := rand.Read(sessionKey)
	require.NoError(t, err)

	plaintext := append([]byte{byte(algorithm.CipherAES256)}, sessionKey...)
	var sum uint16
	for _, b := range sessionKey {
		sum += uint16(b)
	}
	plaintext = append(plaintext, byte(sum>>8), byte(sum))

	ct, err := algorithm.RSAEncrypt(*sk.PublicKey.RSA, plaintext)
	require.NoError(t, err)

	ek := &packet.EncryptedKey{Version: 3, KeyID: 0x1122334455667788, Algorithm: algorithm.PubKeyRSA, RSACiphertext: ct}
	require.NoError(t, ek.Decrypt(sk))
	require.Equal(t, algorithm.CipherAES256, ek.SessionKeyCipher)
	require.Equal(t, sessionKey, ek.SessionKey)
}

func TestSymmetricKeyEncryptedDirectSessionKey(t *testing.T) {
	params, err := s2k.GenerateSalted(byte(algorithm.HashSHA256), true, 65536)
	require.NoError(t, err)

	skesk := &packet.SymmetricKeyEncrypted{Version: 4, Cipher: algorithm.CipherAES128, S2K: params}
	cipherID, key, err := skesk.Decrypt([]byte("correct horse battery staple"))
	require.NoError(t, err)
	require.Equal(t, algorithm.CipherAES128, cipherID)
	require.Len(t, key, algorithm.CipherAES128.KeySize())
}
