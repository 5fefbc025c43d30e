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
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/dpeckett/gopgpsdk/algorithm"
	"github.com/stretchr/testify/require"
)

func TestOCFBRoundTrip(t *testing.T) {
	for _, mdc := range []bool{false, true} {
		for _, c := range []algorithm.Cipher{
			algorithm.CipherAES128,
			algorithm.CipherAES256,
			algorithm.CipherCAST5,
			algorithm.CipherBlowfish,
			algorithm.CipherTwofish,
			algorithm.Cipher3DES,
		} {
			key := make([]byte, c.KeySize())
			_, err := rand.Read(key)
			require.NoError(t, err)

			plaintext := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to fill several blocks")

			enc, prefix, err := algorithm.NewOCFBEncrypter(c, key, rand.Reader, mdc)
			require.NoError(t, err, c.String())

			ciphertext := make([]byte, len(plaintext))
			enc.XORKeyStream(ciphertext, plaintext)

			dec, err := algorithm.NewOCFBDecrypter(c, key, prefix, mdc)
			require.NoError(t, err, c.String())

			got := make([]byte, len(ciphertext))
			dec.XORKeyStream(got, ciphertext)

			require.Equal(t, plaintext, got, "cipher=%s mdc=%v", c, mdc)
		}
	}
}

func TestOCFBRejectsWrongKey(t *testing.T) {
	key := make([]byte, algorithm.CipherAES128.KeySize())
	_, err := rand.Read(key)
	require.NoError(t, err)

	_, prefix, err := algorithm.NewOCFBEncrypter(algorithm.CipherAES128, key, rand.Reader, true)
	require.NoError(t, err)

	wrongKey := make([]byte, len(key))
	_, err = rand.Read(wrongKey)
	require.NoError(t, err)

	_, err = algorithm.NewOCFBDecrypter(algorithm.CipherAES128, wrongKey, prefix, true)
	require.Error(t, err)
}

func TestIDEAUnsupported(t *testing.T) {
	_, err := algorithm.CipherIDEA.NewBlockCipher(make([]byte, 16))
	require.Error(t, err)
}

func TestUnknownCipherSizesAreZero(t *testing.T) {
	var unknown algorithm.Cipher = 99
	require.Equal(t, 0, unknown.KeySize())
	require.Equal(t, 0, unknown.BlockSize())
	require.Equal(t, "unknown", unknown.String())
}

func TestOCFBPrefixLength(t *testing.T) {
	key := make([]byte, algorithm.CipherAES128.KeySize())
	_, prefix, err := algorithm.NewOCFBEncrypter(algorithm.CipherAES128, key, rand.Reader, false)
	require.NoError(t, err)
	require.Len(t, prefix, algorithm.CipherAES128.BlockSize()+2)
	require.False(t, bytes.Equal(prefix, make([]byte, len(prefix))))
}
