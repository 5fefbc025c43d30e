// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package algorithm

import (
	"crypto/rand"
	"math/big"

	"github.com/dpeckett/gopgpsdk/errors"
	"golang.org/x/crypto/openpgp/elgamal" //nolint:staticcheck // external primitive, no maintained replacement
)

// ElGamalPublicKey holds the raw MPI components of an OpenPGP ElGamal
// public key (RFC 4880 section 5.5.2).
type ElGamalPublicKey struct {
	P, G, Y *big.Int
}

func (k ElGamalPublicKey) key() *elgamal.PublicKey {
	return &elgamal.PublicKey{P: k.P, G: k.G, Y: k.Y}
}

// ElGamalPrivateKey holds the raw MPI components of an OpenPGP ElGamal
// secret key.
type ElGamalPrivateKey struct {
	Public ElGamalPublicKey
	X      *big.Int
}

func (k ElGamalPrivateKey) key() *elgamal.PrivateKey {
	return &elgamal.PrivateKey{PublicKey: *k.Public.key(), X: k.X}
}

// ElGamalEncrypt encrypts a session key for a Public-Key Encrypted
// Session Key packet, returning the (c1, c2) pair.
func ElGamalEncrypt(pub ElGamalPublicKey, sessionKey []byte) (c1, c2 *big.Int, err error) {
	c1, c2, err = elgamal.Encrypt(rand.Reader, pub.key(), sessionKey)
	if err != nil {
		return nil, nil, errors.WrapIO("elgamal: encrypt", err)
	}
	return c1, c2, nil
}

// ElGamalDecrypt is the inverse of ElGamalEncrypt.
func ElGamalDecrypt(priv ElGamalPrivateKey, c1, c2 *big.Int) ([]byte, error) {
	plaintext, err := elgamal.Decrypt(priv.key(), c1, c2)
	if err != nil {
		return nil, errors.WrapIO("elgamal: decrypt", err)
	}
	return plaintext, nil
}
