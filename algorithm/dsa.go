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
	"crypto/dsa" //nolint:staticcheck // required for legacy OpenPGP DSA keys
	"crypto/rand"
	"math/big"

	"github.com/dpeckett/gopgpsdk/errors"
)

// DSAPublicKey holds the raw MPI components of an OpenPGP DSA public key.
type DSAPublicKey struct {
	P, Q, G *big.Int
	Y       *big.Int
}

func (k DSAPublicKey) key() *dsa.PublicKey {
	return &dsa.PublicKey{
		Parameters: dsa.Parameters{P: k.P, Q: k.Q, G: k.G},
		Y:          k.Y,
	}
}

// DSAPrivateKey holds the raw MPI components of an OpenPGP DSA secret key.
type DSAPrivateKey struct {
	Public DSAPublicKey
	X      *big.Int
}

func (k DSAPrivateKey) key() *dsa.PrivateKey {
	return &dsa.PrivateKey{PublicKey: *k.Public.key(), X: k.X}
}

// DSASign signs digest, truncated to the subgroup order's bit length per
// RFC 4880 section 5.2.2, returning the (r, s) pair.
func DSASign(priv DSAPrivateKey, digest []byte) (r, s *big.Int, err error) {
	digest = truncateToGroupOrder(digest, priv.Public.Q)
	r, s, err = dsa.Sign(rand.Reader, priv.key(), digest)
	if err != nil {
		return nil, nil, errors.WrapIO("dsa: sign", err)
	}
	return r, s, nil
}

// DSAVerify checks a signature produced by DSASign.
func DSAVerify(pub DSAPublicKey, digest []byte, r, s *big.Int) error {
	digest = truncateToGroupOrder(digest, pub.Q)
	if !dsa.Verify(pub.key(), digest, r, s) {
		return errors.SignatureError("dsa: signature verification failed")
	}
	return nil
}

// truncateToGroupOrder implements RFC 4880 section 5.2.2's rule that
// only Q's bit length worth of leading digest bits participate in a
// DSA signature.
func truncateToGroupOrder(digest []byte, q *big.Int) []byte {
	qBits := q.BitLen()
	if len(digest) > (qBits+7)/8 {
		digest = digest[:(qBits+7)/8]
	}
	return digest
}
