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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/dpeckett/gopgpsdk/errors"
)

// RSAPublicKey holds the raw MPI components of an OpenPGP RSA public key.
type RSAPublicKey struct {
	N *big.Int
	E *big.Int
}

// Key returns the stdlib key these components describe.
func (k RSAPublicKey) Key() *rsa.PublicKey {
	return &rsa.PublicKey{N: k.N, E: int(k.E.Int64())}
}

// RSAPrivateKey holds the raw MPI components of an OpenPGP RSA secret key.
// RFC 4880 stores D, P, Q and the precomputed Iqmp (u); primes are stored
// smaller-first on the wire, the opposite of crypto/rsa's convention.
type RSAPrivateKey struct {
	Public RSAPublicKey
	D      *big.Int
	P, Q   *big.Int
	Iqmp   *big.Int
}

// Key returns a fully precomputed stdlib key.
func (k RSAPrivateKey) Key() *rsa.PrivateKey {
	priv := &rsa.PrivateKey{
		PublicKey: *k.Public.Key(),
		D:         k.D,
		Primes:    []*big.Int{k.P, k.Q},
	}
	priv.Precompute()
	return priv
}

// RSAEncrypt implements PKCS#1 v1.5 encryption of a session key, as used
// by Public-Key Encrypted Session Key packets (RFC 4880 section 5.1).
func RSAEncrypt(pub RSAPublicKey, sessionKey []byte) (*big.Int, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub.Key(), sessionKey)
	if err != nil {
		return nil, errors.WrapIO("rsa: encrypt", err)
	}
	return new(big.Int).SetBytes(ciphertext), nil
}

// RSADecrypt is the inverse of RSAEncrypt.
func RSADecrypt(priv RSAPrivateKey, c *big.Int) ([]byte, error) {
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv.Key(), c.Bytes())
	if err != nil {
		return nil, errors.WrapIO("rsa: decrypt", err)
	}
	return plaintext, nil
}

// RSASign signs a pre-hashed digest per RFC 4880 section 5.2.2.
func RSASign(priv RSAPrivateKey, h Hash, digest []byte) (*big.Int, error) {
	hashID, ok := rsaHashToCrypto[h]
	if !ok {
		return nil, errors.UnsupportedError("rsa: hash algorithm")
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv.Key(), hashID, digest)
	if err != nil {
		return nil, errors.WrapIO("rsa: sign", err)
	}
	return new(big.Int).SetBytes(sig), nil
}

// RSAVerify checks a signature produced by RSASign.
func RSAVerify(pub RSAPublicKey, h Hash, digest []byte, sig *big.Int) error {
	hashID, ok := rsaHashToCrypto[h]
	if !ok {
		return errors.UnsupportedError("rsa: hash algorithm")
	}
	k := pub.Key().Size()
	if (sig.BitLen()+7)/8 > k {
		return errors.SignatureError("rsa: signature verification failed")
	}
	if err := rsa.VerifyPKCS1v15(pub.Key(), hashID, digest, sig.FillBytes(make([]byte, k))); err != nil {
		return errors.SignatureError("rsa: signature verification failed")
	}
	return nil
}

var rsaHashToCrypto = map[Hash]crypto.Hash{
	HashMD5:       crypto.MD5,
	HashSHA1:      crypto.SHA1,
	HashRIPEMD160: crypto.RIPEMD160,
	HashSHA256:    crypto.SHA256,
	HashSHA384:    crypto.SHA384,
	HashSHA512:    crypto.SHA512,
	HashSHA224:    crypto.SHA224,
}
