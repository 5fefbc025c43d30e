// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package algorithm

// PublicKeyAlgorithm identifies a public-key algorithm by its RFC 4880
// section 9.1 ID.
type PublicKeyAlgorithm byte

const (
	PubKeyRSA            PublicKeyAlgorithm = 1
	PubKeyRSAEncryptOnly PublicKeyAlgorithm = 2
	PubKeyRSASignOnly    PublicKeyAlgorithm = 3
	PubKeyElGamal        PublicKeyAlgorithm = 16
	PubKeyDSA            PublicKeyAlgorithm = 17
	PubKeyECDH           PublicKeyAlgorithm = 18
	PubKeyECDSA          PublicKeyAlgorithm = 19
	PubKeyEdDSA          PublicKeyAlgorithm = 22
)

var pubKeyNames = map[PublicKeyAlgorithm]string{
	PubKeyRSA:            "RSA",
	PubKeyRSAEncryptOnly: "RSA (encrypt only)",
	PubKeyRSASignOnly:    "RSA (sign only)",
	PubKeyElGamal:        "ElGamal",
	PubKeyDSA:            "DSA",
	PubKeyECDH:           "ECDH",
	PubKeyECDSA:          "ECDSA",
	PubKeyEdDSA:          "EdDSA",
}

func (a PublicKeyAlgorithm) String() string {
	if name, ok := pubKeyNames[a]; ok {
		return name
	}
	return "unknown"
}

// CanEncrypt reports whether a is usable for encryption of session keys.
func (a PublicKeyAlgorithm) CanEncrypt() bool {
	switch a {
	case PubKeyRSA, PubKeyRSAEncryptOnly, PubKeyElGamal, PubKeyECDH:
		return true
	default:
		return false
	}
}

// CanSign reports whether a is usable for signing.
func (a PublicKeyAlgorithm) CanSign() bool {
	switch a {
	case PubKeyRSA, PubKeyRSASignOnly, PubKeyDSA, PubKeyECDSA, PubKeyEdDSA:
		return true
	default:
		return false
	}
}
