// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Records are accumulated by reading the packet stream to EOF and
 * regrouping it at packet-tag boundaries: a new primary public or
 * secret key packet starts a new record, and subkey packets attach to
 * the current one, per RFC 4880 section 11.1's transferable key
 * packet sequence.
 */

// Package keyring groups a flat stream of OpenPGP packets into key
// records: a primary key bundled with its subkeys, user IDs, user
// attributes and certifying signatures, per RFC 4880 section 11.1's
// transferable key format.
package keyring

import (
	"io"
	"strings"

	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/dpeckett/gopgpsdk/packet"
)

// Subkey bundles a subkey with the signatures that bind it to the
// primary key (most commonly a single 0x18 Subkey Binding Signature).
type Subkey struct {
	Key        *packet.PublicKey
	Signatures []*packet.Signature
}

// Identity bundles a user ID or user attribute with its self- and
// third-party certifications.
type Identity struct {
	UserID        *packet.UserID
	UserAttribute *packet.UserAttribute
	Signatures    []*packet.Signature
}

// KeyRecord is a primary key packet together with everything that
// follows it up to (but not including) the next primary key packet in
// the stream: subkeys, identities and any signatures not otherwise
// attributed (e.g. a standalone Direct Key or Key Revocation
// signature).
type KeyRecord struct {
	Primary    *packet.PublicKey
	Secret     *packet.SecretKey // non-nil if this record came from a secret keyring
	Identities []*Identity
	Subkeys    []*Subkey
	Signatures []*packet.Signature
}

// Keyring is an ordered sequence of key records, matching the order
// they appeared in the source stream.
type Keyring struct {
	Records []*KeyRecord
}

// Read parses r as a sequence of transferable public or secret keys,
// grouping packets into KeyRecords by primary-key boundaries.
func Read(r io.Reader) (*Keyring, error) {
	kr := &Keyring{}
	var cur *KeyRecord
	var curIdentity *Identity
	var lastSubkey *Subkey

	attach := func(sig *packet.Signature) {
		switch {
		case curIdentity != nil:
			curIdentity.Signatures = append(curIdentity.Signatures, sig)
		case lastSubkey != nil:
			lastSubkey.Signatures = append(lastSubkey.Signatures, sig)
		case cur != nil:
			cur.Signatures = append(cur.Signatures, sig)
		}
	}

	err := packet.Parse(r, func(ev packet.Event) packet.Disposition {
		if ev.Kind != packet.EventPacketBody {
			return packet.Continue
		}
		switch body := ev.Body.(type) {
		case *packet.PublicKey:
			if body.IsSubkey {
				lastSubkey = &Subkey{Key: body}
				curIdentity = nil
				if cur != nil {
					cur.Subkeys = append(cur.Subkeys, lastSubkey)
				}
				return packet.Continue
			}
			cur = &KeyRecord{Primary: body}
			curIdentity = nil
			lastSubkey = nil
			kr.Records = append(kr.Records, cur)

		case *packet.SecretKey:
			if body.IsSubkey {
				lastSubkey = &Subkey{Key: &body.PublicKey}
				curIdentity = nil
				if cur != nil {
					cur.Subkeys = append(cur.Subkeys, lastSubkey)
				}
				return packet.Continue
			}
			cur = &KeyRecord{Primary: &body.PublicKey, Secret: body}
			curIdentity = nil
			lastSubkey = nil
			kr.Records = append(kr.Records, cur)

		case *packet.UserID:
			lastSubkey = nil
			curIdentity = &Identity{UserID: body}
			if cur != nil {
				cur.Identities = append(cur.Identities, curIdentity)
			}

		case *packet.UserAttribute:
			lastSubkey = nil
			curIdentity = &Identity{UserAttribute: body}
			if cur != nil {
				cur.Identities = append(cur.Identities, curIdentity)
			}

		case *packet.Signature:
			attach(body)
		}
		return packet.Continue
	})
	if err != nil {
		return nil, err
	}
	return kr, nil
}

// FindByUserID returns the first key record any of whose identities
// has a UserID containing query as a substring.
func (kr *Keyring) FindByUserID(query string) (*KeyRecord, error) {
	for _, rec := range kr.Records {
		for _, id := range rec.Identities {
			if id.UserID != nil && strings.Contains(id.UserID.ID, query) {
				return rec, nil
			}
		}
	}
	return nil, errors.KeyError("keyring: no key found for user id: " + query)
}

// FindByKeyID returns the key record whose primary key or any subkey
// has the given key ID.
func (kr *Keyring) FindByKeyID(keyID uint64) (*KeyRecord, error) {
	for _, rec := range kr.Records {
		if rec.Primary.KeyID == keyID {
			return rec, nil
		}
		for _, sk := range rec.Subkeys {
			if sk.Key.KeyID == keyID {
				return rec, nil
			}
		}
	}
	return nil, errors.KeyError("keyring: no key found for key id")
}
