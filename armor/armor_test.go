// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package armor_test

import (
	"bytes"
	"testing"

	"github.com/dpeckett/gopgpsdk/armor"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 10)

	var buf bytes.Buffer
	require.NoError(t, armor.Encode(&buf, armor.BlockMessage, map[string]string{"Version": "gopgpsdk"}, data))

	block, err := armor.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, armor.BlockMessage, block.Type)
	require.Equal(t, "gopgpsdk", block.Headers["Version"])
	require.Equal(t, data, block.Body)
}

func TestDecodeRejectsTamperedCRC(t *testing.T) {
	data := []byte("hello, world")

	var buf bytes.Buffer
	require.NoError(t, armor.Encode(&buf, armor.BlockSignature, nil, data))

	tampered := buf.Bytes()
	lines := bytes.Split(tampered, []byte("\n"))
	for i, line := range lines {
		if len(line) > 0 && line[0] != '-' && line[0] != '=' {
			lines[i][0] ^= 0x20 // flip case of the first base64 body character
			break
		}
	}
	tampered = bytes.Join(lines, []byte("\n"))

	_, err := armor.Decode(bytes.NewReader(tampered))
	require.Error(t, err)
}

func TestWriterStreamedRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 500)

	var buf bytes.Buffer
	w, err := armor.NewWriter(&buf, armor.BlockMessage, nil)
	require.NoError(t, err)

	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		_, err := w.Write(data[i:end])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	block, err := armor.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, data, block.Body)
}
