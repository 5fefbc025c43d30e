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
	"bytes"
	"testing"

	"github.com/dpeckett/gopgpsdk/packet"
	"github.com/stretchr/testify/require"
)

func TestCompressedZlibRoundTrip(t *testing.T) {
	var inner bytes.Buffer
	iw := packet.NewWriter(&inner)
	iw.PushLengthPrefixed(packet.TagLiteralData)
	require.NoError(t, iw.PushLiteral(&packet.LiteralData{Format: packet.LiteralFormatText, FileName: "a.txt"}))
	_, err := iw.Write([]byte("compressed payload"))
	require.NoError(t, err)
	require.NoError(t, iw.Close())

	var outer bytes.Buffer
	ow := packet.NewWriter(&outer)
	ow.PushLengthPrefixed(packet.TagCompressed)
	require.NoError(t, ow.PushCompress(packet.CompressionZLIB))
	_, err = ow.Write(inner.Bytes())
	require.NoError(t, err)
	require.NoError(t, ow.Close())

	var body []byte
	var sawCompressedHeader bool
	err = packet.Parse(bytes.NewReader(outer.Bytes()), func(ev packet.Event) packet.Disposition {
		switch ev.Kind {
		case packet.EventCompressedHeader:
			sawCompressedHeader = true
			require.Equal(t, packet.CompressionZLIB, ev.Body.(*packet.Compressed).Algorithm)
		case packet.EventDataChunk:
			body = append(body, ev.Chunk...)
		}
		return packet.Continue
	})
	require.NoError(t, err)
	require.True(t, sawCompressedHeader)
	require.Equal(t, "compressed payload", string(body))
}
