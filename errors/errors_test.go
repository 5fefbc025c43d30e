// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package errors_test

import (
	goerrors "errors"
	"testing"

	"github.com/dpeckett/gopgpsdk/errors"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	cases := []struct {
		err  errors.Kinder
		kind errors.Kind
	}{
		{errors.StructuralError("bad length"), errors.KindFormat},
		{errors.UnsupportedError("IDEA"), errors.KindUnsupported},
		{errors.SignatureError("bad hash"), errors.KindCrypto},
		{errors.ArmourError("bad crc"), errors.KindArmour},
		{errors.KeyError("not found"), errors.KindKey},
	}
	for _, c := range cases {
		require.Equal(t, c.kind, c.err.Kind())
		require.NotEmpty(t, c.err.Error())
	}
}

func TestSentinelsMatchErrorsIs(t *testing.T) {
	wrapped := goerrors.Join(errors.ErrCancelled)
	require.True(t, goerrors.Is(wrapped, errors.ErrCancelled))
	require.True(t, goerrors.Is(goerrors.Join(errors.ErrMDCHashMismatch), errors.ErrMDCHashMismatch))
}

func TestWrapIO(t *testing.T) {
	require.Nil(t, errors.WrapIO("read", nil))
	err := errors.WrapIO("read", goerrors.New("disk full"))
	require.Error(t, err)
	require.Equal(t, errors.KindIO, err.(errors.Kinder).Kind())
	require.Contains(t, err.Error(), "disk full")
}
