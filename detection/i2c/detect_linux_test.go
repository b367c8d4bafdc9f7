//go:build linux

// go-wcpu
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-wcpu.
//
// go-wcpu is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-wcpu is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-wcpu; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package i2c

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaparooProject/go-wcpu/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_NoAdapters(t *testing.T) {
	t.Parallel()

	d := &detector{devGlob: filepath.Join(t.TempDir(), "i2c-*")}
	assert.Equal(t, "i2c", d.Bus())

	_, err := d.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestFindI2CBuses_SkipsNonAdapters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// a regular file fails the functionality ioctl
	require.NoError(t, os.WriteFile(filepath.Join(dir, "i2c-1"), nil, 0o600))

	buses, err := findI2CBuses(filepath.Join(dir, "i2c-*"))
	require.NoError(t, err)
	assert.Empty(t, buses)
}
