// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build tools

package objfile

import (
	_ "golang.org/x/tools/cmd/stringer"
)
