// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import (
	"fmt"
	"runtime"
)

// These are set at build time via -ldflags, for example
// -X gitlab.com/xpchain/xpcd/version.tag=v0.4.0
var (
	tag    = "v0.4.0"
	commit = "dev"
	date   = ""
)

// GetVersion returns the release tag of the node.
func GetVersion() string {
	return tag
}

// GetExtendedVersion returns the release tag with the commit and the
// toolchain the node was built with.
func GetExtendedVersion() string {
	extended := fmt.Sprintf("%s-%s %s %s/%s", tag, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if date != "" {
		extended += " built " + date
	}
	return extended
}
