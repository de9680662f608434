// SPDX-License-Identifier: Apache-2.0

package executable

import (
	"os"
	"path/filepath"
	"strings"
)

// Name is the base name of the running executable. It falls back to the
// canonical tool name when the executable path cannot be resolved (e.g.
// under `go test`).
var Name = "stratis-dbus-monitor"

// Directory is the directory the running executable resides in, if known.
var Directory string

func init() {
	path, err := os.Executable()
	if err != nil || path == "" {
		return
	}

	dir, file := filepath.Split(path)
	if strings.HasSuffix(file, ".test") {
		return
	}

	Name = file
	Directory = filepath.Clean(dir)
}
