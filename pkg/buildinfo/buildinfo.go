// SPDX-License-Identifier: Apache-2.0

package buildinfo

// Version stores the monitor's version number. It's set during the build
// process using build flags.
var Version = "v0.0.0"
