// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package logger

func isStderrConnectedToJournal() bool {
	return false
}
