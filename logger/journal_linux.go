// SPDX-License-Identifier: Apache-2.0

//go:build linux

package logger

import (
	"github.com/coreos/go-systemd/v22/journal"
)

func isStderrConnectedToJournal() bool {
	ok, _ := journal.StderrIsJournalStream()
	return ok
}
