// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/jessevdk/go-flags"

	"github.com/stratis-storage/testing/pkg/executable"
)

// Option defines command line options.
type Option struct {
	TopInterfaces []string `short:"t" long:"top-interface" description:"interface belonging to the top object (repeatable)"`
	OnlyCheck     string   `long:"only-check" description:"regular expression that restricts interfaces to check (default: .*)"`
	ConfigPath    string   `short:"c" long:"config" description:"YAML monitor profile to read"`
	Timeout       string   `long:"timeout" description:"remote call timeout, a Go duration or a number of seconds"`
	Debug         bool     `short:"d" long:"debug" description:"debug mode"`
	Version       bool     `short:"v" long:"version" description:"display the version and exit"`

	Args struct {
		Service string `positional-arg-name:"service" description:"the D-Bus service to monitor"`
		Manager string `positional-arg-name:"manager" description:"object path that implements the ObjectManager interface"`
	} `positional-args:"yes"`
}

// Parse returns parsed command-line flags in Option struct. args must
// not include the program name.
func Parse(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = executable.Name
	parser.Usage = "[OPTIONS] service manager"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return opt, nil
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}
