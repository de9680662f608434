// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		args    []string
		want    *Option
		wantErr bool
	}{
		"positional arguments": {
			args: []string{"org.storage.stratis3", "/org/storage/stratis3"},
			want: &Option{},
		},
		"repeatable top-interface": {
			args: []string{
				"--top-interface", "org.storage.stratis3.Manager.r0",
				"-t", "org.storage.stratis3.Report.r0",
				"org.storage.stratis3", "/org/storage/stratis3",
			},
			want: &Option{
				TopInterfaces: []string{
					"org.storage.stratis3.Manager.r0",
					"org.storage.stratis3.Report.r0",
				},
			},
		},
		"only-check and debug": {
			args: []string{
				"--only-check", `org\.storage\..*`, "--debug",
				"org.storage.stratis3", "/org/storage/stratis3",
			},
			want: &Option{OnlyCheck: `org\.storage\..*`, Debug: true},
		},
		"version without positionals": {
			args: []string{"--version"},
			want: &Option{Version: true},
		},
		"unknown flag": {
			args:    []string{"--frobnicate"},
			wantErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			opt, err := Parse(test.args)

			if test.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.want.TopInterfaces, opt.TopInterfaces)
			assert.Equal(t, test.want.OnlyCheck, opt.OnlyCheck)
			assert.Equal(t, test.want.Debug, opt.Debug)
			assert.Equal(t, test.want.Version, opt.Version)
			if len(test.args) >= 2 && !test.want.Version {
				assert.NotEmpty(t, opt.Args.Service)
				assert.NotEmpty(t, opt.Args.Manager)
			}
		})
	}
}
