// SPDX-License-Identifier: Apache-2.0

package confopt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		"go duration":      {input: "duration: 2m", want: time.Minute * 2},
		"seconds integer":  {input: "duration: 120", want: time.Second * 120},
		"seconds float":    {input: "duration: 1.5", want: time.Millisecond * 1500},
		"negative allowed": {input: "duration: -1", want: -time.Second},
		"garbage":          {input: "duration: forever", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var out struct {
				Duration Duration `yaml:"duration"`
			}

			err := yaml.Unmarshal([]byte(test.input), &out)

			if test.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.want, out.Duration.Duration())
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		"go duration":     {input: "2m", want: time.Minute * 2},
		"seconds integer": {input: "120", want: time.Second * 120},
		"seconds float":   {input: "1.5", want: time.Millisecond * 1500},
		"garbage":         {input: "forever", wantErr: true},
		"empty":           {input: "", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			d, err := ParseDuration(test.input)

			if test.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.want, d.Duration())
			}
		})
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte("90")))
	assert.Equal(t, time.Second*90, d.Duration())
}
