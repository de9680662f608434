// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratis-storage/testing/logger"
)

func TestChangeContractFromCode(t *testing.T) {
	tests := map[string]struct {
		code string
		want changeContract
	}{
		"true":        {code: "true", want: emitsValue},
		"invalidates": {code: "invalidates", want: emitsInvalidation},
		"const":       {code: "const", want: emitsConst},
		"false":       {code: "false", want: emitsConst},
		"empty":       {code: "", want: emitsUnknown},
		"garbage":     {code: "sometimes", want: emitsUnknown},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, changeContractFromCode(test.code))
		})
	}
}

func TestContractReader_PropertyContract(t *testing.T) {
	tests := map[string]struct {
		annotation string
		want       changeContract
	}{
		"absent annotation defaults to full value": {annotation: "", want: emitsValue},
		"true":                                     {annotation: "true", want: emitsValue},
		"invalidates":                              {annotation: "invalidates", want: emitsInvalidation},
		"const":                                    {annotation: "const", want: emitsConst},
		"false":                                    {annotation: "false", want: emitsConst},
		"unknown code":                             {annotation: "sometimes", want: emitsUnknown},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := newMockClient()
			client.introXML[poolPath] = introspectionXML(poolIface, map[string]string{"Name": test.annotation})

			reader := newContractReader(client, logger.New())

			contract, err := reader.propertyContract(context.Background(), poolPath, poolIface, "Name")

			require.NoError(t, err)
			assert.Equal(t, test.want, contract)
		})
	}
}

func TestContractReader_UnknownInterfaceOrProperty(t *testing.T) {
	client := newMockClient()
	client.introXML[poolPath] = introspectionXML(poolIface, map[string]string{"Name": "const"})

	reader := newContractReader(client, logger.New())

	contract, err := reader.propertyContract(context.Background(), poolPath, fsIface, "Name")
	require.NoError(t, err)
	assert.Equal(t, emitsValue, contract)

	contract, err = reader.propertyContract(context.Background(), poolPath, poolIface, "Uuid")
	require.NoError(t, err)
	assert.Equal(t, emitsValue, contract)
}

func TestContractReader_CachesPerObjectPath(t *testing.T) {
	client := newMockClient()
	client.introXML[poolPath] = introspectionXML(poolIface, map[string]string{"Name": "const", "Uuid": "invalidates"})

	reader := newContractReader(client, logger.New())

	for i := 0; i < 3; i++ {
		_, err := reader.propertyContract(context.Background(), poolPath, poolIface, "Name")
		require.NoError(t, err)
		_, err = reader.propertyContract(context.Background(), poolPath, poolIface, "Uuid")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, client.introCalls)
}

func TestContractReader_FetchError(t *testing.T) {
	client := newMockClient()
	client.introErr = errors.New("mock: unreachable")

	reader := newContractReader(client, logger.New())

	_, err := reader.propertyContract(context.Background(), poolPath, poolIface, "Name")
	assert.Error(t, err)
}

func TestContractReader_MalformedXML(t *testing.T) {
	client := newMockClient()
	client.introXML[poolPath] = "<node><interface"

	reader := newContractReader(client, logger.New())

	_, err := reader.propertyContract(context.Background(), poolPath, poolIface, "Name")
	assert.Error(t, err)
}
