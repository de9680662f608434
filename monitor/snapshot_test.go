// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeManagedObjects(t *testing.T) {
	cfg := restrictedConfig()

	client := mockForConfig(cfg)
	client.topProps[managerIface] = variantProps(map[string]string{"Version": "3.6.0"})
	client.objects[poolPath] = map[string]map[string]dbus.Variant{
		poolIface: variantProps(map[string]string{"Name": "foo"}),
		"org.freedesktop.DBus.Introspectable": {},
	}
	// The bulk result lists the manager too; its entry must come from
	// the per-interface GetAll instead.
	client.objects[testManager] = map[string]map[string]dbus.Variant{
		managerIface: variantProps(map[string]string{"Version": "stale"}),
		reportIface:  {},
	}
	client.objects[fsPath] = map[string]map[string]dbus.Variant{
		"org.freedesktop.DBus.Peer": {},
	}

	mon := prepareBootstrapped(t, cfg, client)

	graph, err := mon.makeManagedObjects(context.Background())
	require.NoError(t, err)

	require.Contains(t, graph, dbus.ObjectPath(poolPath))
	assert.Contains(t, graph[poolPath], poolIface)
	assert.NotContains(t, graph[poolPath], "org.freedesktop.DBus.Introspectable")

	// An object whose every interface is filtered out is absent.
	assert.NotContains(t, graph, dbus.ObjectPath(fsPath))

	require.Contains(t, graph, dbus.ObjectPath(testManager))
	require.Contains(t, graph[testManager], managerIface)
	assert.NotContains(t, graph[testManager], reportIface)
	assert.True(t, graph[testManager][managerIface].props["Version"].equal(concreteValue(dbus.MakeVariant("3.6.0"))))
}

func TestMakeManagedObjects_NoTopInterfaces(t *testing.T) {
	client := newMockClient()
	client.objects[testManager] = map[string]map[string]dbus.Variant{
		managerIface: variantProps(map[string]string{"Version": "3.6.0"}),
	}

	mon := prepareBootstrapped(t, defaultConfig(), client)

	graph, err := mon.makeManagedObjects(context.Background())
	require.NoError(t, err)

	// Without --top-interface nothing on the manager object is tracked.
	assert.NotContains(t, graph, dbus.ObjectPath(testManager))
}

func TestMakeManagedObjects_BulkCallError(t *testing.T) {
	client := newMockClient()
	mon := prepareBootstrapped(t, defaultConfig(), client)

	client.moErr = errors.New("mock: gone")

	_, err := mon.makeManagedObjects(context.Background())
	assert.Error(t, err)
}

func TestMakeManagedObjects_GetAllError(t *testing.T) {
	cfg := restrictedConfig()
	client := mockForConfig(cfg)
	mon := prepareBootstrapped(t, cfg, client)

	client.getAllErr = errors.New("mock: no reply")

	_, err := mon.makeManagedObjects(context.Background())
	assert.Error(t, err)
}
