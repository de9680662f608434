// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	objectManagerIface  = "org.freedesktop.DBus.ObjectManager"
	propertiesIface     = "org.freedesktop.DBus.Properties"
	introspectableIface = "org.freedesktop.DBus.Introspectable"
	peerIface           = "org.freedesktop.DBus.Peer"

	interfacesAddedSignal   = objectManagerIface + ".InterfacesAdded"
	interfacesRemovedSignal = objectManagerIface + ".InterfacesRemoved"
	propertiesChangedSignal = propertiesIface + ".PropertiesChanged"
)

// signalBuffer sizes the inbound signal channel. godbus drops signals
// when the channel is full, so it is sized for bursts of lifecycle
// events during pool/filesystem churn.
const signalBuffer = 256

// busClient is the narrow bus surface the monitor consumes. The real
// implementation talks to the system bus; tests substitute a mock.
type busClient interface {
	close()
	ping(ctx context.Context, path dbus.ObjectPath) error
	managedObjects(ctx context.Context, path dbus.ObjectPath) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error)
	allProperties(ctx context.Context, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error)
	introspect(ctx context.Context, path dbus.ObjectPath) (string, error)
	subscribe(path dbus.ObjectPath) (<-chan *dbus.Signal, error)
}

type systemBusClient struct {
	conn    *dbus.Conn
	service string
	timeout time.Duration
}

func newSystemBusClient(service string, timeout time.Duration) (busClient, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &systemBusClient{conn: conn, service: service, timeout: timeout}, nil
}

func (c *systemBusClient) close() {
	_ = c.conn.Close()
}

func (c *systemBusClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *systemBusClient) ping(ctx context.Context, path dbus.ObjectPath) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	return c.conn.Object(c.service, path).CallWithContext(ctx, peerIface+".Ping", 0).Err
}

func (c *systemBusClient) managedObjects(ctx context.Context, path dbus.ObjectPath) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var out map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := c.conn.Object(c.service, path).
		CallWithContext(ctx, objectManagerIface+".GetManagedObjects", 0).
		Store(&out)
	return out, err
}

func (c *systemBusClient) allProperties(ctx context.Context, path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var out map[string]dbus.Variant
	err := c.conn.Object(c.service, path).
		CallWithContext(ctx, propertiesIface+".GetAll", 0, iface).
		Store(&out)
	return out, err
}

func (c *systemBusClient) introspect(ctx context.Context, path dbus.ObjectPath) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var out string
	err := c.conn.Object(c.service, path).
		CallWithContext(ctx, introspectableIface+".Introspect", 0).
		Store(&out)
	return out, err
}

func (c *systemBusClient) subscribe(path dbus.ObjectPath) (<-chan *dbus.Signal, error) {
	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchSender(c.service),
			dbus.WithMatchObjectPath(path),
			dbus.WithMatchInterface(objectManagerIface),
			dbus.WithMatchMember("InterfacesAdded"),
		},
		{
			dbus.WithMatchSender(c.service),
			dbus.WithMatchObjectPath(path),
			dbus.WithMatchInterface(objectManagerIface),
			dbus.WithMatchMember("InterfacesRemoved"),
		},
		{
			// PropertiesChanged is emitted by each managed object on its
			// own path; the subtree filter happens in the handler.
			dbus.WithMatchSender(c.service),
			dbus.WithMatchInterface(propertiesIface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
	}

	for _, m := range matches {
		if err := c.conn.AddMatchSignal(m...); err != nil {
			return nil, err
		}
	}

	ch := make(chan *dbus.Signal, signalBuffer)
	c.conn.Signal(ch)
	return ch, nil
}
