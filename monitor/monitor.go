// SPDX-License-Identifier: Apache-2.0

// Package monitor watches a D-Bus service's property and object
// lifecycle signals and verifies that they stay consistent with the
// state the service reports.
//
// The monitor reconstructs a shadow copy of the service's managed
// object graph purely from InterfacesAdded, InterfacesRemoved and
// PropertiesChanged signals. On demand (normally on interrupt) it
// fetches a fresh GetManagedObjects snapshot and reports every
// difference between the two, classifying property mismatches against
// each property's declared EmitsChangedSignal behavior.
package monitor

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/stratis-storage/testing/logger"
)

// Monitor owns the shadow object graph and the bus connection. All
// state is mutated from the single goroutine running Run; Check and
// CallbackErrors must only be called after Run has returned.
type Monitor struct {
	cfg Config
	log *logger.Logger

	managerPath   dbus.ObjectPath
	topInterfaces map[string]bool
	interfaceRE   *regexp.Regexp

	newClient  func() (busClient, error)
	retryDelay time.Duration

	client    busClient
	contracts *contractReader
	signals   <-chan *dbus.Signal

	// objects is the shadow replica built from signals alone.
	objects objectGraph

	// callbackErrs collects handler failures; their presence fails the
	// run at report time instead of crashing the dispatch loop.
	callbackErrs []error
}

// New creates a Monitor for the given config.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	re, err := compileInterfaceFilter(cfg.OnlyCheck)
	if err != nil {
		return nil, err
	}

	top := make(map[string]bool, len(cfg.TopInterfaces))
	for _, iface := range cfg.TopInterfaces {
		top[iface] = true
	}

	timeout := cfg.timeout()

	return &Monitor{
		cfg:           cfg,
		log:           logger.With("service", cfg.Service),
		managerPath:   dbus.ObjectPath(cfg.Manager),
		topInterfaces: top,
		interfaceRE:   re,
		newClient: func() (busClient, error) {
			return newSystemBusClient(cfg.Service, timeout)
		},
		retryDelay: reconnectDelay,
		objects:    make(objectGraph),
	}, nil
}

// Close releases the bus connection.
func (m *Monitor) Close() {
	if m.client != nil {
		m.client.close()
	}
}

// Run bootstraps the monitor and folds signals into the shadow graph
// until ctx is canceled. A canceled context is the normal way to stop;
// Run then returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.bootstrap(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	m.loop(ctx)
	return nil
}

func (m *Monitor) bootstrap(ctx context.Context) error {
	for {
		client, err := m.newClient()
		if err == nil {
			if err = client.ping(ctx, m.managerPath); err == nil {
				m.client = client
				break
			}
			client.close()
		}

		m.log.Warningf("failed to get top object %s: %v, retrying", m.managerPath, err)
		if !m.sleep(ctx) {
			return ctx.Err()
		}
	}

	m.contracts = newContractReader(m.client, m.log)

	// Subscribe before the initial fetch so that no signal emitted
	// during the fetch is lost; such signals are folded in afterwards.
	signals, err := m.client.subscribe(m.managerPath)
	if err != nil {
		return fmt.Errorf("subscribe to signals of %s: %w", m.cfg.Service, err)
	}
	m.signals = signals

	for {
		objects, err := m.makeManagedObjects(ctx)
		if err == nil {
			m.objects = objects
			return nil
		}

		m.log.Warningf("failed to get initial managed objects: %v, retrying", err)
		if !m.sleep(ctx) {
			return ctx.Err()
		}
	}
}

func (m *Monitor) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.retryDelay):
		return true
	}
}

// loop is the single logical thread of control: every handler runs to
// completion here, serialized with everything else that touches the
// shadow graph.
func (m *Monitor) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-m.signals:
			if !ok {
				return
			}
			m.dispatch(sig)
		}
	}
}

func (m *Monitor) dispatch(sig *dbus.Signal) {
	switch sig.Name {
	case interfacesAddedSignal:
		var path dbus.ObjectPath
		var added map[string]map[string]dbus.Variant
		if err := dbus.Store(sig.Body, &path, &added); err != nil {
			m.callbackErrs = append(m.callbackErrs, fmt.Errorf("malformed InterfacesAdded signal from %s: %w", sig.Path, err))
			return
		}
		m.log.Debugf("interfaces added: %s %v", path, added)
		m.applyInterfacesAdded(path, added)

	case interfacesRemovedSignal:
		var path dbus.ObjectPath
		var removed []string
		if err := dbus.Store(sig.Body, &path, &removed); err != nil {
			m.callbackErrs = append(m.callbackErrs, fmt.Errorf("malformed InterfacesRemoved signal from %s: %w", sig.Path, err))
			return
		}
		m.log.Debugf("interfaces removed: %s %v", path, removed)
		m.applyInterfacesRemoved(path, removed)

	case propertiesChangedSignal:
		var iface string
		var changed map[string]dbus.Variant
		var invalidated []string
		if err := dbus.Store(sig.Body, &iface, &changed, &invalidated); err != nil {
			m.callbackErrs = append(m.callbackErrs, fmt.Errorf("malformed PropertiesChanged signal from %s: %w", sig.Path, err))
			return
		}
		m.log.Debugf("properties changed: %s %s changed=%v invalidated=%v", sig.Path, iface, changed, invalidated)
		m.applyPropertiesChanged(sig.Path, iface, changed, invalidated)
	}
}

// CallbackErrors reports failures recorded by the signal handlers.
func (m *Monitor) CallbackErrors() []error {
	return m.callbackErrs
}

// Check fetches a fresh snapshot and diffs the shadow graph against it.
func (m *Monitor) Check(ctx context.Context) ([]Discrepancy, error) {
	if m.client == nil {
		// Interrupted before bootstrap completed; nothing to verify.
		return nil, nil
	}

	snapshot, err := m.makeManagedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return m.compare(ctx, m.objects, snapshot)
}
