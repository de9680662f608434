// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
)

// makeManagedObjects fetches a ground-truth snapshot: the bulk
// GetManagedObjects result filtered by the interface filter, with the
// manager object's entry replaced by a per-interface GetAll over the
// configured top interfaces.
func (m *Monitor) makeManagedObjects(ctx context.Context) (objectGraph, error) {
	wire, err := m.client.managedObjects(ctx, m.managerPath)
	if err != nil {
		return nil, fmt.Errorf("GetManagedObjects on %s: %w", m.managerPath, err)
	}

	graph := make(objectGraph, len(wire)+1)
	for path, ifaces := range wire {
		kept := make(map[string]ifaceEntry)
		for name, props := range ifaces {
			if !m.interfaceRE.MatchString(name) {
				continue
			}
			kept[name] = realIface(propsFromWire(props))
		}
		// An object with no tracked interfaces is treated as absent.
		if len(kept) > 0 {
			graph[path] = kept
		}
	}

	top := make(map[string]ifaceEntry, len(m.cfg.TopInterfaces))
	for _, iface := range m.cfg.TopInterfaces {
		props, err := m.client.allProperties(ctx, m.managerPath, iface)
		if err != nil {
			return nil, fmt.Errorf("GetAll(%s) on %s: %w", iface, m.managerPath, err)
		}
		top[iface] = realIface(propsFromWire(props))
	}
	if len(top) > 0 {
		graph[m.managerPath] = top
	} else {
		delete(graph, m.managerPath)
	}

	return graph, nil
}
